/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package idref parses and formats the entity reference strings used
// throughout the authorization core: the colon form (user:<uuid>,
// role:admin, resource:<type>:<id>) and the hierarchical slash form
// (organization/app/module/resource).
package idref

import "strings"

// Ref is a parsed entity reference. Type is the leading colon-delimited
// segment ("user", "role", "group", "app", "organization", "resource");
// ID is everything after the first colon, which for resource references
// may itself contain further colons (resource:<type>:<id>).
type Ref struct {
	Type string
	ID   string
}

// String renders the reference back to its colon form. Parse and String
// round-trip losslessly for any input that Parse accepts.
func (r Ref) String() string {
	if r.ID == "" {
		return r.Type
	}
	return r.Type + ":" + r.ID
}

// IsZero reports whether r was never successfully parsed.
func (r Ref) IsZero() bool {
	return r.Type == ""
}

// Parse accepts the colon form "type:id" (with id allowed to contain
// further colons, e.g. "resource:doc:42") and returns its components.
// A string with no colon is treated as a bare type with an empty ID
// (e.g. the literal "root" policy name is not an entity reference and
// Parse will reject it via ok=false since it never appears in tuple
// subject/object position without a colon).
func Parse(s string) (Ref, bool) {
	if s == "" {
		return Ref{}, false
	}
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Ref{}, false
	}
	typ := s[:idx]
	id := s[idx+1:]
	if typ == "" || id == "" {
		return Ref{}, false
	}
	return Ref{Type: typ, ID: id}, true
}

// HRef is a parsed hierarchical slash reference:
// organization/app/module/resource. Segments preserves the exact
// slash-delimited order so String can round-trip it.
type HRef struct {
	Segments []string
}

// String renders the hierarchical reference back to slash form.
func (h HRef) String() string {
	return strings.Join(h.Segments, "/")
}

// IsZero reports whether h has no segments.
func (h HRef) IsZero() bool {
	return len(h.Segments) == 0
}

// ParseHierarchical splits a slash-delimited reference into its ordered
// segments. An empty string or a string with any empty segment (leading,
// trailing, or doubled slash) is rejected.
func ParseHierarchical(s string) (HRef, bool) {
	if s == "" {
		return HRef{}, false
	}
	segs := strings.Split(s, "/")
	for _, seg := range segs {
		if seg == "" {
			return HRef{}, false
		}
	}
	return HRef{Segments: segs}, true
}

// ParseAny accepts either the colon form or the hierarchical slash form,
// trying colon first (the common case for subject/relation/object), and
// reports which form matched. It never returns ok=true for both.
func ParseAny(s string) (ref Ref, href HRef, kind string, ok bool) {
	if r, ok := Parse(s); ok {
		return r, HRef{}, "colon", true
	}
	if h, ok := ParseHierarchical(s); ok {
		return Ref{}, h, "hierarchical", true
	}
	return Ref{}, HRef{}, "", false
}

// ScopedEntityType builds the scoped DEK entity-type strings the key
// manager uses for cryptographic isolation: realm/<id>, service/<id>,
// realm/<id>/<inner>, global/<scope>.
func ScopedEntityType(kind, id string, inner ...string) string {
	parts := append([]string{kind, id}, inner...)
	return strings.Join(parts, "/")
}
