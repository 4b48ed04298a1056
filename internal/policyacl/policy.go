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

package policyacl

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// RootPolicyName and DefaultPolicyName are the two reserved built-in
// policy names (§4.J, §6): root is the implicit allow-all, default
// grants self-token management paths.
const (
	RootPolicyName    = "root"
	DefaultPolicyName = "default"
)

// RuleDoc is the wire representation of a single path rule within a
// policy document (§6).
type RuleDoc struct {
	Capabilities      []string `json:"capabilities"`
	AllowedParameters []string `json:"allowed_parameters,omitempty"`
	DeniedParameters  []string `json:"denied_parameters,omitempty"`
	RequiredParameters []string `json:"required_parameters,omitempty"`
	MinWrappingTTL    int64    `json:"min_wrapping_ttl,omitempty"`
	MaxWrappingTTL    int64    `json:"max_wrapping_ttl,omitempty"`
}

// PolicyDoc is the wire representation of a named policy (§6): a JSON
// object with a single required top-level field "path" mapping path
// strings to rule objects.
type PolicyDoc struct {
	Path map[string]RuleDoc `json:"path"`
}

// Rule is the parsed, in-memory form of a RuleDoc: capabilities
// compiled to a Bitmap plus the parameter constraints carried through
// unparsed (the engine merges them into the compiled rule, but Evaluate's
// Result does not carry them and the engine does not enforce
// parameter-level checks, which belong to the transport layer per §6).
type Rule struct {
	Path               string
	Capabilities       Bitmap
	AllowedParameters  []string
	DeniedParameters   []string
	RequiredParameters []string
	MinWrappingTTL     int64
	MaxWrappingTTL     int64
	// PolicyNames accumulates every policy that contributed to this
	// rule after merging, in first-contribution order.
	PolicyNames []string
}

// ParsePolicyDocument parses raw JSON into a set of Rules keyed by
// path, rejecting any document referencing an unknown capability
// (§6, §4.I).
func ParsePolicyDocument(policyName string, raw []byte) (map[string]Rule, error) {
	var doc PolicyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "policyacl: parse policy document", err)
	}
	if doc.Path == nil {
		return nil, apperr.New(apperr.Validation, "policyacl: policy document missing required \"path\" field")
	}

	rules := make(map[string]Rule, len(doc.Path))
	for path, rd := range doc.Path {
		bm, err := FromNames(rd.Capabilities)
		if err != nil {
			return nil, err
		}
		rules[path] = Rule{
			Path:               path,
			Capabilities:       bm,
			AllowedParameters:  rd.AllowedParameters,
			DeniedParameters:   rd.DeniedParameters,
			RequiredParameters: rd.RequiredParameters,
			MinWrappingTTL:     rd.MinWrappingTTL,
			MaxWrappingTTL:     rd.MaxWrappingTTL,
			PolicyNames:        []string{policyName},
		}
	}
	return rules, nil
}

// SerializePolicyDocument renders rules back to the wire PolicyDoc JSON
// form. ParsePolicyDocument and SerializePolicyDocument round-trip a
// document's capabilities and parameter constraints losslessly (the
// policy name carried in Rule.PolicyNames is not part of the wire form
// and is dropped, matching the document's own schema).
func SerializePolicyDocument(rules map[string]Rule) ([]byte, error) {
	doc := PolicyDoc{Path: make(map[string]RuleDoc, len(rules))}
	for path, r := range rules {
		doc.Path[path] = RuleDoc{
			Capabilities:       capabilityNamesOf(r.Capabilities),
			AllowedParameters:  r.AllowedParameters,
			DeniedParameters:   r.DeniedParameters,
			RequiredParameters: r.RequiredParameters,
			MinWrappingTTL:     r.MinWrappingTTL,
			MaxWrappingTTL:     r.MaxWrappingTTL,
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "policyacl: serialize policy document", err)
	}
	return raw, nil
}

func capabilityNamesOf(bm Bitmap) []string {
	if bm.IsDeny() {
		return []string{"deny"}
	}
	var names []string
	for name, cap := range capabilityNames {
		if cap == CapDeny {
			continue
		}
		if bm.Has(cap) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NormalizePolicyName lowercases and trims a policy name for use as a
// store key (§4.J).
func NormalizePolicyName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// mergeRule unions two rules for the same path: capabilities merge via
// Merge (deny dominance), parameter lists concatenate, TTL bounds widen
// to the union, and PolicyNames accumulates in first-contribution order.
func mergeRule(a, b Rule) Rule {
	merged := Rule{
		Path:               a.Path,
		Capabilities:       Merge(a.Capabilities, b.Capabilities),
		AllowedParameters:  append(append([]string{}, a.AllowedParameters...), b.AllowedParameters...),
		DeniedParameters:   append(append([]string{}, a.DeniedParameters...), b.DeniedParameters...),
		RequiredParameters: append(append([]string{}, a.RequiredParameters...), b.RequiredParameters...),
		MinWrappingTTL:     minNonZero(a.MinWrappingTTL, b.MinWrappingTTL),
		MaxWrappingTTL:     maxOf(a.MaxWrappingTTL, b.MaxWrappingTTL),
	}
	merged.PolicyNames = append(merged.PolicyNames, a.PolicyNames...)
	for _, n := range b.PolicyNames {
		if !containsString(merged.PolicyNames, n) {
			merged.PolicyNames = append(merged.PolicyNames, n)
		}
	}
	return merged
}

func minNonZero(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
