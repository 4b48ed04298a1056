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

// Package policyacl implements the path-based policy ACL engine (§4.I):
// compiling a set of named policies into an exact/prefix/segment-wildcard
// path matcher with capability bitmaps, and evaluating operations against
// the compiled matcher.
package policyacl

import (
	"fmt"
	"strings"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// Capability is one bit of the packed set {deny, create, read, update,
// delete, list, sudo, patch, root}. Setting Deny clears every other bit.
type Capability uint16

const (
	CapDeny Capability = 1 << iota
	CapCreate
	CapRead
	CapUpdate
	CapDelete
	CapList
	CapSudo
	CapPatch
	CapRoot
)

var capabilityNames = map[string]Capability{
	"deny":   CapDeny,
	"create": CapCreate,
	"read":   CapRead,
	"update": CapUpdate,
	"delete": CapDelete,
	"list":   CapList,
	"sudo":   CapSudo,
	"patch":  CapPatch,
	"root":   CapRoot,
}

// ParseCapability maps a capability name to its bit, returning a
// Validation error for anything unrecognized per §6's policy-document
// contract ("unknown capabilities cause a parse error").
func ParseCapability(name string) (Capability, error) {
	cap, ok := capabilityNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, apperr.New(apperr.Validation, fmt.Sprintf("unknown capability %q", name))
	}
	return cap, nil
}

// Bitmap is the union of individual capability bits for a matched rule.
type Bitmap Capability

// Has reports whether every bit in want is set in b.
func (b Bitmap) Has(want Capability) bool {
	return Capability(b)&want == want
}

// IsDeny reports whether the deny bit is set. By invariant (enforced at
// merge time), Deny never coexists with any other bit.
func (b Bitmap) IsDeny() bool {
	return b.Has(CapDeny)
}

// Merge unions two bitmaps' bits, except that if either side carries
// Deny the result is Deny exclusively (§4.I step 4, §8 property 8).
func Merge(a, b Bitmap) Bitmap {
	if a.IsDeny() || b.IsDeny() {
		return Bitmap(CapDeny)
	}
	return Bitmap(Capability(a) | Capability(b))
}

// FromNames builds a Bitmap from a list of capability names, parsing
// each with ParseCapability. The "deny" capability always dominates
// regardless of position.
func FromNames(names []string) (Bitmap, error) {
	var bm Bitmap
	var sawDeny bool
	for _, n := range names {
		cap, err := ParseCapability(n)
		if err != nil {
			return 0, err
		}
		if cap == CapDeny {
			sawDeny = true
			continue
		}
		bm = Bitmap(Capability(bm) | cap)
	}
	if sawDeny {
		return Bitmap(CapDeny), nil
	}
	return bm, nil
}

// requiredCapability maps an operation to the capability bit(s) that
// satisfy it (§4.I): read→read, write→update (create also suffices),
// delete→delete, list→list.
func requiredCapability(operation string) (Capability, error) {
	switch strings.ToLower(operation) {
	case "read":
		return CapRead, nil
	case "write":
		return CapUpdate, nil
	case "delete":
		return CapDelete, nil
	case "list":
		return CapList, nil
	default:
		return 0, apperr.New(apperr.Validation, fmt.Sprintf("unknown operation %q", operation))
	}
}

// satisfies reports whether bm grants the capability required for
// operation, applying the write→update-or-create special case.
func satisfies(bm Bitmap, operation string) (bool, error) {
	want, err := requiredCapability(operation)
	if err != nil {
		return false, err
	}
	if bm.IsDeny() {
		return false, nil
	}
	if bm.Has(want) {
		return true, nil
	}
	if want == CapUpdate && bm.Has(CapCreate) {
		return true, nil
	}
	return false, nil
}
