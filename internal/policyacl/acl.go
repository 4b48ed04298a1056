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
	"strings"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// NamedPolicy is a single compiled-input policy: its name plus the
// parsed rules from its document, keyed by path.
type NamedPolicy struct {
	Name  string
	Rules map[string]Rule
}

// ACL is a compiled matcher over one or more named policies (§4.I). A
// nil/zero ACL with isRootOnly set short-circuits every evaluation to
// allow-all.
type ACL struct {
	isRootOnly bool
	exact      map[string]Rule
	prefix     *prefixTrie
	wildcard   *wildcardList
}

// Compile partitions and merges rules from policies into an ACL.
//
// If any policy is named "root" and it is not alone, compilation fails
// with PolicyConflict (§4.I step 1). If "root" is the sole policy, the
// result is the allow-all singleton (step 2). Otherwise every policy's
// rules are partitioned into exact/prefix/segment-wildcard sets,
// merging any two rules sharing a path with deny-dominant semantics
// (step 4).
func Compile(policies []NamedPolicy) (*ACL, error) {
	hasRoot := false
	for _, p := range policies {
		if NormalizePolicyName(p.Name) == RootPolicyName {
			hasRoot = true
		}
	}
	if hasRoot {
		if len(policies) != 1 {
			return nil, apperr.New(apperr.PolicyConflict, "policyacl: \"root\" cannot be combined with other policies")
		}
		return &ACL{isRootOnly: true}, nil
	}

	acl := &ACL{
		exact:    make(map[string]Rule),
		prefix:   newPrefixTrie(),
		wildcard: &wildcardList{},
	}
	for _, p := range policies {
		for path, rule := range p.Rules {
			switch classifyPath(path) {
			case kindExact:
				if existing, ok := acl.exact[path]; ok {
					acl.exact[path] = mergeRule(existing, rule)
				} else {
					acl.exact[path] = rule
				}
			case kindPrefix:
				acl.prefix.insert(prefixKeyOf(path), rule)
			case kindSegmentWildcard:
				acl.wildcard.insert(path, rule)
			}
		}
	}
	return acl, nil
}

// Result is the outcome of evaluating a single (operation, path)
// request against a compiled ACL (§4.I).
type Result struct {
	Allowed            bool
	RootPrivs          bool
	IsRoot             bool
	CapabilitiesBitmap Bitmap
	PolicyNames        []string
}

// Evaluate answers whether operation is permitted on path. Evaluation
// strips a leading "/", tries the exact set (and, for "list", the exact
// path with a trailing "/" trimmed too), then the longest prefix-trie
// match, then the best segment-wildcard match, defaulting to deny if
// nothing matches.
func (a *ACL) Evaluate(operation, path string) (Result, error) {
	if a.isRootOnly {
		return Result{Allowed: true, RootPrivs: true, IsRoot: true, CapabilitiesBitmap: Bitmap(CapRoot)}, nil
	}

	clean := strings.TrimPrefix(path, "/")

	rule, ok := a.exact[clean]
	if !ok && strings.EqualFold(operation, "list") {
		rule, ok = a.exact[strings.TrimSuffix(clean, "/")]
	}
	if !ok {
		rule, ok = a.prefix.longestMatch(clean)
	}
	if !ok {
		rule, ok = a.wildcard.bestMatch(clean)
	}
	if !ok {
		return Result{Allowed: false}, nil
	}

	allowed, err := satisfies(rule.Capabilities, operation)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:            allowed,
		RootPrivs:          rule.Capabilities.Has(CapSudo),
		IsRoot:             false,
		CapabilitiesBitmap: rule.Capabilities,
		PolicyNames:        rule.PolicyNames,
	}, nil
}
