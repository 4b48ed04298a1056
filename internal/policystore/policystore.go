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

// Package policystore persists named policy documents (§4.J) and builds
// compiled policyacl.ACL matchers from sets of policy names.
package policystore

import (
	"context"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/policyacl"
)

// Policy is a persisted named policy: the raw document text plus its
// parsed rule set, matching the "raw_policy and a derived/parsed
// column" layout of §6.
type Policy struct {
	Name      string
	RawPolicy []byte
	Rules     map[string]policyacl.Rule
}

// defaultPolicyDoc is the built-in literal seeded when no "default"
// policy exists on startup (§4.J): self-token management only.
const defaultPolicyDoc = `{"path":{"auth/token/lookup-self":{"capabilities":["read"]},"auth/token/renew-self":{"capabilities":["update"]},"auth/token/revoke-self":{"capabilities":["update"]}}}`

// Store persists policies and builds ACLs from policy-name sets.
type Store interface {
	// Get returns the named policy, apperr.NotFound if absent.
	Get(ctx context.Context, name string) (Policy, error)
	// Put creates or replaces the named policy. PolicyConflict if name
	// is "root" or "default" (the initial seed of "default" excepted).
	Put(ctx context.Context, name string, rawPolicy []byte) error
	// Delete removes the named policy. PolicyConflict for "root" or
	// "default".
	Delete(ctx context.Context, name string) error
	// List returns every persisted policy name.
	List(ctx context.Context) ([]string, error)
	// ClearCache drops any in-memory read-through cache, for testing.
	ClearCache()
}

// EnsureDefaultPolicy seeds the "default" policy from the built-in
// literal if it is absent, per §4.J's startup contract. It is safe to
// call on every process start; it is a no-op once seeded.
func EnsureDefaultPolicy(ctx context.Context, s Store) error {
	_, err := s.Get(ctx, policyacl.DefaultPolicyName)
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.NotFound {
		return err
	}
	return seedDefault(ctx, s)
}

// seedDefault is the one path permitted to write the "default" policy
// without running into the immutability guard: stores implement it by
// bypassing Put's reserved-name check for this exact call.
func seedDefault(ctx context.Context, s Store) error {
	if seeder, ok := s.(interface {
		SeedDefault(ctx context.Context, rawPolicy []byte) error
	}); ok {
		return seeder.SeedDefault(ctx, []byte(defaultPolicyDoc))
	}
	return apperr.New(apperr.Internal, "policystore: store does not support seeding the default policy")
}

// BuildACL fetches every named policy and compiles them into an ACL, as
// in §4.I.
func BuildACL(ctx context.Context, s Store, names []string) (*policyacl.ACL, error) {
	policies := make([]policyacl.NamedPolicy, 0, len(names))
	for _, name := range names {
		p, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policyacl.NamedPolicy{Name: p.Name, Rules: p.Rules})
	}
	return policyacl.Compile(policies)
}

// IsImmutable reports whether name is one of the two reserved,
// unmodifiable built-in policies.
func IsImmutable(name string) bool {
	n := policyacl.NormalizePolicyName(name)
	return n == policyacl.RootPolicyName || n == policyacl.DefaultPolicyName
}
