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

package policystore

import (
	"context"
	"sync"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/policyacl"
)

// MemoryStore is an in-process Store for tests and single-node
// deployments, guarding a map with a RWMutex in the same shape as the
// other in-memory stores in this module.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewMemoryStore creates an empty MemoryStore. It does not seed
// "default" itself; callers invoke policystore.EnsureDefaultPolicy on
// startup.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]Policy)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, name string) (Policy, error) {
	key := policyacl.NormalizePolicyName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[key]
	if !ok {
		return Policy{}, apperr.New(apperr.NotFound, "policystore: no policy named "+key)
	}
	return p, nil
}

func (s *MemoryStore) Put(ctx context.Context, name string, rawPolicy []byte) error {
	key := policyacl.NormalizePolicyName(name)
	if IsImmutable(key) {
		return apperr.New(apperr.PolicyConflict, "policystore: policy "+key+" is immutable")
	}
	return s.store(ctx, key, rawPolicy)
}

// SeedDefault writes the "default" policy bypassing the immutability
// guard, for the one-time startup seed in policystore.EnsureDefaultPolicy.
func (s *MemoryStore) SeedDefault(ctx context.Context, rawPolicy []byte) error {
	return s.store(ctx, policyacl.DefaultPolicyName, rawPolicy)
}

func (s *MemoryStore) store(_ context.Context, key string, rawPolicy []byte) error {
	rules, err := policyacl.ParsePolicyDocument(key, rawPolicy)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[key] = Policy{Name: key, RawPolicy: rawPolicy, Rules: rules}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	key := policyacl.NormalizePolicyName(name)
	if IsImmutable(key) {
		return apperr.New(apperr.PolicyConflict, "policystore: policy "+key+" is immutable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, key)
	return nil
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.policies))
	for name := range s.policies {
		names = append(names, name)
	}
	return names, nil
}

// ClearCache is a no-op on MemoryStore: there is no separate cache
// layer distinct from the store itself.
func (s *MemoryStore) ClearCache() {}
