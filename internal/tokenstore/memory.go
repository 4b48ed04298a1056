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

package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// MemoryStore is an in-process Store for tests and single-node
// deployments, guarding a map with a Mutex in the same shape as the
// other in-memory stores in this module.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]Accessor
	byHash   map[string]uuid.UUID
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[uuid.UUID]Accessor),
		byHash: make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(_ context.Context, req MintRequest) (MintResult, error) {
	raw, err := generateRawToken()
	if err != nil {
		return MintResult{}, err
	}

	now := s.now()
	acc := Accessor{
		ID:             uuid.New(),
		TokenHash:      HashToken(raw),
		DisplayName:    req.DisplayName,
		Policies:       append([]string{}, req.Policies...),
		TTL:            req.TTL,
		Renewable:      req.Renewable,
		UseCountLimit:  req.UseCountLimit,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		OrganizationID: req.OrganizationID,
	}
	if req.TTL > 0 {
		expires := now.Add(req.TTL)
		acc.ExpiresAt = &expires
	}

	s.mu.Lock()
	s.byID[acc.ID] = acc
	s.byHash[acc.TokenHash] = acc.ID
	s.mu.Unlock()

	return MintResult{
		RawToken:   raw,
		Accessor:   acc,
		Policies:   acc.Policies,
		TTLSeconds: int64(req.TTL.Seconds()),
	}, nil
}

func (s *MemoryStore) Lookup(_ context.Context, rawToken string) (Accessor, error) {
	hash := HashToken(rawToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[hash]
	if !ok {
		return Accessor{}, apperr.New(apperr.Authentication, "tokenstore: token not found")
	}
	acc := s.byID[id]
	if acc.ExpiresAt != nil && s.now().After(*acc.ExpiresAt) {
		return Accessor{}, apperr.New(apperr.Authentication, "tokenstore: token expired")
	}
	return acc, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	delete(s.byHash, acc.TokenHash)
	return nil
}

func (s *MemoryStore) IncrementUse(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return apperr.New(apperr.NotFound, "tokenstore: no accessor "+id.String())
	}
	if acc.UseCountLimit > 0 && acc.UseCount >= acc.UseCountLimit {
		return apperr.New(apperr.Authentication, "tokenstore: use count limit exhausted")
	}
	acc.UseCount++
	s.byID[id] = acc
	return nil
}
