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

package relstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/reltuple"
)

// MemoryStore is an in-process Store implementation for tests and for
// small single-node deployments. It guards a map with a RWMutex, the same
// shape as the teacher's session.MemoryStore.
type MemoryStore struct {
	mu     sync.RWMutex
	tuples map[uuid.UUID]reltuple.Tuple
	inval  Invalidator
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(inval Invalidator) *MemoryStore {
	return &MemoryStore{
		tuples: make(map[uuid.UUID]reltuple.Tuple),
		inval:  inval,
		now:    time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func copyTuple(t reltuple.Tuple) reltuple.Tuple {
	out := t
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (s *MemoryStore) notify(subject string) {
	if s.inval != nil {
		s.inval.InvalidateSubject(subject)
	}
}

func (s *MemoryStore) FindValidBySubject(_ context.Context, subject string) ([]reltuple.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []reltuple.Tuple
	for _, t := range s.tuples {
		if t.Subject == subject && t.IsValid(now) {
			out = append(out, copyTuple(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindValidBySubjectRelation(_ context.Context, subject, relation string) ([]reltuple.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []reltuple.Tuple
	for _, t := range s.tuples {
		if t.Subject == subject && t.Relation == relation && t.IsValid(now) {
			out = append(out, copyTuple(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindValidBySubjectObjectRelation(
	_ context.Context, subject, object, relation string, organizationID *uuid.UUID,
) (*reltuple.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	for _, t := range s.tuples {
		if t.Subject != subject || t.Object != object || t.Relation != relation {
			continue
		}
		if !sameOrg(t.OrganizationID, organizationID) {
			continue
		}
		if t.IsValid(now) {
			out := copyTuple(t)
			return &out, nil
		}
	}
	return nil, nil
}

func sameOrg(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func (s *MemoryStore) FindAllBySubject(_ context.Context, subject string) ([]reltuple.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reltuple.Tuple
	for _, t := range s.tuples {
		if t.Subject == subject {
			out = append(out, copyTuple(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, t reltuple.Tuple) (reltuple.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reltuple.KeyOf(t)
	for id, existing := range s.tuples {
		if existing.DeletedAt != nil {
			continue
		}
		if reltuple.KeyOf(existing) == key {
			existing.ExpiresAt = t.ExpiresAt
			existing.ValidFrom = t.ValidFrom
			existing.IsActive = t.IsActive
			existing.Metadata = t.Metadata
			existing.Encrypted = t.Encrypted
			existing.Version++
			existing.UpdatedAt = s.now()
			s.tuples[id] = existing
			s.notify(existing.Subject)
			return copyTuple(existing), nil
		}
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Version = 1
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.tuples[t.ID] = t
	s.notify(t.Subject)
	return copyTuple(t), nil
}

func (s *MemoryStore) Update(_ context.Context, t reltuple.Tuple) (reltuple.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tuples[t.ID]
	if !ok || existing.DeletedAt != nil {
		return reltuple.Tuple{}, apperr.New(apperr.NotFound, "relstore: tuple not found")
	}
	if existing.Version != t.Version {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: update", ErrVersionConflict)
	}
	existing.ExpiresAt = t.ExpiresAt
	existing.IsActive = t.IsActive
	existing.Metadata = t.Metadata
	existing.Encrypted = t.Encrypted
	existing.UpdatedBy = t.UpdatedBy
	existing.Version++
	existing.UpdatedAt = s.now()
	s.tuples[t.ID] = existing
	s.notify(existing.Subject)
	return copyTuple(existing), nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id uuid.UUID, deletedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tuples[id]
	if !ok || existing.DeletedAt != nil {
		return nil
	}
	now := s.now()
	existing.DeletedAt = &now
	existing.DeletedBy = &deletedBy
	existing.Version++
	existing.UpdatedAt = now
	s.tuples[id] = existing
	s.notify(existing.Subject)
	return nil
}

func (s *MemoryStore) ExtendExpiration(
	_ context.Context, id uuid.UUID, version int64, expiresAt time.Time,
) (reltuple.Tuple, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tuples[id]
	if !ok || existing.DeletedAt != nil {
		return reltuple.Tuple{}, apperr.New(apperr.NotFound, "relstore: tuple not found")
	}
	if existing.Version != version {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: extend expiration", ErrVersionConflict)
	}
	existing.ExpiresAt = &expiresAt
	existing.Version++
	existing.UpdatedAt = s.now()
	s.tuples[id] = existing
	s.notify(existing.Subject)
	return copyTuple(existing), nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id uuid.UUID, revokedBy string) error {
	return s.SoftDelete(ctx, id, revokedBy)
}

func (s *MemoryStore) BulkLoad(_ context.Context) ([]reltuple.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []reltuple.Tuple
	for _, t := range s.tuples {
		if t.IsValid(now) {
			out = append(out, copyTuple(t))
		}
	}
	return out, nil
}
