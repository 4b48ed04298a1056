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

package authsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node
// deployments, guarding a map with a Mutex in the same shape as the
// other in-memory stores in this module.
type MemoryStore struct {
	mu       sync.Mutex
	byToken  map[string]Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]Session)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateOrGet(
	_ context.Context, sessionToken, ip, ua string, appType AppType, appDevice string, ttl time.Duration,
) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.byToken[sessionToken]; ok && !existing.IsExpired(now) && existing.State != StateEnded {
		return existing, nil
	}

	sess := Session{
		ID:             uuid.New(),
		SessionToken:   sessionToken,
		State:          StateGhost,
		IP:             ip,
		UserAgent:      ua,
		AppType:        appType,
		AppDevice:      appDevice,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
		Version:        1,
	}
	s.byToken[sessionToken] = sess
	return sess, nil
}

// AuthenticateSession mirrors PostgresStore's compare-and-swap: the
// mutation only applies when the row is present, not ended, and still
// at expectedVersion. Any mismatch is best-effort per §4.L/§7 — it
// returns the current row (zero Session if the token is unknown)
// unmodified, never an error.
func (s *MemoryStore) AuthenticateSession(_ context.Context, sessionToken string, expectedVersion int64, userID, orgID uuid.UUID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[sessionToken]
	if !ok || sess.State == StateEnded || sess.Version != expectedVersion {
		return sess, nil
	}
	sess.UserID = &userID
	sess.OrganizationID = &orgID
	sess.State = StateAuthenticated
	sess.Version++
	s.byToken[sessionToken] = sess
	return sess, nil
}

// UpdateActivity is best-effort like AuthenticateSession: a stale
// expectedVersion leaves the row untouched and returns it as-is.
func (s *MemoryStore) UpdateActivity(_ context.Context, sessionToken string, expectedVersion int64, now time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[sessionToken]
	if !ok || sess.State == StateEnded || sess.Version != expectedVersion {
		return sess, nil
	}
	sess.LastActivityAt = now
	sess.Version++
	s.byToken[sessionToken] = sess
	return sess, nil
}

func (s *MemoryStore) EndSession(_ context.Context, sessionToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[sessionToken]
	if !ok {
		return nil
	}
	sess.State = StateEnded
	sess.Version++
	s.byToken[sessionToken] = sess
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for token, sess := range s.byToken {
		if sess.State != StateEnded && sess.IsExpired(now) {
			sess.State = StateEnded
			sess.Version++
			s.byToken[token] = sess
			count++
		}
	}
	return count, nil
}
