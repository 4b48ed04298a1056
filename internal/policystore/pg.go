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
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/policyacl"
)

// dbPool abstracts database operations for testability, matching the
// convention used across the other pgx-backed stores in this module.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore implements Store over a policy table keyed by name,
// with an in-memory write-through cache kept synchronized with
// persistence (§4.J).
type PostgresStore struct {
	pool dbPool

	mu    sync.RWMutex
	cache map[string]Policy
}

// NewPostgresStore creates a PostgresStore with an empty cache.
func NewPostgresStore(pool dbPool) *PostgresStore {
	return &PostgresStore{pool: pool, cache: make(map[string]Policy)}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Get(ctx context.Context, name string) (Policy, error) {
	key := policyacl.NormalizePolicyName(name)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	row := s.pool.QueryRow(ctx, `SELECT name, raw_policy FROM policies WHERE name = $1`, key)
	var p Policy
	if err := row.Scan(&p.Name, &p.RawPolicy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, apperr.New(apperr.NotFound, "policystore: no policy named "+key)
		}
		return Policy{}, apperr.Wrap(apperr.Database, "policystore: get", err)
	}
	rules, err := policyacl.ParsePolicyDocument(p.Name, p.RawPolicy)
	if err != nil {
		return Policy{}, err
	}
	p.Rules = rules

	s.mu.Lock()
	s.cache[key] = p
	s.mu.Unlock()
	return p, nil
}

func (s *PostgresStore) Put(ctx context.Context, name string, rawPolicy []byte) error {
	key := policyacl.NormalizePolicyName(name)
	if IsImmutable(key) {
		return apperr.New(apperr.PolicyConflict, "policystore: policy "+key+" is immutable")
	}
	return s.upsert(ctx, key, rawPolicy)
}

// SeedDefault writes the "default" policy bypassing the immutability
// guard, for the one-time startup seed in policystore.EnsureDefaultPolicy.
func (s *PostgresStore) SeedDefault(ctx context.Context, rawPolicy []byte) error {
	return s.upsert(ctx, policyacl.DefaultPolicyName, rawPolicy)
}

func (s *PostgresStore) upsert(ctx context.Context, key string, rawPolicy []byte) error {
	rules, err := policyacl.ParsePolicyDocument(key, rawPolicy)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO policies (name, raw_policy) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET raw_policy = EXCLUDED.raw_policy`, key, rawPolicy)
	if err != nil {
		return apperr.Wrap(apperr.Database, "policystore: put", err)
	}

	s.mu.Lock()
	s.cache[key] = Policy{Name: key, RawPolicy: rawPolicy, Rules: rules}
	s.mu.Unlock()
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	key := policyacl.NormalizePolicyName(name)
	if IsImmutable(key) {
		return apperr.New(apperr.PolicyConflict, "policystore: policy "+key+" is immutable")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM policies WHERE name = $1`, key)
	if err != nil {
		return apperr.Wrap(apperr.Database, "policystore: delete", err)
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM policies`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "policystore: list", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.Database, "policystore: list scan", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Database, "policystore: list rows", err)
	}
	return names, nil
}

// ClearCache drops the in-memory read-through cache, for testing.
func (s *PostgresStore) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]Policy)
}
