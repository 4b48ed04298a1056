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
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/pgutil"

	"github.com/google/uuid"
)

// dbPool abstracts database operations for testability, matching the
// convention used across the other pgx-backed stores in this module.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const accessorColumns = `id, token_hash, display_name, policies, ttl_seconds, renewable,
	use_count_limit, use_count, metadata, created_at, expires_at, organization_id`

// PostgresStore persists token accessors in a table keyed by id with a
// unique index on token_hash, per §6's "Persisted state layout".
type PostgresStore struct {
	pool dbPool
	now  func() time.Time
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool dbPool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

var _ Store = (*PostgresStore)(nil)

func scanAccessor(row pgx.Row) (Accessor, error) {
	var a Accessor
	var orgID uuid.NullUUID
	var metadataJSON []byte
	var ttlSeconds int64
	err := row.Scan(
		&a.ID, &a.TokenHash, &a.DisplayName, &a.Policies, &ttlSeconds, &a.Renewable,
		&a.UseCountLimit, &a.UseCount, &metadataJSON, &a.CreatedAt, &a.ExpiresAt, &orgID,
	)
	if err != nil {
		return Accessor{}, err
	}
	a.TTL = time.Duration(ttlSeconds) * time.Second
	if orgID.Valid {
		id := orgID.UUID
		a.OrganizationID = &id
	}
	a.Metadata = pgutil.UnmarshalJSONB(metadataJSON)
	return a, nil
}

func (s *PostgresStore) Create(ctx context.Context, req MintRequest) (MintResult, error) {
	raw, err := generateRawToken()
	if err != nil {
		return MintResult{}, err
	}

	now := s.now()
	id := uuid.New()
	var expiresAt *time.Time
	if req.TTL > 0 {
		e := now.Add(req.TTL)
		expiresAt = &e
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO token_accessors (id, token_hash, display_name, policies, ttl_seconds,
			renewable, use_count_limit, use_count, metadata, created_at, expires_at, organization_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9,$10,$11)`,
		id, HashToken(raw), req.DisplayName, req.Policies, int64(req.TTL.Seconds()),
		req.Renewable, req.UseCountLimit, pgutil.MarshalJSONB(req.Metadata), now, expiresAt, req.OrganizationID)
	if err != nil {
		return MintResult{}, apperr.Wrap(apperr.Database, "tokenstore: create", err)
	}

	acc := Accessor{
		ID: id, TokenHash: HashToken(raw), DisplayName: req.DisplayName, Policies: req.Policies,
		TTL: req.TTL, Renewable: req.Renewable, UseCountLimit: req.UseCountLimit,
		Metadata: req.Metadata, CreatedAt: now, ExpiresAt: expiresAt, OrganizationID: req.OrganizationID,
	}
	return MintResult{RawToken: raw, Accessor: acc, Policies: req.Policies, TTLSeconds: int64(req.TTL.Seconds())}, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, rawToken string) (Accessor, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accessorColumns+` FROM token_accessors WHERE token_hash = $1`, HashToken(rawToken))
	acc, err := scanAccessor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Accessor{}, apperr.New(apperr.Authentication, "tokenstore: token not found")
	}
	if err != nil {
		return Accessor{}, apperr.Wrap(apperr.Database, "tokenstore: lookup", err)
	}
	if acc.ExpiresAt != nil && s.now().After(*acc.ExpiresAt) {
		return Accessor{}, apperr.New(apperr.Authentication, "tokenstore: token expired")
	}
	return acc, nil
}

// Revoke is idempotent: deleting a missing accessor is success.
func (s *PostgresStore) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM token_accessors WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, "tokenstore: revoke", err)
	}
	return nil
}

func (s *PostgresStore) IncrementUse(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE token_accessors SET use_count = use_count + 1
		WHERE id = $1 AND (use_count_limit = 0 OR use_count < use_count_limit)`, id)
	if err != nil {
		return apperr.Wrap(apperr.Database, "tokenstore: increment use", err)
	}
	if tag.RowsAffected() == 0 {
		row := s.pool.QueryRow(ctx, `SELECT id FROM token_accessors WHERE id = $1`, id)
		var existing uuid.UUID
		if scanErr := row.Scan(&existing); errors.Is(scanErr, pgx.ErrNoRows) {
			return apperr.New(apperr.NotFound, "tokenstore: no accessor "+id.String())
		}
		return apperr.New(apperr.Authentication, "tokenstore: use count limit exhausted")
	}
	return nil
}
