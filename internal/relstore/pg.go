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
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/pgutil"
	"github.com/altairalabs/vaultkeep/internal/reltuple"
)

// dbPool abstracts database operations for testability, matching the
// convention used across the other pgx-backed stores in this module.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// zeroOrg is the sentinel value substituted for a NULL organization_id in
// the uniqueness index, since Postgres treats NULLs as pairwise-distinct
// in a unique constraint and the data model requires exactly one
// non-deleted tuple per (subject, relation, object, organization_id) even
// when organization_id is the global NULL bucket.
var zeroOrg = uuid.Nil

const tupleColumns = `id, subject, relation, object, organization_id, valid_from, expires_at,
	is_active, metadata, encrypted, deleted_at, deleted_by, created_at, updated_at,
	created_by, updated_by, request_id, system_id, version`

// PostgresStore implements Store over a relationships table with the
// schema implied by spec §6's "Persisted state layout".
type PostgresStore struct {
	pool  dbPool
	inval Invalidator
}

// NewPostgresStore creates a PostgresStore. inval may be nil, in which
// case mutations are not broadcast to a cache (suitable for tests or for
// deployments with no graph cache layer).
func NewPostgresStore(pool dbPool, inval Invalidator) *PostgresStore {
	return &PostgresStore{pool: pool, inval: inval}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) notify(subject string) {
	if s.inval != nil {
		s.inval.InvalidateSubject(subject)
	}
}

func scanTuple(row pgx.Row) (reltuple.Tuple, error) {
	var t reltuple.Tuple
	var orgID uuid.NullUUID
	var metadataJSON []byte
	err := row.Scan(
		&t.ID, &t.Subject, &t.Relation, &t.Object, &orgID, &t.ValidFrom, &t.ExpiresAt,
		&t.IsActive, &metadataJSON, &t.Encrypted, &t.DeletedAt, &t.DeletedBy,
		&t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &t.UpdatedBy, &t.RequestID, &t.SystemID, &t.Version,
	)
	if err != nil {
		return reltuple.Tuple{}, err
	}
	if orgID.Valid {
		id := orgID.UUID
		t.OrganizationID = &id
	}
	t.Metadata = pgutil.UnmarshalJSONB(metadataJSON)
	return t, nil
}

func (s *PostgresStore) queryTuples(ctx context.Context, query string, args ...any) ([]reltuple.Tuple, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "relstore: query", err)
	}
	defer rows.Close()

	var out []reltuple.Tuple
	for rows.Next() {
		t, err := scanTuple(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, "relstore: scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Database, "relstore: rows", err)
	}
	return out, nil
}

func (s *PostgresStore) FindValidBySubject(ctx context.Context, subject string) ([]reltuple.Tuple, error) {
	return s.queryTuples(ctx, `SELECT `+tupleColumns+` FROM relationships
		WHERE subject = $1 AND deleted_at IS NULL AND is_active
		AND (valid_from IS NULL OR valid_from <= now())
		AND (expires_at IS NULL OR expires_at > now())`, subject)
}

func (s *PostgresStore) FindValidBySubjectRelation(ctx context.Context, subject, relation string) ([]reltuple.Tuple, error) {
	return s.queryTuples(ctx, `SELECT `+tupleColumns+` FROM relationships
		WHERE subject = $1 AND relation = $2 AND deleted_at IS NULL AND is_active
		AND (valid_from IS NULL OR valid_from <= now())
		AND (expires_at IS NULL OR expires_at > now())`, subject, relation)
}

func (s *PostgresStore) FindValidBySubjectObjectRelation(
	ctx context.Context, subject, object, relation string, organizationID *uuid.UUID,
) (*reltuple.Tuple, error) {
	org := zeroOrg
	if organizationID != nil {
		org = *organizationID
	}
	row := s.pool.QueryRow(ctx, `SELECT `+tupleColumns+` FROM relationships
		WHERE subject = $1 AND object = $2 AND relation = $3
		AND COALESCE(organization_id, '00000000-0000-0000-0000-000000000000'::uuid) = $4
		AND deleted_at IS NULL AND is_active
		AND (valid_from IS NULL OR valid_from <= now())
		AND (expires_at IS NULL OR expires_at > now())`, subject, object, relation, org)
	t, err := scanTuple(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "relstore: find one", err)
	}
	return &t, nil
}

func (s *PostgresStore) FindAllBySubject(ctx context.Context, subject string) ([]reltuple.Tuple, error) {
	return s.queryTuples(ctx, `SELECT `+tupleColumns+` FROM relationships WHERE subject = $1`, subject)
}

// Create upserts on the partial uniqueness key. A conflicting non-deleted
// row bumps version rather than erroring, per invariant 2.
func (s *PostgresStore) Create(ctx context.Context, t reltuple.Tuple) (reltuple.Tuple, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO relationships (
			id, subject, relation, object, organization_id, valid_from, expires_at,
			is_active, metadata, encrypted, created_by, updated_by, request_id, system_id, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11,$12,$13,1)
		ON CONFLICT (subject, relation, object, (COALESCE(organization_id, '00000000-0000-0000-0000-000000000000'::uuid)))
		WHERE deleted_at IS NULL
		DO UPDATE SET
			valid_from = EXCLUDED.valid_from,
			expires_at = EXCLUDED.expires_at,
			is_active = EXCLUDED.is_active,
			metadata = EXCLUDED.metadata,
			encrypted = EXCLUDED.encrypted,
			updated_by = EXCLUDED.created_by,
			updated_at = now(),
			version = relationships.version + 1
		RETURNING `+tupleColumns,
		t.ID, t.Subject, t.Relation, t.Object, t.OrganizationID, t.ValidFrom, t.ExpiresAt,
		t.IsActive, pgutil.MarshalJSONB(t.Metadata), t.Encrypted, t.CreatedBy, t.RequestID, t.SystemID)

	out, err := scanTuple(row)
	if err != nil {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: create", err)
	}
	s.notify(t.Subject)
	return out, nil
}

// Update checks Version for optimistic concurrency. Zero affected rows
// means either the row is gone or the version is stale; the caller
// distinguishes by re-reading, per the §4.L/§9 pattern.
func (s *PostgresStore) Update(ctx context.Context, t reltuple.Tuple) (reltuple.Tuple, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE relationships SET
			expires_at = $1, is_active = $2, metadata = $3, encrypted = $4,
			updated_by = $5, updated_at = now(), version = version + 1
		WHERE id = $6 AND version = $7 AND deleted_at IS NULL
		RETURNING `+tupleColumns,
		t.ExpiresAt, t.IsActive, pgutil.MarshalJSONB(t.Metadata), t.Encrypted,
		t.UpdatedBy, t.ID, t.Version)

	out, err := scanTuple(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: update", ErrVersionConflict)
	}
	if err != nil {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: update", err)
	}
	s.notify(out.Subject)
	return out, nil
}

// SoftDelete is idempotent: a missing or already-deleted row is success.
func (s *PostgresStore) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	var subject string
	row := s.pool.QueryRow(ctx, `
		UPDATE relationships SET deleted_at = now(), deleted_by = $1, updated_at = now(), version = version + 1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING subject`, deletedBy, id)
	err := row.Scan(&subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.Database, "relstore: soft delete", err)
	}
	s.notify(subject)
	return nil
}

func (s *PostgresStore) ExtendExpiration(
	ctx context.Context, id uuid.UUID, version int64, expiresAt time.Time,
) (reltuple.Tuple, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE relationships SET expires_at = $1, updated_at = now(), version = version + 1
		WHERE id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+tupleColumns, expiresAt, id, version)

	out, err := scanTuple(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: extend expiration", ErrVersionConflict)
	}
	if err != nil {
		return reltuple.Tuple{}, apperr.Wrap(apperr.Database, "relstore: extend expiration", err)
	}
	s.notify(out.Subject)
	return out, nil
}

// Revoke is soft-delete with an explicit actor name, idempotent like SoftDelete.
func (s *PostgresStore) Revoke(ctx context.Context, id uuid.UUID, revokedBy string) error {
	return s.SoftDelete(ctx, id, revokedBy)
}

func (s *PostgresStore) BulkLoad(ctx context.Context) ([]reltuple.Tuple, error) {
	return s.queryTuples(ctx, `SELECT `+tupleColumns+` FROM relationships
		WHERE deleted_at IS NULL AND is_active
		AND (valid_from IS NULL OR valid_from <= now())
		AND (expires_at IS NULL OR expires_at > now())`)
}
