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
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// dbPool abstracts database operations for testability, matching the
// convention used across the other pgx-backed stores in this module.
type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const sessionColumns = `id, session_token, state, ip, user_agent, app_type, app_device,
	user_id, organization_id, created_at, last_activity_at, expires_at, version`

// PostgresStore implements Store over a sessions table with a unique
// index on session_token among active (non-ended) rows, per §6.
type PostgresStore struct {
	pool dbPool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool dbPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	var userID, orgID uuid.NullUUID
	err := row.Scan(
		&s.ID, &s.SessionToken, &s.State, &s.IP, &s.UserAgent, &s.AppType, &s.AppDevice,
		&userID, &orgID, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.Version,
	)
	if err != nil {
		return Session{}, err
	}
	if userID.Valid {
		id := userID.UUID
		s.UserID = &id
	}
	if orgID.Valid {
		id := orgID.UUID
		s.OrganizationID = &id
	}
	return s, nil
}

func (s *PostgresStore) CreateOrGet(
	ctx context.Context, sessionToken, ip, ua string, appType AppType, appDevice string, ttl time.Duration,
) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE session_token = $1 AND state != 'ended' AND expires_at > now()`, sessionToken)
	existing, err := scanSession(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, apperr.Wrap(apperr.Database, "authsession: create_or_get lookup", err)
	}

	now := time.Now()
	row = s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, session_token, state, ip, user_agent, app_type, app_device,
			created_at, last_activity_at, expires_at, version)
		VALUES ($1,$2,'ghost',$3,$4,$5,$6,$7,$7,$8,1)
		RETURNING `+sessionColumns,
		uuid.New(), sessionToken, ip, ua, appType, appDevice, now, now.Add(ttl))
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Database, "authsession: create_or_get insert", err)
	}
	return sess, nil
}

// AuthenticateSession is best-effort: the UPDATE is a compare-and-swap
// on version, matching relstore's `AND version = $N` pattern (internal/
// relstore/pg.go). A zero-row result — because the token is gone, the
// session already ended, or expectedVersion has been superseded by a
// concurrent writer — is not surfaced as an error, it re-fetches the
// current row once (§4.L, §7).
func (s *PostgresStore) AuthenticateSession(ctx context.Context, sessionToken string, expectedVersion int64, userID, orgID uuid.UUID) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET user_id = $1, organization_id = $2, state = 'authenticated', version = version + 1
		WHERE session_token = $3 AND state != 'ended' AND version = $4
		RETURNING `+sessionColumns, userID, orgID, sessionToken, expectedVersion)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.refetch(ctx, sessionToken)
	}
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Database, "authsession: authenticate", err)
	}
	return sess, nil
}

// UpdateActivity is best-effort like AuthenticateSession: a stale
// expectedVersion loses the compare-and-swap and re-fetches the current
// row rather than erroring.
func (s *PostgresStore) UpdateActivity(ctx context.Context, sessionToken string, expectedVersion int64, now time.Time) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET last_activity_at = $1, version = version + 1
		WHERE session_token = $2 AND state != 'ended' AND version = $3
		RETURNING `+sessionColumns, now, sessionToken, expectedVersion)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.refetch(ctx, sessionToken)
	}
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Database, "authsession: update activity", err)
	}
	return sess, nil
}

func (s *PostgresStore) refetch(ctx context.Context, sessionToken string) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_token = $1`, sessionToken)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Database, "authsession: refetch", err)
	}
	return sess, nil
}

// EndSession is idempotent: ending a missing or already-ended session
// is success.
func (s *PostgresStore) EndSession(ctx context.Context, sessionToken string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET state = 'ended', version = version + 1
		WHERE session_token = $1 AND state != 'ended'`, sessionToken)
	if err != nil {
		return apperr.Wrap(apperr.Database, "authsession: end session", err)
	}
	return nil
}

func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET state = 'ended', version = version + 1
		WHERE state != 'ended' AND expires_at <= $1`, now)
	if err != nil {
		return 0, apperr.Wrap(apperr.Database, "authsession: cleanup expired", err)
	}
	return int(tag.RowsAffected()), nil
}
