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

// Package authsession implements the session manager's
// ghost→authenticated→ended state machine (§4.L).
package authsession

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is a session's position in the ghost→authenticated→ended
// machine.
type State string

const (
	StateGhost         State = "ghost"
	StateAuthenticated State = "authenticated"
	StateEnded         State = "ended"
)

// AppType selects which configured TTL applies to a session (§4.L). An
// unrecognized value defaults to AppTypeAPI.
type AppType string

const (
	AppTypeAdminUI AppType = "admin-ui"
	AppTypeClientUI AppType = "client-ui"
	AppTypeAPI      AppType = "api"
)

// NormalizeAppType maps any string to a known AppType, defaulting
// unrecognized values to AppTypeAPI per §4.L.
func NormalizeAppType(raw string) AppType {
	switch AppType(raw) {
	case AppTypeAdminUI:
		return AppTypeAdminUI
	case AppTypeClientUI:
		return AppTypeClientUI
	default:
		return AppTypeAPI
	}
}

// TTLConfig resolves a TTL by app type (§6: SESSION_ADMIN_TTL_HOURS,
// SESSION_CLIENT_TTL_HOURS, SESSION_API_TTL_HOURS).
type TTLConfig struct {
	AdminUI  time.Duration
	ClientUI time.Duration
	API      time.Duration
}

// Resolve returns the TTL for appType, defaulting unknown types to API.
func (c TTLConfig) Resolve(appType AppType) time.Duration {
	switch appType {
	case AppTypeAdminUI:
		return c.AdminUI
	case AppTypeClientUI:
		return c.ClientUI
	default:
		return c.API
	}
}

// Session is a persisted session row (§6: "Sessions table keyed by id
// with a unique index on session_token among active rows").
type Session struct {
	ID             uuid.UUID
	SessionToken   string
	State          State
	IP             string
	UserAgent      string
	AppType        AppType
	AppDevice      string
	UserID         *uuid.UUID
	OrganizationID *uuid.UUID
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	Version        int64
}

// IsExpired reports whether the session's TTL has elapsed as of now.
func (s Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions and performs the state transitions.
type Store interface {
	// CreateOrGet returns the existing session for sessionToken if one
	// exists and has not expired, otherwise creates a fresh ghost
	// session.
	CreateOrGet(ctx context.Context, sessionToken, ip, ua string, appType AppType, appDevice string, ttl time.Duration) (Session, error)
	// AuthenticateSession atomically binds userID/orgID to an existing
	// ghost session, transitioning it to authenticated, provided the
	// row's version still matches expectedVersion (the Version of the
	// Session the caller last read). Best-effort per §4.L: if the row
	// has moved on, the versioned update matches zero rows and the
	// current row is re-fetched and returned unmodified rather than
	// surfaced as an error.
	AuthenticateSession(ctx context.Context, sessionToken string, expectedVersion int64, userID, orgID uuid.UUID) (Session, error)
	// UpdateActivity bumps last_activity_at, provided the row's version
	// still matches expectedVersion. Best-effort like
	// AuthenticateSession: a version-mismatch re-fetches the current
	// row and is not surfaced as an error.
	UpdateActivity(ctx context.Context, sessionToken string, expectedVersion int64, now time.Time) (Session, error)
	// EndSession transitions a session to ended. Idempotent.
	EndSession(ctx context.Context, sessionToken string) error
	// CleanupExpired deletes or marks ended every session whose TTL
	// has elapsed, returning the count affected. Idempotent.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}
