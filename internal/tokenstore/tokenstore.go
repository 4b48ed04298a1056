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

// Package tokenstore mints and looks up opaque bearer tokens (§4.K). The
// raw token string is returned to the caller exactly once and never
// stored server-side; only a derived accessor record persists.
package tokenstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// rawTokenBytes is the amount of entropy packed into a minted token
// before base64 encoding (256 bits).
const rawTokenBytes = 32

// Accessor is the persisted record for a minted token: everything
// needed to authorize and introspect it, but never the raw token
// itself.
type Accessor struct {
	ID             uuid.UUID
	TokenHash      string
	DisplayName    string
	Policies       []string
	TTL            time.Duration
	Renewable      bool
	UseCountLimit  int // 0 means unlimited
	UseCount       int
	Metadata       map[string]string
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	OrganizationID *uuid.UUID
}

// MintRequest describes a token to be created.
type MintRequest struct {
	DisplayName    string
	Policies       []string
	TTL            time.Duration
	Renewable      bool
	UseCountLimit  int
	Metadata       map[string]string
	OrganizationID *uuid.UUID
}

// MintResult is returned once, at creation time, per §4.K: the raw
// token string, never stored, plus the effective policy list and TTL.
type MintResult struct {
	RawToken   string
	Accessor   Accessor
	Policies   []string
	TTLSeconds int64
}

// Store persists token accessors keyed by a hash of the raw token and
// by accessor id.
type Store interface {
	// Create mints and stores a new token, returning the one-time raw
	// value.
	Create(ctx context.Context, req MintRequest) (MintResult, error)
	// Lookup resolves a raw token to its accessor record, returning
	// apperr.Authentication if the token is unknown or expired.
	Lookup(ctx context.Context, rawToken string) (Accessor, error)
	// Revoke deletes the accessor for id. Idempotent: revoking a
	// missing accessor is success.
	Revoke(ctx context.Context, id uuid.UUID) error
	// IncrementUse records one use against accessor id, returning
	// apperr.Authentication once UseCountLimit is exhausted.
	IncrementUse(ctx context.Context, id uuid.UUID) error
}

// HashToken derives the storage-safe lookup key for a raw token. The
// hash, not the raw value, is what Store implementations persist and
// index.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// generateRawToken produces a fresh opaque bearer token from a
// cryptographically secure source.
func generateRawToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Wrap(apperr.Internal, "tokenstore: generate token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
