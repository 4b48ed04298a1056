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

// Package reltuple defines the relationship tuple, the central entity of
// the Zanzibar-style authorization graph: (subject, relation, object)
// triples enriched with validity windows, soft-deletion, and metadata.
package reltuple

import (
	"time"

	"github.com/google/uuid"
)

// Tuple is a single relationship edge. Subject may itself denote a group
// or role to allow role/group indirection.
type Tuple struct {
	ID             uuid.UUID
	Subject        string
	Relation       string
	Object         string
	OrganizationID *uuid.UUID

	ValidFrom *time.Time
	ExpiresAt *time.Time
	IsActive  bool

	// Metadata is opaque structured data. When Encrypted is true the
	// Metadata map instead carries a single sentinel entry under
	// metadataEncryptedSentinelKey holding base64 ciphertext; callers with
	// access to the subject's DEK decrypt it lazily at the service boundary.
	Metadata  map[string]string
	Encrypted bool

	DeletedAt *time.Time
	DeletedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
	RequestID string
	SystemID  string
	Version   int64
}

// metadataEncryptedSentinelKey is the sentinel entry name used inside
// Metadata when Encrypted is true, mirroring the teacher's "_encryption"
// sentinel-inside-metadata-JSON design for per-field encrypted content.
const metadataEncryptedSentinelKey = "_encrypted"

// EncryptedCiphertext returns the base64 ciphertext stored under the
// sentinel key, and whether it was present. Only meaningful when Encrypted
// is true.
func (t Tuple) EncryptedCiphertext() (string, bool) {
	if !t.Encrypted || t.Metadata == nil {
		return "", false
	}
	v, ok := t.Metadata[metadataEncryptedSentinelKey]
	return v, ok
}

// SealedMetadata returns a Metadata map carrying only the encrypted
// sentinel, for storage.
func SealedMetadata(base64Ciphertext string) map[string]string {
	return map[string]string{metadataEncryptedSentinelKey: base64Ciphertext}
}

// IsValid implements invariant 1 of the data model: a tuple is valid iff
// it is not soft-deleted, is administratively active, and now falls in
// [valid_from, expires_at) with an open upper bound.
func (t Tuple) IsValid(now time.Time) bool {
	if t.DeletedAt != nil {
		return false
	}
	if !t.IsActive {
		return false
	}
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
		return false
	}
	return true
}

// Key is the uniqueness key of invariant 2: at most one non-deleted tuple
// exists per (subject, relation, object, organization_id).
type Key struct {
	Subject        string
	Relation       string
	Object         string
	OrganizationID string // empty string represents a global (NULL) tuple
}

// KeyOf returns the uniqueness key for t. A nil OrganizationID maps to the
// empty-string global bucket.
func KeyOf(t Tuple) Key {
	org := ""
	if t.OrganizationID != nil {
		org = t.OrganizationID.String()
	}
	return Key{Subject: t.Subject, Relation: t.Relation, Object: t.Object, OrganizationID: org}
}
