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

// Package vault defines the Vault interface (§4.A): storage and retrieval
// of opaque encrypted blobs keyed by (entity_type, entity_id), plus a
// single dedicated master-key slot. The DEK manager (internal/dek) owns
// the byte format; every Vault implementation here treats the bytes as
// opaque.
package vault

import (
	"context"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// Vault stores and fetches opaque encrypted blobs. All operations are
// asynchronous at the caller's discretion (ctx carries the deadline) and
// may be retried by the caller on a Storage/Encryption error.
type Vault interface {
	// StoreDEK writes or overwrites the wrapped bytes for (entityType, entityID).
	StoreDEK(ctx context.Context, entityType, entityID string, wrapped []byte) error
	// GetDEK fetches the wrapped bytes for (entityType, entityID). Absence
	// is not an error: ok is false and err is nil.
	GetDEK(ctx context.Context, entityType, entityID string) (wrapped []byte, ok bool, err error)
	// DeleteDEK removes the wrapped bytes for (entityType, entityID).
	// Idempotent: a missing entry is success.
	DeleteDEK(ctx context.Context, entityType, entityID string) error
	// StoreMasterKey writes the single dedicated master-key slot.
	StoreMasterKey(ctx context.Context, key []byte) error
	// GetMasterKey fetches the master-key slot. Absence is not an error.
	GetMasterKey(ctx context.Context) (key []byte, ok bool, err error)

	// AllDEKRefs enumerates every (entityType, entityID) pair currently
	// stored, for the DEK manager's master-key rotation sweep (§4.C): it
	// must iterate every wrapped DEK in the vault without knowing their
	// entity identifiers in advance.
	AllDEKRefs(ctx context.Context) ([]EntityRef, error)
}

// EntityRef names a single DEK slot.
type EntityRef struct {
	EntityType string
	EntityID   string
}

// wrapErr classifies a backend failure as apperr.Encryption, per §4.A:
// "An implementation failure surfaces as an Encryption error."
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.Encryption, op, err)
}
