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

// Package relstore persists relationship tuples and implements the CRUD
// and time-bound query semantics of the data model: soft-delete, expiry,
// validity windows, and optimistic concurrency via a monotonic version.
package relstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/altairalabs/vaultkeep/internal/reltuple"
)

// Invalidator is notified synchronously whenever a mutation may change the
// permission closure of a subject, so the graph cache (internal/graphcache)
// can invalidate before the mutating call returns, per the §5 ordering
// guarantee ("mutations MUST invalidate before completing").
type Invalidator interface {
	InvalidateSubject(subject string)
}

// Store is the relationship store's contract. All read methods return only
// tuples that satisfy reltuple.Tuple.IsValid at call time unless noted
// "All" in the method name, which additionally returns soft-deleted and
// inactive/expired rows for admin listing.
type Store interface {
	// FindValidBySubject returns all valid tuples starting at subject.
	FindValidBySubject(ctx context.Context, subject string) ([]reltuple.Tuple, error)
	// FindValidBySubjectRelation returns all valid tuples starting at
	// subject with the given relation.
	FindValidBySubjectRelation(ctx context.Context, subject, relation string) ([]reltuple.Tuple, error)
	// FindValidBySubjectObjectRelation returns the single valid tuple (if
	// any) matching subject, object, relation, and organization scope.
	FindValidBySubjectObjectRelation(ctx context.Context, subject, object, relation string, organizationID *uuid.UUID) (*reltuple.Tuple, error)
	// FindAllBySubject returns every non-deleted-or-not tuple starting at
	// subject, including soft-deleted, inactive, and expired rows, for
	// admin listing. Soft-deleted rows still carry DeletedAt/DeletedBy.
	FindAllBySubject(ctx context.Context, subject string) ([]reltuple.Tuple, error)

	// Create upserts on the uniqueness key (subject, relation, object,
	// organization_id): re-adding an existing non-deleted tuple is a no-op
	// update that bumps Version rather than an error.
	Create(ctx context.Context, t reltuple.Tuple) (reltuple.Tuple, error)
	// Update applies changes to Metadata/ExpiresAt/IsActive, checking
	// Version for optimistic concurrency. A version mismatch returns
	// apperr.Database (ErrVersionConflict). MemoryStore reports a missing
	// tuple as apperr.NotFound; PostgresStore reports a missing tuple as
	// the same version conflict.
	Update(ctx context.Context, t reltuple.Tuple) (reltuple.Tuple, error)
	// SoftDelete marks a tuple deleted. Idempotent: deleting an
	// already-deleted or missing tuple succeeds.
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error
	// ExtendExpiration updates expiresAt on an existing valid tuple, checking version.
	ExtendExpiration(ctx context.Context, id uuid.UUID, version int64, expiresAt time.Time) (reltuple.Tuple, error)
	// Revoke is semantically soft-delete with an explicit actor, kept as a
	// distinct operation name per §4.E / §7 (idempotent like SoftDelete).
	Revoke(ctx context.Context, id uuid.UUID, revokedBy string) error

	// BulkLoad streams every valid tuple, for admin export and cache
	// warming paths that need the full valid set at once rather than
	// the subject-scoped queries the permission checker uses.
	BulkLoad(ctx context.Context) ([]reltuple.Tuple, error)
}

// ErrVersionConflict is wrapped by apperr.Database when an Update/
// ExtendExpiration's predicate `WHERE id = ? AND version = ?` matches zero
// rows: a lost optimistic-concurrency race, not a storage failure.
var ErrVersionConflict = versionConflictError{}

type versionConflictError struct{}

func (versionConflictError) Error() string { return "relstore: version conflict" }
