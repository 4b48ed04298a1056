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

// Package authzgraph defines the edge representation of a relationship
// tuple and the pluggable conditions evaluator the permission checker
// consults for the reserved metadata.conditions predicate (§9). The
// authorization graph itself has no snapshot or storage of its own: the
// permission checker (internal/permcheck) queries internal/relstore live
// on every traversal step, so a mutation is visible to the very next
// check rather than to the next process restart.
package authzgraph

import (
	"context"
	"time"

	"github.com/altairalabs/vaultkeep/internal/reltuple"
)

// Edge is a single relationship annotated for graph traversal. IsValid
// mirrors reltuple.Tuple.IsValid (invariant 1 of §3).
type Edge struct {
	Subject   string
	Relation  string
	Object    string
	ValidFrom *time.Time
	ExpiresAt *time.Time
	IsActive  bool
	Metadata  map[string]string
}

// IsValid reports whether e is valid at now.
func (e Edge) IsValid(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.ValidFrom != nil && now.Before(*e.ValidFrom) {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// ConditionEvaluator evaluates the reserved metadata.conditions predicate
// on an edge. The core ships a default that treats every edge as
// unconditionally satisfied; a compiled-CEL implementation
// (internal/authzgraph/condcel) can be substituted once a predicate
// language is adopted by a deployment.
type ConditionEvaluator interface {
	Satisfied(ctx context.Context, e Edge) (bool, error)
}

// AlwaysTrue is the default ConditionEvaluator named in §9: "the
// evaluator is pluggable and defaults to always true".
type AlwaysTrue struct{}

// Satisfied always returns true, nil.
func (AlwaysTrue) Satisfied(context.Context, Edge) (bool, error) { return true, nil }

// EdgeFromTuple converts a relationship tuple into the Edge shape the
// permission checker and ConditionEvaluator operate on.
func EdgeFromTuple(t reltuple.Tuple) Edge {
	return Edge{
		Subject:   t.Subject,
		Relation:  t.Relation,
		Object:    t.Object,
		ValidFrom: t.ValidFrom,
		ExpiresAt: t.ExpiresAt,
		IsActive:  t.IsActive,
		Metadata:  t.Metadata,
	}
}
