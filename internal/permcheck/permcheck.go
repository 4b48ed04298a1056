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

// Package permcheck implements the central authorization algorithm:
// check(subject, relation, object) as the union of direct, role, group,
// and group-role paths over the relationship store.
package permcheck

import (
	"context"
	"time"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/authzgraph"
	"github.com/altairalabs/vaultkeep/internal/idref"
	"github.com/altairalabs/vaultkeep/internal/relstore"
)

const (
	relationHasRole   = "has_role"
	relationMember    = "member"
	relationCanAccess = "can_access"
)

// RelationPair is a (relation, object) pair reachable from a subject,
// returned by GetAllPermissions for UI projections.
type RelationPair struct {
	Relation string
	Object   string
}

// Checker answers permission questions by querying the relationship
// store directly on each traversal step, rather than against a cached or
// bulk-loaded snapshot. This matches the ground truth's PermissionChecker,
// which holds the live RelationshipStore and calls store.check/
// get_valid_relationships on every invocation: a tuple created,
// soft-deleted, or revoked through relstore is visible to the very next
// Check issued by any caller, satisfying §5's mutation-then-visible
// ordering guarantee with no intervening stale graph.
type Checker struct {
	store relstore.Store
	cond  authzgraph.ConditionEvaluator
	now   func() time.Time
}

// New creates a Checker over store. cond may be nil, in which case every
// edge's condition is treated as satisfied (authzgraph.AlwaysTrue).
func New(store relstore.Store, cond authzgraph.ConditionEvaluator) *Checker {
	if cond == nil {
		cond = authzgraph.AlwaysTrue{}
	}
	return &Checker{store: store, cond: cond, now: time.Now}
}

// visitKey de-duplicates traversal nodes by (node, relation) per §9's
// cycle-safety requirement, independent of which path first reached them.
type visitKey struct {
	node     string
	relation string
}

// Check answers whether subject has relation on object, as the union of
// the four graph paths enumerated in §4.G. A malformed subject/object
// string is not an error: the checker treats unparseable references as
// non-matching and returns false, per §4.G's failure semantics.
func (c *Checker) Check(ctx context.Context, subject, relation, object string) (bool, error) {
	if _, ok := idref.Parse(subject); !ok {
		if _, ok := idref.ParseHierarchical(subject); !ok {
			return false, nil
		}
	}
	if _, ok := idref.Parse(object); !ok {
		if _, ok := idref.ParseHierarchical(object); !ok {
			return false, nil
		}
	}

	visited := make(map[visitKey]bool)
	return c.checkPaths(ctx, subject, relation, object, visited)
}

func (c *Checker) checkPaths(ctx context.Context, subject, relation, object string, visited map[visitKey]bool) (bool, error) {
	// Path 1: direct edge subject --relation--> object.
	if ok, err := c.hasValidEdgeTo(ctx, subject, relation, object); err != nil || ok {
		return ok, err
	}

	// Path 2: subject --has_role--> role:*, role:* --relation--> object.
	roleEdges, err := c.validEdges(ctx, subject, relationHasRole)
	if err != nil {
		return false, err
	}
	for _, roleEdge := range roleEdges {
		vk := visitKey{roleEdge.Object, relation}
		if visited[vk] {
			continue
		}
		visited[vk] = true
		if ok, err := c.hasValidEdgeTo(ctx, roleEdge.Object, relation, object); err != nil || ok {
			return ok, err
		}
	}

	// Path 3: subject --member--> group:*, group:* --relation--> object.
	groupEdges, err := c.validEdges(ctx, subject, relationMember)
	if err != nil {
		return false, err
	}
	for _, groupEdge := range groupEdges {
		vk := visitKey{groupEdge.Object, relation}
		if visited[vk] {
			continue
		}
		visited[vk] = true
		if ok, err := c.hasValidEdgeTo(ctx, groupEdge.Object, relation, object); err != nil || ok {
			return ok, err
		}
	}

	// Path 4: subject --member--> group:*, group:* --has_role--> role:*, role:* --relation--> object.
	for _, groupEdge := range groupEdges {
		groupRoleEdges, err := c.validEdges(ctx, groupEdge.Object, relationHasRole)
		if err != nil {
			return false, err
		}
		for _, roleEdge := range groupRoleEdges {
			vk := visitKey{roleEdge.Object, relation}
			if visited[vk] {
				continue
			}
			visited[vk] = true
			if ok, err := c.hasValidEdgeTo(ctx, roleEdge.Object, relation, object); err != nil || ok {
				return ok, err
			}
		}
	}

	return false, nil
}

// validEdges queries the store for node's outgoing edges with the given
// relation, filters to those valid at the current time, and runs the
// conditions evaluator over the survivors. Re-checking IsValid here
// (on top of the store's own FindValidBySubjectRelation filtering) keeps
// the checker's notion of "now" authoritative for traversal, matching
// the override hook tests use to exercise expiry at a fixed instant.
func (c *Checker) validEdges(ctx context.Context, node, relation string) ([]authzgraph.Edge, error) {
	tuples, err := c.store.FindValidBySubjectRelation(ctx, node, relation)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, "permcheck: query relationship store", err)
	}
	now := c.now()
	var out []authzgraph.Edge
	for _, t := range tuples {
		if !t.IsValid(now) {
			continue
		}
		e := authzgraph.EdgeFromTuple(t)
		ok, err := c.cond.Satisfied(ctx, e)
		if err != nil || !ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Checker) hasValidEdgeTo(ctx context.Context, node, relation, object string) (bool, error) {
	edges, err := c.validEdges(ctx, node, relation)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		if e.Object == object {
			return true, nil
		}
	}
	return false, nil
}

// CheckRequest is one entry of a CheckBatch call.
type CheckRequest struct {
	Subject  string
	Relation string
	Object   string
}

// CheckBatch evaluates every request in order, returning a same-length,
// same-order slice of results.
func (c *Checker) CheckBatch(ctx context.Context, reqs []CheckRequest) ([]bool, error) {
	out := make([]bool, len(reqs))
	for i, r := range reqs {
		ok, err := c.Check(ctx, r.Subject, r.Relation, r.Object)
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, "permcheck: check batch", err)
		}
		out[i] = ok
	}
	return out, nil
}

// GetAllPermissions returns the set of (relation, object) pairs reachable
// from subject along the same four paths Check uses, for UI projections
// such as "which pages may this user see".
func (c *Checker) GetAllPermissions(ctx context.Context, subject string) ([]RelationPair, error) {
	seen := make(map[RelationPair]bool)
	visitedRoles := make(map[string]bool)
	visitedGroups := make(map[string]bool)

	collect := func(node string) error {
		tuples, err := c.store.FindValidBySubject(ctx, node)
		if err != nil {
			return apperr.Wrap(apperr.Database, "permcheck: query relationship store", err)
		}
		now := c.now()
		for _, t := range tuples {
			if !t.IsValid(now) {
				continue
			}
			e := authzgraph.EdgeFromTuple(t)
			ok, err := c.cond.Satisfied(ctx, e)
			if err != nil || !ok {
				continue
			}
			if e.Relation == relationHasRole || e.Relation == relationMember {
				continue
			}
			seen[RelationPair{Relation: e.Relation, Object: e.Object}] = true
		}
		return nil
	}

	if err := collect(subject); err != nil {
		return nil, err
	}

	roleEdges, err := c.validEdges(ctx, subject, relationHasRole)
	if err != nil {
		return nil, err
	}
	for _, roleEdge := range roleEdges {
		if visitedRoles[roleEdge.Object] {
			continue
		}
		visitedRoles[roleEdge.Object] = true
		if err := collect(roleEdge.Object); err != nil {
			return nil, err
		}
	}

	groupEdges, err := c.validEdges(ctx, subject, relationMember)
	if err != nil {
		return nil, err
	}
	for _, groupEdge := range groupEdges {
		if !visitedGroups[groupEdge.Object] {
			visitedGroups[groupEdge.Object] = true
			if err := collect(groupEdge.Object); err != nil {
				return nil, err
			}
		}

		groupRoleEdges, err := c.validEdges(ctx, groupEdge.Object, relationHasRole)
		if err != nil {
			return nil, err
		}
		for _, roleEdge := range groupRoleEdges {
			if visitedRoles[roleEdge.Object] {
				continue
			}
			visitedRoles[roleEdge.Object] = true
			if err := collect(roleEdge.Object); err != nil {
				return nil, err
			}
		}
	}

	out := make([]RelationPair, 0, len(seen))
	for pair := range seen {
		out = append(out, pair)
	}
	return out, nil
}

// CanAccessApp is the specialisation check(subject, "can_access", "app:<app_name>").
func (c *Checker) CanAccessApp(ctx context.Context, subject, appName string) (bool, error) {
	return c.Check(ctx, subject, relationCanAccess, "app:"+appName)
}
