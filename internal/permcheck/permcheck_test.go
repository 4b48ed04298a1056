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

package permcheck

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altairalabs/vaultkeep/internal/relstore"
	"github.com/altairalabs/vaultkeep/internal/reltuple"
)

func edgeTuple(subject, relation, object string) reltuple.Tuple {
	return reltuple.Tuple{Subject: subject, Relation: relation, Object: object, IsActive: true}
}

// mustCreate creates tuple in store and fails the test on error,
// returning the stored (versioned, ID-assigned) tuple.
func mustCreate(t *testing.T, ctx context.Context, store relstore.Store, tuple reltuple.Tuple) reltuple.Tuple {
	t.Helper()
	created, err := store.Create(ctx, tuple)
	require.NoError(t, err)
	return created
}

func TestCheckDirectGrantAndSoftDeleteInvisibility(t *testing.T) {
	ctx := context.Background()
	store := relstore.NewMemoryStore(nil)
	created := mustCreate(t, ctx, store, edgeTuple("user:111", "can_view", "page:dashboard"))
	checker := New(store, nil)

	ok, err := checker.Check(ctx, "user:111", "can_view", "page:dashboard")
	require.NoError(t, err)
	assert.True(t, ok)

	// Soft-deleting through the live store backing this same Checker must
	// be visible to the very next Check issued against it, per §5's
	// mutation-then-visible ordering guarantee: there is no separate graph
	// snapshot to go stale.
	require.NoError(t, store.SoftDelete(ctx, created.ID, "admin"))

	ok, err = checker.Check(ctx, "user:111", "can_view", "page:dashboard")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckRoleInheritance(t *testing.T) {
	ctx := context.Background()
	store := relstore.NewMemoryStore(nil)
	mustCreate(t, ctx, store, edgeTuple("user:222", "has_role", "role:admin"))
	mustCreate(t, ctx, store, edgeTuple("role:admin", "can_edit", "field:ssn"))
	checker := New(store, nil)

	ok, err := checker.Check(ctx, "user:222", "can_edit", "field:ssn")
	require.NoError(t, err)
	assert.True(t, ok)

	perms, err := checker.GetAllPermissions(ctx, "user:222")
	require.NoError(t, err)
	assert.Contains(t, perms, RelationPair{Relation: "can_edit", Object: "field:ssn"})
}

func TestCheckGroupRoleResource(t *testing.T) {
	ctx := context.Background()
	store := relstore.NewMemoryStore(nil)
	member := mustCreate(t, ctx, store, edgeTuple("user:333", "member", "group:G"))
	mustCreate(t, ctx, store, edgeTuple("group:G", "has_role", "role:clinician"))
	mustCreate(t, ctx, store, edgeTuple("role:clinician", "can_view", "resource:patient:4242"))
	checker := New(store, nil)

	ok, err := checker.Check(ctx, "user:333", "can_view", "resource:patient:4242")
	require.NoError(t, err)
	assert.True(t, ok)

	// Revoking the member edge through the live store must be visible to
	// the very next Check against the same Checker instance.
	require.NoError(t, store.Revoke(ctx, member.ID, "admin"))

	ok, err = checker.Check(ctx, "user:333", "can_view", "resource:patient:4242")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckExpiryWallClock(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	expires := now.Add(time.Second)
	store := relstore.NewMemoryStore(nil)
	tp := edgeTuple("user:444", "can_view", "page:x")
	tp.ExpiresAt = &expires
	mustCreate(t, ctx, store, tp)
	checker := New(store, nil)
	checker.now = func() time.Time { return now.Add(500 * time.Millisecond) }

	ok, err := checker.Check(ctx, "user:444", "can_view", "page:x")
	require.NoError(t, err)
	assert.True(t, ok)

	checker.now = func() time.Time { return now.Add(2 * time.Second) }
	ok, err = checker.Check(ctx, "user:444", "can_view", "page:x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckCycleTermination(t *testing.T) {
	ctx := context.Background()
	store := relstore.NewMemoryStore(nil)
	// two groups that name each other as members must not loop forever.
	mustCreate(t, ctx, store, edgeTuple("user:555", "member", "group:A"))
	mustCreate(t, ctx, store, edgeTuple("group:A", "member", "group:B"))
	mustCreate(t, ctx, store, edgeTuple("group:B", "member", "group:A"))
	mustCreate(t, ctx, store, edgeTuple("group:A", "has_role", "role:r1"))
	mustCreate(t, ctx, store, edgeTuple("group:B", "has_role", "role:r1"))
	mustCreate(t, ctx, store, edgeTuple("role:r1", "can_view", "page:y"))
	checker := New(store, nil)

	done := make(chan bool, 1)
	go func() {
		ok, err := checker.Check(ctx, "user:555", "can_view", "page:y")
		require.NoError(t, err)
		done <- ok
	}()
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("check did not terminate")
	}
}

func TestCheckMalformedReferencesReturnFalseNotError(t *testing.T) {
	ctx := context.Background()
	checker := New(relstore.NewMemoryStore(nil), nil)
	ok, err := checker.Check(ctx, "not-a-valid-ref", "can_view", "page:x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := relstore.NewMemoryStore(nil)
	mustCreate(t, ctx, store, edgeTuple("user:1", "can_view", "page:a"))
	checker := New(store, nil)

	results, err := checker.CheckBatch(ctx, []CheckRequest{
		{Subject: "user:1", Relation: "can_view", Object: "page:a"},
		{Subject: "user:1", Relation: "can_view", Object: "page:b"},
		{Subject: "user:1", Relation: "can_view", Object: "page:a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, results)
}

func TestCanAccessApp(t *testing.T) {
	ctx := context.Background()
	store := relstore.NewMemoryStore(nil)
	mustCreate(t, ctx, store, edgeTuple("user:1", "can_access", "app:billing"))
	checker := New(store, nil)

	ok, err := checker.CanAccessApp(ctx, "user:1", "billing")
	require.NoError(t, err)
	assert.True(t, ok)
}
