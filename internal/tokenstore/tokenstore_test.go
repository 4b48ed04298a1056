/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0
*/

package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/policystore"
)

func TestMemoryStore_MintAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	res, err := s.Create(ctx, MintRequest{
		DisplayName: "ci-bot",
		Policies:    []string{"reader"},
		TTL:         time.Hour,
		Renewable:   true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RawToken)
	assert.Equal(t, int64(3600), res.TTLSeconds)

	acc, err := s.Lookup(ctx, res.RawToken)
	require.NoError(t, err)
	assert.Equal(t, res.Accessor.ID, acc.ID)
	assert.Equal(t, []string{"reader"}, acc.Policies)
}

func TestMemoryStore_Lookup_UnknownToken(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Lookup(context.Background(), "not-a-real-token")
	require.Error(t, err)
	assert.Equal(t, apperr.Authentication, apperr.KindOf(err))
}

func TestMemoryStore_Lookup_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	fixed := time.Now()
	s.now = func() time.Time { return fixed }

	res, err := s.Create(ctx, MintRequest{DisplayName: "short-lived", TTL: time.Minute})
	require.NoError(t, err)

	s.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	_, err = s.Lookup(ctx, res.RawToken)
	require.Error(t, err)
	assert.Equal(t, apperr.Authentication, apperr.KindOf(err))
}

func TestMemoryStore_Revoke_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	res, err := s.Create(ctx, MintRequest{DisplayName: "x"})
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, res.Accessor.ID))
	require.NoError(t, s.Revoke(ctx, res.Accessor.ID)) // second revoke is still success

	_, err = s.Lookup(ctx, res.RawToken)
	require.Error(t, err)
}

func TestMemoryStore_IncrementUse_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	res, err := s.Create(ctx, MintRequest{DisplayName: "limited", UseCountLimit: 2})
	require.NoError(t, err)

	require.NoError(t, s.IncrementUse(ctx, res.Accessor.ID))
	require.NoError(t, s.IncrementUse(ctx, res.Accessor.ID))

	err = s.IncrementUse(ctx, res.Accessor.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Authentication, apperr.KindOf(err))
}

func TestMintSuperAdmin_BindsRootAndOrgScopedPolicy(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryStore()
	policies := policystore.NewMemoryStore()

	res, err := MintSuperAdmin(ctx, tokens, policies, "acme", MintRequest{DisplayName: "bootstrap"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"root", "super-admin-acme"}, res.Policies)

	p, err := policies.Get(ctx, "super-admin-acme")
	require.NoError(t, err)
	assert.Contains(t, p.Rules, "secret/*")
	assert.Contains(t, p.Rules, "auth/*")
	assert.Contains(t, p.Rules, "sys/*")
}

func TestEnsureSuperAdminPolicy_SeedsOnlyOnce(t *testing.T) {
	ctx := context.Background()
	policies := policystore.NewMemoryStore()

	name1, err := EnsureSuperAdminPolicy(ctx, policies, "acme")
	require.NoError(t, err)

	// Mutate it, then ensure again — must not be re-seeded/clobbered.
	require.NoError(t, policies.Put(ctx, name1, []byte(`{"path":{"secret/custom":{"capabilities":["read"]}}}`)))

	name2, err := EnsureSuperAdminPolicy(ctx, policies, "acme")
	require.NoError(t, err)
	assert.Equal(t, name1, name2)

	p, err := policies.Get(ctx, name2)
	require.NoError(t, err)
	assert.Contains(t, p.Rules, "secret/custom")
}
