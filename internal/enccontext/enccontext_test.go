/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0
*/

package enccontext

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/dek"
	"github.com/altairalabs/vaultkeep/internal/vault"
)

func newManager(t *testing.T) *dek.Manager {
	t.Helper()
	v := vault.NewMemory()
	mk, err := dek.Load(context.Background(), v, logr.Discard())
	require.NoError(t, err)
	return dek.New(v, mk, logr.Discard())
}

func TestContext_EncryptForRealm_DeniesUnlistedRealm(t *testing.T) {
	mgr := newManager(t)
	c := New(mgr, "svc-1", "svc-1-uuid", []string{"acme"})

	_, _, err := c.EncryptForRealm(context.Background(), "globex", "globex-uuid", []byte("data"))
	require.Error(t, err)
	assert.Equal(t, apperr.Authorization, apperr.KindOf(err))
}

func TestContext_EncryptForRealm_RoundTripsForAllowedRealm(t *testing.T) {
	mgr := newManager(t)
	c := New(mgr, "svc-1", "svc-1-uuid", []string{"acme"})
	ctx := context.Background()

	plaintext := []byte("realm secret")
	ciphertext, nonce, err := c.EncryptForRealm(ctx, "acme", "acme-uuid", plaintext)
	require.NoError(t, err)

	got, err := c.DecryptFromRealm(ctx, "acme", "acme-uuid", ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestContext_DecryptFromRealm_DeniesUnlistedRealm(t *testing.T) {
	mgr := newManager(t)
	c := New(mgr, "svc-1", "svc-1-uuid", []string{"acme"})

	_, err := c.DecryptFromRealm(context.Background(), "globex", "globex-uuid", []byte("x"), []byte("012345678901"))
	require.Error(t, err)
	assert.Equal(t, apperr.Authorization, apperr.KindOf(err))
}

func TestContext_Encrypt_UsesOwnServiceDEK(t *testing.T) {
	mgr := newManager(t)
	c := New(mgr, "svc-1", "svc-1-uuid", nil)
	ctx := context.Background()

	plaintext := []byte("service-local secret")
	ciphertext, nonce, err := c.Encrypt(ctx, plaintext)
	require.NoError(t, err)

	got, err := c.Decrypt(ctx, ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	// A different service cannot decrypt this payload: the DEK is scoped
	// to svc-1 specifically.
	other := New(mgr, "svc-2", "svc-2-uuid", nil)
	_, err = other.Decrypt(ctx, ciphertext, nonce)
	require.Error(t, err)
}

func TestContext_WithRealms_ReplacesAllowList(t *testing.T) {
	mgr := newManager(t)
	c := New(mgr, "svc-1", "svc-1-uuid", []string{"acme"})
	assert.True(t, c.AllowsRealm("acme"))
	assert.False(t, c.AllowsRealm("globex"))

	updated := c.WithRealms([]string{"globex"})
	assert.False(t, updated.AllowsRealm("acme"))
	assert.True(t, updated.AllowsRealm("globex"))
	// Original is untouched.
	assert.True(t, c.AllowsRealm("acme"))
}

func TestContext_SharedRealmEntityAcrossServices(t *testing.T) {
	mgr := newManager(t)
	svcA := New(mgr, "svc-a", "svc-a-uuid", []string{"acme"})
	svcB := New(mgr, "svc-b", "svc-b-uuid", []string{"acme"})
	ctx := context.Background()

	plaintext := []byte("shared realm payload")
	ciphertext, nonce, err := svcA.EncryptForRealm(ctx, "acme", "acme-uuid", plaintext)
	require.NoError(t, err)

	got, err := svcB.DecryptFromRealm(ctx, "acme", "acme-uuid", ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}
