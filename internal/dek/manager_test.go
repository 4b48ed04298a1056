/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0
*/

package dek

import (
	"context"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altairalabs/vaultkeep/internal/vault"
)

func TestMasterKey_LoadGeneratesAndPersists(t *testing.T) {
	ctx := context.Background()
	v := vault.NewMemory()

	mk1, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	require.Len(t, mk1.Bytes(), MasterKeySize)

	mk2, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, mk1.Bytes(), mk2.Bytes())
}

func TestManager_GetOrCreate_StableAcrossCalls(t *testing.T) {
	ctx := context.Background()
	v := vault.NewMemory()
	mk, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	m := New(v, mk, logr.Discard())

	dek1, err := m.GetOrCreate(ctx, "realm/acme", "billing")
	require.NoError(t, err)
	require.Len(t, dek1, dekKeySize)

	dek2, err := m.GetOrCreate(ctx, "realm/acme", "billing")
	require.NoError(t, err)
	assert.Equal(t, dek1, dek2)

	other, err := m.GetOrCreate(ctx, "realm/acme", "shipping")
	require.NoError(t, err)
	assert.NotEqual(t, dek1, other)
}

func TestManager_GetOrCreate_ConcurrentRaceYieldsOneDEK(t *testing.T) {
	ctx := context.Background()
	v := vault.NewMemory()
	mk, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	m := New(v, mk, logr.Discard())

	const n = 20
	results := make([][]byte, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			got, err := m.GetOrCreate(ctx, "service/s1", "shared")
			require.NoError(t, err)
			results[i] = got
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, results[0], results[i])
	}
}

func TestManager_EncryptDecrypt_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v := vault.NewMemory()
	mk, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	m := New(v, mk, logr.Discard())

	plaintext := []byte("super secret payload")
	ciphertext, nonce, err := m.Encrypt(ctx, "service/s1", "e1", plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := m.Decrypt(ctx, "service/s1", "e1", ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestManager_Decrypt_MissingEntityFails(t *testing.T) {
	ctx := context.Background()
	v := vault.NewMemory()
	mk, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	m := New(v, mk, logr.Discard())

	_, err = m.Decrypt(ctx, "service/s1", "nope", []byte("x"), []byte("012345678901"))
	require.Error(t, err)
}

func TestManager_RotateMasterKey_PreservesPlaintextDEKs(t *testing.T) {
	ctx := context.Background()
	v := vault.NewMemory()
	oldMK, err := Load(ctx, v, logr.Discard())
	require.NoError(t, err)
	m := New(v, oldMK, logr.Discard())

	dek1, err := m.GetOrCreate(ctx, "realm/acme", "billing")
	require.NoError(t, err)
	dek2, err := m.GetOrCreate(ctx, "service/s1", "e1")
	require.NoError(t, err)

	newMK, err := Load(ctx, vault.NewMemory(), logr.Discard())
	require.NoError(t, err)

	count, err := m.RotateMasterKey(ctx, oldMK, newMK)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	gotDEK1, err := m.GetOrCreate(ctx, "realm/acme", "billing")
	require.NoError(t, err)
	assert.Equal(t, dek1, gotDEK1)

	gotDEK2, err := m.GetOrCreate(ctx, "service/s1", "e1")
	require.NoError(t, err)
	assert.Equal(t, dek2, gotDEK2)
}

func TestScopedEntityTypeHelpers(t *testing.T) {
	assert.Equal(t, "realm/acme", RealmEntityType("acme"))
	assert.Equal(t, "service/billing", ServiceEntityType("billing"))
	assert.Equal(t, "realm/acme/vault", RealmInnerEntityType("acme", "vault"))
	assert.Equal(t, "global/system", GlobalEntityType("system"))
}
