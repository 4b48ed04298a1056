/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVault_RoundTrip(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	_, ok, err := v.GetDEK(ctx, "realm/acme", "entity-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.StoreDEK(ctx, "realm/acme", "entity-1", []byte("wrapped-bytes")))
	got, ok, err := v.GetDEK(ctx, "realm/acme", "entity-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("wrapped-bytes"), got)

	require.NoError(t, v.DeleteDEK(ctx, "realm/acme", "entity-1"))
	_, ok, err = v.GetDEK(ctx, "realm/acme", "entity-1")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an already-missing DEK is idempotent success.
	require.NoError(t, v.DeleteDEK(ctx, "realm/acme", "entity-1"))
}

func TestMemoryVault_MasterKeySlot(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	_, ok, err := v.GetMasterKey(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.StoreMasterKey(ctx, []byte("master-key-bytes")))
	got, ok, err := v.GetMasterKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("master-key-bytes"), got)
}

func TestMemoryVault_AllDEKRefs(t *testing.T) {
	v := NewMemory()
	ctx := context.Background()

	require.NoError(t, v.StoreDEK(ctx, "service/s1", "e1", []byte("a")))
	require.NoError(t, v.StoreDEK(ctx, "realm/r1", "e2", []byte("b")))

	refs, err := v.AllDEKRefs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []EntityRef{
		{EntityType: "service/s1", EntityID: "e1"},
		{EntityType: "realm/r1", EntityID: "e2"},
	}, refs)
}

func TestFileVault_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFile(dir, "secret")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.StoreDEK(ctx, "realm/acme", "entity-1", []byte("wrapped-bytes")))
	got, ok, err := v.GetDEK(ctx, "realm/acme", "entity-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("wrapped-bytes"), got)

	require.NoError(t, v.StoreMasterKey(ctx, []byte("mk")))
	mk, ok, err := v.GetMasterKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("mk"), mk)

	refs, err := v.AllDEKRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EntityRef{{EntityType: "realm/acme", EntityID: "entity-1"}}, refs)

	require.NoError(t, v.DeleteDEK(ctx, "realm/acme", "entity-1"))
	_, ok, err = v.GetDEK(ctx, "realm/acme", "entity-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileVault_AbsentIsNotError(t *testing.T) {
	dir := t.TempDir()
	v, err := NewFile(dir, "")
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := v.GetDEK(ctx, "service/s1", "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.DeleteDEK(ctx, "service/s1", "missing"))
}

type fakeEncryptor struct{}

func (fakeEncryptor) Wrap(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ 0xAA
	}
	return out, nil
}

func (fakeEncryptor) Unwrap(ctx context.Context, ciphertext []byte) ([]byte, error) {
	return fakeEncryptor{}.Wrap(ctx, ciphertext) // XOR is its own inverse
}

func TestKMSWrappedVault_RoundTrip(t *testing.T) {
	backing := NewMemory()
	wrapped := NewKMSWrapped(backing, fakeEncryptor{})
	ctx := context.Background()

	require.NoError(t, wrapped.StoreDEK(ctx, "service/s1", "e1", []byte("plaintext-dek")))

	// The backing store only ever sees ciphertext.
	raw, ok, err := backing.GetDEK(ctx, "service/s1", "e1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, []byte("plaintext-dek"), raw)

	got, ok, err := wrapped.GetDEK(ctx, "service/s1", "e1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("plaintext-dek"), got)
}
