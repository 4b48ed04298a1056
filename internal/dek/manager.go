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

package dek

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/idref"
	"github.com/altairalabs/vaultkeep/internal/vault"
)

// dekKeySize is the size in bytes of a fresh Data Encryption Key (256 bits).
const dekKeySize = 32

// Manager generates, wraps, unwraps, and rotates per-entity DEKs, and
// exposes per-entity encrypt/decrypt (§4.C). Wrapping a DEK produces
// nonce || ciphertext under the current master key; unwrapping reverses
// that, extracting the first 96 bits as the GCM nonce.
//
// Manager is safe for concurrent use: the per-entity get_or_create race is
// resolved with a mutex so two concurrent first-use callers for the same
// entity never generate two different DEKs, and the current master key is
// held behind an atomic.Pointer so RotateMasterKey's swap can never race
// with a concurrent Encrypt/Decrypt/GetOrCreate reading it mid-update.
type Manager struct {
	vault vault.Vault
	mk    atomic.Pointer[MasterKey]
	log   logr.Logger

	mu       sync.Mutex
	creating map[entityKey]*sync.Once
}

type entityKey struct {
	entityType string
	entityID   string
}

// New creates a Manager bound to v and mk.
func New(v vault.Vault, mk *MasterKey, log logr.Logger) *Manager {
	m := &Manager{vault: v, log: log, creating: make(map[entityKey]*sync.Once)}
	m.mk.Store(mk)
	return m
}

// GetOrCreate returns the plaintext DEK for (entityType, entityID),
// generating, wrapping, and storing a fresh one on first use.
func (m *Manager) GetOrCreate(ctx context.Context, entityType, entityID string) ([]byte, error) {
	wrapped, ok, err := m.vault.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: get wrapped dek", err)
	}
	if ok {
		return unwrapWithKey(m.mk.Load().Bytes(), wrapped)
	}

	// Serialize concurrent first-use for the same entity so two callers
	// racing get_or_create don't generate two different DEKs for one entity.
	key := entityKey{entityType, entityID}
	m.mu.Lock()
	once, exists := m.creating[key]
	if !exists {
		once = &sync.Once{}
		m.creating[key] = once
	}
	m.mu.Unlock()

	var created []byte
	var createErr error
	once.Do(func() {
		// A previous creator may have stored the DEK and released its Once
		// after this caller's first lookup missed; reuse that DEK if so.
		existing, found, getErr := m.vault.GetDEK(ctx, entityType, entityID)
		switch {
		case getErr != nil:
			createErr = apperr.Wrap(apperr.Encryption, "dek: get wrapped dek", getErr)
		case found:
			created, createErr = unwrapWithKey(m.mk.Load().Bytes(), existing)
		default:
			created, createErr = m.createAndStore(ctx, entityType, entityID)
		}
	})

	m.mu.Lock()
	if m.creating[key] == once {
		delete(m.creating, key)
	}
	m.mu.Unlock()

	if createErr != nil {
		return nil, createErr
	}
	if created != nil {
		return created, nil
	}

	// Another goroutine's Do() already ran and stored the DEK; re-read it.
	wrapped, ok, err = m.vault.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: get wrapped dek after create race", err)
	}
	if !ok {
		return nil, apperr.New(apperr.Encryption, "dek: entity missing after creation")
	}
	return unwrapWithKey(m.mk.Load().Bytes(), wrapped)
}

func (m *Manager) createAndStore(ctx context.Context, entityType, entityID string) ([]byte, error) {
	fresh := make([]byte, dekKeySize)
	if _, err := rand.Read(fresh); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: generate dek", err)
	}
	wrapped, err := wrapWithKey(m.mk.Load().Bytes(), fresh)
	if err != nil {
		return nil, err
	}
	if err := m.vault.StoreDEK(ctx, entityType, entityID, wrapped); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: store wrapped dek", err)
	}
	m.log.V(1).Info("generated new DEK", "entityType", entityType, "entityID", entityID)
	return fresh, nil
}

// Encrypt AES-256-GCM encrypts plaintext under the entity's DEK with a
// fresh random nonce, returning the ciphertext and nonce separately.
func (m *Manager) Encrypt(ctx context.Context, entityType, entityID string, plaintext []byte) (ciphertext, nonce []byte, err error) {
	key, err := m.GetOrCreate(ctx, entityType, entityID)
	if err != nil {
		return nil, nil, err
	}
	return aesGCMEncrypt(key, plaintext)
}

// Decrypt AES-256-GCM decrypts ciphertext under the entity's DEK and
// nonce. Fails with apperr.Encryption on any AEAD failure, missing DEK
// included.
func (m *Manager) Decrypt(ctx context.Context, entityType, entityID string, ciphertext, nonce []byte) ([]byte, error) {
	wrapped, ok, err := m.vault.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: get wrapped dek", err)
	}
	if !ok {
		return nil, apperr.New(apperr.Encryption, fmt.Sprintf("dek: no DEK for %s/%s", entityType, entityID))
	}
	key, err := unwrapWithKey(m.mk.Load().Bytes(), wrapped)
	if err != nil {
		return nil, err
	}
	return aesGCMDecryptDetached(key, nonce, ciphertext)
}

// Entity-type scoping helpers (§4.C): the scoping IS the isolation
// mechanism — a caller that cannot name the right entity type cannot
// decrypt, because it will address a different (and likely nonexistent)
// DEK slot in the vault. These wrap idref.ScopedEntityType, which also
// formats the hierarchical subject/object references used elsewhere in
// the authorization core.

// RealmEntityType returns the scoped entity type for a realm-level DEK.
func RealmEntityType(realmID string) string { return idref.ScopedEntityType("realm", realmID) }

// ServiceEntityType returns the scoped entity type for a service-level DEK.
func ServiceEntityType(serviceID string) string { return idref.ScopedEntityType("service", serviceID) }

// RealmInnerEntityType returns the scoped entity type for an inner-typed
// resource nested under a realm.
func RealmInnerEntityType(realmID, innerType string) string {
	return idref.ScopedEntityType("realm", realmID, innerType)
}

// GlobalEntityType returns the scoped entity type for a global-scope DEK.
func GlobalEntityType(scope string) string { return idref.ScopedEntityType("global", scope) }

// RotateMasterKey iterates every wrapped DEK in the vault, unwraps each
// with oldMaster, rewraps with newMaster, and writes it back. User
// ciphertext is never touched: DEKs are unchanged, only their wrappers
// are. Returns the number of DEKs rotated.
func (m *Manager) RotateMasterKey(ctx context.Context, oldMaster, newMaster *MasterKey) (int, error) {
	refs, err := m.vault.AllDEKRefs(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Encryption, "dek: enumerate dek refs", err)
	}

	count := 0
	for _, ref := range refs {
		wrapped, ok, err := m.vault.GetDEK(ctx, ref.EntityType, ref.EntityID)
		if err != nil {
			return count, apperr.Wrap(apperr.Encryption, "dek: rotate: get wrapped dek", err)
		}
		if !ok {
			continue
		}
		plain, err := unwrapWithKey(oldMaster.Bytes(), wrapped)
		if err != nil {
			return count, err
		}
		rewrapped, err := wrapWithKey(newMaster.Bytes(), plain)
		if err != nil {
			return count, err
		}
		if err := m.vault.StoreDEK(ctx, ref.EntityType, ref.EntityID, rewrapped); err != nil {
			return count, apperr.Wrap(apperr.Encryption, "dek: rotate: store rewrapped dek", err)
		}
		count++
	}
	m.mk.Store(newMaster)
	m.log.Info("rotated master key over DEKs", "count", count)
	return count, nil
}

// wrapWithKey produces nonce || ciphertext for plaintext key material
// under wrapKey (the master key or, during rotation, a candidate one).
func wrapWithKey(wrapKey, plaintext []byte) ([]byte, error) {
	nonce, ciphertext, err := aesGCMEncrypt(wrapKey, plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// unwrapWithKey reverses wrapWithKey: the first 96 bits (12 bytes) of
// wrapped are the GCM nonce, the remainder is ciphertext.
func unwrapWithKey(wrapKey, wrapped []byte) ([]byte, error) {
	const nonceSize = 12
	if len(wrapped) < nonceSize {
		return nil, apperr.New(apperr.Encryption, "dek: wrapped key too short")
	}
	nonce, ciphertext := wrapped[:nonceSize], wrapped[nonceSize:]
	return aesGCMDecryptDetached(wrapKey, nonce, ciphertext)
}

func aesGCMEncrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Encryption, "dek: new AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Encryption, "dek: new GCM", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, apperr.Wrap(apperr.Encryption, "dek: generate nonce", err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

func aesGCMDecryptDetached(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: new AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: new GCM", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: GCM open", err)
	}
	return plaintext, nil
}
