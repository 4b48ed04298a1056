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

// Package dek implements the hierarchical key-management core (§4.B/§4.C):
// a master key holder and a DEK manager that wraps and unwraps per-entity
// Data Encryption Keys through the Vault abstraction.
package dek

import (
	"context"
	"crypto/rand"

	"github.com/go-logr/logr"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/vault"
)

// MasterKeySize is the size in bytes of the AEAD key that wraps every DEK (256 bits).
const MasterKeySize = 32

// MasterKey holds the symmetric AEAD key that wraps DEKs for the process
// lifetime (§4.B). It is generated once by a cryptographically secure
// source at first run and persisted to the vault's dedicated master-key
// slot; on later starts it is loaded from that same slot. It is immutable
// after Load, matching the §5 shared-resource contract, and is never
// logged.
type MasterKey struct {
	key []byte
	log logr.Logger
}

// Load returns the process's master key, generating and persisting a
// fresh one on first run. Subsequent processes sharing the same vault
// load the same key.
func Load(ctx context.Context, v vault.Vault, log logr.Logger) (*MasterKey, error) {
	existing, ok, err := v.GetMasterKey(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: load master key", err)
	}
	if ok {
		log.V(1).Info("master key loaded from vault")
		return &MasterKey{key: existing, log: log}, nil
	}

	fresh := make([]byte, MasterKeySize)
	if _, err := rand.Read(fresh); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: generate master key", err)
	}
	if err := v.StoreMasterKey(ctx, fresh); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: persist master key", err)
	}
	log.Info("generated and persisted new master key")
	return &MasterKey{key: fresh, log: log}, nil
}

// GenerateMasterKey produces a fresh master key without touching the
// vault's master-key slot. Used by the administrator-initiated rotation
// workflow (§4.C, §9) to obtain a candidate new key before the rotation
// sweep runs; the caller persists it to the vault only after
// Manager.RotateMasterKey has successfully rewrapped every DEK.
func GenerateMasterKey(log logr.Logger) (*MasterKey, error) {
	fresh := make([]byte, MasterKeySize)
	if _, err := rand.Read(fresh); err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "dek: generate master key", err)
	}
	return &MasterKey{key: fresh, log: log}, nil
}

// Bytes returns the raw key material. Callers must never log the result.
func (m *MasterKey) Bytes() []byte {
	return m.key
}

// Zero overwrites the key material in place. Best-effort: Go cannot
// guarantee the backing array isn't also referenced elsewhere or already
// copied by the GC, but this is called on shutdown paths per §4.B.
func (m *MasterKey) Zero() {
	for i := range m.key {
		m.key[i] = 0
	}
}
