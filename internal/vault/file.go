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

package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// blobBody is the wire shape named in §6: "Bodies are of the form
// { "data": { "encrypted_dek" | "master_key": <base64> } }".
type blobBody struct {
	Data struct {
		EncryptedDEK string `json:"encrypted_dek,omitempty"`
		MasterKey    string `json:"master_key,omitempty"`
	} `json:"data"`
}

const masterKeyEntityType = "master_key"

// FileVault is a local-filesystem-backed Vault selected by
// KMS_PROVIDER=local. Every slot is a JSON file under baseDir, addressed
// by the path scheme of §6: <mount>/data/<entity_type>/<entity_id>, with
// the master key at <mount>/data/master_key. mount defaults to "secret"
// when empty.
//
// A single mutex serializes all filesystem access; the "embedded"/"local"
// provider is meant for single-process deployments and tests, not
// high-concurrency production use (that's what the remote backends in
// http.go and cloud.go are for).
type FileVault struct {
	mu      sync.Mutex
	baseDir string
	mount   string
}

// NewFile creates a FileVault rooted at baseDir. baseDir is created if
// absent. An empty mount defaults to "secret".
func NewFile(baseDir, mount string) (*FileVault, error) {
	if mount == "" {
		mount = "secret"
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, wrapErr("vault: create base dir", err)
	}
	return &FileVault{baseDir: baseDir, mount: mount}, nil
}

var _ Vault = (*FileVault)(nil)

func (f *FileVault) dekPath(entityType, entityID string) (string, error) {
	rel := filepath.Join(f.mount, "data", entityType, entityID+".json")
	return securejoin.SecureJoin(f.baseDir, rel)
}

func (f *FileVault) masterKeyPath() (string, error) {
	rel := filepath.Join(f.mount, "data", masterKeyEntityType+".json")
	return securejoin.SecureJoin(f.baseDir, rel)
}

func (f *FileVault) StoreDEK(_ context.Context, entityType, entityID string, wrapped []byte) error {
	path, err := f.dekPath(entityType, entityID)
	if err != nil {
		return wrapErr("vault: resolve dek path", err)
	}
	var body blobBody
	body.Data.EncryptedDEK = base64.StdEncoding.EncodeToString(wrapped)
	return f.writeJSON(path, body)
}

func (f *FileVault) GetDEK(_ context.Context, entityType, entityID string) ([]byte, bool, error) {
	path, err := f.dekPath(entityType, entityID)
	if err != nil {
		return nil, false, wrapErr("vault: resolve dek path", err)
	}
	var body blobBody
	ok, err := f.readJSON(path, &body)
	if err != nil || !ok {
		return nil, ok, err
	}
	raw, err := base64.StdEncoding.DecodeString(body.Data.EncryptedDEK)
	if err != nil {
		return nil, false, wrapErr("vault: decode dek", err)
	}
	return raw, true, nil
}

func (f *FileVault) DeleteDEK(_ context.Context, entityType, entityID string) error {
	path, err := f.dekPath(entityType, entityID)
	if err != nil {
		return wrapErr("vault: resolve dek path", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return wrapErr("vault: delete dek", err)
	}
	return nil
}

func (f *FileVault) StoreMasterKey(_ context.Context, key []byte) error {
	path, err := f.masterKeyPath()
	if err != nil {
		return wrapErr("vault: resolve master key path", err)
	}
	var body blobBody
	body.Data.MasterKey = base64.StdEncoding.EncodeToString(key)
	return f.writeJSON(path, body)
}

func (f *FileVault) GetMasterKey(_ context.Context) ([]byte, bool, error) {
	path, err := f.masterKeyPath()
	if err != nil {
		return nil, false, wrapErr("vault: resolve master key path", err)
	}
	var body blobBody
	ok, err := f.readJSON(path, &body)
	if err != nil || !ok {
		return nil, ok, err
	}
	raw, err := base64.StdEncoding.DecodeString(body.Data.MasterKey)
	if err != nil {
		return nil, false, wrapErr("vault: decode master key", err)
	}
	return raw, true, nil
}

// AllDEKRefs walks <baseDir>/<mount>/data, skipping the master key file,
// and recovers (entityType, entityID) from each JSON file's relative path.
func (f *FileVault) AllDEKRefs(_ context.Context) ([]EntityRef, error) {
	root := filepath.Join(f.baseDir, f.mount, "data")
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []EntityRef
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = strings.TrimSuffix(rel, ".json")
		if rel == masterKeyEntityType {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 {
			return nil
		}
		entityID := parts[len(parts)-1]
		entityType := strings.Join(parts[:len(parts)-1], "/")
		out = append(out, EntityRef{EntityType: entityType, EntityID: entityID})
		return nil
	})
	if err != nil {
		return nil, wrapErr("vault: walk dek directory", err)
	}
	return out, nil
}

func (f *FileVault) writeJSON(path string, body blobBody) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return wrapErr("vault: create parent dir", err)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return wrapErr("vault: marshal blob", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return wrapErr("vault: write blob", err)
	}
	return nil
}

func (f *FileVault) readJSON(path string, out *blobBody) (bool, error) {
	f.mu.Lock()
	raw, err := os.ReadFile(path)
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrapErr("vault: read blob", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, wrapErr("vault: unmarshal blob", err)
	}
	return true, nil
}
