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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	vaultTokenHeader     = "X-Vault-Token"
	httpClientTimeout    = 30 * time.Second
	breakerFailureBudget = 5
)

// httpDoer abstracts *http.Client for testability, matching the
// hand-rolled-over-stdlib client idiom used for remote KMS backends
// elsewhere in this module.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPVault talks to a HashiCorp-Vault-compatible KV-v2 endpoint per the
// wire contract in §6: GET/PUT/DELETE <addr>/v1/<mount>/data/<path>, body
// { "data": { "encrypted_dek" | "master_key": <base64> } }. A flapping
// remote breaks the circuit rather than letting every caller pay full
// latency on every DEK fetch.
type HTTPVault struct {
	client  httpDoer
	addr    string
	token   string
	mount   string
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTP creates an HTTPVault against addr (e.g. "https://vault.internal:8200")
// using token for auth. mount defaults to "secret".
func NewHTTP(addr, token, mount string) *HTTPVault {
	if mount == "" {
		mount = "secret"
	}
	return &HTTPVault{
		client: &http.Client{Timeout: httpClientTimeout},
		addr:   addr,
		token:  token,
		mount:  mount,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name: "vault-http",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureBudget
			},
		}),
	}
}

var _ Vault = (*HTTPVault)(nil)

func (h *HTTPVault) dekURL(entityType, entityID string) string {
	return fmt.Sprintf("%s/v1/%s/data/%s/%s", h.addr, h.mount, entityType, entityID)
}

func (h *HTTPVault) masterKeyURL() string {
	return fmt.Sprintf("%s/v1/%s/data/%s", h.addr, h.mount, masterKeyEntityType)
}

func (h *HTTPVault) StoreDEK(ctx context.Context, entityType, entityID string, wrapped []byte) error {
	var body blobBody
	body.Data.EncryptedDEK = base64.StdEncoding.EncodeToString(wrapped)
	_, err := h.put(ctx, h.dekURL(entityType, entityID), body)
	return wrapErr("vault: store dek", err)
}

func (h *HTTPVault) GetDEK(ctx context.Context, entityType, entityID string) ([]byte, bool, error) {
	var body blobBody
	ok, err := h.get(ctx, h.dekURL(entityType, entityID), &body)
	if err != nil || !ok {
		return nil, ok, wrapErr("vault: get dek", err)
	}
	raw, err := base64.StdEncoding.DecodeString(body.Data.EncryptedDEK)
	if err != nil {
		return nil, false, wrapErr("vault: decode dek", err)
	}
	return raw, true, nil
}

func (h *HTTPVault) DeleteDEK(ctx context.Context, entityType, entityID string) error {
	err := h.delete(ctx, h.dekURL(entityType, entityID))
	return wrapErr("vault: delete dek", err)
}

func (h *HTTPVault) StoreMasterKey(ctx context.Context, key []byte) error {
	var body blobBody
	body.Data.MasterKey = base64.StdEncoding.EncodeToString(key)
	_, err := h.put(ctx, h.masterKeyURL(), body)
	return wrapErr("vault: store master key", err)
}

func (h *HTTPVault) GetMasterKey(ctx context.Context) ([]byte, bool, error) {
	var body blobBody
	ok, err := h.get(ctx, h.masterKeyURL(), &body)
	if err != nil || !ok {
		return nil, ok, wrapErr("vault: get master key", err)
	}
	raw, err := base64.StdEncoding.DecodeString(body.Data.MasterKey)
	if err != nil {
		return nil, false, wrapErr("vault: decode master key", err)
	}
	return raw, true, nil
}

// AllDEKRefs is not supported by the generic KV-v2 remote backend: Vault's
// list endpoint is mount/metadata-specific and not exercised by the
// breaker-wrapped client here. Callers needing a rotation sweep against a
// remote Vault should maintain their own entity-ref index (e.g. via the
// relationship/policy/token stores that reference DEKs) rather than rely
// on a directory listing.
func (h *HTTPVault) AllDEKRefs(context.Context) ([]EntityRef, error) {
	return nil, nil
}

func (h *HTTPVault) put(ctx context.Context, url string, body blobBody) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return h.breaker.Execute(func() ([]byte, error) {
		return h.doRequest(ctx, http.MethodPut, url, raw)
	})
}

func (h *HTTPVault) get(ctx context.Context, url string, out *blobBody) (bool, error) {
	resp, err := h.breaker.Execute(func() ([]byte, error) {
		return h.doRequest(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		if err == errNotFound {
			return false, nil
		}
		return false, err
	}
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp, &wrapper); err != nil {
		return false, err
	}
	if err := json.Unmarshal(wrapper.Data, &out.Data); err != nil {
		return false, err
	}
	return true, nil
}

func (h *HTTPVault) delete(ctx context.Context, url string) error {
	_, err := h.breaker.Execute(func() ([]byte, error) {
		return h.doRequest(ctx, http.MethodDelete, url, nil)
	})
	if err == errNotFound {
		return nil
	}
	return err
}

var errNotFound = fmt.Errorf("vault: not found")

func (h *HTTPVault) doRequest(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(vaultTokenHeader, h.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
