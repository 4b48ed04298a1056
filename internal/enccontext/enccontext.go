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

// Package enccontext implements the service encryption context (§4.D):
// the sole place in the core that enforces cross-realm isolation at the
// key layer. A service identity may only encrypt/decrypt data scoped to
// a realm that appears on its allow-list; every other realm is refused
// before the DEK manager is ever consulted.
package enccontext

import (
	"context"

	"github.com/altairalabs/vaultkeep/internal/apperr"
	"github.com/altairalabs/vaultkeep/internal/dek"
)

// Context is a service identity bound to an allow-list of realms it may
// encrypt or decrypt data for. It is immutable after construction; a
// realm grant/revoke produces a new Context via WithRealms rather than
// mutating in place, matching the §5 shared-resource contract.
type Context struct {
	serviceID   string
	serviceUUID string
	mgr         *dek.Manager
	realms      map[string]struct{}
}

// New constructs a service encryption context for (serviceID,
// serviceUUID), authorized for exactly the realms in allowedRealms.
func New(mgr *dek.Manager, serviceID, serviceUUID string, allowedRealms []string) *Context {
	realms := make(map[string]struct{}, len(allowedRealms))
	for _, r := range allowedRealms {
		realms[r] = struct{}{}
	}
	return &Context{serviceID: serviceID, serviceUUID: serviceUUID, mgr: mgr, realms: realms}
}

// WithRealms returns a copy of c whose allow-list is replaced wholesale
// by allowedRealms.
func (c *Context) WithRealms(allowedRealms []string) *Context {
	return New(c.mgr, c.serviceID, c.serviceUUID, allowedRealms)
}

// AllowsRealm reports whether realmID is on the allow-list.
func (c *Context) AllowsRealm(realmID string) bool {
	_, ok := c.realms[realmID]
	return ok
}

// EncryptForRealm encrypts plaintext under the scoped DEK for realmID,
// failing with apperr.Authorization if realmID is not allow-listed.
// realmUUID is accepted for parity with the calling convention used
// elsewhere for entity references but does not affect the DEK scope,
// which is keyed by realmID alone.
func (c *Context) EncryptForRealm(ctx context.Context, realmID, realmUUID string, plaintext []byte) (ciphertext, nonce []byte, err error) {
	_ = realmUUID
	if !c.AllowsRealm(realmID) {
		return nil, nil, apperr.New(apperr.Authorization, "service "+c.serviceID+" is not authorized for realm "+realmID)
	}
	return c.mgr.Encrypt(ctx, dek.RealmEntityType(realmID), c.realmEntityID(realmID), plaintext)
}

// DecryptFromRealm reverses EncryptForRealm, subject to the same
// allow-list check.
func (c *Context) DecryptFromRealm(ctx context.Context, realmID, realmUUID string, ciphertext, nonce []byte) ([]byte, error) {
	_ = realmUUID
	if !c.AllowsRealm(realmID) {
		return nil, apperr.New(apperr.Authorization, "service "+c.serviceID+" is not authorized for realm "+realmID)
	}
	return c.mgr.Decrypt(ctx, dek.RealmEntityType(realmID), c.realmEntityID(realmID), ciphertext, nonce)
}

// Encrypt encrypts plaintext under the service's own scoped DEK
// (service/<service_id>), independent of any realm allow-list.
func (c *Context) Encrypt(ctx context.Context, plaintext []byte) (ciphertext, nonce []byte, err error) {
	return c.mgr.Encrypt(ctx, dek.ServiceEntityType(c.serviceID), c.serviceUUID, plaintext)
}

// Decrypt reverses Encrypt.
func (c *Context) Decrypt(ctx context.Context, ciphertext, nonce []byte) ([]byte, error) {
	return c.mgr.Decrypt(ctx, dek.ServiceEntityType(c.serviceID), c.serviceUUID, ciphertext, nonce)
}

// realmEntityID names the DEK slot within the realm/<id> entity type.
// All services holding realmID on their allow-list address the same
// entity id, since the scoping unit for realm data is the realm itself,
// not the service.
func (c *Context) realmEntityID(realmID string) string {
	return realmID
}
