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

package reltuple

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func baseTuple() Tuple {
	return Tuple{
		ID:       uuid.New(),
		Subject:  "user:alice",
		Relation: "can_view",
		Object:   "page:dashboard",
		IsActive: true,
	}
}

func TestIsValidActiveNoWindow(t *testing.T) {
	assert.True(t, baseTuple().IsValid(time.Now()))
}

func TestIsValidSoftDeleted(t *testing.T) {
	tp := baseTuple()
	deletedAt := time.Now()
	tp.DeletedAt = &deletedAt
	assert.False(t, tp.IsValid(time.Now()))
}

func TestIsValidInactive(t *testing.T) {
	tp := baseTuple()
	tp.IsActive = false
	assert.False(t, tp.IsValid(time.Now()))
}

func TestIsValidExpiryMonotonicity(t *testing.T) {
	now := time.Now()
	expiry := now.Add(time.Second)
	tp := baseTuple()
	tp.ExpiresAt = &expiry

	assert.True(t, tp.IsValid(now.Add(500*time.Millisecond)))
	assert.False(t, tp.IsValid(now.Add(2*time.Second)))
	// open upper bound: exactly at expiry is already invalid
	assert.False(t, tp.IsValid(expiry))
}

func TestIsValidFutureValidFrom(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	tp := baseTuple()
	tp.ValidFrom = &future
	assert.False(t, tp.IsValid(now))
	assert.True(t, tp.IsValid(future.Add(time.Second)))
}

func TestKeyOfGlobalVsScoped(t *testing.T) {
	tp := baseTuple()
	k := KeyOf(tp)
	assert.Equal(t, "", k.OrganizationID)

	org := uuid.New()
	tp.OrganizationID = &org
	k = KeyOf(tp)
	assert.Equal(t, org.String(), k.OrganizationID)
}

func TestSealedMetadataRoundTrip(t *testing.T) {
	tp := baseTuple()
	tp.Encrypted = true
	tp.Metadata = SealedMetadata("YWJj")
	ct, ok := tp.EncryptedCiphertext()
	assert.True(t, ok)
	assert.Equal(t, "YWJj", ct)
}

func TestEncryptedCiphertextAbsentWhenNotEncrypted(t *testing.T) {
	tp := baseTuple()
	_, ok := tp.EncryptedCiphertext()
	assert.False(t, ok)
}
