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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

func TestDefaultOptionsValid(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, KMSProviderLocal, opts.KMSProvider)
	assert.Equal(t, 1*time.Hour, opts.SessionAPITTL)
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("KMS_PROVIDER", "vault")
	t.Setenv("VAULT_ADDR", "https://vault.internal:8200")
	t.Setenv("VAULT_TOKEN", "s.abc123")
	t.Setenv("VAULT_MOUNT_PATH", "transit")
	t.Setenv("SESSION_ADMIN_TTL_HOURS", "8")
	t.Setenv("GRAPH_CACHE_TTL_SECONDS", "30")
	t.Setenv("GRAPH_CACHE_MAX_ENTRIES", "5000")
	t.Setenv("GRAPH_CACHE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("GRAPH_CACHE_REDIS_DB", "2")

	opts, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, opts.Validate())

	assert.Equal(t, KMSProviderVault, opts.KMSProvider)
	assert.Equal(t, "https://vault.internal:8200", opts.VaultAddr)
	assert.Equal(t, "transit", opts.VaultMountPath)
	assert.Equal(t, 8*time.Hour, opts.SessionAdminTTL)
	assert.Equal(t, 30*time.Second, opts.GraphCacheTTL)
	assert.Equal(t, 5000, opts.GraphCacheMaxEntries)
	assert.Equal(t, "redis.internal:6379", opts.GraphCacheRedisAddr)
	assert.Equal(t, 2, opts.GraphCacheRedisDB)
}

func TestFromEnvBadDurationIsConfigurationError(t *testing.T) {
	t.Setenv("SESSION_ADMIN_TTL_HOURS", "not-a-number")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Equal(t, apperr.Configuration, apperr.KindOf(err))
}

func TestValidateRejectsVaultProviderMissingAddr(t *testing.T) {
	opts := DefaultOptions()
	opts.KMSProvider = KMSProviderVault
	err := opts.Validate()
	require.Error(t, err)
	assert.Equal(t, apperr.Configuration, apperr.KindOf(err))
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	opts := DefaultOptions()
	opts.KMSProvider = "quantum-vault"
	err := opts.Validate()
	require.Error(t, err)
	assert.Equal(t, apperr.Configuration, apperr.KindOf(err))
}

func TestValidateAcceptsCloudProvidersWithoutExtraConfig(t *testing.T) {
	for _, p := range []KMSProvider{KMSProviderAWSKMS, KMSProviderGCPKMS, KMSProviderAzureKV} {
		opts := DefaultOptions()
		opts.KMSProvider = p
		assert.NoError(t, opts.Validate(), "provider %s", p)
	}
}

func TestValidateRejectsNonPositiveTTLsAndCacheBounds(t *testing.T) {
	base := DefaultOptions()

	withZeroSessionTTL := base
	withZeroSessionTTL.SessionAPITTL = 0
	assert.Error(t, withZeroSessionTTL.Validate())

	withZeroCacheTTL := base
	withZeroCacheTTL.GraphCacheTTL = 0
	assert.Error(t, withZeroCacheTTL.Validate())

	withZeroMaxEntries := base
	withZeroMaxEntries.GraphCacheMaxEntries = 0
	assert.Error(t, withZeroMaxEntries.Validate())
}

func TestSessionTTLFor(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, opts.SessionAdminTTL, opts.SessionTTLFor("admin-ui"))
	assert.Equal(t, opts.SessionClientTTL, opts.SessionTTLFor("client-ui"))
	assert.Equal(t, opts.SessionAPITTL, opts.SessionTTLFor("api"))
	assert.Equal(t, opts.SessionAPITTL, opts.SessionTTLFor("unknown-app-type"))
}
