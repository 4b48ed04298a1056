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

// Package config loads the environment-variable options recognized by the
// authorization and secret-management core (§6): a plain struct populated
// from the environment, with a Validate method surfacing apperr.Configuration
// errors rather than letting an inconsistent process start serving traffic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/altairalabs/vaultkeep/internal/apperr"
)

// KMSProvider selects which Vault implementation backs the master key and
// wrapped DEKs (§4.A, §6 KMS_PROVIDER).
type KMSProvider string

const (
	KMSProviderLocal    KMSProvider = "local"
	KMSProviderEmbedded KMSProvider = "embedded"
	KMSProviderVault    KMSProvider = "vault"
	KMSProviderAWSKMS   KMSProvider = "aws-kms"
	KMSProviderGCPKMS   KMSProvider = "gcp-kms"
	KMSProviderAzureKV  KMSProvider = "azure-keyvault"
)

// Options holds the environment-derived configuration for a vaultkeep
// process: which Vault backend to construct, how to reach it, and the
// tunables named in spec §6 for sessions and the graph cache.
type Options struct {
	// KMSProvider selects the Vault implementation (§4.A).
	KMSProvider KMSProvider

	// VaultAddr is the endpoint of a remote HashiCorp-compatible vault.
	// Required when KMSProvider is KMSProviderVault.
	VaultAddr string
	// VaultToken authenticates to the remote vault.
	VaultToken string
	// VaultMountPath is the secrets-engine mount used to address DEK and
	// master-key slots (§6's "<mount>/data/..." wire contract).
	VaultMountPath string

	// LocalVaultDir is the base directory for the file-backed Vault when
	// KMSProvider is KMSProviderLocal or KMSProviderEmbedded.
	LocalVaultDir string

	// StorageProvider names the out-of-scope blob-storage backend (§1);
	// the core treats it as an opaque collaborator string.
	StorageProvider string

	// SessionAdminTTL, SessionClientTTL, SessionAPITTL are the per-app-class
	// session lifetimes of §4.L / §6's SESSION_*_TTL_HOURS.
	SessionAdminTTL  time.Duration
	SessionClientTTL time.Duration
	SessionAPITTL    time.Duration

	// GraphCacheTTL and GraphCacheMaxEntries tune the permission closure
	// cache of §4.H / §6's GRAPH_CACHE_TTL_SECONDS and GRAPH_CACHE_MAX_ENTRIES.
	GraphCacheTTL        time.Duration
	GraphCacheMaxEntries int

	// GraphCacheRedisAddr, if set, attaches a shared Redis tier to the graph
	// cache so multiple vaultkeepd processes observe one another's warm
	// entries instead of each starting cold. Empty disables the remote tier.
	GraphCacheRedisAddr     string
	GraphCacheRedisPassword string
	GraphCacheRedisDB       int
}

// DefaultOptions returns the Options a process falls back to when the
// corresponding environment variable is unset.
func DefaultOptions() Options {
	return Options{
		KMSProvider:          KMSProviderLocal,
		VaultMountPath:       "secret",
		LocalVaultDir:        "./vaultkeep-data",
		SessionAdminTTL:      4 * time.Hour,
		SessionClientTTL:     24 * time.Hour,
		SessionAPITTL:        1 * time.Hour,
		GraphCacheTTL:        60 * time.Second,
		GraphCacheMaxEntries: 100_000,
	}
}

// FromEnv loads Options from the environment, layering over
// DefaultOptions for anything unset. It does not call Validate; callers
// should do so once all overrides (flags, etc.) are applied.
func FromEnv() (Options, error) {
	o := DefaultOptions()

	if v, ok := os.LookupEnv("KMS_PROVIDER"); ok {
		o.KMSProvider = KMSProvider(v)
	}
	if v, ok := os.LookupEnv("VAULT_ADDR"); ok {
		o.VaultAddr = v
	}
	if v, ok := os.LookupEnv("VAULT_TOKEN"); ok {
		o.VaultToken = v
	}
	if v, ok := os.LookupEnv("VAULT_MOUNT_PATH"); ok {
		o.VaultMountPath = v
	}
	if v, ok := os.LookupEnv("STORAGE_PROVIDER"); ok {
		o.StorageProvider = v
	}
	if v, ok := os.LookupEnv("GRAPH_CACHE_REDIS_ADDR"); ok {
		o.GraphCacheRedisAddr = v
	}
	if v, ok := os.LookupEnv("GRAPH_CACHE_REDIS_PASSWORD"); ok {
		o.GraphCacheRedisPassword = v
	}
	if v, ok := os.LookupEnv("GRAPH_CACHE_REDIS_DB"); ok {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return Options{}, apperr.Wrap(apperr.Configuration, "parse GRAPH_CACHE_REDIS_DB", convErr)
		}
		o.GraphCacheRedisDB = n
	}

	var err error
	if o.SessionAdminTTL, err = durationHoursEnv("SESSION_ADMIN_TTL_HOURS", o.SessionAdminTTL); err != nil {
		return Options{}, err
	}
	if o.SessionClientTTL, err = durationHoursEnv("SESSION_CLIENT_TTL_HOURS", o.SessionClientTTL); err != nil {
		return Options{}, err
	}
	if o.SessionAPITTL, err = durationHoursEnv("SESSION_API_TTL_HOURS", o.SessionAPITTL); err != nil {
		return Options{}, err
	}
	if o.GraphCacheTTL, err = durationSecondsEnv("GRAPH_CACHE_TTL_SECONDS", o.GraphCacheTTL); err != nil {
		return Options{}, err
	}
	if v, ok := os.LookupEnv("GRAPH_CACHE_MAX_ENTRIES"); ok {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return Options{}, apperr.Wrap(apperr.Configuration, "parse GRAPH_CACHE_MAX_ENTRIES", convErr)
		}
		o.GraphCacheMaxEntries = n
	}

	return o, nil
}

func durationHoursEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	hours, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.Configuration, fmt.Sprintf("parse %s", key), err)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

func durationSecondsEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.Configuration, fmt.Sprintf("parse %s", key), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Validate checks that Options is internally consistent, returning an
// apperr.Configuration error describing the first problem found.
func (o *Options) Validate() error {
	switch o.KMSProvider {
	case KMSProviderLocal, KMSProviderEmbedded:
		if o.LocalVaultDir == "" {
			return apperr.New(apperr.Configuration, "local KMS provider requires LocalVaultDir")
		}
	case KMSProviderVault:
		if o.VaultAddr == "" {
			return apperr.New(apperr.Configuration, "KMS_PROVIDER=vault requires VAULT_ADDR")
		}
		if o.VaultToken == "" {
			return apperr.New(apperr.Configuration, "KMS_PROVIDER=vault requires VAULT_TOKEN")
		}
		if o.VaultMountPath == "" {
			return apperr.New(apperr.Configuration, "KMS_PROVIDER=vault requires VAULT_MOUNT_PATH")
		}
	case KMSProviderAWSKMS, KMSProviderGCPKMS, KMSProviderAzureKV:
		// Cloud SDKs resolve their own credentials from ambient environment
		// (IAM role, ADC, managed identity); nothing further to validate here.
	default:
		return apperr.New(apperr.Configuration, fmt.Sprintf("unrecognized KMS_PROVIDER %q", o.KMSProvider))
	}

	if o.SessionAdminTTL <= 0 || o.SessionClientTTL <= 0 || o.SessionAPITTL <= 0 {
		return apperr.New(apperr.Configuration, "session TTLs must be positive")
	}
	if o.GraphCacheTTL <= 0 {
		return apperr.New(apperr.Configuration, "GRAPH_CACHE_TTL_SECONDS must be positive")
	}
	if o.GraphCacheMaxEntries <= 0 {
		return apperr.New(apperr.Configuration, "GRAPH_CACHE_MAX_ENTRIES must be positive")
	}
	return nil
}

// SessionTTLFor resolves the configured TTL for an app_type string (§4.L);
// an unrecognized value defaults to the API bucket.
func (o *Options) SessionTTLFor(appType string) time.Duration {
	switch appType {
	case "admin-ui":
		return o.SessionAdminTTL
	case "client-ui":
		return o.SessionClientTTL
	default:
		return o.SessionAPITTL
	}
}
