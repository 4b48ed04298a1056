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

// Command vaultkeepd is the composition root for the authorization and
// secret-management core: it wires a Vault backend, the DEK manager, the
// relationship/policy/token/session stores, the authorization graph and
// permission checker, and the graph cache, then runs the periodic
// maintenance job named in §4.L (expired session cleanup). Master-key
// rotation (§4.C) is not run here; it is the separate one-shot
// vaultkeep-rotate-key command.
//
// Transport (HTTP/gRPC routing) is out of scope per spec §1; this binary
// exposes no request-handling surface of its own. A real deployment links
// this composition against a transport layer that calls into the core
// types constructed here.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/altairalabs/vaultkeep/internal/authsession"
	"github.com/altairalabs/vaultkeep/internal/authzgraph"
	"github.com/altairalabs/vaultkeep/internal/config"
	"github.com/altairalabs/vaultkeep/internal/dek"
	"github.com/altairalabs/vaultkeep/internal/graphcache"
	"github.com/altairalabs/vaultkeep/internal/permcheck"
	"github.com/altairalabs/vaultkeep/internal/policystore"
	"github.com/altairalabs/vaultkeep/internal/relstore"
	"github.com/altairalabs/vaultkeep/internal/tokenstore"
	"github.com/altairalabs/vaultkeep/internal/vault"
	"github.com/altairalabs/vaultkeep/pkg/logging"
	"github.com/altairalabs/vaultkeep/pkg/metrics"
)

func main() {
	var (
		metricsAddr = flag.String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint binds to, empty disables it")
		pgDSN       = flag.String("postgres-dsn", "", "Postgres DSN for the relationship/policy/token/session stores; empty uses in-memory stores")
	)
	flag.Parse()

	log, syncLog, err := logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vaultkeepd: init logger: %v\n", err)
		os.Exit(1)
	}
	defer syncLog()

	opts, err := config.FromEnv()
	if err != nil {
		log.Error(err, "load configuration")
		os.Exit(1)
	}
	if err := opts.Validate(); err != nil {
		log.Error(err, "invalid configuration")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	v, err := buildVault(ctx, opts)
	if err != nil {
		log.Error(err, "build vault backend")
		os.Exit(1)
	}

	masterKey, err := dek.Load(ctx, v, log)
	if err != nil {
		log.Error(err, "load master key")
		os.Exit(1)
	}
	defer masterKey.Zero()

	dekMgr := dek.New(v, masterKey, log)

	// Built before the relationship store so it can be wired in as the
	// store's Invalidator: mutations must invalidate the cache before the
	// mutating call returns (§5's ordering guarantee).
	cache := graphcache.New(opts.GraphCacheTTL, opts.GraphCacheMaxEntries)
	if opts.GraphCacheRedisAddr != "" {
		remote, err := graphcache.NewRemoteStore(ctx, graphcache.RemoteConfig{
			Addr:     opts.GraphCacheRedisAddr,
			Password: opts.GraphCacheRedisPassword,
			DB:       opts.GraphCacheRedisDB,
		}, opts.GraphCacheTTL)
		if err != nil {
			log.Error(err, "connect graph cache redis tier")
			os.Exit(1)
		}
		cache.SetRemote(remote)
		defer remote.Close()
	}

	relStore, policyStore, tokenStore, sessionStore, pool, err := buildStores(*pgDSN, cache)
	if err != nil {
		log.Error(err, "build stores")
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	if err := policystore.EnsureDefaultPolicy(ctx, policyStore); err != nil {
		log.Error(err, "seed default policy")
		os.Exit(1)
	}

	// The checker queries relStore directly on every traversal step rather
	// than a bulk-loaded snapshot, so a relationship mutation is visible to
	// the very next Check issued by any caller (§5's ordering guarantee)
	// instead of only after a restart.
	checker := permcheck.New(relStore, authzgraph.AlwaysTrue{})
	coreMetrics := metrics.NewCoreMetrics()

	// checker, cache, dekMgr, policyStore and tokenStore are the request-path
	// collaborators a transport layer calls into; this binary only owns
	// their lifecycle and the periodic maintenance jobs below.
	log.Info("authorization core initialized", "cache_ttl", opts.GraphCacheTTL)

	stopMetrics := serveMetrics(*metricsAddr, log)
	defer stopMetrics()

	c := cron.New()
	if _, err := c.AddFunc("@every 5m", func() {
		n, err := sessionStore.CleanupExpired(ctx, time.Now())
		if err != nil {
			log.Error(err, "session cleanup batch failed")
			return
		}
		log.V(1).Info("session cleanup batch complete", "ended", n)
	}); err != nil {
		log.Error(err, "schedule session cleanup job")
		os.Exit(1)
	}
	if _, err := c.AddFunc("@every 1m", func() {
		coreMetrics.GraphCacheEntries.Set(float64(cache.Len()))
	}); err != nil {
		log.Error(err, "schedule graph cache gauge refresh")
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	// Referenced here so the composition root demonstrably wires every
	// store/manager it builds even though this binary issues no requests
	// of its own; a transport layer embeds these instead.
	_, _, _ = checker, dekMgr, tokenStore

	log.Info("vaultkeepd composition root running", "kms_provider", opts.KMSProvider)
	<-ctx.Done()
	log.Info("shutting down")
}

// buildVault constructs the Vault implementation named by opts.KMSProvider
// (§4.A, §6). Remote/cloud backends are wrapped with a circuit breaker by
// their own constructors (internal/vault/cloud.go, http.go) so a flapping
// KMS trips a breaker instead of cascading latency into every DEK fetch.
func buildVault(ctx context.Context, opts config.Options) (vault.Vault, error) {
	switch opts.KMSProvider {
	case config.KMSProviderLocal, config.KMSProviderEmbedded:
		return vault.NewFile(opts.LocalVaultDir, opts.VaultMountPath)
	case config.KMSProviderVault:
		return vault.NewHTTP(opts.VaultAddr, opts.VaultToken, opts.VaultMountPath), nil
	case config.KMSProviderAWSKMS:
		backing := vault.NewMemory()
		enc, err := vault.NewAWSKMSEncryptor(ctx, os.Getenv("AWS_REGION"), os.Getenv("AWS_KMS_KEY_ID"))
		if err != nil {
			return nil, err
		}
		return vault.NewKMSWrapped(backing, enc), nil
	case config.KMSProviderGCPKMS:
		backing := vault.NewMemory()
		enc, err := vault.NewGCPKMSEncryptor(ctx, os.Getenv("GCP_KMS_CRYPTO_KEY"))
		if err != nil {
			return nil, err
		}
		return vault.NewKMSWrapped(backing, enc), nil
	case config.KMSProviderAzureKV:
		backing := vault.NewMemory()
		enc, err := vault.NewAzureKeyVaultEncryptor(os.Getenv("AZURE_VAULT_URL"), os.Getenv("AZURE_KEY_NAME"), os.Getenv("AZURE_KEY_VERSION"))
		if err != nil {
			return nil, err
		}
		return vault.NewKMSWrapped(backing, enc), nil
	default:
		return vault.NewMemory(), nil
	}
}

// buildStores constructs the relationship/policy/token/session stores,
// backed by Postgres when pgDSN is non-empty and by the in-memory
// implementations otherwise (e.g. for local development or tests). The
// returned pool is nil in the in-memory case.
func buildStores(pgDSN string, inval relstore.Invalidator) (
	relstore.Store, policystore.Store, tokenstore.Store, authsession.Store, *pgxpool.Pool, error,
) {
	if pgDSN == "" {
		rel := relstore.NewMemoryStore(inval)
		return rel, policystore.NewMemoryStore(), tokenstore.NewMemoryStore(), authsession.NewMemoryStore(), nil, nil
	}

	pool, err := pgxpool.New(context.Background(), pgDSN)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("vaultkeepd: connect postgres: %w", err)
	}

	rel := relstore.NewPostgresStore(pool, inval)
	return rel, policystore.NewPostgresStore(pool), tokenstore.NewPostgresStore(pool), authsession.NewPostgresStore(pool), pool, nil
}

// serveMetrics starts the Prometheus /metrics endpoint if addr is
// non-empty, returning a function that shuts it down. This is ambient
// observability infrastructure, not the request-routing API that spec §1
// places out of scope.
func serveMetrics(addr string, log logr.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Info("metrics server stopped", "error", err.Error())
		}
	}()
	return func() {
		_ = srv.Close()
	}
}
