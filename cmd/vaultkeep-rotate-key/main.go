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

// Command vaultkeep-rotate-key is the administrator-initiated master-key
// rotation workflow named in §4.C/§9: it is deliberately not a background
// job on vaultkeepd, since rotation is a deployment event an operator
// schedules with an explicit migration plan (a maintenance window, a
// verified backup of the vault, rollback readiness), not something the
// service should trigger on its own timer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/altairalabs/vaultkeep/internal/config"
	"github.com/altairalabs/vaultkeep/internal/dek"
	"github.com/altairalabs/vaultkeep/internal/vault"
	"github.com/altairalabs/vaultkeep/pkg/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "enumerate DEKs and report the count without rewrapping or persisting a new master key")
	flag.Parse()

	log, syncLog, err := logging.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vaultkeep-rotate-key: init logger: %v\n", err)
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

	oldMaster, err := dek.Load(ctx, v, log)
	if err != nil {
		log.Error(err, "load current master key")
		os.Exit(1)
	}
	defer oldMaster.Zero()

	if *dryRun {
		refs, err := v.AllDEKRefs(ctx)
		if err != nil {
			log.Error(err, "enumerate DEK refs")
			os.Exit(1)
		}
		log.Info("dry run: rotation would rewrap these DEKs", "count", len(refs))
		return
	}

	newMaster, err := dek.GenerateMasterKey(log)
	if err != nil {
		log.Error(err, "generate candidate master key")
		os.Exit(1)
	}
	defer newMaster.Zero()

	mgr := dek.New(v, oldMaster, log)
	count, err := mgr.RotateMasterKey(ctx, oldMaster, newMaster)
	if err != nil {
		log.Error(err, "rotate master key", "rewrapped_before_failure", count)
		os.Exit(1)
	}

	if err := v.StoreMasterKey(ctx, newMaster.Bytes()); err != nil {
		log.Error(err, "persist new master key after successful rewrap; vault now holds rewrapped DEKs under the OLD master key slot — operator must retry persisting the new key before any process restarts")
		os.Exit(1)
	}

	log.Info("master key rotation complete", "deks_rewrapped", count)
}

// buildVault mirrors vaultkeepd's backend selection (§4.A, §6); kept as a
// small duplicate rather than an exported helper since the two binaries'
// lifecycles (long-running service vs. one-shot batch) never share a
// process to factor it through.
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
