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

package tokenstore

import (
	"context"
	"fmt"

	"github.com/altairalabs/vaultkeep/internal/policyacl"
	"github.com/altairalabs/vaultkeep/internal/policystore"
)

// SuperAdminPolicyName returns the organization-scoped policy name
// super-admin tokens are bound to alongside "root" (§4.K).
func SuperAdminPolicyName(org string) string {
	return fmt.Sprintf("super-admin-%s", org)
}

// superAdminPolicyTemplate is the built-in literal a super-admin
// policy is seeded from: full capabilities under secret/*, auth/*, and
// sys/* (§4.K).
const superAdminPolicyTemplate = `{"path":{
	"secret/*":{"capabilities":["create","read","update","delete","list","sudo"]},
	"auth/*":{"capabilities":["create","read","update","delete","list","sudo"]},
	"sys/*":{"capabilities":["create","read","update","delete","list","sudo"]}
}}`

// EnsureSuperAdminPolicy seeds the org-scoped super-admin policy from
// the built-in template if it is not already present. It writes through
// the store's ordinary Put: "super-admin-<org>" is not a reserved name, so
// no immutability guard applies, and the policy stays an ordinary mutable
// policy afterward.
func EnsureSuperAdminPolicy(ctx context.Context, s policystore.Store, org string) (string, error) {
	name := SuperAdminPolicyName(org)
	if _, err := s.Get(ctx, name); err == nil {
		return name, nil
	}
	if err := s.Put(ctx, name, []byte(superAdminPolicyTemplate)); err != nil {
		return "", err
	}
	return name, nil
}

// MintSuperAdmin mints a token bound to both "root" and the
// organization-scoped super-admin policy, seeding the latter from the
// template on first use.
func MintSuperAdmin(ctx context.Context, tokens Store, policies policystore.Store, org string, req MintRequest) (MintResult, error) {
	saPolicy, err := EnsureSuperAdminPolicy(ctx, policies, org)
	if err != nil {
		return MintResult{}, err
	}
	req.Policies = []string{policyacl.RootPolicyName, saPolicy}
	return tokens.Create(ctx, req)
}
