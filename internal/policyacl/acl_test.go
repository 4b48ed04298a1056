/*
Copyright 2026 Altaira Labs.

SPDX-License-Identifier: Apache-2.0
*/

package policyacl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, name, doc string) NamedPolicy {
	t.Helper()
	rules, err := ParsePolicyDocument(name, []byte(doc))
	require.NoError(t, err)
	return NamedPolicy{Name: name, Rules: rules}
}

func TestCompile_RootAlone_IsAllowAll(t *testing.T) {
	acl, err := Compile([]NamedPolicy{{Name: "root"}})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/anything")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.RootPrivs)
	assert.True(t, res.IsRoot)
}

func TestCompile_RootCombinedWithOthers_Rejected(t *testing.T) {
	a := mustParse(t, "root", `{"path":{}}`)
	b := mustParse(t, "default", `{"path":{"secret/*":{"capabilities":["read"]}}}`)

	_, err := Compile([]NamedPolicy{a, b})
	require.Error(t, err)
}

func TestACL_S5_PolicyEvaluation(t *testing.T) {
	a := mustParse(t, "A", `{"path":{"secret/*":{"capabilities":["read","list"]}}}`)
	b := mustParse(t, "B", `{"path":{"secret/sensitive/*":{"capabilities":["deny"]}}}`)

	acl, err := Compile([]NamedPolicy{a, b})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = acl.Evaluate("read", "secret/sensitive/y")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	aclAOnly, err := Compile([]NamedPolicy{a})
	require.NoError(t, err)
	res, err = aclAOnly.Evaluate("read", "secret/sensitive/y")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestACL_DenyDominance_OnMerge(t *testing.T) {
	a := mustParse(t, "A", `{"path":{"secret/x":{"capabilities":["read","update"]}}}`)
	b := mustParse(t, "B", `{"path":{"secret/x":{"capabilities":["deny"]}}}`)

	acl, err := Compile([]NamedPolicy{a, b})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/x")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.CapabilitiesBitmap.IsDeny())
}

func TestACL_ExactBeatsDenyingPrefix(t *testing.T) {
	exact := mustParse(t, "exact", `{"path":{"secret/x":{"capabilities":["read"]}}}`)
	prefix := mustParse(t, "prefix", `{"path":{"secret/*":{"capabilities":["deny"]}}}`)

	acl, err := Compile([]NamedPolicy{exact, prefix})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/x")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "exact match must win over a denying prefix")

	res, err = acl.Evaluate("read", "secret/y")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "prefix applies where no exact rule exists")
}

func TestACL_LongestPrefixWins(t *testing.T) {
	broad := mustParse(t, "broad", `{"path":{"secret/*":{"capabilities":["read"]}}}`)
	narrow := mustParse(t, "narrow", `{"path":{"secret/sensitive/*":{"capabilities":["deny"]}}}`)

	acl, err := Compile([]NamedPolicy{broad, narrow})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/sensitive/data/deep")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = acl.Evaluate("read", "secret/other")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestACL_SegmentWildcardSpecificity(t *testing.T) {
	plus := mustParse(t, "plus", `{"path":{"secret/+/data":{"capabilities":["read"]}}}`)
	exactMiddle := mustParse(t, "exact-middle", `{"path":{"secret/billing/data":{"capabilities":["deny"]}}}`)

	acl, err := Compile([]NamedPolicy{plus, exactMiddle})
	require.NoError(t, err)

	// secret/billing/data carries no wildcard characters so it is its
	// own exact rule, which the evaluation order tries before any
	// segment-wildcard match is even considered.
	res, err := acl.Evaluate("read", "secret/billing/data")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// For any other middle segment only the "+" rule matches.
	res, err = acl.Evaluate("read", "secret/shipping/data")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestACL_SegmentWildcardSpecificity_TwoWildcardRulesCompete(t *testing.T) {
	broadPlus := mustParse(t, "broad", `{"path":{"secret/+/+":{"capabilities":["read"]}}}`)
	narrowerPrefix := mustParse(t, "narrower", `{"path":{"secret/billing/dat*":{"capabilities":["deny"]}}}`)

	acl, err := Compile([]NamedPolicy{broadPlus, narrowerPrefix})
	require.NoError(t, err)

	// narrowerPrefix scores 10 (exact "secret") + 10 (exact "billing") +
	// 5 (last-segment prefix "dat*") = 25, beating broadPlus's
	// 10 + 1 + 1 = 12.
	res, err := acl.Evaluate("read", "secret/billing/database")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// Only the broad "+/+" rule matches a path outside "billing".
	res, err = acl.Evaluate("read", "secret/shipping/database")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestACL_LastSegmentPrefixWildcard(t *testing.T) {
	p := mustParse(t, "p", `{"path":{"secret/sec*":{"capabilities":["read"]}}}`)
	acl, err := Compile([]NamedPolicy{p})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/secure-data")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = acl.Evaluate("read", "secret/other")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestACL_WriteSatisfiedByCreateOrUpdate(t *testing.T) {
	p := mustParse(t, "p", `{"path":{"secret/x":{"capabilities":["create"]}}}`)
	acl, err := Compile([]NamedPolicy{p})
	require.NoError(t, err)

	res, err := acl.Evaluate("write", "secret/x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestACL_ListTrimsTrailingSlashOnExactFallback(t *testing.T) {
	p := mustParse(t, "p", `{"path":{"secret/x":{"capabilities":["list"]}}}`)
	acl, err := Compile([]NamedPolicy{p})
	require.NoError(t, err)

	res, err := acl.Evaluate("list", "secret/x/")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestACL_SudoSetsRootPrivsWithoutAlteringAllowed(t *testing.T) {
	p := mustParse(t, "p", `{"path":{"secret/x":{"capabilities":["read","sudo"]}}}`)
	acl, err := Compile([]NamedPolicy{p})
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.RootPrivs)
	assert.False(t, res.IsRoot)
}

func TestACL_NoMatch_Denies(t *testing.T) {
	acl, err := Compile(nil)
	require.NoError(t, err)

	res, err := acl.Evaluate("read", "secret/anything")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestParsePolicyDocument_UnknownCapability_Errors(t *testing.T) {
	_, err := ParsePolicyDocument("p", []byte(`{"path":{"secret/x":{"capabilities":["fly"]}}}`))
	require.Error(t, err)
}

func TestParsePolicyDocument_MissingPathField_Errors(t *testing.T) {
	_, err := ParsePolicyDocument("p", []byte(`{}`))
	require.Error(t, err)
}

func TestParseSerializeRoundTrip(t *testing.T) {
	original := `{"path":{"secret/x":{"capabilities":["create","read"],"allowed_parameters":["ttl"]}}}`
	rules, err := ParsePolicyDocument("p", []byte(original))
	require.NoError(t, err)

	raw, err := SerializePolicyDocument(rules)
	require.NoError(t, err)

	roundTripped, err := ParsePolicyDocument("p", raw)
	require.NoError(t, err)

	require.Len(t, roundTripped, 1)
	assert.Equal(t, rules["secret/x"].Capabilities, roundTripped["secret/x"].Capabilities)
	assert.Equal(t, rules["secret/x"].AllowedParameters, roundTripped["secret/x"].AllowedParameters)
}
