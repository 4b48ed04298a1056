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

package idref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	r, ok := Parse("user:11111111-1111-1111-1111-111111111111")
	require.True(t, ok)
	assert.Equal(t, "user", r.Type)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", r.ID)
	assert.Equal(t, "user:11111111-1111-1111-1111-111111111111", r.String())
}

func TestParseResourceWithEmbeddedColon(t *testing.T) {
	r, ok := Parse("resource:doc:42")
	require.True(t, ok)
	assert.Equal(t, "resource", r.Type)
	assert.Equal(t, "doc:42", r.ID)
	assert.Equal(t, "resource:doc:42", r.String())
}

func TestParseRejectsNoColon(t *testing.T) {
	_, ok := Parse("justastring")
	assert.False(t, ok)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, ok := Parse("")
	assert.False(t, ok)
	_, ok = Parse(":")
	assert.False(t, ok)
}

func TestParseHierarchicalRoundTrip(t *testing.T) {
	h, ok := ParseHierarchical("acme/crm/billing/invoice-7")
	require.True(t, ok)
	assert.Equal(t, []string{"acme", "crm", "billing", "invoice-7"}, h.Segments)
	assert.Equal(t, "acme/crm/billing/invoice-7", h.String())
}

func TestParseHierarchicalRejectsEmptySegments(t *testing.T) {
	for _, s := range []string{"", "/a", "a/", "a//b"} {
		_, ok := ParseHierarchical(s)
		assert.False(t, ok, "expected rejection of %q", s)
	}
}

func TestParseAnyPrefersColonForm(t *testing.T) {
	_, _, kind, ok := ParseAny("user:abc")
	require.True(t, ok)
	assert.Equal(t, "colon", kind)

	_, _, kind, ok = ParseAny("org/app/module/resource")
	require.True(t, ok)
	assert.Equal(t, "hierarchical", kind)

	_, _, _, ok = ParseAny("not valid either way!")
	assert.False(t, ok)
}

func TestScopedEntityType(t *testing.T) {
	assert.Equal(t, "realm/acme", ScopedEntityType("realm", "acme"))
	assert.Equal(t, "service/billing", ScopedEntityType("service", "billing"))
	assert.Equal(t, "realm/acme/invoice", ScopedEntityType("realm", "acme", "invoice"))
	assert.Equal(t, "global/scope1", ScopedEntityType("global", "scope1"))
}
