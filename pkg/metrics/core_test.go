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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPermissionCheck(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoreMetricsWithRegistry(reg)

	m.RecordPermissionCheck("can_view", true, 0.01)
	m.RecordPermissionCheck("can_view", false, 0.02)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PermissionChecksTotal.WithLabelValues("denied")))
}

func TestRecordGraphCacheLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoreMetricsWithRegistry(reg)

	m.RecordGraphCacheLookup(true)
	m.RecordGraphCacheLookup(true)
	m.RecordGraphCacheLookup(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.GraphCacheHitsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GraphCacheHitsTotal.WithLabelValues("miss")))
}

func TestRecordDEKOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoreMetricsWithRegistry(reg)

	m.RecordDEKOperation("encrypt")
	m.RecordDEKOperation("encrypt")
	m.RecordDEKOperation("rotate")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DEKOperationsTotal.WithLabelValues("encrypt")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DEKOperationsTotal.WithLabelValues("rotate")))
}

func TestRecordPolicyEvaluation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoreMetricsWithRegistry(reg)

	m.RecordPolicyEvaluation(true)
	m.RecordPolicyEvaluation(false)
	m.RecordPolicyEvaluation(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PolicyEvaluationsTotal.WithLabelValues("allowed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PolicyEvaluationsTotal.WithLabelValues("denied")))
}

func TestGraphCacheEntriesAndActiveSessionsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoreMetricsWithRegistry(reg)

	m.GraphCacheEntries.Set(42)
	m.ActiveSessions.Set(7)

	assert.Equal(t, float64(42), testutil.ToFloat64(m.GraphCacheEntries))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.ActiveSessions))
}

func TestNewCoreMetricsWithRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCoreMetricsWithRegistry(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
