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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CoreMetrics holds Prometheus metrics for the authorization and
// secret-management core: permission checks, the graph cache, DEK
// operations, and policy evaluations.
type CoreMetrics struct {
	// PermissionChecksTotal counts check() calls by result (allowed/denied).
	PermissionChecksTotal *prometheus.CounterVec
	// PermissionCheckDuration observes check() latency in seconds.
	PermissionCheckDuration *prometheus.HistogramVec
	// GraphCacheHitsTotal counts graph cache lookups by outcome (hit/miss).
	GraphCacheHitsTotal *prometheus.CounterVec
	// GraphCacheEntries tracks the current number of cached entries.
	GraphCacheEntries prometheus.Gauge
	// DEKOperationsTotal counts DEK manager operations by kind (get_or_create/encrypt/decrypt/rotate).
	DEKOperationsTotal *prometheus.CounterVec
	// PolicyEvaluationsTotal counts check_policy() calls by result (allowed/denied).
	PolicyEvaluationsTotal *prometheus.CounterVec
	// ActiveSessions tracks the current number of non-ended sessions.
	ActiveSessions prometheus.Gauge
}

// NewCoreMetrics creates and registers all core Prometheus metrics.
func NewCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		PermissionChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultkeep_permission_checks_total",
			Help: "Total number of permission checks by result",
		}, []string{"result"}),

		PermissionCheckDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaultkeep_permission_check_duration_seconds",
			Help:    "Permission check latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"relation"}),

		GraphCacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultkeep_graph_cache_lookups_total",
			Help: "Total number of graph cache lookups by outcome",
		}, []string{"outcome"}),

		GraphCacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vaultkeep_graph_cache_entries",
			Help: "Current number of entries held in the graph cache",
		}),

		DEKOperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultkeep_dek_operations_total",
			Help: "Total number of DEK manager operations by kind",
		}, []string{"kind"}),

		PolicyEvaluationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultkeep_policy_evaluations_total",
			Help: "Total number of policy ACL evaluations by result",
		}, []string{"result"}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vaultkeep_active_sessions",
			Help: "Current number of non-ended sessions",
		}),
	}
}

// RecordPermissionCheck records a completed check() call.
func (m *CoreMetrics) RecordPermissionCheck(relation string, allowed bool, seconds float64) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(result).Inc()
	m.PermissionCheckDuration.WithLabelValues(relation).Observe(seconds)
}

// RecordGraphCacheLookup records a cache hit or miss.
func (m *CoreMetrics) RecordGraphCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.GraphCacheHitsTotal.WithLabelValues(outcome).Inc()
}

// RecordDEKOperation increments the counter for one DEK manager operation kind.
func (m *CoreMetrics) RecordDEKOperation(kind string) {
	m.DEKOperationsTotal.WithLabelValues(kind).Inc()
}

// RecordPolicyEvaluation records a completed check_policy() call.
func (m *CoreMetrics) RecordPolicyEvaluation(allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.PolicyEvaluationsTotal.WithLabelValues(result).Inc()
}

// NewCoreMetricsWithRegistry creates core metrics registered against
// reg instead of the default registry, for testing.
func NewCoreMetricsWithRegistry(reg *prometheus.Registry) *CoreMetrics {
	permissionChecksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeep_permission_checks_total",
		Help: "Total number of permission checks by result",
	}, []string{"result"})

	permissionCheckDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultkeep_permission_check_duration_seconds",
		Help:    "Permission check latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"relation"})

	graphCacheHitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeep_graph_cache_lookups_total",
		Help: "Total number of graph cache lookups by outcome",
	}, []string{"outcome"})

	graphCacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultkeep_graph_cache_entries",
		Help: "Current number of entries held in the graph cache",
	})

	dekOperationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeep_dek_operations_total",
		Help: "Total number of DEK manager operations by kind",
	}, []string{"kind"})

	policyEvaluationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultkeep_policy_evaluations_total",
		Help: "Total number of policy ACL evaluations by result",
	}, []string{"result"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultkeep_active_sessions",
		Help: "Current number of non-ended sessions",
	})

	reg.MustRegister(
		permissionChecksTotal, permissionCheckDuration, graphCacheHitsTotal,
		graphCacheEntries, dekOperationsTotal, policyEvaluationsTotal, activeSessions,
	)

	return &CoreMetrics{
		PermissionChecksTotal:   permissionChecksTotal,
		PermissionCheckDuration: permissionCheckDuration,
		GraphCacheHitsTotal:     graphCacheHitsTotal,
		GraphCacheEntries:       graphCacheEntries,
		DEKOperationsTotal:      dekOperationsTotal,
		PolicyEvaluationsTotal:  policyEvaluationsTotal,
		ActiveSessions:          activeSessions,
	}
}
