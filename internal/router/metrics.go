// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the router's prometheus instruments. Registered against
// the registry the composition root provides; nothing registers globally.
type Metrics struct {
	cacheHits          *prometheus.CounterVec
	cacheMisses        prometheus.Counter
	backendAttempts    *prometheus.CounterVec
	backendFailures    *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
	requestDuration    prometheus.Histogram
}

// NewMetrics creates and registers the router's instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge",
			Name:      "cache_hits_total",
			Help:      "Cache hits by tier.",
		}, []string{"tier"}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "edge",
			Name:      "cache_misses_total",
			Help:      "Requests that missed both cache tiers.",
		}),
		backendAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge",
			Name:      "backend_attempts_total",
			Help:      "Generation attempts by backend.",
		}, []string{"backend"}),
		backendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge",
			Name:      "backend_failures_total",
			Help:      "Failed generation attempts by backend and kind.",
		}, []string{"backend", "kind"}),
		breakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by backend.",
		}, []string{"backend", "to"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edge",
			Name:      "request_duration_seconds",
			Help:      "End-to-end Complete latency, cache hits included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// RecordBreakerTransition feeds the transition counter. Wired as a
// breaker state-change hook by the composition root.
func (m *Metrics) RecordBreakerTransition(backend, to string) {
	m.breakerTransitions.WithLabelValues(backend, to).Inc()
}
