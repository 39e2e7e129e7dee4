// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the sequential
// thinking service: connection gauges, per-tool call counters, session
// lifecycle counters, and keepalive counters.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "thoughtstream"

const streamingSubsystem = "streaming"

// StreamingMetrics holds all Prometheus metrics for the streaming surface.
//
// # Fields
//
//   - ActiveConnections: Gauge of currently open streams by transport.
//   - ToolCallsTotal: Counter of dispatched tool calls by tool and status.
//   - ThoughtsTotal: Counter of processed thoughts by status (ok, invalid).
//   - SessionsCreatedTotal: Counter of sessions minted by the store.
//   - SessionsEvictedTotal: Counter of capacity evictions.
//   - KeepAlivesTotal: Counter of heartbeat pings sent by transport.
//   - ClientDisconnectsTotal: Counter of client-initiated teardowns.
type StreamingMetrics struct {
	// ActiveConnections tracks open streaming connections.
	// Labels: transport (sse, websocket)
	ActiveConnections *prometheus.GaugeVec

	// ToolCallsTotal counts dispatched tool calls.
	// Labels: tool, status (success, error)
	ToolCallsTotal *prometheus.CounterVec

	// ThoughtsTotal counts thought submissions.
	// Labels: status (ok, invalid)
	ThoughtsTotal *prometheus.CounterVec

	// SessionsCreatedTotal counts sessions minted by the store.
	SessionsCreatedTotal prometheus.Counter

	// SessionsEvictedTotal counts least-recently-used evictions.
	SessionsEvictedTotal prometheus.Counter

	// KeepAlivesTotal counts heartbeat pings sent.
	// Labels: transport (sse, websocket)
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts client disconnections.
	// Labels: transport (sse, websocket)
	ClientDisconnectsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of StreamingMetrics.
// Initialized by InitMetrics(); nil until then, and every call site
// nil-checks so tests can run without the default registry.
var DefaultMetrics *StreamingMetrics

// InitMetrics initializes the default metrics instance.
//
// Call once at startup; panics on duplicate registration.
func InitMetrics() *StreamingMetrics {
	DefaultMetrics = newMetrics(nil)
	return DefaultMetrics
}

// NewMetricsWithRegistry creates an isolated instance for tests.
func NewMetricsWithRegistry(reg *prometheus.Registry) *StreamingMetrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *StreamingMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &StreamingMetrics{
		ActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "active_connections",
				Help:      "Currently open streaming connections by transport",
			},
			[]string{"transport"},
		),

		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "tool_calls_total",
				Help:      "Dispatched tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),

		ThoughtsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "thoughts_total",
				Help:      "Thought submissions by validation status",
			},
			[]string{"status"},
		),

		SessionsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "sessions_created_total",
				Help:      "Sessions minted by the store",
			},
		),

		SessionsEvictedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "sessions_evicted_total",
				Help:      "Sessions removed by least-recently-used eviction",
			},
		),

		KeepAlivesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "keepalives_total",
				Help:      "Heartbeat pings sent by transport",
			},
			[]string{"transport"},
		),

		ClientDisconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: streamingSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Client disconnections during streaming",
			},
			[]string{"transport"},
		),
	}
}

// RecordKeepAlive increments the keepalive counter for a transport.
func (m *StreamingMetrics) RecordKeepAlive(transport string) {
	m.KeepAlivesTotal.WithLabelValues(transport).Inc()
}

// RecordClientDisconnect increments the disconnect counter for a transport.
func (m *StreamingMetrics) RecordClientDisconnect(transport string) {
	m.ClientDisconnectsTotal.WithLabelValues(transport).Inc()
}

// RecordToolCall increments the tool call counter.
func (m *StreamingMetrics) RecordToolCall(tool, status string) {
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
