// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsWithRegistry_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	// Touch every collector so it shows up in the gather.
	m.ActiveConnections.WithLabelValues("sse").Inc()
	m.RecordToolCall("sequentialthinking", "success")
	m.ThoughtsTotal.WithLabelValues("ok").Inc()
	m.SessionsCreatedTotal.Inc()
	m.SessionsEvictedTotal.Inc()
	m.RecordKeepAlive("sse")
	m.RecordClientDisconnect("websocket")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	want := map[string]bool{
		"thoughtstream_streaming_active_connections":       false,
		"thoughtstream_streaming_tool_calls_total":         false,
		"thoughtstream_streaming_thoughts_total":           false,
		"thoughtstream_streaming_sessions_created_total":   false,
		"thoughtstream_streaming_sessions_evicted_total":   false,
		"thoughtstream_streaming_keepalives_total":         false,
		"thoughtstream_streaming_client_disconnects_total": false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s was not registered", name)
		}
	}
}

func TestMetrics_CounterValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordKeepAlive("sse")
	m.RecordKeepAlive("sse")
	m.RecordKeepAlive("websocket")

	if v := testutil.ToFloat64(m.KeepAlivesTotal.WithLabelValues("sse")); v != 2 {
		t.Errorf("sse keepalives = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.KeepAlivesTotal.WithLabelValues("websocket")); v != 1 {
		t.Errorf("websocket keepalives = %v, want 1", v)
	}

	m.ActiveConnections.WithLabelValues("sse").Inc()
	m.ActiveConnections.WithLabelValues("sse").Inc()
	m.ActiveConnections.WithLabelValues("sse").Dec()
	if v := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("sse")); v != 1 {
		t.Errorf("active sse connections = %v, want 1", v)
	}
}

func TestMetrics_ToolCallStatuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordToolCall("sequentialthinking", "success")
	m.RecordToolCall("sequentialthinking", "error")
	m.RecordToolCall("get_weather", "success")

	if v := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("sequentialthinking", "success")); v != 1 {
		t.Errorf("success calls = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("sequentialthinking", "error")); v != 1 {
		t.Errorf("error calls = %v, want 1", v)
	}
}
