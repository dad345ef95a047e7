// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspaced

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for host operations.
var (
	tracer = otel.Tracer("aleutian.workspaced")
	meter  = otel.Meter("aleutian.workspaced")
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// bindTotal counts bind attempts by component and result.
	bindTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspaced_bind_total",
		Help: "Total component bind attempts by component and result",
	}, []string{"component", "result"})

	// dispatchTotal counts completed runs by component and outcome.
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspaced_dispatch_total",
		Help: "Total dispatched runs by component and outcome",
	}, []string{"component", "outcome"})

	// instancesOpen tracks open workspace instances.
	instancesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workspaced_instances_open",
		Help: "Number of open workspace instances",
	})
)

// ==============================================================================
// OpenTelemetry Metrics
// ==============================================================================

var (
	runLatency metric.Float64Histogram
	runTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"workspaced_run_duration_seconds",
			metric.WithDescription("Duration of host runs from dispatch to settlement"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"workspaced_run_total",
			metric.WithDescription("Total number of host runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates a span for a host run.
func startRunSpan(ctx context.Context, path, comp, method string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Host.Run",
		trace.WithAttributes(
			attribute.String("workspaced.path", path),
			attribute.String("workspaced.component", comp),
			attribute.String("workspaced.method", method),
		),
	)
}

// recordRun records metrics for one settled run.
func recordRun(ctx context.Context, comp, method string, duration time.Duration, success bool) {
	outcome := "resolved"
	if !success {
		outcome = "rejected"
	}
	dispatchTotal.WithLabelValues(comp, outcome).Inc()

	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("component", comp),
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
}

// recordBind records one bind attempt.
func recordBind(comp string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	bindTotal.WithLabelValues(comp, result).Inc()
}
