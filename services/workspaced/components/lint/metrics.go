// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.workspaced.lint")
	meter  = otel.Meter("aleutian.workspaced.lint")
)

var (
	lintLatency metric.Float64Histogram
	lintTotal   metric.Int64Counter
	issuesFound metric.Int64Counter
	cacheHits   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		lintLatency, err = meter.Float64Histogram(
			"workspaced_lint_duration_seconds",
			metric.WithDescription("Duration of lint tool runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lintTotal, err = meter.Int64Counter(
			"workspaced_lint_total",
			metric.WithDescription("Total number of lint requests"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issuesFound, err = meter.Int64Counter(
			"workspaced_lint_issues_total",
			metric.WithDescription("Total number of lint issues reported"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"workspaced_lint_cache_hits_total",
			metric.WithDescription("Lint requests served from the result cache"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func startLintSpan(ctx context.Context, tool, file string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Linter.Lint",
		trace.WithAttributes(
			attribute.String("lint.tool", tool),
			attribute.String("lint.file_path", file),
		),
	)
}

func recordLint(ctx context.Context, tool string, duration time.Duration, issues int, cached, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	)
	lintTotal.Add(ctx, 1, attrs)
	if cached {
		cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
		return
	}
	lintLatency.Record(ctx, duration.Seconds(), attrs)
	if success {
		issuesFound.Add(ctx, int64(issues), metric.WithAttributes(attribute.String("tool", tool)))
	}
}
