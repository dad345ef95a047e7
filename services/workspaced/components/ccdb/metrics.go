// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ccdb

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.workspaced.ccdb")
	meter  = otel.Meter("aleutian.workspaced.ccdb")
)

var (
	reloadTotal metric.Int64Counter
	entryCount  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		reloadTotal, err = meter.Int64Counter(
			"workspaced_ccdb_reloads_total",
			metric.WithDescription("Compilation database loads by trigger and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		entryCount, err = meter.Int64Histogram(
			"workspaced_ccdb_entries",
			metric.WithDescription("Entries per loaded compilation database"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordReload records one load attempt.
func recordReload(ctx context.Context, trigger string, entries int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	)
	reloadTotal.Add(ctx, 1, attrs)
	if success {
		entryCount.Record(ctx, int64(entries))
	}
}
