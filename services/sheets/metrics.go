// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sheets

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for sheets operations.
var (
	tracer = otel.Tracer("aleutian.sheets")
	meter  = otel.Meter("aleutian.sheets")
)

// Metrics for sheets operations.
var (
	opLatency metric.Float64Histogram
	opTotal   metric.Int64Counter
	cellCount metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"sheets_operation_duration_seconds",
			metric.WithDescription("Duration of sheets operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"sheets_operations_total",
			metric.WithDescription("Total number of sheets operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cellCount, err = meter.Int64Histogram(
			"sheets_cells_touched",
			metric.WithDescription("Cells touched per mutating operation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startOpSpan creates a span for a service operation.
func startOpSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sheets."+operation,
		trace.WithAttributes(
			attribute.String("sheets.operation", operation),
		),
	)
}

// recordOpMetrics records latency and outcome for a service operation.
func recordOpMetrics(ctx context.Context, operation string, start time.Time, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	)
	opLatency.Record(ctx, time.Since(start).Seconds(), attrs)
	opTotal.Add(ctx, 1, attrs)
}

// recordCellsTouched records the touched-cell count of a mutation.
func recordCellsTouched(ctx context.Context, operation string, cells int) {
	if err := initMetrics(); err != nil {
		return
	}
	cellCount.Record(ctx, int64(cells), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
