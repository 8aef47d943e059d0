// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the OTel tracer name for extraction spans.
const tracerName = "classmap.ast"

var tracer = otel.Tracer(tracerName)

// Package-level Prometheus metrics for extraction.
var (
	// extractFilesTotal counts extracted files by outcome.
	//
	// Labels:
	//   - status: "success", "syntax_error", "invalid_content", "too_large", "canceled"
	extractFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "extract",
			Name:      "files_total",
			Help:      "Total files handed to the extractor by outcome.",
		},
		[]string{"status"},
	)

	// extractDuration measures per-file extraction time including parsing.
	extractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "classmap",
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "Per-file parse and extraction duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// extractCallsTotal counts produced call edges by normalization rule.
	//
	// Labels:
	//   - rule: "receiver", "class", "module"
	extractCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "extract",
			Name:      "calls_total",
			Help:      "Total call edges produced by normalization rule.",
		},
		[]string{"rule"},
	)

	// extractClassesTotal counts class records produced.
	extractClassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "extract",
			Name:      "classes_total",
			Help:      "Total class records produced.",
		},
	)
)

// startExtractSpan starts the span covering one file.
func startExtractSpan(ctx context.Context, module string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "PythonExtractor.Extract",
		trace.WithAttributes(
			attribute.String("module", module),
			attribute.Int("content_bytes", size),
		),
	)
}

// finishExtractSpan records the outcome on the span and the metrics.
func finishExtractSpan(span trace.Span, start time.Time, status string, classes int, err error) {
	extractFilesTotal.WithLabelValues(status).Inc()
	extractDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("status", status),
		attribute.Int("classes", classes),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	span.End()
}
