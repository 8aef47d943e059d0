// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package walker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("classmap.walker")

var (
	// walkFilesTotal counts files by walk outcome.
	//
	// Labels:
	//   - outcome: "parsed", "skipped"
	walkFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "walk",
			Name:      "files_total",
			Help:      "Total source files visited by project walks by outcome.",
		},
		[]string{"outcome"},
	)

	walkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "classmap",
			Subsystem: "walk",
			Name:      "duration_seconds",
			Help:      "Project walk duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)
)
