// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classmap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts API requests by handler and status class.
	//
	// Labels:
	//   - handler: handler name, e.g. "HandleGraph"
	//   - status: "2xx", "4xx", "5xx"
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests by handler and status class.",
		},
		[]string{"handler", "status"},
	)

	analyzeRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "api",
			Name:      "analyze_rejected_total",
			Help:      "Analyze requests rejected by the rate limiter.",
		},
	)

	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classmap",
			Subsystem: "watch",
			Name:      "reloads_total",
			Help:      "Data file reloads triggered by the watcher by outcome.",
		},
		[]string{"outcome"},
	)

	modelClasses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "classmap",
			Subsystem: "model",
			Name:      "classes",
			Help:      "Classes in the currently served model.",
		},
	)

	modelCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "classmap",
			Subsystem: "model",
			Name:      "calls",
			Help:      "Call edges in the currently served model.",
		},
	)
)

// statusClass maps an HTTP status to its metric label.
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
