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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all classmap routes with the router.
//
// Description:
//
//	Registers all /v1/classmap/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//	POST /analyze is wrapped in RateLimit using the service configuration.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Model Endpoints:
//
//	GET  /v1/classmap/classes - List class names
//	GET  /v1/classmap/classes/:name - Get one class record
//	GET  /v1/classmap/graph - Graph view for the dashboard
//	POST /v1/classmap/analyze - Analyze a project directory
//	POST /v1/classmap/load - Load an analysis JSON file
//
// Snapshot Endpoints:
//
//	GET  /v1/classmap/snapshots - List snapshots
//	POST /v1/classmap/snapshots - Snapshot the current model
//	GET  /v1/classmap/snapshots/diff - Compare two snapshots
//	POST /v1/classmap/snapshots/restore - Serve a project's newest snapshot
//
// Health Endpoints:
//
//	GET  /v1/classmap/health - Health check
//	GET  /v1/classmap/ready - Readiness check
//
// Example:
//
//	service := classmap.NewService(classmap.DefaultServiceConfig())
//	handlers := classmap.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	classmap.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	cfg := handlers.svc.Config()

	cm := rg.Group("/classmap")
	{
		cm.GET("/classes", handlers.HandleClasses)
		cm.GET("/classes/:name", handlers.HandleClass)
		cm.GET("/graph", handlers.HandleGraph)

		cm.POST("/analyze", RateLimit(cfg.AnalyzeRatePerMinute, cfg.AnalyzeBurst), handlers.HandleAnalyze)
		cm.POST("/load", handlers.HandleLoad)

		cm.GET("/snapshots", handlers.HandleListSnapshots)
		cm.POST("/snapshots", handlers.HandleSaveSnapshot)
		cm.GET("/snapshots/diff", handlers.HandleDiffSnapshots)
		cm.POST("/snapshots/restore", handlers.HandleRestoreSnapshot)

		// Health checks
		cm.GET("/health", handlers.HandleHealth)
		cm.GET("/ready", handlers.HandleReady)
	}
}
