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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/classmap/services/classmap/graph"
	"github.com/AleutianAI/classmap/services/classmap/model"
	"github.com/AleutianAI/classmap/services/classmap/snapshot"
	"github.com/AleutianAI/classmap/services/classmap/walker"
)

// RequestIDHeader carries the caller's request ID, echoed in responses.
const RequestIDHeader = "X-Request-ID"

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handlers serves the classmap HTTP API.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the caller's request ID or a new one, and
// sets it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}

// respond writes body with status and records the request metric.
func respond(c *gin.Context, handler string, status int, body any) {
	requestsTotal.WithLabelValues(handler, statusClass(status)).Inc()
	c.JSON(status, body)
}

func respondError(c *gin.Context, handler string, status int, code, msg string) {
	respond(c, handler, status, ErrorResponse{Error: msg, Code: code})
}

// =============================================================================
// Health
// =============================================================================

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status   string `json:"status"`
	Modules  int    `json:"modules"`
	Classes  int    `json:"classes"`
	Source   string `json:"source,omitempty"`
	LoadedAt int64  `json:"loaded_at_milli"`
}

func (h *Handlers) health() HealthResponse {
	st := h.svc.Current()
	modules, classes, _, _ := st.Model.Counts()
	return HealthResponse{
		Status:   "ok",
		Modules:  modules,
		Classes:  classes,
		Source:   st.Source,
		LoadedAt: st.LoadedAt.UnixMilli(),
	}
}

// HandleHealth reports liveness. Always 200.
func (h *Handlers) HandleHealth(c *gin.Context) {
	respond(c, "HandleHealth", http.StatusOK, h.health())
}

// HandleReady reports readiness.
//
// Response:
//
//	200 OK: A model with at least one module is loaded.
//	503 Service Unavailable: The model is empty.
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := h.health()
	if resp.Modules == 0 {
		resp.Status = "empty"
		respond(c, "HandleReady", http.StatusServiceUnavailable, resp)
		return
	}
	respond(c, "HandleReady", http.StatusOK, resp)
}

// =============================================================================
// Classes
// =============================================================================

// ClassesResponse lists class names.
type ClassesResponse struct {
	Classes []string `json:"classes"`
	Count   int      `json:"count"`
}

// ClassResponse is one class record and its module.
type ClassResponse struct {
	Module string             `json:"module"`
	Class  *model.ClassRecord `json:"class"`
}

// HandleClasses lists every class name, sorted and deduplicated.
func (h *Handlers) HandleClasses(c *gin.Context) {
	names := h.svc.Model().ClassNames()
	respond(c, "HandleClasses", http.StatusOK, ClassesResponse{Classes: names, Count: len(names)})
}

// HandleClass returns the record of the named class.
//
// Response:
//
//	200 OK: ClassResponse. The first module in sorted order wins.
//	404 Not Found: No class of that name.
func (h *Handlers) HandleClass(c *gin.Context) {
	name := c.Param("name")
	rec, module, ok := h.svc.Model().FindClass(name)
	if !ok {
		respondError(c, "HandleClass", http.StatusNotFound, "CLASS_NOT_FOUND", "class not found: "+name)
		return
	}
	respond(c, "HandleClass", http.StatusOK, ClassResponse{Module: module, Class: rec})
}

// =============================================================================
// Graph
// =============================================================================

// HandleGraph returns a Cytoscape view of one graph kind.
//
// Query Parameters:
//
//	kind: inherit (default), call, dep, class_method_call
//	center: Tapped node (optional)
//	search: Node to focus, wins over center when it exists (optional)
//	hops: Neighborhood radius, default 2, clamped to 1..4 (optional)
//	expand: Narrow to the neighborhood, default true (optional)
//	reset: Return the full graph (optional)
//	layout: cose (default), breadthfirst, circle, grid, random
//
// Response:
//
//	200 OK: GraphView
//	400 Bad Request: Unknown kind or layout, or a non-numeric parameter
func (h *Handlers) HandleGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGraph")

	req := GraphRequest{
		Kind:   c.Query("kind"),
		Center: c.Query("center"),
		Search: c.Query("search"),
		Layout: c.Query("layout"),
	}

	var err error
	if s := c.Query("hops"); s != "" {
		if req.Hops, err = strconv.Atoi(s); err != nil {
			respondError(c, "HandleGraph", http.StatusBadRequest, "INVALID_PARAMETER", "hops must be an integer")
			return
		}
	}
	if req.Expand, err = queryBool(c, "expand", true); err != nil {
		respondError(c, "HandleGraph", http.StatusBadRequest, "INVALID_PARAMETER", "expand must be a boolean")
		return
	}
	if req.Reset, err = queryBool(c, "reset", false); err != nil {
		respondError(c, "HandleGraph", http.StatusBadRequest, "INVALID_PARAMETER", "reset must be a boolean")
		return
	}

	view, err := h.svc.Graph(req)
	if err != nil {
		code := "INVALID_PARAMETER"
		if errors.Is(err, graph.ErrUnknownKind) {
			code = "UNKNOWN_KIND"
		}
		logger.Debug("graph request rejected", slog.String("error", err.Error()))
		respondError(c, "HandleGraph", http.StatusBadRequest, code, err.Error())
		return
	}

	logger.Debug("graph built",
		slog.String("kind", string(view.Kind)),
		slog.String("center", view.Center),
		slog.Int("nodes", view.NodeCount),
		slog.Int("edges", view.EdgeCount))
	respond(c, "HandleGraph", http.StatusOK, view)
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}

// =============================================================================
// Model lifecycle
// =============================================================================

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	ProjectRoot string `json:"project_root" binding:"required"`
}

// AnalyzeResponse reports a completed analysis.
type AnalyzeResponse struct {
	ProjectRoot string        `json:"project_root"`
	Stats       *walker.Stats `json:"stats"`
}

// HandleAnalyze walks a project directory and serves the result.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Missing or invalid project_root
//	429 Too Many Requests: Rate limited (see RateLimit)
//	500 Internal Server Error: Walk failed
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "HandleAnalyze", http.StatusBadRequest, "INVALID_REQUEST", "project_root is required")
		return
	}

	stats, err := h.svc.Analyze(c.Request.Context(), req.ProjectRoot)
	if err != nil {
		if errors.Is(err, walker.ErrInvalidRoot) {
			respondError(c, "HandleAnalyze", http.StatusBadRequest, "INVALID_ROOT", err.Error())
			return
		}
		logger.Error("analyze failed", slog.String("error", err.Error()))
		respondError(c, "HandleAnalyze", http.StatusInternalServerError, "ANALYZE_FAILED", err.Error())
		return
	}

	logger.Info("project analyzed",
		slog.String("project_root", h.svc.Current().ProjectRoot),
		slog.Int("classes", stats.Classes))
	respond(c, "HandleAnalyze", http.StatusOK, AnalyzeResponse{
		ProjectRoot: h.svc.Current().ProjectRoot,
		Stats:       stats,
	})
}

// LoadRequest is the body of POST /load.
type LoadRequest struct {
	Path string `json:"path" binding:"required"`
}

// HandleLoad replaces the served model with an analysis JSON file.
//
// Response:
//
//	200 OK: HealthResponse of the new model
//	400 Bad Request: Missing path
//	404 Not Found: File does not exist
//	422 Unprocessable Entity: File is not a valid analysis document
func (h *Handlers) HandleLoad(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLoad")

	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "HandleLoad", http.StatusBadRequest, "INVALID_REQUEST", "path is required")
		return
	}

	if err := h.svc.LoadFile(req.Path); err != nil {
		logger.Warn("load failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		switch {
		case errors.Is(err, model.ErrModelNotFound):
			respondError(c, "HandleLoad", http.StatusNotFound, "FILE_NOT_FOUND", err.Error())
		case errors.Is(err, model.ErrMalformedModel):
			respondError(c, "HandleLoad", http.StatusUnprocessableEntity, "MALFORMED_MODEL", err.Error())
		default:
			respondError(c, "HandleLoad", http.StatusInternalServerError, "LOAD_FAILED", err.Error())
		}
		return
	}
	respond(c, "HandleLoad", http.StatusOK, h.health())
}

// =============================================================================
// Snapshots
// =============================================================================

// SnapshotRequest is the body of POST /snapshots.
type SnapshotRequest struct {
	Label string `json:"label" binding:"max=128"`
}

// SnapshotListResponse lists snapshot metadata.
type SnapshotListResponse struct {
	Snapshots []*snapshot.Metadata `json:"snapshots"`
	Count     int                  `json:"count"`
}

// HandleSaveSnapshot stores the current model.
//
// Response:
//
//	201 Created: snapshot.Metadata
//	400 Bad Request: Bad body, or the model was not produced by analyze
//	501 Not Implemented: Snapshot storage not configured
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveSnapshot")

	var req SnapshotRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, "HandleSaveSnapshot", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	meta, err := h.svc.SaveSnapshot(c.Request.Context(), req.Label)
	if err != nil {
		h.snapshotError(c, logger, "HandleSaveSnapshot", err)
		return
	}
	respond(c, "HandleSaveSnapshot", http.StatusCreated, meta)
}

// HandleListSnapshots lists snapshots of a project, newest first.
//
// Query Parameters:
//
//	project_root: Project to list (optional, defaults to the analyzed root)
//	limit: Maximum entries, default 100 (optional)
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListSnapshots")

	root := c.Query("project_root")
	if root == "" {
		root = h.svc.Current().ProjectRoot
	}
	if root == "" {
		respondError(c, "HandleListSnapshots", http.StatusBadRequest, "MISSING_PARAMETER", "project_root parameter is required")
		return
	}
	limit := snapshot.DefaultListLimit
	if s := c.Query("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := h.svc.ListSnapshots(c.Request.Context(), root, limit)
	if err != nil {
		h.snapshotError(c, logger, "HandleListSnapshots", err)
		return
	}
	respond(c, "HandleListSnapshots", http.StatusOK, SnapshotListResponse{Snapshots: list, Count: len(list)})
}

// HandleDiffSnapshots compares two snapshots.
//
// Query Parameters:
//
//	base: Base snapshot ID (required)
//	target: Target snapshot ID (required)
func (h *Handlers) HandleDiffSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDiffSnapshots")

	base, target := c.Query("base"), c.Query("target")
	if base == "" || target == "" {
		respondError(c, "HandleDiffSnapshots", http.StatusBadRequest, "MISSING_PARAMETER", "base and target parameters are required")
		return
	}

	diff, err := h.svc.DiffSnapshots(c.Request.Context(), base, target)
	if err != nil {
		h.snapshotError(c, logger, "HandleDiffSnapshots", err)
		return
	}
	respond(c, "HandleDiffSnapshots", http.StatusOK, diff)
}

// RestoreRequest is the body of POST /snapshots/restore.
type RestoreRequest struct {
	ProjectRoot string `json:"project_root"`
}

// HandleRestoreSnapshot serves the newest snapshot of a project.
//
// Request Body (optional):
//
//	project_root: Project to restore (defaults to the analyzed root)
//
// Response:
//
//	200 OK: snapshot.Metadata of the restored snapshot
//	404 Not Found: The project has no snapshot
func (h *Handlers) HandleRestoreSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRestoreSnapshot")

	var req RestoreRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, "HandleRestoreSnapshot", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	meta, err := h.svc.RestoreLatest(c.Request.Context(), req.ProjectRoot)
	if err != nil {
		h.snapshotError(c, logger, "HandleRestoreSnapshot", err)
		return
	}
	respond(c, "HandleRestoreSnapshot", http.StatusOK, meta)
}

func (h *Handlers) snapshotError(c *gin.Context, logger *slog.Logger, handler string, err error) {
	switch {
	case errors.Is(err, ErrNoSnapshots):
		respondError(c, handler, http.StatusNotImplemented, "SNAPSHOTS_DISABLED", err.Error())
	case errors.Is(err, ErrNoProjectRoot):
		respondError(c, handler, http.StatusBadRequest, "NO_PROJECT_ROOT", err.Error())
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		respondError(c, handler, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
	default:
		logger.Error("snapshot operation failed", slog.String("error", err.Error()))
		respondError(c, handler, http.StatusInternalServerError, "SNAPSHOT_FAILED", err.Error())
	}
}

// =============================================================================
// Middleware
// =============================================================================

// RequestTimer logs each request at debug with its latency.
func RequestTimer(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
