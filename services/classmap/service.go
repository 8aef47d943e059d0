// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classmap serves the class structure of a Python project over HTTP.
//
// The service holds one analyzed ProjectModel at a time. Requests build
// graphs from it on demand; analyze, load and reload replace it whole.
package classmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/classmap/services/classmap/graph"
	"github.com/AleutianAI/classmap/services/classmap/model"
	"github.com/AleutianAI/classmap/services/classmap/snapshot"
	"github.com/AleutianAI/classmap/services/classmap/walker"
)

// =============================================================================
// Configuration
// =============================================================================

// Graph view defaults.
const (
	DefaultHops   = 2
	MinHops       = 1
	MaxHops       = 4
	DefaultLayout = "cose"
)

// Info messages returned with graph views.
const (
	InfoDefault = "Click a node to see class info"
	InfoReset   = "Graph reset to full view"
)

// Layouts are the Cytoscape layout names a view may request.
var Layouts = []string{"cose", "breadthfirst", "circle", "grid", "random"}

var (
	// ErrNoSnapshots indicates snapshot storage was not configured.
	ErrNoSnapshots = errors.New("snapshot storage not configured")

	// ErrNoProjectRoot indicates the current model was not analyzed from a
	// directory, so it cannot be snapshotted.
	ErrNoProjectRoot = errors.New("current model has no project root")

	// ErrInvalidLayout indicates an unknown layout name.
	ErrInvalidLayout = errors.New("invalid layout")
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// DataFile is the analysis JSON loaded at startup. Optional.
	DataFile string

	// AnalyzeRatePerMinute limits POST /analyze. Zero disables the limit.
	AnalyzeRatePerMinute int

	// AnalyzeBurst is the number of analyze requests allowed at once.
	AnalyzeBurst int

	// Workers overrides the per-project parse pool size. Zero uses the
	// project configuration.
	Workers int
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		AnalyzeRatePerMinute: 6,
		AnalyzeBurst:         2,
	}
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithSnapshots enables snapshot endpoints backed by mgr.
func WithSnapshots(mgr *snapshot.Manager) ServiceOption {
	return func(s *Service) {
		s.snapshots = mgr
	}
}

// WithServiceLogger sets the service logger. Defaults to slog.Default().
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// =============================================================================
// Service
// =============================================================================

// State is one immutable generation of the served model.
type State struct {
	// Model is the analyzed project. Never nil; may be empty.
	Model model.ProjectModel

	// Source is the data file or project root the model came from.
	Source string

	// ProjectRoot is set when the model was produced by Analyze.
	ProjectRoot string

	// LoadedAt is when this generation was installed.
	LoadedAt time.Time

	// Stats is set when the model was produced by Analyze.
	Stats *walker.Stats
}

// Service owns the current model and the operations over it.
//
// Thread Safety:
//
//	Safe for concurrent use. The current State is swapped atomically and
//	never mutated, so readers build graphs without locking.
type Service struct {
	cfg       ServiceConfig
	state     atomic.Pointer[State]
	snapshots *snapshot.Manager
	logger    *slog.Logger
}

// NewService creates a Service with an empty model.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.install(&State{Model: model.ProjectModel{}})
	return s
}

// Config returns the service configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// Current returns the current state.
func (s *Service) Current() *State {
	return s.state.Load()
}

// Model returns the current model.
func (s *Service) Model() model.ProjectModel {
	return s.state.Load().Model
}

// SnapshotsEnabled reports whether snapshot storage is configured.
func (s *Service) SnapshotsEnabled() bool {
	return s.snapshots != nil
}

func (s *Service) install(st *State) {
	if st.Model == nil {
		st.Model = model.ProjectModel{}
	}
	if st.LoadedAt.IsZero() {
		st.LoadedAt = time.Now()
	}
	s.state.Store(st)
	_, classes, _, calls := st.Model.Counts()
	modelClasses.Set(float64(classes))
	modelCalls.Set(float64(calls))
}

// Bootstrap loads the configured data file.
//
// Description:
//
//	A missing or malformed file is logged and leaves the service serving
//	an empty model. It never fails startup.
func (s *Service) Bootstrap() {
	if s.cfg.DataFile == "" {
		return
	}
	if err := s.LoadFile(s.cfg.DataFile); err != nil {
		switch {
		case errors.Is(err, model.ErrModelNotFound):
			s.logger.Warn("data file not found, starting empty", slog.String("path", s.cfg.DataFile))
		default:
			s.logger.Warn("data file unreadable, starting empty",
				slog.String("path", s.cfg.DataFile),
				slog.String("error", err.Error()))
		}
	}
}

// LoadFile replaces the model with the analysis JSON at path. On error the
// previous model stays in place.
//
// Outputs:
//
//	error - Wraps model.ErrModelNotFound or model.ErrMalformedModel.
func (s *Service) LoadFile(path string) error {
	pm, err := model.Load(path)
	if err != nil {
		return err
	}
	s.install(&State{Model: pm, Source: path})
	s.logger.Info("model loaded", slog.String("path", path), slog.Int("modules", len(pm)))
	return nil
}

// Analyze walks root and replaces the model with the result. On error the
// previous model stays in place.
//
// Outputs:
//
//	*walker.Stats - Counters of the walk.
//	error - Wraps walker.ErrInvalidRoot, or a context error.
func (s *Service) Analyze(ctx context.Context, root string) (*walker.Stats, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", walker.ErrInvalidRoot, err)
	}

	opts := []walker.Option{walker.WithLogger(s.logger)}
	if s.cfg.Workers > 0 {
		opts = append(opts, walker.WithWorkers(s.cfg.Workers))
	}
	pm, stats, err := walker.Walk(ctx, abs, opts...)
	if err != nil {
		return nil, err
	}
	s.install(&State{Model: pm, Source: abs, ProjectRoot: abs, Stats: stats})
	return stats, nil
}

// =============================================================================
// Graph views
// =============================================================================

// GraphRequest selects a graph view.
type GraphRequest struct {
	// Kind selects the builder. Empty means inheritance.
	Kind string

	// Center is the node the view focuses on (the tapped node).
	Center string

	// Search replaces Center when it names a node of the graph.
	Search string

	// Hops is the neighborhood radius, clamped to MinHops..MaxHops.
	// Zero means DefaultHops.
	Hops int

	// Expand narrows the view to the center's neighborhood.
	Expand bool

	// Reset returns the full graph regardless of the other fields.
	Reset bool

	// Layout is echoed back for the front end. Empty means DefaultLayout.
	Layout string
}

// GraphView is the result of a graph request.
type GraphView struct {
	Kind      graph.Kind      `json:"kind"`
	Center    string          `json:"center,omitempty"`
	Elements  []graph.Element `json:"elements"`
	Info      string          `json:"info"`
	Layout    LayoutConfig    `json:"layout"`
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	GraphHash string          `json:"graph_hash"`
}

// LayoutConfig is the Cytoscape layout object.
type LayoutConfig struct {
	Name string `json:"name"`
}

// ClampHops maps a requested radius into MinHops..MaxHops, with zero
// meaning DefaultHops.
func ClampHops(hops int) int {
	switch {
	case hops == 0:
		return DefaultHops
	case hops < MinHops:
		return MinHops
	case hops > MaxHops:
		return MaxHops
	}
	return hops
}

// Graph builds the requested view from the current model.
//
// Description:
//
//	Every graph kind is directed. The center is Search if it names a node,
//	otherwise Center. With no center, or with Reset, the full graph is
//	returned. With Expand off the full graph is returned and the center is
//	only reported. Otherwise the view is the center's neighborhood, and
//	Info carries the class record as indented JSON when a class of that
//	name exists (first module in sorted order), or "Node: <center>".
//
// Outputs:
//
//	*GraphView - The view. Never nil on success.
//	error - Wraps graph.ErrUnknownKind or ErrInvalidLayout.
func (s *Service) Graph(req GraphRequest) (*GraphView, error) {
	kindName := req.Kind
	if kindName == "" {
		kindName = string(graph.KindInherit)
	}
	kind, err := graph.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	layout := req.Layout
	if layout == "" {
		layout = DefaultLayout
	}
	if !validLayout(layout) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLayout, layout)
	}

	pm := s.Model()
	g, err := graph.Build(kind, pm)
	if err != nil {
		return nil, err
	}

	view := func(shown *graph.Graph, center, info string) *GraphView {
		return &GraphView{
			Kind:      kind,
			Center:    center,
			Elements:  graph.ToCytoscape(shown, true),
			Info:      info,
			Layout:    LayoutConfig{Name: layout},
			NodeCount: shown.NodeCount(),
			EdgeCount: shown.EdgeCount(),
			GraphHash: shown.Hash(),
		}
	}

	if req.Reset {
		return view(g, "", InfoReset), nil
	}

	var center string
	switch {
	case req.Search != "" && g.HasNode(req.Search):
		center = req.Search
	case req.Center != "":
		center = req.Center
	default:
		return view(g, "", InfoDefault), nil
	}

	if !req.Expand {
		return view(g, center, "Selected: "+center), nil
	}

	sub := graph.ExtractNeighbors(g, center, ClampHops(req.Hops))
	info := "Node: " + center
	if rec, _, ok := pm.FindClass(center); ok {
		if text, err := classInfo(rec); err == nil {
			info = text
		}
	}
	return view(sub, center, info), nil
}

// classInfo renders a record as 2-space indented JSON without HTML escaping.
func classInfo(rec *model.ClassRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func validLayout(name string) bool {
	for _, l := range Layouts {
		if l == name {
			return true
		}
	}
	return false
}

// =============================================================================
// Snapshots
// =============================================================================

// SaveSnapshot stores the current model.
//
// Outputs:
//
//	*snapshot.Metadata - Metadata of the stored snapshot.
//	error - ErrNoSnapshots, ErrNoProjectRoot, or a storage error.
func (s *Service) SaveSnapshot(ctx context.Context, label string) (*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshots
	}
	st := s.Current()
	if st.ProjectRoot == "" {
		return nil, ErrNoProjectRoot
	}
	return s.snapshots.Save(ctx, st.ProjectRoot, st.Model, label)
}

// ListSnapshots lists stored snapshots, newest first.
func (s *Service) ListSnapshots(ctx context.Context, projectRoot string, limit int) ([]*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshots
	}
	return s.snapshots.List(ctx, projectRoot, limit)
}

// DiffSnapshots compares two stored snapshots.
func (s *Service) DiffSnapshots(ctx context.Context, baseID, targetID string) (*snapshot.Diff, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshots
	}
	return s.snapshots.Diff(ctx, baseID, targetID)
}

// RestoreLatest replaces the model with the newest snapshot of projectRoot.
// An empty projectRoot means the analyzed root of the current model. On
// error the previous model stays in place.
//
// Outputs:
//
//	*snapshot.Metadata - The restored snapshot.
//	error - ErrNoSnapshots, ErrNoProjectRoot, snapshot.ErrSnapshotNotFound,
//	        or a storage error.
func (s *Service) RestoreLatest(ctx context.Context, projectRoot string) (*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshots
	}
	if projectRoot == "" {
		projectRoot = s.Current().ProjectRoot
	}
	if projectRoot == "" {
		return nil, ErrNoProjectRoot
	}

	pm, meta, err := s.snapshots.LoadLatest(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	s.install(&State{Model: pm, Source: "snapshot:" + meta.SnapshotID, ProjectRoot: meta.ProjectRoot})
	s.logger.Info("snapshot restored",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.String("project_root", meta.ProjectRoot))
	return meta, nil
}
