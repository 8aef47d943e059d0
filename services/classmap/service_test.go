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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/classmap/services/classmap/graph"
	"github.com/AleutianAI/classmap/services/classmap/model"
)

// buildTestModel returns pkg.a.A and pkg.b.{B(A), C(B)}.
func buildTestModel() model.ProjectModel {
	a := model.NewClassRecord("A", "pkg.a")
	a.Attributes["config"] = model.UnknownType
	a.Methods["run"] = &model.MethodRecord{Calls: []model.CallEdge{
		{Caller: "A.run", Callee: "A.stop", Raw: "self.stop"},
		{Caller: "A.run", Callee: "helper", Raw: "helper"},
	}}
	a.Methods["stop"] = &model.MethodRecord{Calls: []model.CallEdge{}}

	b := model.NewClassRecord("B", "pkg.b")
	b.Bases = []string{"A"}
	c := model.NewClassRecord("C", "pkg.b")
	c.Bases = []string{"B"}

	return model.ProjectModel{
		"pkg.a": {"A": a},
		"pkg.b": {"B": b, "C": c},
	}
}

// newTestService returns a service already serving buildTestModel.
func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, model.Save(path, buildTestModel()))

	cfg := DefaultServiceConfig()
	cfg.DataFile = path
	svc := NewService(cfg, opts...)
	svc.Bootstrap()
	require.Len(t, svc.Model(), 2)
	return svc
}

func nodeIDs(view *GraphView) []string {
	var ids []string
	for _, el := range view.Elements {
		if el.Data.ID != "" {
			ids = append(ids, el.Data.ID)
		}
	}
	return ids
}

func TestNewService_StartsEmpty(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	assert.NotNil(t, svc.Model())
	assert.Empty(t, svc.Model())
	assert.False(t, svc.SnapshotsEnabled())
}

func TestBootstrap_MissingAndMalformedStartEmpty(t *testing.T) {
	dir := t.TempDir()
	malformed := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(malformed, []byte("{not json"), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing.json"), malformed} {
		cfg := DefaultServiceConfig()
		cfg.DataFile = path
		svc := NewService(cfg)
		svc.Bootstrap()
		assert.Empty(t, svc.Model(), path)
	}
}

func TestLoadFile_ErrorKeepsPreviousModel(t *testing.T) {
	svc := newTestService(t)
	before := svc.Current()

	err := svc.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, model.ErrModelNotFound)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1, 2]"), 0o644))
	assert.ErrorIs(t, svc.LoadFile(bad), model.ErrMalformedModel)

	assert.Same(t, before, svc.Current())
}

func TestGraph_NoCenterReturnsFullGraph(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{})
	require.NoError(t, err)
	assert.Equal(t, graph.KindInherit, view.Kind)
	assert.Equal(t, InfoDefault, view.Info)
	assert.Equal(t, DefaultLayout, view.Layout.Name)
	assert.Equal(t, []string{"A", "B", "C"}, nodeIDs(view))
	assert.Equal(t, 2, view.EdgeCount)
	assert.Len(t, view.Elements, 5)
	assert.NotEmpty(t, view.GraphHash)
}

func TestGraph_ResetWinsOverCenter(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{Center: "A", Expand: true, Hops: 1, Reset: true})
	require.NoError(t, err)
	assert.Equal(t, InfoReset, view.Info)
	assert.Empty(t, view.Center)
	assert.Equal(t, 3, view.NodeCount)
}

func TestGraph_ExpandOffReportsSelection(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{Center: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Selected: A", view.Info)
	assert.Equal(t, 3, view.NodeCount)
}

func TestGraph_ExpandReturnsNeighborhoodAndClassInfo(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{Center: "A", Expand: true, Hops: 1})
	require.NoError(t, err)
	assert.Equal(t, "A", view.Center)
	assert.Equal(t, []string{"A", "B"}, nodeIDs(view))
	assert.Equal(t, 1, view.EdgeCount)
	assert.Contains(t, view.Info, "\n  \"module\": \"pkg.a\"")
	assert.Contains(t, view.Info, "\"config\": \"Unknown\"")
	assert.False(t, strings.HasSuffix(view.Info, "\n"))
}

func TestGraph_SearchWinsWhenItIsANode(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{Center: "A", Search: "C", Expand: true, Hops: 1})
	require.NoError(t, err)
	assert.Equal(t, "C", view.Center)
	assert.Equal(t, []string{"B", "C"}, nodeIDs(view))

	view, err = svc.Graph(GraphRequest{Center: "A", Search: "Nope", Expand: true, Hops: 1})
	require.NoError(t, err)
	assert.Equal(t, "A", view.Center)
}

func TestGraph_UnknownCenterYieldsEmptyView(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{Center: "Ghost", Expand: true})
	require.NoError(t, err)
	assert.Equal(t, "Node: Ghost", view.Info)
	assert.Equal(t, 0, view.NodeCount)
	assert.NotNil(t, view.Elements)
	assert.Empty(t, view.Elements)
}

func TestGraph_NonClassNodeInfo(t *testing.T) {
	svc := newTestService(t)

	view, err := svc.Graph(GraphRequest{Kind: "call", Center: "A.run", Expand: true})
	require.NoError(t, err)
	assert.Equal(t, "Node: A.run", view.Info)
	assert.ElementsMatch(t, []string{"A.run", "A.stop", "helper"}, nodeIDs(view))
}

func TestGraph_ClassInfoIsNotHTMLEscaped(t *testing.T) {
	d := model.NewClassRecord("D", "pkg.d")
	d.Bases = []string{"Base<T>"}
	svc := NewService(DefaultServiceConfig())
	svc.install(&State{Model: model.ProjectModel{"pkg.d": {"D": d}}})

	view, err := svc.Graph(GraphRequest{Center: "D", Expand: true})
	require.NoError(t, err)
	assert.Contains(t, view.Info, "Base<T>")
}

func TestGraph_Rejections(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Graph(GraphRequest{Kind: "bogus"})
	assert.ErrorIs(t, err, graph.ErrUnknownKind)

	_, err = svc.Graph(GraphRequest{Layout: "spiral"})
	assert.ErrorIs(t, err, ErrInvalidLayout)

	for _, layout := range Layouts {
		view, err := svc.Graph(GraphRequest{Layout: layout})
		require.NoError(t, err, layout)
		assert.Equal(t, layout, view.Layout.Name)
	}
}

func TestClampHops(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultHops},
		{-3, MinHops},
		{1, 1},
		{3, 3},
		{4, 4},
		{9, MaxHops},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampHops(tt.in), "hops %d", tt.in)
	}
}

func TestAnalyze_ReplacesModel(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "shapes.py"),
		[]byte("class Shape:\n    pass\n\nclass Square(Shape):\n    def area(self):\n        return self.side()\n"), 0o644))

	svc := newTestService(t)
	stats, err := svc.Analyze(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Classes)
	assert.Equal(t, []string{"shapes"}, svc.Model().Modules())
	assert.Equal(t, root, svc.Current().ProjectRoot)

	view, err := svc.Graph(GraphRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Shape", "Square"}, nodeIDs(view))
}

func TestAnalyze_InvalidRootKeepsModel(t *testing.T) {
	svc := newTestService(t)
	before := svc.Current()

	_, err := svc.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Same(t, before, svc.Current())
}

func TestSnapshots_DisabledWithoutManager(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.SaveSnapshot(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoSnapshots)
	_, err = svc.ListSnapshots(context.Background(), "/p", 10)
	assert.ErrorIs(t, err, ErrNoSnapshots)
	_, err = svc.DiffSnapshots(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrNoSnapshots)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx, 10*time.Millisecond) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	e := model.NewClassRecord("E", "pkg.e")
	require.NoError(t, model.Save(svc.Config().DataFile, model.ProjectModel{"pkg.e": {"E": e}}))

	require.Eventually(t, func() bool {
		_, ok := svc.Model()["pkg.e"]
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_NoDataFile(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	assert.ErrorIs(t, svc.Watch(context.Background(), 0), ErrNoDataFile)
}
