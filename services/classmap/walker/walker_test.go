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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/classmap/services/classmap/config"
	"github.com/AleutianAI/classmap/services/classmap/model"
)

// writeTree creates files (relative path to content) under a temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func sampleProject(t *testing.T) string {
	return writeTree(t, map[string]string{
		"pkg/a.py": `
class A:
    def a(self):
        self.b()

    def b(self):
        pass
`,
		"pkg/sub/b.py": `
from pkg.a import A

class B(A):
    def run(self):
        Helper(self)
`,
		"pkg/helpers.py": `
class Helper:
    pass
`,
		"broken.py": "class Broken(:\n    def\n",
		"empty.py":  "VALUE = 1\n",
		"README.md": "# not python\n",
	})
}

func TestWalk_BuildsProjectModel(t *testing.T) {
	root := sampleProject(t)

	pm, stats, err := Walk(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, []string{"empty", "pkg.a", "pkg.helpers", "pkg.sub.b"}, pm.Modules())
	assert.Equal(t, 5, stats.FilesSeen)
	assert.Equal(t, 4, stats.FilesParsed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 3, stats.Classes)

	a := pm["pkg.a"]["A"]
	require.NotNil(t, a)
	assert.Equal(t, "pkg.a", a.Module)
	assert.Equal(t, []model.CallEdge{{Caller: "A.a", Callee: "A.b", Raw: "self.b"}}, a.Methods["a"].Calls)

	b := pm["pkg.sub.b"]["B"]
	require.NotNil(t, b)
	assert.Equal(t, []string{"A"}, b.Bases)
}

func TestWalk_SyntaxErrorFileDoesNotAffectSiblings(t *testing.T) {
	good := "class Good:\n    def m(self):\n        self.n()\n"
	withBroken := writeTree(t, map[string]string{
		"good.py":   good,
		"broken.py": "def broken(:\n",
	})
	alone := writeTree(t, map[string]string{"good.py": good})

	pmBroken, stats, err := Walk(context.Background(), withBroken)
	require.NoError(t, err)
	pmAlone, _, err := Walk(context.Background(), alone)
	require.NoError(t, err)

	_, present := pmBroken["broken"]
	assert.False(t, present, "unparseable file must contribute nothing")
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, pmAlone, pmBroken)
}

func TestWalk_ClasslessFileGetsEmptyEntry(t *testing.T) {
	root := writeTree(t, map[string]string{"util.py": "def f():\n    return 1\n"})

	pm, _, err := Walk(context.Background(), root)
	require.NoError(t, err)

	classes, ok := pm["util"]
	require.True(t, ok)
	assert.NotNil(t, classes)
	assert.Empty(t, classes)
}

func TestWalk_ParallelMatchesSequential(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files["mod_"+name+".py"] = "class C" + name + ":\n    def m(self):\n        self.x()\n        other()\n"
	}
	root := writeTree(t, files)

	seq, seqStats, err := Walk(context.Background(), root, WithWorkers(1))
	require.NoError(t, err)
	par, parStats, err := Walk(context.Background(), root, WithWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	assert.Equal(t, seqStats.FilesParsed, parStats.FilesParsed)
	assert.Equal(t, seqStats.Calls, parStats.Calls)
}

func TestWalk_InvalidRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))

	for _, root := range []string{filepath.Join(t.TempDir(), "missing"), file} {
		pm, stats, err := Walk(context.Background(), root)
		assert.ErrorIs(t, err, ErrInvalidRoot, "root %s", root)
		assert.Nil(t, pm)
		assert.Nil(t, stats)
	}
}

func TestWalk_ProjectConfigExcludesDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app/main.py":       "class Main:\n    pass\n",
		".venv/lib/site.py": "class Site:\n    pass\n",
		"build/gen.py":      "class Gen:\n    pass\n",
		config.FileName:     "exclude_dirs: [.venv, build]\nworkers: 2\n",
	})

	pm, _, err := Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.main"}, pm.Modules())
}

func TestWalk_InvalidConfigFallsBackToDefaults(t *testing.T) {
	root := writeTree(t, map[string]string{
		"m.py":          "class M:\n    pass\n",
		config.FileName: "workers: 0\n",
	})

	pm, _, err := Walk(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, pm.Modules())
}

func TestWalk_ExplicitConfigExtensions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":  "class A:\n    pass\n",
		"b.pyi": "class B:\n    pass\n",
	})
	cfg := config.Default()
	cfg.Extensions = []string{".py", ".pyi"}

	pm, _, err := Walk(context.Background(), root, WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, pm.Modules())
}

func TestWalk_OversizedFileSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.py": "class S:\n    pass\n",
		"big.py":   "class Big:\n    pass\n# padding padding padding padding\n",
	})
	cfg := config.Default()
	cfg.MaxFileSize = 30

	pm, stats, err := Walk(context.Background(), root, WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, []string{"small"}, pm.Modules())
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestWalk_CanceledContext(t *testing.T) {
	root := sampleProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Walk(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingExtractor struct {
	modules []string
}

func (c *countingExtractor) Extract(_ context.Context, _ []byte, module string) (model.ModuleClasses, error) {
	c.modules = append(c.modules, module)
	return model.ModuleClasses{"X": model.NewClassRecord("X", module)}, nil
}

func TestWalk_CustomExtractor(t *testing.T) {
	root := writeTree(t, map[string]string{"one.py": "", "two/three.py": ""})
	ex := &countingExtractor{}

	pm, _, err := Walk(context.Background(), root, WithExtractor(ex), WithWorkers(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two.three"}, ex.modules)
	assert.Equal(t, "two.three", pm["two.three"]["X"].Module)
}

func TestModulePath(t *testing.T) {
	root := filepath.FromSlash("/proj")
	tests := []struct {
		path     string
		expected string
	}{
		{"/proj/mod.py", "mod"},
		{"/proj/pkg/sub/mod.py", "pkg.sub.mod"},
		{"/proj/pkg/__init__.py", "pkg.__init__"},
		{"/proj/my.pyramid/x.py", "my.pyramid.x"},
	}

	for _, tt := range tests {
		got, err := ModulePath(root, filepath.FromSlash(tt.path), ".py")
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got, tt.path)
	}
}

func TestWalk_SymlinkedRoot(t *testing.T) {
	target := writeTree(t, map[string]string{"a.py": "class A:\n    pass\n"})
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	viaLink, stats, err := Walk(context.Background(), link)
	require.NoError(t, err)
	direct, _, err := Walk(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesSeen)
	assert.Equal(t, []string{"a"}, viaLink.Modules())
	assert.Equal(t, direct, viaLink)
}

func TestWalk_RejectsInvalidExplicitConfig(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "class A:\n    pass\n"})

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"zero workers", &config.Config{Extensions: []string{".py"}, MaxFileSize: 1 << 20, MaxDepth: 100}},
		{"zero file size", &config.Config{Extensions: []string{".py"}, Workers: 1, MaxDepth: 100}},
		{"no extensions", &config.Config{Workers: 1, MaxFileSize: 1 << 20, MaxDepth: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, stats, err := Walk(context.Background(), root, WithConfig(tt.cfg))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Nil(t, pm)
			assert.Nil(t, stats)
		})
	}
}
