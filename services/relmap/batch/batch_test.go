// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relmap/services/relmap/ast"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.py": "import os\n",
		"b.py": "class A:\n    def m(self):\n        pass\n",
		"c.py": "def f():\n    Widget()\n    g()\n",
	})
	paths := []string{
		filepath.Join(dir, "a.py"),
		filepath.Join(dir, "missing.py"),
		filepath.Join(dir, "b.py"),
		filepath.Join(dir, "c.py"),
	}

	runner := &Runner{Workers: 2}
	results := runner.Run(context.Background(), paths)
	require.Len(t, results, len(paths))

	for i, r := range results {
		assert.Equal(t, paths[i], r.Path, "results must keep input order")
	}

	assert.True(t, results[0].OK())
	assert.Equal(t, 1, results[0].Relationships.Count(ast.Import))

	assert.False(t, results[1].OK())
	assert.ErrorIs(t, results[1].Err, ast.ErrFileAccess)
	assert.ErrorIs(t, results[1].Err, fs.ErrNotExist)

	assert.Equal(t, 1, results[2].Relationships.Count(ast.Method))
	assert.Equal(t, "b.py", results[2].FileName)
	assert.NotEmpty(t, results[2].Hash)

	assert.Equal(t, 1, results[3].Relationships.Count(ast.Instantiation))
	assert.Equal(t, 1, results[3].Relationships.Count(ast.Call))

	s := Summarize(results)
	assert.Equal(t, Summary{Files: 4, Failed: 1, Relationships: 1 + 2 + 3}, s)
}

func TestRunner_DirectScope(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"m.py": "class A:\n    def m(self):\n        def helper():\n            pass\n",
	})

	nested := (&Runner{}).Run(context.Background(), []string{filepath.Join(dir, "m.py")})
	direct := (&Runner{Scope: ast.MethodScopeDirect}).Run(context.Background(), []string{filepath.Join(dir, "m.py")})

	assert.Equal(t, 2, nested[0].Relationships.Count(ast.Method))
	assert.Equal(t, 1, direct[0].Relationships.Count(ast.Method))
}

func TestRunner_SkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.py": "import os\n",
		"b.py": "import sys\n",
	})
	known := filepath.Join(dir, "a.py")

	var mu sync.Mutex
	hashes := map[string]string{}
	r := &Runner{
		Workers: 2,
		Unchanged: func(_ context.Context, path, hash string) bool {
			mu.Lock()
			defer mu.Unlock()
			hashes[path] = hash
			return path == known
		},
	}
	results := r.Run(context.Background(), []string{known, filepath.Join(dir, "b.py")})

	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.True(t, results[0].Skipped)
	assert.Empty(t, results[0].Relationships)
	assert.Equal(t, hashes[known], results[0].Hash)
	assert.NotEmpty(t, results[0].Hash)

	assert.False(t, results[1].Skipped)
	assert.Equal(t, 1, results[1].Relationships.Count(ast.Import))

	assert.Equal(t, Summary{Files: 2, Skipped: 1, Relationships: 1}, Summarize(results))
}

func TestRunner_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.py": "import os\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := (&Runner{Workers: 1}).Run(ctx, []string{filepath.Join(dir, "a.py"), filepath.Join(dir, "a.py")})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK())
		assert.True(t, errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, ast.ErrContextCanceled), "got %v", r.Err)
	}
}

func TestRunner_Empty(t *testing.T) {
	results := (&Runner{}).Run(context.Background(), nil)
	assert.Empty(t, results)
}

func TestFileResult_Record(t *testing.T) {
	r := FileResult{Path: "/x/a.py", FileName: "a.py", Hash: "h", Relationships: ast.RelationshipSet{}}
	rec := r.Record(time.Date(2026, 5, 1, 0, 0, 0, 0, time.FixedZone("x", 3600)))

	assert.Equal(t, "/x/a.py", rec.Path)
	assert.Equal(t, "h", rec.Hash)
	assert.Equal(t, time.UTC, rec.ExtractedAt.Location())
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "file_access", errorType(&ast.FileAccessError{Path: "x", Op: "read", Cause: fs.ErrNotExist}))
	assert.Equal(t, "file_too_large", errorType(ast.ErrFileTooLarge))
	assert.Equal(t, "canceled", errorType(context.Canceled))
	assert.Equal(t, "extract", errorType(errors.New("other")))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.py":                        "",
		"pkg/mod.py":                     "",
		"pkg/types.pyi":                  "",
		"pkg/readme.md":                  "",
		"pkg/__pycache__/mod.cpython.py": "",
		".git/hooks/hook.py":             "",
		".hidden/x.py":                   "",
		"env/pyvenv.cfg":                 "",
		"env/lib/site.py":                "",
		"venv/lib/x.py":                  "",
	})

	files, err := Discover(dir, DefaultDiscoverOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "main.py"),
		filepath.Join(dir, "pkg", "mod.py"),
		filepath.Join(dir, "pkg", "types.pyi"),
	}, files)
}

func TestDiscover_IncludeHidden(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{".hidden/x.py": ""})

	opts := DefaultDiscoverOptions()
	opts.IncludeHidden = true
	files, err := Discover(dir, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ".hidden", "x.py")}, files)
}

func TestDiscover_FileRoot(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.py": "", "a.txt": ""})

	files, err := Discover(filepath.Join(dir, "a.py"), DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.py")}, files)

	files, err = Discover(filepath.Join(dir, "a.txt"), DiscoverOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), DefaultDiscoverOptions())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

const samplePatch = `diff --git a/pkg/app.py b/pkg/app.py
index 1111111..2222222 100644
--- a/pkg/app.py
+++ b/pkg/app.py
@@ -1,2 +1,2 @@
 import os
-x = 1
+x = 2
diff --git a/old.py b/old.py
deleted file mode 100644
index 3333333..0000000
--- a/old.py
+++ /dev/null
@@ -1 +0,0 @@
-import sys
diff --git a/new.py b/new.py
new file mode 100644
index 0000000..4444444
--- /dev/null
+++ b/new.py
@@ -0,0 +1 @@
+import json
diff --git a/README.md b/README.md
index 5555555..6666666 100644
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-old
+new
`

func TestChangedFiles(t *testing.T) {
	files, err := ChangedFiles([]byte(samplePatch), "/repo")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/repo", "pkg", "app.py"),
		filepath.Join("/repo", "new.py"),
	}, files)
}

func TestChangedFiles_Empty(t *testing.T) {
	files, err := ChangedFiles(nil, "/repo")
	require.NoError(t, err)
	assert.Empty(t, files)
}

const noPrefixPatch = `diff --git b/models.py b/models.py
index 1111111..2222222 100644
--- b/models.py
+++ b/models.py
@@ -1 +1 @@
-x = 1
+x = 2
diff --git src/app.py src/app.py
index 3333333..4444444 100644
--- src/app.py
+++ src/app.py
@@ -1 +1 @@
-import os
+import sys
`

func TestChangedFiles_NoPrefixKeepsTopLevelDirs(t *testing.T) {
	files, err := ChangedFiles([]byte(noPrefixPatch), "/repo")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/repo", "b", "models.py"),
		filepath.Join("/repo", "src", "app.py"),
	}, files)
}

func TestChangedFiles_PlainUnifiedDiff(t *testing.T) {
	tests := []struct {
		name  string
		patch string
		want  string
	}{
		{
			name:  "a and b prefixes",
			patch: "--- a/x.py\n+++ b/x.py\n@@ -1 +1 @@\n-a\n+b\n",
			want:  filepath.Join("/repo", "x.py"),
		},
		{
			name:  "b directory on both sides",
			patch: "--- b/x.py\n+++ b/x.py\n@@ -1 +1 @@\n-a\n+b\n",
			want:  filepath.Join("/repo", "b", "x.py"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := ChangedFiles([]byte(tt.patch), "/repo")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, files)
		})
	}
}

func TestCollapse(t *testing.T) {
	modified, removed := collapse([]change{
		{path: "b.py"},
		{path: "a.py"},
		{path: "b.py"},
		{path: "c.py", removed: true},
		{path: "d.py", removed: true},
		{path: "d.py"},
	})
	assert.Equal(t, []string{"a.py", "b.py", "d.py"}, modified)
	assert.Equal(t, []string{"c.py"}, removed)
}

func TestWatcher_ExtractsChangedFile(t *testing.T) {
	dir := t.TempDir()
	events := make(chan WatchEvent, 4)

	opts := DefaultWatchOptions()
	opts.Debounce = 50 * time.Millisecond
	w, err := NewWatcher(dir, &Runner{Workers: 1}, func(_ context.Context, ev WatchEvent) {
		events <- ev
	}, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "live.py")
	require.NoError(t, os.WriteFile(path, []byte("import os\n"), 0o644))

	select {
	case ev := <-events:
		require.Len(t, ev.Results, 1)
		assert.Equal(t, path, ev.Results[0].Path)
		assert.Equal(t, 1, ev.Results[0].Relationships.Count(ast.Import))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}

func TestWatcher_StartAfterStop(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, nil, WatchOptions{})
	require.NoError(t, err)

	w.Stop()
	assert.ErrorIs(t, w.Start(context.Background()), ErrWatcherStopped)
}

// removals collects WatchEvent.Removed across handler calls.
type removals struct {
	mu    sync.Mutex
	paths []string
}

func (r *removals) handle(_ context.Context, ev WatchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, ev.Removed...)
}

func (r *removals) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.paths)
}

func TestWatcher_StopFlushesQueuedChanges(t *testing.T) {
	for i := 0; i < 25; i++ {
		dir := t.TempDir()
		got := &removals{}
		w, err := NewWatcher(dir, &Runner{Workers: 1}, got.handle, WatchOptions{Debounce: time.Hour})
		require.NoError(t, err)
		require.NoError(t, w.Start(context.Background()))

		gone := filepath.Join(dir, "gone.py")
		w.changes <- change{path: gone, removed: true}
		w.Stop()

		require.Equal(t, []string{gone}, got.get(), "iteration %d", i)
	}
}

func TestWatcher_CanceledContextFlushes(t *testing.T) {
	dir := t.TempDir()
	got := &removals{}
	w, err := NewWatcher(dir, &Runner{Workers: 1}, got.handle, WatchOptions{Debounce: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	gone := filepath.Join(dir, "gone.py")
	w.changes <- change{path: gone, removed: true}
	cancel()
	w.Stop()

	assert.Equal(t, []string{gone}, got.get())
}

func TestWatcher_ReportsRemovedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.py")
	require.NoError(t, os.WriteFile(path, []byte("import os\n"), 0o644))

	events := make(chan WatchEvent, 4)
	opts := DefaultWatchOptions()
	opts.Debounce = 50 * time.Millisecond
	w, err := NewWatcher(dir, &Runner{Workers: 1}, func(_ context.Context, ev WatchEvent) {
		events <- ev
	}, opts)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if slices.Contains(ev.Removed, path) {
				assert.Empty(t, ev.Results)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for removal")
		}
	}
}

func TestWatcher_FailedStartLeavesStopped(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), nil, nil, WatchOptions{})
	require.NoError(t, err)

	require.Error(t, w.Start(context.Background()))
	w.Stop()
	assert.ErrorIs(t, w.Start(context.Background()), ErrWatcherStopped)
}
