// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	rmbadger "github.com/AleutianAI/relmap/services/relmap/storage/badger"
)

func newTestStore(t *testing.T) *ResultStore {
	t.Helper()
	db, err := rmbadger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewResultStore(db)
}

func extractRecord(t *testing.T, name, src string) Record {
	t.Helper()
	ex := ast.NewExtractor()
	defer ex.Close()

	unit, err := ex.CreateASTFromSource(context.Background(), name, []byte(src))
	require.NoError(t, err)
	set, err := ex.GetRelationships(context.Background())
	require.NoError(t, err)
	return NewRecord(unit, set, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestResultStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := extractRecord(t, "app.py", "import os\n\ndef f():\n    Widget()\n")
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "app.py")
	require.NoError(t, err)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.True(t, rec.ExtractedAt.Equal(got.ExtractedAt))
	assert.Equal(t, rec.Relationships, got.Relationships)
	assert.Equal(t, 1, got.Relationships.Count(ast.Instantiation))
}

func TestResultStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope.py")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResultStore_PutRequiresPath(t *testing.T) {
	store := newTestStore(t)

	err := store.Put(context.Background(), Record{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestResultStore_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"b.py", "a.py", "c.py"} {
		require.NoError(t, store.Put(ctx, extractRecord(t, name, "import os\n")))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, []string{list[0].Path, list[1].Path, list[2].Path})

	require.NoError(t, store.Delete(ctx, "b.py"))
	require.NoError(t, store.Delete(ctx, "missing.py"))

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestResultStore_Unchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := extractRecord(t, "app.py", "import os\n")
	require.NoError(t, store.Put(ctx, rec))

	assert.True(t, store.Unchanged(ctx, "app.py", rec.Hash))
	assert.False(t, store.Unchanged(ctx, "app.py", "other"))
	assert.False(t, store.Unchanged(ctx, "missing.py", rec.Hash))
}

func TestNewRecord_UsesPathWhenKnown(t *testing.T) {
	unit := &ast.SourceUnit{FileName: "x.py", Path: "/src/pkg/x.py", Hash: "abc"}
	rec := NewRecord(unit, ast.RelationshipSet{}, time.Now())

	assert.Equal(t, "/src/pkg/x.py", rec.Path)
	assert.Equal(t, "x.py", rec.FileName)
	assert.Equal(t, time.UTC, rec.ExtractedAt.Location())
}
