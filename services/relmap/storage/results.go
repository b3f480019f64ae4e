// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists extraction results so scans can be queried
// later without re-parsing.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/relmap/services/relmap/ast"
	rmbadger "github.com/AleutianAI/relmap/services/relmap/storage/badger"
)

// keyPrefix namespaces result records in the database.
const keyPrefix = "relmap:file:"

var (
	// ErrNotFound is returned when no record exists for a path.
	ErrNotFound = errors.New("result not found")

	// ErrInvalidRecord is returned when a record is missing its path.
	ErrInvalidRecord = errors.New("invalid result record")
)

// Record is the stored result of extracting one file.
type Record struct {
	Path          string              `json:"path"`
	FileName      string              `json:"file_name"`
	Hash          string              `json:"hash"`
	ExtractedAt   time.Time           `json:"extracted_at"`
	Relationships ast.RelationshipSet `json:"relationships"`
}

// NewRecord builds a Record for unit and its relationship set.
func NewRecord(unit *ast.SourceUnit, set ast.RelationshipSet, at time.Time) Record {
	path := unit.Path
	if path == "" {
		path = unit.FileName
	}
	return Record{
		Path:          path,
		FileName:      unit.FileName,
		Hash:          unit.Hash,
		ExtractedAt:   at.UTC(),
		Relationships: set,
	}
}

// ResultStore keeps one Record per file path.
//
// Thread Safety: Safe for concurrent use.
type ResultStore struct {
	db *rmbadger.DB
}

// NewResultStore returns a store over db. The caller keeps ownership of db.
func NewResultStore(db *rmbadger.DB) *ResultStore {
	return &ResultStore{db: db}
}

func recordKey(path string) []byte {
	return []byte(keyPrefix + path)
}

// Put stores rec, replacing any previous record for the same path.
func (s *ResultStore) Put(ctx context.Context, rec Record) error {
	if rec.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRecord)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Path, err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Path), data)
	})
}

// Get returns the record for path, or ErrNotFound.
func (s *ResultStore) Get(ctx context.Context, path string) (*Record, error) {
	var rec Record
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every stored record ordered by path.
func (s *ResultStore) List(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Delete removes the record for path. Deleting a missing record is not an error.
func (s *ResultStore) Delete(ctx context.Context, path string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(recordKey(path))
	})
}

// Unchanged reports whether the stored record for path has the given hash.
func (s *ResultStore) Unchanged(ctx context.Context, path, hash string) bool {
	rec, err := s.Get(ctx, path)
	return err == nil && rec.Hash == hash
}
