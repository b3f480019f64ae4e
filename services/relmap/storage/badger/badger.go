// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens the BadgerDB instance that backs the result store.
//
// It wraps database configuration, value log garbage collection and
// transaction helpers. Record encoding lives in the parent storage package.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds database options.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in memory. Nothing is written to disk.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's own log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the discardable fraction that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns options for a persistent result store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns options for a throwaway store, as used in tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter routes BadgerDB logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (l *slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (l *slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

// open builds badger options from cfg and opens the raw database.
func open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// GCRunner runs value log garbage collection on a fixed interval.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

// NewGCRunner validates its arguments and returns a stopped runner.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, errors.New("ratio must be between 0 and 1")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start launches the GC goroutine.
func (r *GCRunner) Start() {
	go r.run()
}

// Stop signals the goroutine and waits for it to exit.
func (r *GCRunner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *GCRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *GCRunner) collect() {
	err := r.db.RunValueLogGC(r.ratio)
	switch {
	case err == nil:
		r.logger.Debug("badger value log GC rewrote a file")
	case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
		// Nothing to reclaim, or the database is closing.
	default:
		r.logger.Warn("badger value log GC failed", slog.String("error", err.Error()))
	}
}

// DB is an open database plus its optional GC runner.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	*badger.DB
	gcRunner *GCRunner
	path     string
	inMemory bool
}

// OpenDB opens the database and starts value log GC for persistent stores.
//
// Example:
//
//	db, err := badger.OpenDB(badger.DefaultConfig("~/.relmap/results"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func OpenDB(cfg Config) (*DB, error) {
	raw, err := open(cfg)
	if err != nil {
		return nil, err
	}

	db := &DB{DB: raw, path: cfg.Path, inMemory: cfg.InMemory}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(raw, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		db.gcRunner = runner
		runner.Start()
	}

	return db, nil
}

// OpenInMemory opens an in-memory database.
func OpenInMemory() (*DB, error) {
	return OpenDB(InMemoryConfig())
}

// Path returns the database directory, or "" for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the database is memory only.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.gcRunner != nil {
		d.gcRunner.Stop()
	}
	return d.DB.Close()
}

// WithTxn runs fn in a read-write transaction and commits when fn succeeds.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
