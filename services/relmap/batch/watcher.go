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
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherStopped is returned by Start after Stop.
var ErrWatcherStopped = errors.New("watcher stopped")

// WatchEvent is delivered once per debounce window.
type WatchEvent struct {
	// Results holds one result per created or modified file.
	Results []FileResult

	// Removed lists files deleted or renamed away during the window.
	Removed []string
}

// WatchHandler receives debounced extraction results. It is called from a
// single goroutine.
type WatchHandler func(ctx context.Context, ev WatchEvent)

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Debounce is how long the tree must be quiet before extraction runs.
	// Default: 200ms
	Debounce time.Duration

	// Discover selects which files and directories are watched.
	Discover DiscoverOptions

	// BufferSize is the capacity of the pending change channel.
	// Default: 1024
	BufferSize int
}

// DefaultWatchOptions returns sensible defaults.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce:   200 * time.Millisecond,
		Discover:   DefaultDiscoverOptions(),
		BufferSize: 1024,
	}
}

type change struct {
	path    string
	removed bool
}

// Watcher re-extracts source files as they change on disk.
//
// # Description
//
// Watches root and every subdirectory Discover would enter. Changes are
// collected until the debounce window passes without new events, then the
// latest state of each changed file is extracted with the Runner and
// handed to the handler.
//
// # Thread Safety
//
// Start and Stop are safe for concurrent use.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	runner   *Runner
	handler  WatchHandler
	opts     WatchOptions
	logger   *slog.Logger
	changes  chan change
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once

	mu       sync.Mutex
	watching bool
	stopped  bool
}

// NewWatcher creates a watcher for root. Call Start to begin watching.
func NewWatcher(root string, runner *Runner, handler WatchHandler, opts WatchOptions) (*Watcher, error) {
	defaults := DefaultWatchOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if len(opts.Discover.Extensions) == 0 {
		opts.Discover.Extensions = defaults.Discover.Extensions
	}
	if opts.Discover.SkipDirs == nil {
		opts.Discover.SkipDirs = defaults.Discover.SkipDirs
	}
	if runner == nil {
		runner = &Runner{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		fsw:      fsw,
		runner:   runner,
		handler:  handler,
		opts:     opts,
		logger:   runner.logger().With(slog.String("watch_root", root)),
		changes:  make(chan change, opts.BufferSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}, nil
}

// Start adds the watches and spawns the event and debounce goroutines.
// Both exit when ctx is canceled or Stop is called; pending changes are
// flushed to the handler either way. A Start that fails to add the watches
// leaves the watcher stopped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWatcherStopped
	}
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		w.mu.Lock()
		w.watching = false
		w.stopped = true
		w.mu.Unlock()
		w.finish()
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching. It returns once pending changes have been flushed
// to the handler.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		started := w.watching
		w.stopped = true
		w.watching = false
		w.mu.Unlock()

		close(w.done)
		_ = w.fsw.Close()
		if started {
			<-w.finished
		}
	})
}

func (w *Watcher) finish() {
	w.doneOnce.Do(func() { close(w.finished) })
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(path, d.Name(), w.opts.Discover) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDir(event.Name, filepath.Base(event.Name), w.opts.Discover) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("watch new directory failed",
						slog.String("path", event.Name),
						slog.String("error", err.Error()),
					)
				}
			}
			return
		}
	}
	if !hasExtension(event.Name, w.opts.Discover.Extensions) {
		return
	}

	c := change{
		path:    event.Name,
		removed: event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename),
	}
	select {
	case w.changes <- c:
	default:
		w.logger.Warn("watch buffer full, dropping change", slog.String("path", c.path))
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.finish()

	var pending []change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(ctx context.Context) {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		modified, removed := collapse(pending)
		pending = pending[:0]
		w.dispatch(ctx, modified, removed)
	}

	// final collects changes queued before shutdown and hands them to the
	// handler with a context that outlives ctx.
	final := func() {
		for {
			select {
			case c := <-w.changes:
				pending = append(pending, c)
			default:
				flush(context.WithoutCancel(ctx))
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-w.done:
			final()
			return
		case c := <-w.changes:
			pending = append(pending, c)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush(ctx)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, modified, removed []string) {
	ev := WatchEvent{Removed: removed}
	if len(modified) > 0 {
		ev.Results = w.runner.Run(ctx, modified)
	}
	if w.handler != nil {
		w.handler(ctx, ev)
	}
}

// collapse keeps the last change per path. A file whose last event was a
// write is extracted even if it was removed earlier in the window.
func collapse(changes []change) (modified, removed []string) {
	last := make(map[string]bool, len(changes))
	var order []string
	for _, c := range changes {
		if _, ok := last[c.path]; !ok {
			order = append(order, c.path)
		}
		last[c.path] = c.removed
	}
	for _, path := range order {
		if last[path] {
			removed = append(removed, path)
			continue
		}
		modified = append(modified, path)
	}
	slices.Sort(modified)
	slices.Sort(removed)
	return modified, removed
}
