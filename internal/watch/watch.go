// SPDX-License-Identifier: Apache-2.0

// Package watch re-runs documents when they change on disk.
package watch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	DefaultWindow   = 300 * time.Millisecond
	DefaultMaxBatch = 100
)

// Runner processes a batch of changed documents.
type Runner func(ctx context.Context, paths []string) error

// Watcher watches a fixed set of documents. A document is handed to the
// runner only when its content differs from what the watcher last saw, so
// rewrites made by the runner itself do not trigger another run.
type Watcher struct {
	paths    []string
	docs     map[string]bool
	run      Runner
	window   time.Duration
	maxBatch int
	logger   *zap.Logger

	mu     sync.Mutex
	hashes map[string][sha256.Size]byte
}

type Option func(*Watcher)

func WithWindow(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.window = d
		}
	}
}

func WithMaxBatch(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.maxBatch = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New returns a Watcher over paths.
func New(paths []string, run Runner, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		docs:     make(map[string]bool, len(paths)),
		run:      run,
		window:   DefaultWindow,
		maxBatch: DefaultMaxBatch,
		logger:   zap.NewNop(),
		hashes:   make(map[string][sha256.Size]byte),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		if !w.docs[abs] {
			w.docs[abs] = true
			w.paths = append(w.paths, abs)
		}
	}
	return w, nil
}

// Run processes every document once, then watches their directories until
// ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", zap.String("dir", dir))
	}

	w.flush(ctx, w.paths)

	debouncer := NewDebouncer(w.window, w.maxBatch, func(paths []string) {
		w.flush(ctx, paths)
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.docs[name] {
				continue
			}
			w.logger.Debug("document event", zap.String("path", name), zap.String("op", event.Op.String()))
			debouncer.Add(name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// flush runs the documents among paths whose content changed.
func (w *Watcher) flush(ctx context.Context, paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	var changed []string
	for _, p := range paths {
		sum, err := hashFile(p)
		if err != nil {
			w.logger.Debug("document unreadable", zap.String("path", p), zap.Error(err))
			continue
		}
		if prev, ok := w.hashes[p]; ok && prev == sum {
			continue
		}
		changed = append(changed, p)
	}
	if len(changed) == 0 {
		return
	}

	w.logger.Info("running changed documents", zap.Strings("paths", changed))
	if err := w.run(ctx, changed); err != nil {
		w.logger.Error("run failed", zap.Error(err))
	}

	for _, p := range changed {
		if sum, err := hashFile(p); err == nil {
			w.hashes[p] = sum
		}
	}
}

func hashFile(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
