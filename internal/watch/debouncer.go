// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"slices"
	"sync"
	"time"
)

// Debouncer collects paths and hands them to onFlush once no new path has
// arrived for window, or as soon as maxBatch distinct paths are pending.
type Debouncer struct {
	window   time.Duration
	maxBatch int
	pending  map[string]struct{}
	mu       sync.Mutex
	timer    *time.Timer
	onFlush  func([]string)
	stopped  bool
	inflight sync.WaitGroup
}

func NewDebouncer(window time.Duration, maxBatch int, onFlush func([]string)) *Debouncer {
	return &Debouncer{
		window:   window,
		maxBatch: maxBatch,
		pending:  make(map[string]struct{}),
		onFlush:  onFlush,
	}
}

func (d *Debouncer) Add(path string) {
	d.mu.Lock()

	if d.stopped {
		d.mu.Unlock()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.pending[path] = struct{}{}

	if d.maxBatch > 0 && len(d.pending) >= d.maxBatch {
		d.flushLocked()
		return
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if !d.stopped {
			d.flushLocked()
		} else {
			d.mu.Unlock()
		}
	})

	d.mu.Unlock()
}

// flushLocked is called with mu held and releases it.
func (d *Debouncer) flushLocked() {
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	d.pending = make(map[string]struct{})

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if len(paths) == 0 || d.onFlush == nil {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.onFlush(paths)
}

// Stop drops pending paths and waits for a running flush to return. Add
// is a no-op afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.pending = make(map[string]struct{})
	}
	d.mu.Unlock()

	d.inflight.Wait()
}
