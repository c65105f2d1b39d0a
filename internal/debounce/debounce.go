// Package debounce coalesces bursts of calls into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the most recently scheduled function once no new function
// has been scheduled for the configured delay. Runs never overlap.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	gen     uint64

	runMu sync.Mutex
}

// New creates a Debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending call with fn and restarts the delay.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// fire runs the pending call if it still belongs to generation gen.
func (d *Debouncer) fire(gen uint64) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()

	fn()
}

// Flush runs the pending call now, on the calling goroutine, and waits for
// any run already in progress. It reports whether a pending call was run.
func (d *Debouncer) Flush() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if d.pending == nil {
		d.mu.Unlock()
		return false
	}
	fn := d.take()
	d.mu.Unlock()

	fn()
	return true
}

// Stop drops the pending call without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// take clears and returns the pending call. d.mu must be held.
func (d *Debouncer) take() func() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.gen++
	return fn
}
