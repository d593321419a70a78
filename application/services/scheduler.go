package services

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single deferred execution.
// Each Trigger resets the timer; the function runs once, with the state
// current at fire time, after the interval elapses with no further triggers.
type Debouncer interface {
	// Trigger schedules fn to run after the debounce interval, replacing any
	// previously scheduled run.
	Trigger(fn func())

	// Flush runs any pending function immediately.
	Flush()

	// Stop cancels any pending run.
	Stop()
}

// DebouncerFactory builds debouncers. Tests substitute a synchronous
// implementation so debounced work can be asserted deterministically.
type DebouncerFactory func(interval time.Duration) Debouncer

// timerDebouncer is the production single-slot implementation over time.Timer.
type timerDebouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	pending  func()
}

// NewDebouncer creates a timer-backed debouncer.
func NewDebouncer(interval time.Duration) Debouncer {
	return &timerDebouncer{interval: interval}
}

func (d *timerDebouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *timerDebouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (d *timerDebouncer) Flush() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (d *timerDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
