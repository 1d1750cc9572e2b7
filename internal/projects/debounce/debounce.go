// Package debounce collapses bursts of calls so only the last one proceeds.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a waiter replaced by a newer call.
var ErrSuperseded = errors.New("superseded by a newer call")

// Debouncer lets a caller proceed only after delay has passed without
// another call to Wait.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending chan struct{}
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Delay() time.Duration { return d.delay }

// Wait blocks for the debounce delay. It returns ErrSuperseded when another
// Wait starts first and ctx.Err() when ctx ends first.
func (d *Debouncer) Wait(ctx context.Context) error {
	mine := make(chan struct{})

	d.mu.Lock()
	if d.pending != nil {
		close(d.pending)
	}
	d.pending = mine
	d.mu.Unlock()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		if !d.release(mine) {
			return ErrSuperseded
		}
		return nil
	case <-mine:
		return ErrSuperseded
	case <-ctx.Done():
		d.release(mine)
		return ctx.Err()
	}
}

// release clears mine if it is still the pending waiter.
func (d *Debouncer) release(mine chan struct{}) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != mine {
		return false
	}
	d.pending = nil
	return true
}
