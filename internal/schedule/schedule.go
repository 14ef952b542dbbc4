// Package schedule runs cancellable recurring tasks.
package schedule

import (
	"sync"
	"time"
)

// Task is invoked once per period. Returning false stops the task from inside.
type Task func() bool

// Handle controls a scheduled task.
type Handle interface {
	// Cancel stops the task. No invocation starts after Cancel returns; an invocation
	// already running is not interrupted, so tasks guard their own state.
	// Cancel is idempotent and safe to call from inside the task.
	Cancel()
}

// Scheduler starts recurring tasks.
type Scheduler interface {
	Every(period time.Duration, fn Task) Handle
}

// Ticker is the production scheduler backed by time.Ticker.
type Ticker struct{}

// Every runs fn every period on its own goroutine.
func (Ticker) Every(period time.Duration, fn Task) Handle {
	h := &tickerHandle{stop: make(chan struct{})}
	go h.loop(period, fn)
	return h
}

type tickerHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *tickerHandle) loop(period time.Duration, fn Task) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-t.C:
		}
		// stop wins over a tick that fired in the same instant
		select {
		case <-h.stop:
			return
		default:
		}
		if !fn() {
			return
		}
	}
}

func (h *tickerHandle) Cancel() { h.once.Do(func() { close(h.stop) }) }
