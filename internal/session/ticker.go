package session

import (
	"context"
	"sync"
	"time"
)

// Ticker is a cancelable repeating task. The zero value is stopped.
type Ticker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64 // bumped on every Start; identifies the current loop
	wg     sync.WaitGroup
}

// Start runs fn every interval until Stop or until parent is done. It
// returns false, leaving the running loop in place, when already active.
// fn is not called immediately.
func (t *Ticker) Start(parent context.Context, interval time.Duration, fn func()) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.gen++
	gen := t.gen
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.release(gen)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				// a Stop racing the tick wins
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
	return true
}

// release marks the ticker stopped when the loop of generation gen ends on
// its own, e.g. because the parent context is done.
func (t *Ticker) release(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen == gen && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Stop prevents further ticks. A tick already running is left to finish.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Ticker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Wait blocks until every loop started so far has returned. Call it after
// Stop and without holding locks the tick function takes.
func (t *Ticker) Wait() { t.wg.Wait() }
