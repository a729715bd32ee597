package testutil

import (
	"sync"
	"time"

	"github.com/mue864/solitude-sub000/internal/engine"
)

// ManualClock is an engine.Clock whose time only moves when a test
// moves it. Tests and the scenario harness pair it with explicit
// engine.Tick calls, so countdown behavior is reproducible down to the
// second.
//
// Tickers handed out by ManualClock never fire. The clock advancing
// does not deliver beats; beat delivery is the caller's job via
// engine.Tick. This keeps wall-clock scheduling out of deterministic
// runs entirely.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at the given instant.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current frozen instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to the given instant. Moving backwards is
// allowed; tests use it to fabricate out-of-order timestamps.
func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// NewTicker returns an inert ticker. Implements engine.Clock.
func (c *ManualClock) NewTicker(time.Duration) engine.Ticker {
	return inertTicker{}
}

// inertTicker satisfies engine.Ticker with a channel that never
// delivers.
type inertTicker struct{}

func (inertTicker) C() <-chan time.Time {
	return nil
}

func (inertTicker) Stop() {}
