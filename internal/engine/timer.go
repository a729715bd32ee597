package engine

import (
	"log/slog"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

// Countdown arming. armLocked and disarmLocked are the only places
// that touch timerGen and tickerStop, and both run under e.mu.
//
// The generation counter makes cancellation exact: a tick that was
// already in flight when the countdown was disarmed carries a stale
// generation and is dropped at the lock boundary. Pausing, stopping,
// or restarting therefore can never leak a decrement from a previous
// arming, no matter how the goroutines interleave.

// armLocked starts the once-per-second pump for the active session.
// Any previous arming is torn down first, so at most one pump is ever
// live.
func (e *Engine) armLocked() {
	e.disarmLocked()

	e.timerGen++
	gen := e.timerGen

	stop := make(chan struct{})
	e.tickerStop = stop

	ticker := e.clock.NewTicker(time.Second)
	go e.pump(gen, ticker, stop)
}

// disarmLocked cancels the pump and invalidates in-flight ticks. Safe
// to call when nothing is armed.
func (e *Engine) disarmLocked() {
	if e.tickerStop != nil {
		close(e.tickerStop)
		e.tickerStop = nil
	}
	// Invalidate even without a live pump so a lagging tick from an
	// earlier generation can never apply.
	e.timerGen++
}

// pump forwards ticker beats into the engine until stopped or until a
// beat is rejected as stale. It holds no engine state of its own.
func (e *Engine) pump(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !e.tickFromPump(gen) {
				return
			}
		}
	}
}

// tickFromPump applies one beat if the generation is still current.
// It reports whether the pump should keep running; a beat that
// completes the session retires its own generation, so the pump stops
// without waiting for the stop channel.
func (e *Engine) tickFromPump(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen {
		return false
	}
	e.applyTickLocked()
	return gen == e.timerGen
}

// Tick applies one countdown second directly. Deterministic drivers
// (the scenario harness, tests) use it instead of a real ticker; it is
// a no-op unless a session is running.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.status != session.StatusRunning {
		return
	}
	e.applyTickLocked()
}

// applyTickLocked decrements the countdown. Reaching zero disarms
// before completing, so the completion path can never race a
// follow-on beat.
func (e *Engine) applyTickLocked() {
	if e.active.remaining > 1 {
		e.active.remaining--
		return
	}

	e.active.remaining = 0
	e.disarmLocked()

	slog.Debug("countdown reached zero",
		"session_id", e.active.id,
		"type", e.active.sessionType,
	)

	e.completeLocked()
}
