// Package engine implements the Solitude session and flow timer engine.
//
// The engine owns the single active countdown, advances multi-step
// flows, appends completion history, derives the day streak, and
// rate-limits the engagement prompt. It is the one component with real
// invariants; everything around it (display, persistence mechanics,
// notification delivery) is a collaborator.
//
// ARCHITECTURE:
//
// Single-Owner Synchronous Commands:
// Every command (Start, StartFlow, Pause, Resume, Advance, Abandon,
// Tick) runs to completion under the engine mutex and returns its
// error synchronously. Overlapping mutations are the classic source of
// double-completion bugs, so there is exactly one mutation owner.
//
// Tick Delivery:
// Arming a countdown starts one ticker pump goroutine. The pump only
// re-enters the engine through the same mutex, carrying the timer
// generation it was armed with; a stale generation means the countdown
// was disarmed and the tick is dropped. Deterministic drivers (tests,
// the scenario harness) skip the pump and call Tick directly.
//
// CRITICAL PATTERNS:
//
// Exactly-Once Completion:
// Reaching zero disarms the countdown and completes the session inside
// one critical section. A lagging callback can never complete the same
// session twice.
//
// Cancel-Before-Arm:
// Arming always disarms first. Two Start calls never leave two live
// tickers.
//
// Logical Clock:
// Records and events are stamped with a monotonic seq counter. History
// ordering uses seq, never wall-clock timestamps.
package engine
