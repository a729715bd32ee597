package engine

import "time"

// Clock supplies wall time and tickers to the engine. Injecting it is
// what makes countdown behavior testable: production uses SystemClock,
// tests and the scenario harness use testutil.ManualClock.
type Clock interface {
	// Now returns the current wall time. The location of the returned
	// time defines the user's calendar day for streak purposes.
	Now() time.Time

	// NewTicker returns a ticker firing every d. The engine stops every
	// ticker it creates.
	NewTicker(d time.Duration) Ticker
}

// Ticker is the minimal surface of time.Ticker the engine needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the production Clock backed by the time package.
type SystemClock struct{}

// Now returns time.Now in the local zone. Streak days are local
// calendar dates, so no UTC conversion happens here.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker.
func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time {
	return s.t.C
}

func (s systemTicker) Stop() {
	s.t.Stop()
}
