package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AssertionError is returned when an expectation check fails. It
// carries the full trace so a failure message alone is enough to see
// what the engine actually did.
type AssertionError struct {
	Field    string       // Expect field that failed
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nEvent trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] seq=%d %s", i+1, ev.Seq, ev.Kind)
		if ev.SessionType != "" {
			fmt.Fprintf(&buf, " type=%s", ev.SessionType)
		}
		if ev.FlowID != "" {
			fmt.Fprintf(&buf, " flow=%s step=%d", ev.FlowID, ev.StepIndex)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// EvaluateExpect checks every set field of the expect block against
// the final state. Returns one message per failed check; all checks
// run even after a failure.
func EvaluateExpect(result *Result, expect *Expect, final FinalState) []string {
	var errors []string
	fail := func(field, expected, actual string) {
		errors = append(errors, (&AssertionError{
			Field:    field,
			Expected: expected,
			Actual:   actual,
			Trace:    result.Trace,
		}).Error())
	}

	if expect.Status != "" && string(final.Snapshot.Status) != expect.Status {
		fail("status", expect.Status, string(final.Snapshot.Status))
	}

	if expect.Type != "" && final.Snapshot.Type != expect.Type {
		fail("type", expect.Type, final.Snapshot.Type)
	}

	if expect.Remaining != nil && final.Snapshot.RemainingSeconds != *expect.Remaining {
		fail("remaining",
			strconv.Itoa(*expect.Remaining),
			strconv.Itoa(final.Snapshot.RemainingSeconds))
	}

	if expect.StepIndex != nil {
		switch {
		case final.Snapshot.Flow == nil:
			fail("step_index",
				fmt.Sprintf("flow step %d", *expect.StepIndex),
				"no flow in progress")
		case final.Snapshot.Flow.StepIndex != *expect.StepIndex:
			fail("step_index",
				strconv.Itoa(*expect.StepIndex),
				strconv.Itoa(final.Snapshot.Flow.StepIndex))
		}
	}

	if expect.Waiting != nil {
		switch {
		case final.Snapshot.Flow == nil:
			fail("waiting",
				fmt.Sprintf("waiting=%t", *expect.Waiting),
				"no flow in progress")
		case final.Snapshot.Flow.Waiting != *expect.Waiting:
			fail("waiting",
				fmt.Sprintf("%t", *expect.Waiting),
				fmt.Sprintf("%t", final.Snapshot.Flow.Waiting))
		}
	}

	if expect.Streak != nil && final.Streak.CurrentStreak != *expect.Streak {
		fail("streak",
			strconv.Itoa(*expect.Streak),
			strconv.Itoa(final.Streak.CurrentStreak))
	}

	if expect.LastDay != "" && final.Streak.LastCreditedDay != expect.LastDay {
		fail("last_day", expect.LastDay, final.Streak.LastCreditedDay)
	}

	if expect.Records != nil && final.Records != *expect.Records {
		fail("records",
			fmt.Sprintf("%d stored records", *expect.Records),
			fmt.Sprintf("%d stored records", final.Records))
	}

	if len(expect.Events) > 0 {
		actual := result.EventKinds()
		if !slices.Equal(actual, expect.Events) {
			fail("events",
				fmt.Sprintf("%v", expect.Events),
				fmt.Sprintf("%v", actual))
		}
	}

	return errors
}
