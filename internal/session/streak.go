package session

// AdvanceStreak returns the streak state after crediting a completed
// session on the given day key. It is the only streak transition; the
// engine applies it live and the store re-applies it when rebuilding
// from the record log, so both must agree byte-for-byte.
//
// The rule, keyed on calendar days:
//   - first ever credit: streak becomes 1
//   - same day as the last credit: unchanged (multiple completions in
//     one day never inflate the streak)
//   - exactly the next day: streak + 1
//   - more than one day later: streak resets to 1
//   - earlier than the last credit (clock skew, imported history):
//     unchanged, never decremented or credited backwards
//
// Abandoned sessions must not be passed here; callers filter on
// Record.Completed.
func AdvanceStreak(st StreakState, day string) StreakState {
	if st.LastCreditedDay == "" {
		return StreakState{CurrentStreak: 1, LastCreditedDay: day}
	}

	gap, err := DaysBetween(st.LastCreditedDay, day)
	if err != nil {
		// Malformed day keys never reach here from engine paths; treat
		// as no credit rather than corrupting the streak.
		return st
	}

	switch {
	case gap == 0:
		return st
	case gap == 1:
		return StreakState{CurrentStreak: st.CurrentStreak + 1, LastCreditedDay: day}
	case gap > 1:
		return StreakState{CurrentStreak: 1, LastCreditedDay: day}
	default:
		return st
	}
}
