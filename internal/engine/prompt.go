package engine

import "time"

const (
	// promptCooldown is the minimum spacing between two fired prompts.
	// It gates every firing condition, including long-idle.
	promptCooldown = 5 * time.Minute

	// promptIdleGap is how long since the last fired prompt before a
	// new session counts as a re-engagement.
	promptIdleGap = 12 * time.Hour
)

// promptScheduler decides whether starting a session warrants an
// engagement prompt. It is owned by the engine and only touched under
// the engine lock.
//
// lastFlowSeen is the flow ID of the most recent session start, with
// "" meaning a standalone session. lastPromptAt is the zero time until
// the first prompt fires.
type promptScheduler struct {
	lastFlowSeen string
	lastPromptAt time.Time
}

// shouldPrompt applies the prompt rule for a session starting at now
// within flowID ("" for standalone). It always records flowID as seen,
// even when the prompt is suppressed.
//
// The cooldown is checked first and suppresses everything. After the
// cooldown, a prompt fires when any of these hold:
//   - the flow context changed since the previous session start
//   - more than promptIdleGap has passed since the last fired prompt
//     (or none ever fired)
//   - the previous session was in a flow and this one is not
func (p *promptScheduler) shouldPrompt(sessionID, flowID string, now time.Time) bool {
	defer func() {
		p.lastFlowSeen = flowID
	}()

	if !p.lastPromptAt.IsZero() && now.Sub(p.lastPromptAt) < promptCooldown {
		return false
	}

	flowChanged := flowID != p.lastFlowSeen
	longIdle := p.lastPromptAt.IsZero() || now.Sub(p.lastPromptAt) > promptIdleGap
	flowEnded := p.lastFlowSeen != "" && flowID == ""

	if !flowChanged && !longIdle && !flowEnded {
		return false
	}

	p.lastPromptAt = now
	return true
}
