package answer

import "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"

// State is the lifecycle of one answering request.
type State int

const (
	StateRequesting State = iota
	StateSucceeded
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateSucceeded:
		return "succeeded"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is the classified outcome of one model call.
type Event int

const (
	EventSucceeded Event = iota
	EventTimedOut
	EventMalformed
	EventUnavailable
)

func (e Event) String() string {
	switch e {
	case EventSucceeded:
		return "succeeded"
	case EventTimedOut:
		return "timed_out"
	case EventMalformed:
		return "malformed"
	case EventUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Machine tracks which model to call next and when to stop.
// Budget is the number of calls allowed per model; a downgrade to the fast
// model starts a fresh budget.
type Machine struct {
	State    State
	Tier     model.Tier
	FellBack bool
	Attempt  int
	Budget   int
	Last     Event
}

func NewMachine(tier model.Tier, budget int) Machine {
	if budget < 1 {
		budget = 1
	}
	return Machine{State: StateRequesting, Tier: tier, Budget: budget}
}

// Done reports whether the machine reached a terminal state.
func (m Machine) Done() bool {
	return m.State != StateRequesting
}

// Next applies the outcome of the call just made on m.Tier.
func (m Machine) Next(ev Event) Machine {
	if m.Done() {
		return m
	}
	m.Attempt++
	m.Last = ev
	switch ev {
	case EventSucceeded:
		m.State = StateSucceeded
	case EventTimedOut:
		// heavy downgrades to fast exactly once
		if m.Tier == model.TierHeavy && !m.FellBack {
			m.Tier = model.TierFast
			m.FellBack = true
			m.Attempt = 0
			return m
		}
		m.State = StateTimedOut
	case EventMalformed, EventUnavailable:
		if m.Attempt >= m.Budget {
			m.State = StateFailed
		}
	}
	return m
}
