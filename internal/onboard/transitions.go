package onboard

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current phase. The machine treats it as a stale completion.
var ErrInvalidTransition = errors.New("invalid onboarding transition")

// Event drives the transition table.
type Event int

const (
	EventStart Event = iota
	EventUnknownWallet
	EventConnected
	EventConnectFailed
	EventSignRejected // rejection from a peer the retry policy matches
	EventSignFailed
	EventDerived
	EventDeriveFailed
	EventStop
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventUnknownWallet:
		return "unknown-wallet"
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect-failed"
	case EventSignRejected:
		return "sign-rejected"
	case EventSignFailed:
		return "sign-failed"
	case EventDerived:
		return "derived"
	case EventDeriveFailed:
		return "derive-failed"
	case EventStop:
		return "stop"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions lists every allowed move. Stop is accepted from any phase and
// is handled outside the table. Signed and Error accept nothing.
var transitions = map[Phase]map[Event]Phase{
	PhaseIdle: {
		EventStart:         PhaseStarted,
		EventUnknownWallet: PhaseError,
	},
	PhaseStarted: {
		EventConnected:     PhaseConnected,
		EventConnectFailed: PhaseError,
	},
	PhaseConnected: {
		EventSignRejected: PhaseInProgress,
		EventSignFailed:   PhaseError,
		EventDerived:      PhaseSigned,
		EventDeriveFailed: PhaseError,
	},
	PhaseInProgress: {
		EventSignRejected: PhaseInProgress,
		EventSignFailed:   PhaseError,
		EventDerived:      PhaseSigned,
		EventDeriveFailed: PhaseError,
	},
}

// tracker walks the transition table for one machine. Retries are bounded
// per attempt: a matched rejection past the limit counts as a plain failure.
type tracker struct {
	phase      Phase
	retries    int
	maxRetries int
}

// fire applies ev and returns the new phase.
func (t *tracker) fire(ev Event) (Phase, error) {
	if ev == EventStop {
		t.phase = PhaseIdle
		t.retries = 0
		return t.phase, nil
	}
	if ev == EventSignRejected && t.retries >= t.maxRetries {
		ev = EventSignFailed
	}
	to, ok := transitions[t.phase][ev]
	if !ok {
		return t.phase, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, t.phase)
	}
	switch ev {
	case EventStart, EventUnknownWallet:
		t.retries = 0
	case EventSignRejected:
		t.retries++
	}
	t.phase = to
	return to, nil
}
