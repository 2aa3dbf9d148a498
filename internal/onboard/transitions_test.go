package onboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

func walk(t *testing.T, tr *tracker, events ...Event) []Phase {
	t.Helper()
	var out []Phase
	for _, ev := range events {
		to, err := tr.fire(ev)
		require.NoError(t, err, "event %s", ev)
		out = append(out, to)
	}
	return out
}

func TestTrackerHappyPath(t *testing.T) {
	tr := &tracker{maxRetries: 1}
	got := walk(t, tr, EventStart, EventConnected, EventDerived)
	assert.Equal(t, []Phase{PhaseStarted, PhaseConnected, PhaseSigned}, got)
}

func TestTrackerSingleRetry(t *testing.T) {
	tr := &tracker{maxRetries: 1}
	got := walk(t, tr, EventStart, EventConnected, EventSignRejected, EventSignRejected)
	assert.Equal(t, []Phase{PhaseStarted, PhaseConnected, PhaseInProgress, PhaseError}, got)
}

func TestTrackerRetryBudget(t *testing.T) {
	tr := &tracker{maxRetries: 3}
	got := walk(t, tr, EventStart, EventConnected,
		EventSignRejected, EventSignRejected, EventSignRejected, EventSignRejected)
	assert.Equal(t, []Phase{
		PhaseStarted, PhaseConnected,
		PhaseInProgress, PhaseInProgress, PhaseInProgress, PhaseError,
	}, got)
}

func TestTrackerNoRetriesConfigured(t *testing.T) {
	tr := &tracker{}
	got := walk(t, tr, EventStart, EventConnected, EventSignRejected)
	assert.Equal(t, PhaseError, got[len(got)-1])
}

func TestTrackerStopResetsRetries(t *testing.T) {
	tr := &tracker{maxRetries: 1}
	walk(t, tr, EventStart, EventConnected, EventSignRejected, EventStop)
	assert.Equal(t, PhaseIdle, tr.phase)

	got := walk(t, tr, EventStart, EventConnected, EventSignRejected)
	assert.Equal(t, PhaseInProgress, got[len(got)-1], "new attempt gets a fresh budget")
}

func TestTrackerTerminalPhasesAreFinal(t *testing.T) {
	for _, terminal := range []Phase{PhaseSigned, PhaseError} {
		for ev := EventStart; ev < EventStop; ev++ {
			tr := &tracker{phase: terminal, maxRetries: 1}
			_, err := tr.fire(ev)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", ev, terminal)
			assert.Equal(t, terminal, tr.phase)
		}
	}
}

func TestTrackerRejectsOutOfOrderEvents(t *testing.T) {
	cases := []struct {
		from Phase
		ev   Event
	}{
		{PhaseIdle, EventConnected},
		{PhaseIdle, EventDerived},
		{PhaseStarted, EventStart},
		{PhaseStarted, EventDerived},
		{PhaseConnected, EventConnected},
		{PhaseInProgress, EventStart},
	}
	for _, c := range cases {
		tr := &tracker{phase: c.from, maxRetries: 1}
		_, err := tr.fire(c.ev)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", c.ev, c.from)
	}
}

func TestStopAcceptedEverywhere(t *testing.T) {
	for p := PhaseIdle; p <= PhaseError; p++ {
		tr := &tracker{phase: p}
		to, err := tr.fire(EventStop)
		require.NoError(t, err)
		assert.Equal(t, PhaseIdle, to)
	}
}

func TestPhaseAndEventStrings(t *testing.T) {
	assert.Equal(t, "in-progress", PhaseInProgress.String())
	assert.Equal(t, "signed", PhaseSigned.String())
	assert.Equal(t, "sign-rejected", EventSignRejected.String())
	assert.Equal(t, "event(99)", Event(99).String())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, Status{Phase: PhaseSigned}.Terminal())
	assert.True(t, Status{Phase: PhaseError}.Terminal())
	assert.False(t, Status{Phase: PhaseInProgress}.Terminal())
}

// ---------------------------------------------------------------------------
// RetryPolicy
// ---------------------------------------------------------------------------

func TestPeerNameMatcher(t *testing.T) {
	m := PeerNameMatcher{"MetaMask Wallet"}
	assert.True(t, m.Matches(&connect.Peer{Name: "MetaMask Wallet"}))
	assert.True(t, m.Matches(&connect.Peer{Name: " metamask wallet "}))
	assert.False(t, m.Matches(&connect.Peer{Name: "MetaMask"}))
	assert.False(t, m.Matches(nil))
}

func TestRetryPolicyMatches(t *testing.T) {
	p := DefaultRetryPolicy()
	info := &connect.WalletInfo{ChainID: 5, Peer: &connect.Peer{Name: "MetaMask Wallet"}}

	assert.True(t, p.Matches(werr.ErrUserRejected, info, 1))
	assert.False(t, p.Matches(werr.ErrUnexpectedResponse, info, 1))
	assert.False(t, p.Matches(werr.ErrUserRejected, nil, 1))
	assert.False(t, p.Matches(werr.ErrUserRejected, &connect.WalletInfo{Peer: &connect.Peer{Name: "Rainbow"}}, 1))

	p.RequireChainSwitch = true
	assert.True(t, p.Matches(werr.ErrUserRejected, info, 1))
	assert.False(t, p.Matches(werr.ErrUserRejected, info, 5))

	p.MaxRetries = 0
	assert.False(t, p.Matches(werr.ErrUserRejected, info, 1))
}
