package broadcast

import (
	"github.com/Mohsinsiddi/w3connect/internal/connect"
)

// Broadcaster republishes a provider's connection lifecycle and the pending
// deep link, independently of onboarding status. It never calls back into
// whoever feeds it.
type Broadcaster struct {
	state *Value[connect.State]
	link  *Value[string]
}

// New creates a Broadcaster in the idle state.
func New() *Broadcaster {
	return &Broadcaster{
		state: NewValue(connect.State{Phase: connect.PhaseIdle}),
		link:  NewValue(""),
	}
}

// ConnectionStateChanged implements connect.Delegate. The debug link follows
// the deep link carried by the state and is cleared once none is pending.
func (b *Broadcaster) ConnectionStateChanged(s connect.State) {
	b.state.Set(s)
	b.SetDebugLink(s.DeepLink)
}

// State returns the latest connection state.
func (b *Broadcaster) State() connect.State {
	return b.state.Get()
}

// Subscribe streams connection states, starting with the current one.
func (b *Broadcaster) Subscribe() (<-chan connect.State, func()) {
	return b.state.Subscribe()
}

// DebugLink returns the pending deep link, or "".
func (b *Broadcaster) DebugLink() string {
	return b.link.Get()
}

// SubscribeDebugLink streams the pending deep link, starting with the current one.
func (b *Broadcaster) SubscribeDebugLink() (<-chan string, func()) {
	return b.link.Subscribe()
}

// SetDebugLink publishes link if it differs from the current one.
func (b *Broadcaster) SetDebugLink(link string) {
	if b.link.Get() == link {
		return
	}
	b.link.Set(link)
}

// Reset publishes the idle state and clears the debug link.
func (b *Broadcaster) Reset() {
	b.state.Set(connect.State{Phase: connect.PhaseIdle})
	b.SetDebugLink("")
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.state.Close()
	b.link.Close()
}
