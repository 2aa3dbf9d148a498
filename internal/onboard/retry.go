package onboard

import (
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// DefaultRetryDelay is the pause before re-sending a spuriously rejected sign.
const DefaultRetryDelay = time.Second

// QuirkMatcher identifies peers that reject a sign request spuriously right
// after switching chains internally.
type QuirkMatcher interface {
	Matches(peer *connect.Peer) bool
}

// PeerNameMatcher matches peers by announced name, ignoring case and
// surrounding whitespace.
type PeerNameMatcher []string

// Matches implements QuirkMatcher.
func (m PeerNameMatcher) Matches(peer *connect.Peer) bool {
	if peer == nil {
		return false
	}
	name := strings.TrimSpace(peer.Name)
	for _, n := range m {
		if strings.EqualFold(name, strings.TrimSpace(n)) {
			return true
		}
	}
	return false
}

// RetryPolicy decides when a rejected sign is retried on the same session.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Quirk      QuirkMatcher
	// RequireChainSwitch limits retries to sessions whose wallet reported a
	// chain other than the requested one.
	RequireChainSwitch bool
}

// DefaultRetryPolicy retries once for wallets announcing themselves as
// "MetaMask Wallet".
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		Delay:      DefaultRetryDelay,
		Quirk:      PeerNameMatcher{"MetaMask Wallet"},
	}
}

// Matches reports whether err from a sign on the session described by info
// qualifies for a retry. The retry budget is enforced by the transition table.
func (p RetryPolicy) Matches(err error, info *connect.WalletInfo, requestedChain int64) bool {
	if p.MaxRetries <= 0 || p.Quirk == nil || info == nil {
		return false
	}
	if werr.CodeOf(err) != werr.UserRejected {
		return false
	}
	if !p.Quirk.Matches(info.Peer) {
		return false
	}
	if p.RequireChainSwitch && info.ChainID == requestedChain {
		return false
	}
	return true
}
