package onboard

import (
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// Phase is the onboarding progress of one attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarted
	PhaseConnected
	PhaseInProgress // sign is being retried
	PhaseSigned
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseConnected:
		return "connected"
	case PhaseInProgress:
		return "in-progress"
	case PhaseSigned:
		return "signed"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Status is one published onboarding state. Result is set only when Signed,
// Err only when Error, RetryTarget only when InProgress.
type Status struct {
	Phase       Phase
	Attempt     string // ULID of the attempt, empty when idle
	WalletID    string
	RetryTarget string // peer whose rejection is being retried
	Result      *Result
	Err         *werr.WalletError
}

// Terminal reports whether s ends its attempt.
func (s Status) Terminal() bool {
	return s.Phase == PhaseSigned || s.Phase == PhaseError
}

// Result is what a successful onboarding produces. Optional fields are nil
// when the backend does not report them.
type Result struct {
	EthereumAddress string            `json:"ethereumAddress"`
	WalletID        string            `json:"walletId,omitempty"`
	CosmosAddress   string            `json:"cosmosAddress"`
	Mnemonic        string            `json:"dydxMnemonic"`
	AuxAddresses    map[string]string `json:"auxAddresses,omitempty"`
	LoginMethod     *string           `json:"loginMethod"`
	Email           *string           `json:"email"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
