// Package connect defines the connection provider abstraction over external
// signing backends and its implementations: deep-link wallets, an embedded
// keychain-backed wallet and a debug bypass connector.
package connect

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// Phase is the low-level connection lifecycle of a provider.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseConnectedToServer
	PhaseConnectedToWallet
)

func (p Phase) String() string {
	switch p {
	case PhaseListening:
		return "listening"
	case PhaseConnectedToServer:
		return "connected-to-server"
	case PhaseConnectedToWallet:
		return "connected-to-wallet"
	default:
		return "idle"
	}
}

// Peer describes the wallet on the other end of a connection.
type Peer struct {
	Address  string
	ChainID  int64
	Name     string
	ImageURL string
}

// State is a snapshot of a provider's connection.
type State struct {
	Phase    Phase
	DeepLink string
	Peer     *Peer
}

// Delegate receives connection state transitions.
type Delegate interface {
	ConnectionStateChanged(State)
}

// Request is one connection attempt.
type Request struct {
	Wallet   *catalog.Descriptor // nil in modal mode
	Address  string              // optional pre-known account
	ChainID  int64
	UseModal bool // let the backend pick the wallet
}

// WalletInfo is the outcome of a successful connect.
type WalletInfo struct {
	Address     string
	ChainID     int64
	WalletID    string
	Peer        *Peer
	LoginMethod string // embedded wallets only
	Email       string // embedded wallets only
}

// TxRequest is a transaction to sign or send.
type TxRequest struct {
	ChainID   int64
	To        string
	Value     *big.Int
	Data      []byte
	Nonce     uint64
	Gas       uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// TxResult is the outcome of Send. Raw is set by providers that sign locally
// and leave broadcasting to the caller.
type TxResult struct {
	Hash string
	Raw  string
}

// Provider is a connection to one signing backend. An instance holds at most
// one connection at a time.
type Provider interface {
	Connect(ctx context.Context, req Request) (*WalletInfo, error)
	// Disconnect is idempotent and always clears the connection and any
	// pending deep link.
	Disconnect()
	SignMessage(ctx context.Context, text string) (string, error)
	// SignTypedData expects a payload that already passed Validate.
	SignTypedData(ctx context.Context, p *typeddata.Payload) (string, error)
	Send(ctx context.Context, tx TxRequest) (*TxResult, error)
	// HandleURI feeds a callback URI to the provider. It reports whether the
	// URI was consumed.
	HandleURI(uri string) bool
	SetDelegate(d Delegate)
}

// Factory creates a fresh provider.
type Factory func() Provider

// Registry maps wallet kinds to provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[catalog.Kind]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[catalog.Kind]Factory)}
}

// Register sets the factory for kind, replacing any previous one.
func (r *Registry) Register(kind catalog.Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// New creates a provider for kind.
func (r *Registry) New(kind catalog.Kind) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, werr.Newf(werr.NoWalletFound, "no provider for wallet kind %q", kind)
	}
	return f(), nil
}

// Kinds returns the registered kinds.
func (r *Registry) Kinds() []catalog.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Kind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	return out
}

// session tracks connection state shared by every provider and forwards
// transitions to the delegate.
type session struct {
	mu       sync.Mutex
	delegate Delegate
	state    State
	info     *WalletInfo
}

func (s *session) SetDelegate(d Delegate) {
	s.mu.Lock()
	s.delegate = d
	s.mu.Unlock()
}

// emit records st and notifies the delegate outside the lock.
func (s *session) emit(st State) {
	s.mu.Lock()
	s.state = st
	d := s.delegate
	s.mu.Unlock()
	if d != nil {
		d.ConnectionStateChanged(st)
	}
}

func (s *session) connected() *WalletInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *session) setConnected(info *WalletInfo) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

// reset clears the connection and reports whether anything changed.
func (s *session) reset() bool {
	s.mu.Lock()
	changed := s.info != nil || s.state.Phase != PhaseIdle || s.state.DeepLink != ""
	s.info = nil
	s.mu.Unlock()
	if changed {
		s.emit(State{Phase: PhaseIdle})
	}
	return changed
}

// State returns the current connection state.
func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// sameWallet reports whether req can reuse the existing connection. A modal
// request takes whichever wallet is connected.
func sameWallet(info *WalletInfo, req Request) bool {
	return req.Wallet == nil || info.WalletID == req.Wallet.ID
}

func requireConnected(s *session) (*WalletInfo, error) {
	info := s.connected()
	if info == nil {
		return nil, werr.ErrNotConnected
	}
	return info, nil
}

func peerFor(d *catalog.Descriptor, address string, chainID int64) *Peer {
	p := &Peer{Address: address, ChainID: chainID}
	if d != nil {
		p.Name = d.Name
		p.ImageURL = d.ImageURL
	}
	return p
}

func walletID(d *catalog.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.ID
}

func validated(p *typeddata.Payload) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to sign: %w", err)
	}
	return nil
}
