package connect

import (
	"context"
	"sync"

	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// DefaultBypassKey is the well-known first Hardhat/Anvil development key.
// It must never hold funds.
const DefaultBypassKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// BypassPeerName is the peer name the bypass connector reports.
const BypassPeerName = "Debug Bypass"

// BypassProvider connects instantly and signs with an in-memory key. It lets
// QA run the onboarding flow without a wallet app.
type BypassProvider struct {
	session
	signer *localSigner

	scriptMu sync.Mutex
	script   Script
}

// Script replays canned outcomes so QA can drive failure paths.
type Script struct {
	Peer       string // peer name reported on connect
	ConnectErr error
	// SignErrs are returned by successive sign calls; once exhausted the
	// connector signs normally.
	SignErrs []error
}

// BypassOption configures a BypassProvider.
type BypassOption func(*BypassProvider)

// WithScript sets the canned outcomes.
func WithScript(s Script) BypassOption {
	return func(p *BypassProvider) {
		p.script = s
	}
}

// NewBypassProvider creates a bypass connector signing with hexKey
// (DefaultBypassKey when empty).
func NewBypassProvider(hexKey string, opts ...BypassOption) (*BypassProvider, error) {
	if hexKey == "" {
		hexKey = DefaultBypassKey
	}
	s, err := newLocalSigner(hexKey)
	if err != nil {
		return nil, err
	}
	p := &BypassProvider{signer: s}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Clone returns a fresh, disconnected connector signing with the same key.
// The script is not copied.
func (p *BypassProvider) Clone(opts ...BypassOption) *BypassProvider {
	c := &BypassProvider{signer: p.signer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (p *BypassProvider) nextSignErr() error {
	p.scriptMu.Lock()
	defer p.scriptMu.Unlock()
	if len(p.script.SignErrs) == 0 {
		return nil
	}
	err := p.script.SignErrs[0]
	p.script.SignErrs = p.script.SignErrs[1:]
	return err
}

// Address returns the account the connector signs for.
func (p *BypassProvider) Address() string {
	return p.signer.address()
}

// Connect implements Provider.
func (p *BypassProvider) Connect(ctx context.Context, req Request) (*WalletInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info := p.connected(); info != nil {
		if sameWallet(info, req) {
			return info, nil
		}
		p.Disconnect()
	}
	p.scriptMu.Lock()
	script := p.script
	p.scriptMu.Unlock()
	if script.ConnectErr != nil {
		return nil, werr.From(script.ConnectErr)
	}
	name := script.Peer
	if name == "" {
		name = BypassPeerName
	}
	peer := &Peer{Address: p.signer.address(), ChainID: req.ChainID, Name: name}
	info := &WalletInfo{
		Address:  peer.Address,
		ChainID:  req.ChainID,
		WalletID: walletID(req.Wallet),
		Peer:     peer,
	}
	p.setConnected(info)
	p.emit(State{Phase: PhaseConnectedToWallet, Peer: peer})
	return info, nil
}

// Disconnect implements Provider.
func (p *BypassProvider) Disconnect() {
	p.reset()
}

// SignMessage implements Provider.
func (p *BypassProvider) SignMessage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := requireConnected(&p.session); err != nil {
		return "", err
	}
	if err := p.nextSignErr(); err != nil {
		return "", werr.From(err)
	}
	return p.signer.signMessage(text)
}

// SignTypedData implements Provider.
func (p *BypassProvider) SignTypedData(ctx context.Context, payload *typeddata.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := requireConnected(&p.session); err != nil {
		return "", err
	}
	if err := validated(payload); err != nil {
		return "", err
	}
	if err := p.nextSignErr(); err != nil {
		return "", werr.From(err)
	}
	return p.signer.signTypedData(payload)
}

// Send implements Provider.
func (p *BypassProvider) Send(ctx context.Context, tx TxRequest) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := requireConnected(&p.session); err != nil {
		return nil, err
	}
	if tx.ChainID == 0 {
		tx.ChainID = p.connected().ChainID
	}
	if tx.ChainID == 0 {
		return nil, werr.New(werr.LocalValidation, "transaction chain id is required")
	}
	return p.signer.signTx(tx)
}

// HandleURI implements Provider.
func (p *BypassProvider) HandleURI(string) bool {
	return false
}
