package connect

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// EmbeddedProvider is a custodial wallet whose key lives in the OS keychain.
// Accounts are keyed by the requested address, or by the wallet id when no
// address is given.
type EmbeddedProvider struct {
	session

	keys        KeystoreBackend
	service     string
	loginMethod string
	email       string
	log         *slog.Logger

	signerMu sync.Mutex
	signer   *localSigner
}

// EmbeddedOption configures an EmbeddedProvider.
type EmbeddedOption func(*EmbeddedProvider)

// WithLogin records how the user authenticated with the embedded wallet
// vendor (e.g. "email", "google"); it is reported in WalletInfo.
func WithLogin(method, email string) EmbeddedOption {
	return func(p *EmbeddedProvider) {
		p.loginMethod = method
		p.email = email
	}
}

// WithKeychainService sets the keychain service used to build key refs.
func WithKeychainService(service string) EmbeddedOption {
	return func(p *EmbeddedProvider) {
		p.service = service
	}
}

// WithEmbeddedLogger sets the logger.
func WithEmbeddedLogger(l *slog.Logger) EmbeddedOption {
	return func(p *EmbeddedProvider) {
		p.log = l
	}
}

// NewEmbeddedProvider creates an embedded wallet provider over keys.
func NewEmbeddedProvider(keys KeystoreBackend, opts ...EmbeddedOption) *EmbeddedProvider {
	p := &EmbeddedProvider{
		keys:    keys,
		service: DefaultKeychainService,
		log:     discardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect implements Provider.
func (p *EmbeddedProvider) Connect(ctx context.Context, req Request) (*WalletInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info := p.connected(); info != nil {
		if sameWallet(info, req) {
			return info, nil
		}
		p.Disconnect()
	}

	account := req.Address
	if account == "" {
		account = walletID(req.Wallet)
	}
	if account == "" {
		return nil, werr.New(werr.NoWalletFound, "embedded wallet needs an account")
	}

	p.emit(State{Phase: PhaseConnectedToServer})

	hexKey, err := p.keys.Retrieve(KeyRef(p.service, account))
	if err != nil {
		p.reset()
		return nil, werr.Wrap(werr.NoWalletFound, err)
	}
	signer, err := newLocalSigner(hexKey)
	if err != nil {
		p.reset()
		return nil, werr.Wrap(werr.UnexpectedResponse, err)
	}
	addr := signer.address()
	if req.Address != "" && !strings.EqualFold(req.Address, addr) {
		p.reset()
		return nil, werr.Newf(werr.UnexpectedResponse, "stored key belongs to %s, not %s", addr, req.Address)
	}

	p.signerMu.Lock()
	p.signer = signer
	p.signerMu.Unlock()

	peer := peerFor(req.Wallet, addr, req.ChainID)
	info := &WalletInfo{
		Address:     addr,
		ChainID:     req.ChainID,
		WalletID:    walletID(req.Wallet),
		Peer:        peer,
		LoginMethod: p.loginMethod,
		Email:       p.email,
	}
	p.setConnected(info)
	p.emit(State{Phase: PhaseConnectedToWallet, Peer: peer})
	p.log.Debug("embedded wallet connected", "address", addr)
	return info, nil
}

// Disconnect implements Provider.
func (p *EmbeddedProvider) Disconnect() {
	p.signerMu.Lock()
	p.signer = nil
	p.signerMu.Unlock()
	p.reset()
}

func (p *EmbeddedProvider) activeSigner() (*localSigner, error) {
	if _, err := requireConnected(&p.session); err != nil {
		return nil, err
	}
	p.signerMu.Lock()
	defer p.signerMu.Unlock()
	if p.signer == nil {
		return nil, werr.ErrNotConnected
	}
	return p.signer, nil
}

// SignMessage implements Provider.
func (p *EmbeddedProvider) SignMessage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := p.activeSigner()
	if err != nil {
		return "", err
	}
	return s.signMessage(text)
}

// SignTypedData implements Provider.
func (p *EmbeddedProvider) SignTypedData(ctx context.Context, payload *typeddata.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := p.activeSigner()
	if err != nil {
		return "", err
	}
	if err := validated(payload); err != nil {
		return "", err
	}
	return s.signTypedData(payload)
}

// Send signs tx locally. Broadcasting the raw transaction is left to the caller.
func (p *EmbeddedProvider) Send(ctx context.Context, tx TxRequest) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := p.activeSigner()
	if err != nil {
		return nil, err
	}
	return s.signTx(tx)
}

// HandleURI implements Provider. Embedded wallets never leave the process.
func (p *EmbeddedProvider) HandleURI(string) bool {
	return false
}
