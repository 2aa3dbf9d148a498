package connect

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

const (
	// DefaultCallbackScheme is the URI scheme wallets use to return control.
	DefaultCallbackScheme = "w3connect"
	// DefaultRelayProtocol is advertised in pairing URIs.
	DefaultRelayProtocol = "irn"

	opConnect = "connect"
)

// Opener hands a link to the platform: an OS URL handler, a browser, or a
// terminal that prints it.
type Opener interface {
	Open(link string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(link string) error

// Open calls f.
func (f OpenerFunc) Open(link string) error { return f(link) }

// LinkProvider talks to an external wallet app through deep or universal
// links. Each request publishes a link and suspends until the wallet returns
// control through HandleURI, the context is cancelled, or Disconnect is
// called. There is no timeout: the user may take arbitrarily long.
//
// Callback URIs have the form
//
//	<scheme>://wc?topic=<t>&address=<0x..>&chainId=<n>&peer=<name>
//	<scheme>://wc?topic=<t>&requestId=<id>&signature=<0x..>
//	<scheme>://wc?topic=<t>&requestId=<id>&txHash=<0x..>
//	<scheme>://wc?topic=<t>&error=rejected&message=<text>
type LinkProvider struct {
	session

	opener         Opener
	callbackScheme string
	relay          string
	random         io.Reader
	log            *slog.Logger

	linkMu  sync.Mutex
	topic   string
	base    string // wallet link prefix; empty in modal mode
	pending *waiter
	seq     uint64
}

type waiter struct {
	op string
	id uint64
	ch chan callback
}

type callback struct {
	query url.Values
	err   error
}

// LinkOption configures a LinkProvider.
type LinkOption func(*LinkProvider)

// WithOpener sets how links are handed to the platform.
func WithOpener(o Opener) LinkOption {
	return func(p *LinkProvider) {
		p.opener = o
	}
}

// WithCallbackScheme sets the scheme HandleURI accepts.
func WithCallbackScheme(s string) LinkOption {
	return func(p *LinkProvider) {
		p.callbackScheme = s
	}
}

// WithRelayProtocol sets the relay protocol advertised in pairing URIs.
func WithRelayProtocol(r string) LinkOption {
	return func(p *LinkProvider) {
		p.relay = r
	}
}

// WithRandom sets the randomness source for pairing topics and keys.
func WithRandom(r io.Reader) LinkOption {
	return func(p *LinkProvider) {
		p.random = r
	}
}

// WithLinkLogger sets the logger.
func WithLinkLogger(l *slog.Logger) LinkOption {
	return func(p *LinkProvider) {
		p.log = l
	}
}

// NewLinkProvider creates a deep-link wallet provider.
func NewLinkProvider(opts ...LinkOption) *LinkProvider {
	p := &LinkProvider{
		callbackScheme: DefaultCallbackScheme,
		relay:          DefaultRelayProtocol,
		random:         rand.Reader,
		log:            discardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PairingURI formats a WalletConnect v2 style pairing URI.
func PairingURI(topic, symKey, relay string) string {
	return fmt.Sprintf("wc:%s@2?relay-protocol=%s&symKey=%s", topic, relay, symKey)
}

// ParsePairing extracts topic and symmetric key from a pairing URI, or from a
// wallet link that embeds one in its uri parameter.
func ParsePairing(link string) (topic, symKey string, err error) {
	if !strings.HasPrefix(link, "wc:") {
		u, perr := url.Parse(link)
		if perr != nil {
			return "", "", fmt.Errorf("parsing link: %w", perr)
		}
		link = u.Query().Get("uri")
		if !strings.HasPrefix(link, "wc:") {
			return "", "", fmt.Errorf("no pairing uri in link")
		}
	}
	rest := strings.TrimPrefix(link, "wc:")
	head, query, _ := strings.Cut(rest, "?")
	topic, _, _ = strings.Cut(head, "@")
	q, err := url.ParseQuery(query)
	if err != nil {
		return "", "", fmt.Errorf("parsing pairing query: %w", err)
	}
	if topic == "" {
		return "", "", fmt.Errorf("pairing uri has no topic")
	}
	return topic, q.Get("symKey"), nil
}

// WalletBase returns the link prefix used to reach wallet d. Universal links
// are preferred over native schemes.
func WalletBase(d catalog.Descriptor) string {
	if d.UniversalLink != "" {
		return strings.TrimSuffix(d.UniversalLink, "/") + "/wc"
	}
	if d.NativeScheme != "" {
		scheme := d.NativeScheme
		if !strings.Contains(scheme, "://") {
			scheme = strings.TrimSuffix(scheme, ":") + "://"
		}
		return scheme + "wc"
	}
	return ""
}

// Connect implements Provider.
func (p *LinkProvider) Connect(ctx context.Context, req Request) (*WalletInfo, error) {
	if !req.UseModal && (req.Wallet == nil || !req.Wallet.HasLink()) {
		return nil, werr.New(werr.NoWalletFound, "wallet has no deep link")
	}
	if info := p.connected(); info != nil {
		if sameWallet(info, req) {
			return info, nil
		}
		p.Disconnect()
	}

	topic, err := p.randomHex(32)
	if err != nil {
		return nil, werr.Wrap(werr.UnexpectedResponse, err)
	}
	symKey, err := p.randomHex(32)
	if err != nil {
		return nil, werr.Wrap(werr.UnexpectedResponse, err)
	}

	pairing := PairingURI(topic, symKey, p.relay)
	link, base := pairing, ""
	if !req.UseModal {
		base = WalletBase(*req.Wallet)
		link = base + "?uri=" + url.QueryEscape(pairing)
	}

	w, err := p.await(opConnect, topic, base)
	if err != nil {
		return nil, err
	}

	p.emit(State{Phase: PhaseListening, DeepLink: link})
	if err := p.open(link); err != nil {
		p.abandon(w)
		return nil, werr.Wrap(werr.NoWalletFound, err)
	}
	p.emit(State{Phase: PhaseConnectedToServer, DeepLink: link})
	p.log.Debug("waiting for wallet session", "topic", topic, "modal", req.UseModal)

	q, err := p.wait(ctx, w)
	if err != nil {
		p.abandon(w)
		return nil, err
	}

	addr := q.Get("address")
	if addr == "" || (strings.HasPrefix(addr, "0x") && !common.IsHexAddress(addr)) {
		p.abandon(w)
		return nil, werr.Newf(werr.UnexpectedResponse, "invalid account %q", addr)
	}
	chainID := req.ChainID
	if raw := q.Get("chainId"); raw != "" {
		chainID, err = strconv.ParseInt(strings.TrimPrefix(raw, "eip155:"), 10, 64)
		if err != nil {
			p.abandon(w)
			return nil, werr.Newf(werr.UnexpectedResponse, "invalid chain id %q", raw)
		}
	}
	if common.IsHexAddress(addr) {
		addr = common.HexToAddress(addr).Hex()
	}

	peer := peerFor(req.Wallet, addr, chainID)
	if name := q.Get("peer"); name != "" {
		peer.Name = name
	}
	info := &WalletInfo{
		Address:  addr,
		ChainID:  chainID,
		WalletID: walletID(req.Wallet),
		Peer:     peer,
	}
	p.setConnected(info)
	p.emit(State{Phase: PhaseConnectedToWallet, Peer: peer})
	return info, nil
}

// Disconnect implements Provider. A suspended request is released with
// NOT_CONNECTED.
func (p *LinkProvider) Disconnect() {
	p.linkMu.Lock()
	w := p.pending
	p.pending = nil
	p.topic = ""
	p.base = ""
	p.linkMu.Unlock()

	p.reset()
	if w != nil {
		select {
		case w.ch <- callback{err: werr.New(werr.NotConnected, "disconnected")}:
		default:
		}
	}
}

// SignMessage implements Provider using personal_sign.
func (p *LinkProvider) SignMessage(ctx context.Context, text string) (string, error) {
	info, err := requireConnected(&p.session)
	if err != nil {
		return "", err
	}
	q, err := p.request(ctx, info, "personal_sign", []any{hexutil.Encode([]byte(text)), info.Address})
	if err != nil {
		return "", err
	}
	return signatureFrom(q)
}

// SignTypedData implements Provider using eth_signTypedData_v4.
func (p *LinkProvider) SignTypedData(ctx context.Context, payload *typeddata.Payload) (string, error) {
	info, err := requireConnected(&p.session)
	if err != nil {
		return "", err
	}
	if err := validated(payload); err != nil {
		return "", err
	}
	body, err := payload.JSON()
	if err != nil {
		return "", err
	}
	q, err := p.request(ctx, info, "eth_signTypedData_v4", []any{info.Address, string(body)})
	if err != nil {
		return "", err
	}
	return signatureFrom(q)
}

// Send implements Provider using eth_sendTransaction. The wallet broadcasts.
func (p *LinkProvider) Send(ctx context.Context, tx TxRequest) (*TxResult, error) {
	info, err := requireConnected(&p.session)
	if err != nil {
		return nil, err
	}
	if tx.To != "" && !common.IsHexAddress(tx.To) {
		return nil, werr.Newf(werr.LocalValidation, "invalid recipient %q", tx.To)
	}
	params := map[string]string{"from": info.Address}
	if tx.To != "" {
		params["to"] = tx.To
	}
	if tx.Value != nil {
		params["value"] = hexutil.EncodeBig(tx.Value)
	}
	if len(tx.Data) > 0 {
		params["data"] = hexutil.Encode(tx.Data)
	}
	if tx.Gas > 0 {
		params["gas"] = hexutil.EncodeUint64(tx.Gas)
	}
	if tx.ChainID != 0 {
		params["chainId"] = hexutil.EncodeBig(big.NewInt(tx.ChainID))
	}

	q, err := p.request(ctx, info, "eth_sendTransaction", []any{params})
	if err != nil {
		return nil, err
	}
	hash := q.Get("txHash")
	raw, derr := hexutil.Decode(hash)
	if derr != nil || len(raw) != common.HashLength {
		return nil, werr.Newf(werr.UnexpectedResponse, "invalid transaction hash %q", hash)
	}
	return &TxResult{Hash: hash}, nil
}

// HandleURI implements Provider.
func (p *LinkProvider) HandleURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, p.callbackScheme) {
		return false
	}
	q := u.Query()

	p.linkMu.Lock()
	w, topic := p.pending, p.topic
	p.linkMu.Unlock()
	if w == nil {
		return false
	}
	if t := q.Get("topic"); t != "" && t != topic {
		return false
	}
	if rid := q.Get("requestId"); rid != "" && w.op != opConnect && rid != strconv.FormatUint(w.id, 10) {
		return false
	}

	cb := callback{query: q}
	if e := q.Get("error"); e != "" {
		cb.err = callbackError(e, q.Get("message"))
	}
	select {
	case w.ch <- cb:
		p.log.Debug("wallet callback", "op", w.op, "error", q.Get("error"))
		return true
	default:
		return false
	}
}

// request publishes a JSON-RPC request link and waits for its callback.
func (p *LinkProvider) request(ctx context.Context, info *WalletInfo, method string, params []any) (url.Values, error) {
	p.linkMu.Lock()
	topic, base := p.topic, p.base
	p.seq++
	id := p.seq
	p.linkMu.Unlock()

	body, err := json.Marshal(rpcRequest{ID: id, JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return nil, werr.Wrap(werr.LocalValidation, err)
	}
	if base == "" {
		base = "wc:" + topic + "@2"
	}
	link := base + "?" + url.Values{
		"topic":     {topic},
		"requestId": {strconv.FormatUint(id, 10)},
		"request":   {string(body)},
	}.Encode()

	w, err := p.awaitRequest(method, id)
	if err != nil {
		return nil, err
	}
	p.emit(State{Phase: PhaseConnectedToWallet, DeepLink: link, Peer: info.Peer})
	if err := p.open(link); err != nil {
		p.clearPending(w)
		p.emit(State{Phase: PhaseConnectedToWallet, Peer: info.Peer})
		return nil, werr.Wrap(werr.UnexpectedResponse, err)
	}

	q, err := p.wait(ctx, w)
	if p.connected() != nil {
		p.emit(State{Phase: PhaseConnectedToWallet, Peer: info.Peer})
	}
	return q, err
}

type rpcRequest struct {
	ID      uint64 `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// await registers the connect waiter and the pairing it belongs to.
func (p *LinkProvider) await(op, topic, base string) (*waiter, error) {
	p.linkMu.Lock()
	defer p.linkMu.Unlock()
	if p.pending != nil {
		return nil, werr.New(werr.UnexpectedResponse, "another wallet request is pending")
	}
	p.topic = topic
	p.base = base
	p.pending = &waiter{op: op, ch: make(chan callback, 1)}
	return p.pending, nil
}

func (p *LinkProvider) awaitRequest(op string, id uint64) (*waiter, error) {
	p.linkMu.Lock()
	defer p.linkMu.Unlock()
	if p.pending != nil {
		return nil, werr.New(werr.UnexpectedResponse, "another wallet request is pending")
	}
	if p.topic == "" {
		return nil, werr.ErrNotConnected
	}
	p.pending = &waiter{op: op, id: id, ch: make(chan callback, 1)}
	return p.pending, nil
}

func (p *LinkProvider) wait(ctx context.Context, w *waiter) (url.Values, error) {
	select {
	case <-ctx.Done():
		p.clearPending(w)
		return nil, ctx.Err()
	case cb := <-w.ch:
		p.clearPending(w)
		if cb.err != nil {
			return nil, cb.err
		}
		return cb.query, nil
	}
}

func (p *LinkProvider) clearPending(w *waiter) {
	p.linkMu.Lock()
	if p.pending == w {
		p.pending = nil
	}
	p.linkMu.Unlock()
}

// abandon drops a failed connect attempt and its pairing.
func (p *LinkProvider) abandon(w *waiter) {
	p.linkMu.Lock()
	if p.pending == w || p.pending == nil {
		p.pending = nil
		p.topic = ""
		p.base = ""
	}
	p.linkMu.Unlock()
	p.reset()
}

func (p *LinkProvider) open(link string) error {
	if p.opener == nil {
		return nil
	}
	return p.opener.Open(link)
}

func (p *LinkProvider) randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(p.random, b); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func signatureFrom(q url.Values) (string, error) {
	sig := q.Get("signature")
	raw, err := hexutil.Decode(sig)
	if err != nil || len(raw) != 65 {
		return "", werr.Newf(werr.UnexpectedResponse, "invalid signature %q", sig)
	}
	return sig, nil
}

func callbackError(code, message string) error {
	switch strings.ToLower(code) {
	case "rejected", "user_rejected", "4001", "5000":
		return werr.New(werr.UserRejected, message)
	case "not_connected", "disconnected", "4100":
		return werr.New(werr.NotConnected, message)
	case "no_wallet", "not_installed":
		return werr.New(werr.NoWalletFound, message)
	default:
		if message == "" {
			message = code
		}
		return werr.New(werr.UnexpectedResponse, message)
	}
}
