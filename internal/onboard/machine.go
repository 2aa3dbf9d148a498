// Package onboard runs the wallet setup flow: connect to the chosen backend,
// sign the onboarding payload, derive the secondary account and publish one
// status stream for the whole attempt.
package onboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Mohsinsiddi/w3connect/internal/broadcast"
	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/derive"
	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// Defaults applied to Params.
const (
	DefaultChainID    int64 = 1 // Ethereum mainnet
	DefaultDomainName       = "dYdX Chain"
	DefaultAction           = "dYdX Chain Onboarding"
)

// Params describes one onboarding attempt. An empty WalletID lets the link
// backend pick the wallet (modal mode).
type Params struct {
	WalletID    string
	ChainID     int64
	Action      string
	DomainName  string
	Family      catalog.ChainFamily
	PrimaryType string
}

func (p Params) withDefaults() Params {
	if p.ChainID == 0 {
		p.ChainID = DefaultChainID
	}
	if p.DomainName == "" {
		p.DomainName = DefaultDomainName
	}
	if p.Action == "" {
		p.Action = DefaultAction
	}
	if p.Family == "" {
		p.Family = catalog.FamilyEVM
	}
	return p
}

// Observer is told about every published status, in order. It is called
// with the machine locked and must not call back into it.
type Observer interface {
	StatusChanged(Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Status)

// StatusChanged calls f.
func (f ObserverFunc) StatusChanged(s Status) { f(s) }

// Machine is the wallet setup state machine. Each attempt owns one provider
// created from the registry; a new Start fully stops the previous attempt.
type Machine struct {
	catalog   catalog.Source
	registry  *connect.Registry
	deriver   derive.Deriver
	log       *slog.Logger
	bc        *broadcast.Broadcaster
	retry     RetryPolicy
	observers []Observer
	after     func(time.Duration) <-chan time.Time
	newID     func() string

	status *broadcast.Value[Status]
	wg     sync.WaitGroup

	mu  sync.Mutex
	gen uint64
	fsm tracker
	att *attempt
}

type attempt struct {
	id        string
	gen       uint64
	params    Params
	wallet    *catalog.Descriptor // resolved copy, nil in modal mode
	provider  connect.Provider
	cancel    context.CancelFunc
	debugOnly bool
	log       *slog.Logger
	relay     *stateRelay // nil without a broadcaster

	once sync.Once
}

// stateRelay forwards one attempt's connection states to the shared
// broadcaster until the attempt is retired. States from a retired attempt's
// provider are dropped.
type stateRelay struct {
	mu      sync.Mutex
	bc      *broadcast.Broadcaster
	retired bool
}

func (r *stateRelay) ConnectionStateChanged(s connect.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.retired {
		r.bc.ConnectionStateChanged(s)
	}
}

func (r *stateRelay) retire() {
	r.mu.Lock()
	r.retired = true
	r.mu.Unlock()
}

// disconnect tears the session down exactly once per attempt.
func (a *attempt) disconnect() {
	a.once.Do(a.provider.Disconnect)
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.log = l
	}
}

// WithBroadcaster makes every attempt's provider report connection states
// to b.
func WithBroadcaster(b *broadcast.Broadcaster) Option {
	return func(m *Machine) {
		m.bc = b
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Machine) {
		m.retry = p
	}
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		m.observers = append(m.observers, o)
	}
}

// WithAfter replaces time.After for the retry delay.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(m *Machine) {
		m.after = after
	}
}

// New creates an idle machine resolving wallets from src and creating
// providers from reg.
func New(src catalog.Source, reg *connect.Registry, d derive.Deriver, opts ...Option) *Machine {
	m := &Machine{
		catalog:  src,
		registry: reg,
		deriver:  d,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		retry:    DefaultRetryPolicy(),
		after:    time.After,
		newID:    newAttemptID,
		status:   broadcast.NewValue(Status{Phase: PhaseIdle}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.fsm.maxRetries = m.retry.MaxRetries
	return m
}

func newAttemptID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Status returns the latest status.
func (m *Machine) Status() Status {
	return m.status.Get()
}

// Subscribe streams statuses, starting with the current one. Intermediate
// statuses may be coalesced for slow readers; use an Observer to see every
// transition.
func (m *Machine) Subscribe() (<-chan Status, func()) {
	return m.status.Subscribe()
}

// Start begins an onboarding attempt and returns its id. Any previous
// attempt is stopped first. An unknown wallet id ends the attempt in
// Error(NO_WALLET_FOUND) before Start returns; otherwise the status is
// Started when Start returns and the rest of the flow runs in the background.
// Cancelling ctx has the same effect as Stop.
func (m *Machine) Start(ctx context.Context, p Params) string {
	return m.start(ctx, p.withDefaults(), false)
}

// StartDebugLink connects in modal mode without signing, so the pairing link
// appears on the broadcaster. The status stops at Connected.
func (m *Machine) StartDebugLink(ctx context.Context) string {
	return m.start(ctx, Params{}.withDefaults(), true)
}

func (m *Machine) start(ctx context.Context, p Params, debugOnly bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.gen++
	id := m.newID()
	log := m.log.With("attempt", id, "wallet", p.WalletID)

	var wallet *catalog.Descriptor
	kind := catalog.KindLink
	if p.WalletID != "" {
		d, err := m.catalog.Snapshot().Get(p.WalletID)
		if err != nil {
			log.Warn("unknown wallet")
			m.failLocked(id, p.WalletID, werr.Newf(werr.NoWalletFound, "unknown wallet %q", p.WalletID))
			return id
		}
		wallet = &d
		kind = d.Kind
	}

	provider, err := m.registry.New(kind)
	if err != nil {
		log.Warn("no provider for wallet", "kind", kind)
		m.failLocked(id, p.WalletID, werr.From(err))
		return id
	}
	var relay *stateRelay
	if m.bc != nil {
		relay = &stateRelay{bc: m.bc}
		provider.SetDelegate(relay)
	}

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{
		id:        id,
		gen:       m.gen,
		params:    p,
		wallet:    wallet,
		provider:  provider,
		cancel:    cancel,
		debugOnly: debugOnly,
		log:       log,
		relay:     relay,
	}
	m.att = a
	if _, err := m.fireLocked(a, EventStart, Status{}); err != nil {
		cancel()
		m.att = nil
		return id
	}

	m.wg.Add(1)
	go m.run(actx, a)
	return id
}

// failLocked ends an attempt that never got a provider.
func (m *Machine) failLocked(id, walletID string, err *werr.WalletError) {
	if _, ferr := m.fsm.fire(EventUnknownWallet); ferr != nil {
		return
	}
	m.publishLocked(Status{Phase: PhaseError, Attempt: id, WalletID: walletID, Err: err})
}

// Stop cancels the current attempt, disconnects its provider and publishes
// Idle. It is safe to call at any time.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Machine) stopLocked() {
	a := m.att
	m.att = nil
	m.gen++
	if a != nil {
		a.cancel()
		if a.relay != nil {
			a.relay.retire()
		}
		a.disconnect()
		if m.bc != nil {
			m.bc.Reset()
		}
		a.log.Info("onboarding stopped")
	}
	if m.fsm.phase != PhaseIdle {
		m.fsm.fire(EventStop)
		m.publishLocked(Status{Phase: PhaseIdle})
	}
}

// HandleURI feeds a callback URI to the active provider.
func (m *Machine) HandleURI(uri string) bool {
	m.mu.Lock()
	a := m.att
	m.mu.Unlock()
	if a == nil {
		return false
	}
	return a.provider.HandleURI(uri)
}

// Wait blocks until every background attempt has returned.
func (m *Machine) Wait() {
	m.wg.Wait()
}

// Close stops the machine and ends all subscriptions.
func (m *Machine) Close() {
	m.Stop()
	m.Wait()
	m.status.Close()
}

func (m *Machine) run(ctx context.Context, a *attempt) {
	defer m.wg.Done()

	info, err := a.provider.Connect(ctx, connect.Request{
		Wallet:   a.wallet,
		ChainID:  a.params.ChainID,
		UseModal: a.wallet == nil,
	})
	if err != nil {
		m.fail(ctx, a, EventConnectFailed, err)
		return
	}
	walletID := info.WalletID
	if walletID == "" && a.wallet == nil {
		if d, ok := m.catalog.Snapshot().ByPeerName(peerName(info.Peer)); ok {
			walletID = d.ID
		}
	}
	a.log.Info("wallet connected", "address", info.Address, "peer", peerName(info.Peer), "resolved_wallet", walletID)
	if _, err := m.fire(a, EventConnected, Status{}); err != nil || a.debugOnly {
		return
	}

	req := typeddata.ForChain(a.params.Family, a.params.DomainName, a.params.ChainID, a.params.Action)
	if req.Typed() {
		if a.params.PrimaryType != "" {
			req.Payload.Message.TypeName = a.params.PrimaryType
		}
		if err := req.Payload.Validate(); err != nil {
			m.fail(ctx, a, EventSignFailed, err)
			return
		}
	}

	var sig string
	for {
		sig, err = sign(ctx, a.provider, req)
		if err == nil {
			break
		}
		if !m.retry.Matches(err, info, a.params.ChainID) {
			m.fail(ctx, a, EventSignFailed, err)
			return
		}
		phase, ferr := m.fire(a, EventSignRejected, Status{RetryTarget: peerName(info.Peer), Err: werr.From(err)})
		if ferr != nil || phase != PhaseInProgress {
			return
		}
		a.log.Info("retrying rejected sign", "peer", peerName(info.Peer), "delay", m.retry.Delay)
		select {
		case <-ctx.Done():
			m.abandon(a)
			return
		case <-m.after(m.retry.Delay):
		}
	}

	d, err := m.deriver.Derive(ctx, sig)
	if err != nil {
		if werr.IsCanceled(err) && ctx.Err() != nil {
			m.abandon(a)
			return
		}
		m.fail(ctx, a, EventDeriveFailed, werr.Wrap(werr.DerivationFailed, err))
		return
	}

	result := &Result{
		EthereumAddress: info.Address,
		WalletID:        walletID,
		CosmosAddress:   d.Address,
		Mnemonic:        d.Mnemonic,
		AuxAddresses:    d.Aux,
		LoginMethod:     optional(info.LoginMethod),
		Email:           optional(info.Email),
	}
	if result.WalletID == "" {
		result.WalletID = a.params.WalletID
	}
	m.fire(a, EventDerived, Status{Result: result})
}

func sign(ctx context.Context, p connect.Provider, req typeddata.Request) (string, error) {
	if req.Typed() {
		return p.SignTypedData(ctx, req.Payload)
	}
	return p.SignMessage(ctx, req.Plain)
}

// fail publishes Error for err, unless the failure is the attempt's own
// cancellation, which is a stop.
func (m *Machine) fail(ctx context.Context, a *attempt, ev Event, err error) {
	if werr.IsCanceled(err) && ctx.Err() != nil {
		m.abandon(a)
		return
	}
	m.fire(a, ev, Status{Err: werr.From(err)})
}

// abandon stops a if it is still the current attempt.
func (m *Machine) abandon(a *attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.att == a && a.gen == m.gen {
		m.stopLocked()
	}
}

// fire applies ev on behalf of a and publishes the resulting status. Events
// from an attempt that is no longer current are dropped.
func (m *Machine) fire(a *attempt, ev Event, st Status) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.att != a || a.gen != m.gen {
		a.log.Debug("dropping stale completion", "event", ev)
		return PhaseIdle, ErrStaleAttempt
	}
	return m.fireLocked(a, ev, st)
}

// ErrStaleAttempt is returned for completions of a stopped or replaced attempt.
var ErrStaleAttempt = errors.New("stale onboarding attempt")

func (m *Machine) fireLocked(a *attempt, ev Event, st Status) (Phase, error) {
	to, err := m.fsm.fire(ev)
	if err != nil {
		a.log.Debug("ignoring event", "event", ev, "error", err)
		return to, err
	}
	st.Phase = to
	st.Attempt = a.id
	st.WalletID = a.params.WalletID
	if to != PhaseError {
		st.Err = nil
	}
	if to != PhaseInProgress {
		st.RetryTarget = ""
	}
	if to == PhaseError {
		a.log.Warn("onboarding failed", "code", st.Err.Code, "error", st.Err)
		a.cancel()
		a.disconnect()
	}
	m.publishLocked(st)
	return to, nil
}

func (m *Machine) publishLocked(st Status) {
	m.log.Info("onboarding status", "attempt", st.Attempt, "wallet", st.WalletID, "status", st.Phase.String())
	m.status.Set(st)
	for _, o := range m.observers {
		o.StatusChanged(st)
	}
}

func peerName(p *connect.Peer) string {
	if p == nil {
		return ""
	}
	return p.Name
}
