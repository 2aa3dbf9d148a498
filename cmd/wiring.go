package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/chain"
	"github.com/Mohsinsiddi/w3connect/internal/config"
	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/derive"
	"github.com/Mohsinsiddi/w3connect/internal/metrics"
	"github.com/Mohsinsiddi/w3connect/internal/onboard"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

// providerOptions carries per-invocation provider settings from flags.
type providerOptions struct {
	autoOpen  bool
	bypassKey string
	script    connect.Script
	keys      connect.KeystoreBackend // nil = OS keychain
}

// loadCatalog returns the built-in catalog, or the configured YAML catalog.
func loadCatalog(c *config.Config) (*catalog.Catalog, error) {
	cat := catalog.NewDefault()
	if path := c.CatalogPath(); path != "" {
		if err := cat.LoadFile(path); err != nil {
			return nil, fmt.Errorf("loading wallet catalog: %w", err)
		}
	}
	return cat, nil
}

// newRegistry registers one factory per wallet kind.
func newRegistry(c *config.Config, log *slog.Logger, po providerOptions) (*connect.Registry, error) {
	// Fail on a bad bypass key now rather than inside the flow.
	bypass, err := connect.NewBypassProvider(po.bypassKey)
	if err != nil {
		return nil, fmt.Errorf("bypass key: %w", err)
	}

	keys := po.keys
	if keys == nil {
		keys = connect.OpenKeystore(c.KeychainService)
	}

	reg := connect.NewRegistry()
	reg.Register(catalog.KindLink, func() connect.Provider {
		return connect.NewLinkProvider(
			connect.WithOpener(connect.OpenerFunc(func(link string) error {
				if !po.autoOpen {
					return nil
				}
				return ui.OpenURL(link)
			})),
			connect.WithCallbackScheme(c.CallbackScheme),
			connect.WithLinkLogger(log),
		)
	})
	reg.Register(catalog.KindEmbedded, func() connect.Provider {
		return connect.NewEmbeddedProvider(keys,
			connect.WithKeychainService(c.KeychainService),
			connect.WithLogin(c.EmbeddedLogin, c.EmbeddedEmail),
			connect.WithEmbeddedLogger(log),
		)
	})
	reg.Register(catalog.KindBypass, func() connect.Provider {
		return bypass.Clone(connect.WithScript(po.script))
	})
	return reg, nil
}

// bypassScript builds the canned bypass outcomes from flag values.
func bypassScript(peer, connectErr string, rejections int) (connect.Script, error) {
	s := connect.Script{Peer: peer}
	if connectErr != "" {
		code := werr.Code(strings.ToUpper(connectErr))
		if !code.Known() {
			return s, fmt.Errorf("unknown error code %q", connectErr)
		}
		s.ConnectErr = werr.New(code, "scripted by --bypass-connect-error")
	}
	for range rejections {
		s.SignErrs = append(s.SignErrs, werr.ErrUserRejected)
	}
	return s, nil
}

func newDeriver(c *config.Config) *derive.SignatureDeriver {
	return derive.NewSignatureDeriver(
		derive.WithPrefix(c.Bech32Prefix),
		derive.WithAuxPrefixes(c.AuxPrefixes...),
	)
}

func retryPolicy(c *config.Config) onboard.RetryPolicy {
	p := onboard.DefaultRetryPolicy()
	p.Delay = c.RetryDelay()
	p.Quirk = onboard.PeerNameMatcher(c.QuirkPeers)
	p.RequireChainSwitch = c.RequireChainSwitch
	if len(c.QuirkPeers) == 0 {
		p.MaxRetries = 0
	}
	return p
}

func onboardParams(c *config.Config, walletID string) onboard.Params {
	return onboard.Params{
		WalletID:    walletID,
		ChainID:     c.ChainID,
		Action:      c.Action,
		DomainName:  c.DomainName,
		Family:      catalog.ChainFamily(c.ChainFamily),
		PrimaryType: c.PrimaryType,
	}
}

// serveMetrics exposes g on addr under /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, log *slog.Logger) (string, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	bound := ln.Addr().String()

	go func() {
		log.Info("metrics endpoint started", "addr", bound)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return bound, nil
}

var chains = chain.NewRegistry()

// applyChain points c at the chain named by s (slug or decimal id). Non-EVM
// chains only switch the family; the configured chain id stays in the
// signing domain of any later EVM attempt.
func applyChain(c *config.Config, s string) (chain.Chain, error) {
	ch, err := chains.Resolve(s)
	if err != nil {
		return chain.Chain{}, err
	}
	c.ChainFamily = string(ch.Family)
	if ch.ChainID != 0 {
		c.ChainID = ch.ChainID
	}
	return ch, c.Validate()
}
