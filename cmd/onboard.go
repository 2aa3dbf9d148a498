package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mohsinsiddi/w3connect/internal/broadcast"
	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/logging"
	"github.com/Mohsinsiddi/w3connect/internal/metrics"
	"github.com/Mohsinsiddi/w3connect/internal/onboard"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

var errCanceled = errors.New("onboarding canceled")

var (
	onboardWallet      string
	onboardChain       string
	onboardFamily      string
	onboardJSON        bool
	onboardPlain       bool
	onboardOpen        bool
	onboardMetricsAddr string

	bypassEnabled    bool
	bypassKey        string
	bypassPeer       string
	bypassReject     int
	bypassConnectErr string
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Connect a wallet, sign the onboarding message and derive the account",
	Long: `Run one onboarding attempt.

Deep-link wallets print a link to open on the device running the wallet;
paste the callback URI the wallet returns and press enter. Without --wallet
the default wallet is used, then an interactive picker, then modal mode
(the wallet chooses itself).

Examples:
  w3connect onboard --wallet metamask
  w3connect onboard --bypass --json
  w3connect onboard --wallet rainbow --chain base
  w3connect onboard --bypass --bypass-peer "MetaMask Wallet" --bypass-reject 1`,
	Args: cobra.NoArgs,
	RunE: runOnboard,
}

func runOnboard(cmd *cobra.Command, args []string) error {
	if onboardChain != "" {
		if _, err := applyChain(cfg, onboardChain); err != nil {
			return err
		}
	}
	if onboardFamily != "" {
		cfg.ChainFamily = onboardFamily
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := !onboardPlain && !onboardJSON && isTerminal(os.Stdout)
	log := logger
	if interactive && logFile == "" {
		log = logging.Discard()
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	script, err := bypassScript(bypassPeer, bypassConnectErr, bypassReject)
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg, log, providerOptions{
		autoOpen:  onboardOpen,
		bypassKey: bypassKey,
		script:    script,
	})
	if err != nil {
		return err
	}

	bc := broadcast.New()
	defer bc.Close()

	opts := []onboard.Option{
		onboard.WithLogger(log),
		onboard.WithBroadcaster(bc),
		onboard.WithRetryPolicy(retryPolicy(cfg)),
	}
	addr := onboardMetricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	if addr != "" {
		promReg := prometheus.NewRegistry()
		opts = append(opts, onboard.WithObserver(metrics.NewMetrics(promReg)))
		if _, err := serveMetrics(ctx, addr, promReg, log); err != nil {
			return err
		}
	}

	m := onboard.New(cat, reg, newDeriver(cfg), opts...)
	defer m.Close()

	walletID, err := resolveWallet(cat, interactive)
	if err != nil {
		return err
	}
	params := onboardParams(cfg, walletID)
	start := func() string { return m.Start(ctx, params) }

	var final onboard.Status
	if interactive {
		final, err = followTUI(ctx, m, bc, "Onboarding · "+walletLabel(walletID), start)
	} else {
		final, err = followPlain(ctx, m, bc, start, onboard.Status.Terminal, os.Stdin, os.Stderr)
	}
	if err != nil {
		return err
	}
	return printOutcome(cmd.OutOrStdout(), final, onboardJSON)
}

// resolveWallet picks the wallet id: flags, then config, then the picker.
// An empty result means modal mode.
func resolveWallet(cat *catalog.Catalog, interactive bool) (string, error) {
	switch {
	case bypassEnabled:
		return catalog.IDBypass, nil
	case onboardWallet != "":
		return onboardWallet, nil
	case cfg.DefaultWallet != "":
		return cfg.DefaultWallet, nil
	case !interactive:
		return "", nil
	}
	items := ui.WalletItems(cat.Snapshot().All(), catalog.ChainFamily(cfg.ChainFamily))
	id, err := ui.PickItem("Choose a wallet", items)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errCanceled
	}
	return id, nil
}

func walletLabel(id string) string {
	if id == "" {
		return "any wallet"
	}
	return id
}

// followPlain starts an attempt and prints its progress to out until done
// reports true for one of its statuses. Lines read from in are handed to the
// machine as callback URIs.
func followPlain(
	ctx context.Context,
	m *onboard.Machine,
	bc *broadcast.Broadcaster,
	start func() string,
	done func(onboard.Status) bool,
	in io.Reader,
	out io.Writer,
) (onboard.Status, error) {
	statuses, cancelStatus := m.Subscribe()
	defer cancelStatus()
	links, cancelLinks := bc.SubscribeDebugLink()
	defer cancelLinks()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	id := start()
	last := onboard.PhaseIdle
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return m.Status(), errCanceled

		case link, ok := <-links:
			if !ok {
				links = nil
				continue
			}
			if link != "" {
				fmt.Fprintln(out, ui.Info("open in your wallet:"))
				fmt.Fprintln(out, "  "+link)
				fmt.Fprintln(out, ui.Hint("paste the callback URI here and press enter"))
			}

		case line := <-lines:
			if line == "" {
				continue
			}
			if !m.HandleURI(line) {
				fmt.Fprintln(out, ui.Warn("callback is not for this attempt"))
			}

		case s, ok := <-statuses:
			if !ok {
				return m.Status(), errCanceled
			}
			if s.Attempt != id {
				continue
			}
			if s.Phase != last {
				last = s.Phase
				fmt.Fprintln(out, ui.Meta("status: "+s.Phase.String()))
			}
			if done(s) {
				return s, nil
			}
		}
	}
}

// followTUI starts an attempt inside the Bubble Tea onboarding view.
func followTUI(ctx context.Context, m *onboard.Machine, bc *broadcast.Broadcaster, title string, start func() string) (onboard.Status, error) {
	prog := tea.NewProgram(ui.NewOnboardModel(title, m), tea.WithContext(ctx))

	statuses, cancelStatus := m.Subscribe()
	defer cancelStatus()
	states, cancelStates := bc.Subscribe()
	defer cancelStates()
	links, cancelLinks := bc.SubscribeDebugLink()
	defer cancelLinks()

	id := start()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-statuses:
				if !ok {
					return
				}
				if s.Attempt == id {
					prog.Send(ui.StatusMsg(s))
				}
			case st, ok := <-states:
				if !ok {
					return
				}
				prog.Send(ui.ConnectionMsg(st))
			case l, ok := <-links:
				if !ok {
					return
				}
				prog.Send(ui.DebugLinkMsg(l))
			}
		}
	}()

	final, err := prog.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return m.Status(), fmt.Errorf("onboarding view: %w", err)
	}
	if fm, ok := final.(ui.OnboardModel); !ok || fm.Quitting || ctx.Err() != nil {
		m.Stop()
		return m.Status(), errCanceled
	}
	return m.Status(), nil
}

type onboardOutput struct {
	Status  string          `json:"status"`
	Attempt string          `json:"attempt"`
	Result  *onboard.Result `json:"result,omitempty"`
	Error   *errorOutput    `json:"error,omitempty"`
}

type errorOutput struct {
	Code    werr.Code `json:"code"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
}

// printOutcome writes the final status and returns its error, if any.
func printOutcome(w io.Writer, s onboard.Status, asJSON bool) error {
	if asJSON {
		out := onboardOutput{Status: s.Phase.String(), Attempt: s.Attempt, Result: s.Result}
		if s.Err != nil {
			out.Error = &errorOutput{Code: s.Err.Code, Title: s.Err.Title, Message: s.Err.Message}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else if s.Result != nil {
		fmt.Fprintln(w, ui.ResultBlock(s.Result))
		fmt.Fprintln(w, ui.Hint("show the mnemonic with: w3connect derive <signature> --show-mnemonic"))
	}
	if s.Phase == onboard.PhaseError && s.Err != nil {
		return s.Err
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func init() {
	f := onboardCmd.Flags()
	f.StringVarP(&onboardWallet, "wallet", "w", "", "wallet id from the catalog (see: w3connect wallets)")
	f.StringVar(&onboardChain, "chain", "", `chain to sign for, by name ("sepolia") or id (default from config)`)
	f.StringVar(&onboardFamily, "family", "", `primary chain family: "evm" or "solana"`)
	f.BoolVar(&onboardJSON, "json", false, "print the result as JSON (implies --plain)")
	f.BoolVar(&onboardPlain, "plain", false, "line-based output instead of the interactive view")
	f.BoolVar(&onboardOpen, "open", false, "open deep links with the OS handler")
	f.StringVar(&onboardMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	f.BoolVar(&bypassEnabled, "bypass", false, "use the debug bypass connector")
	f.StringVar(&bypassKey, "bypass-key", "", "hex private key for the bypass connector")
	f.StringVar(&bypassPeer, "bypass-peer", "", "peer name the bypass connector reports")
	f.IntVar(&bypassReject, "bypass-reject", 0, "number of sign requests the bypass connector rejects")
	f.StringVar(&bypassConnectErr, "bypass-connect-error", "", "error code the bypass connector fails to connect with")
}
