package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/broadcast"
	"github.com/Mohsinsiddi/w3connect/internal/onboard"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var debugLinkOpen bool

var debugLinkCmd = &cobra.Command{
	Use:   "debug-link",
	Short: "Print a modal pairing link and wait for a wallet to connect",
	Long: `Start a modal connection without signing anything. The pairing link is
printed so it can be opened on another device or turned into a QR code;
paste the wallet's callback URI to finish connecting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		reg, err := newRegistry(cfg, logger, providerOptions{autoOpen: debugLinkOpen})
		if err != nil {
			return err
		}
		bc := broadcast.New()
		defer bc.Close()

		m := onboard.New(cat, reg, newDeriver(cfg),
			onboard.WithLogger(logger),
			onboard.WithBroadcaster(bc),
		)
		defer m.Close()

		connected := func(s onboard.Status) bool {
			return s.Phase == onboard.PhaseConnected || s.Terminal()
		}
		final, err := followPlain(ctx, m, bc, func() string { return m.StartDebugLink(ctx) }, connected, os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
		if final.Err != nil {
			return final.Err
		}

		st := bc.State()
		pairs := [][2]string{{"Connection", st.Phase.String()}}
		if st.Peer != nil {
			pairs = append(pairs,
				[2]string{"Peer", st.Peer.Name},
				[2]string{"Address", st.Peer.Address},
				[2]string{"Chain", chains.Label(st.Peer.ChainID)},
			)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Wallet connected", pairs))
		return nil
	},
}

func init() {
	debugLinkCmd.Flags().BoolVar(&debugLinkOpen, "open", false, "open the link with the OS handler")
}
