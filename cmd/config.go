package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render("Current Configuration"))
		fmt.Fprintln(out, string(data))
		fmt.Fprintln(out, ui.Meta("Config directory: "+cfg.Dir()))
		return nil
	},
}

var configSetDefaultWalletCmd = &cobra.Command{
	Use:   "set-default-wallet <id>",
	Short: "Set the wallet onboard uses without --wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		if _, err := cat.Snapshot().Get(args[0]); err != nil {
			return err
		}
		cfg.DefaultWallet = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Default wallet set to %q", args[0])))
		return nil
	},
}

var configSetChainCmd = &cobra.Command{
	Use:   "set-chain <name|chain-id>",
	Short: "Set the chain signed for during onboarding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := applyChain(cfg, args[0])
		if err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Chain set to "+ch.Label()))
		fmt.Fprintln(cmd.OutOrStdout(), ui.Warn("the derived account depends on the chain id"))
		return nil
	},
}

var configAddQuirkPeerCmd = &cobra.Command{
	Use:   "add-quirk-peer <peer-name>",
	Short: "Retry the signature once when this wallet rejects it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.AddQuirkPeer(args[0]); err != nil {
			// Already configured; not fatal.
			fmt.Fprintln(cmd.OutOrStdout(), ui.Warn(err.Error()))
			return nil
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Quirk peer %q added", args[0])))
		return nil
	},
}

var configRemoveQuirkPeerCmd = &cobra.Command{
	Use:   "remove-quirk-peer <peer-name>",
	Short: "Stop retrying rejected signatures for this wallet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveQuirkPeer(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Quirk peer %q removed", args[0])))
		return nil
	},
}

func init() {
	configCmd.AddCommand(
		configListCmd,
		configSetDefaultWalletCmd,
		configSetChainCmd,
		configAddQuirkPeerCmd,
		configRemoveQuirkPeerCmd,
	)
}
