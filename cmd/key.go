package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var (
	keyHex string
	keyYes bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage embedded wallet keys in the OS keychain",
}

var keyImportCmd = &cobra.Command{
	Use:   "import <account>",
	Short: "Store a private key for an embedded wallet account",
	Long: `Store a hex private key in the OS keychain under <account>. The key is
read from --key or, when omitted, from the first line of stdin.

Examples:
  w3connect key import embedded --key 0xac09...
  pass show wallet | w3connect key import embedded`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hexKey := keyHex
		if hexKey == "" {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading key from stdin: %w", err)
			}
			hexKey = line
		}
		hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")

		pk, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
		ks := connect.OpenKeystore(cfg.KeychainService)
		if _, err := ks.Store(args[0], hexKey); err != nil {
			return err
		}
		addr := crypto.PubkeyToAddress(pk.PublicKey).Hex()
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Key for %q stored: %s", args[0], ui.Addr(addr))))
		fmt.Fprintln(cmd.OutOrStdout(), ui.Hint("Onboard with: w3connect onboard --wallet "+args[0]))
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show <account>",
	Short: "Show the address of a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks := connect.OpenKeystore(cfg.KeychainService)
		hexKey, err := ks.Retrieve(connect.KeyRef(cfg.KeychainService, args[0]))
		if err != nil {
			return err
		}
		pk, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return fmt.Errorf("stored key is corrupt: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Embedded key", [][2]string{
			{"Account", args[0]},
			{"Address", crypto.PubkeyToAddress(pk.PublicKey).Hex()},
			{"Keychain", cfg.KeychainService},
		}))
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !keyYes && !ui.ConfirmDanger(fmt.Sprintf("Delete the key for %q? This cannot be undone.", args[0])) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("aborted"))
			return nil
		}
		ks := connect.OpenKeystore(cfg.KeychainService)
		if err := ks.Delete(connect.KeyRef(cfg.KeychainService, args[0])); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Key for %q deleted", args[0])))
		return nil
	},
}

func init() {
	keyImportCmd.Flags().StringVar(&keyHex, "key", "", "hex private key (read from stdin when omitted)")
	keyDeleteCmd.Flags().BoolVarP(&keyYes, "yes", "y", false, "skip confirmation")
	keyCmd.AddCommand(keyImportCmd, keyShowCmd, keyDeleteCmd)
}
