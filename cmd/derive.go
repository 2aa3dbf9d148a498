package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/derive"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var (
	deriveShowMnemonic bool
	deriveJSON         bool
)

var deriveCmd = &cobra.Command{
	Use:   "derive <signature>",
	Short: "Derive the account for an onboarding signature",
	Long: `Derive the mnemonic and addresses from a 65-byte onboarding signature,
exactly as onboarding does. The same signature always yields the same
account.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := newDeriver(cfg)
		got, err := d.Derive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printDerived(cmd, d, got)
	},
}

type deriveOutput struct {
	Address   string            `json:"address"`
	Path      string            `json:"path"`
	PublicKey string            `json:"publicKey"`
	Aux       map[string]string `json:"aux,omitempty"`
	Mnemonic  string            `json:"mnemonic,omitempty"`
}

func printDerived(cmd *cobra.Command, d *derive.SignatureDeriver, got *derive.Derived) error {
	out := cmd.OutOrStdout()
	if deriveJSON {
		o := deriveOutput{
			Address:   got.Address,
			Path:      d.Path(),
			PublicKey: hex.EncodeToString(got.PublicKey),
			Aux:       got.Aux,
		}
		if deriveShowMnemonic {
			o.Mnemonic = got.Mnemonic
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	}

	pairs := [][2]string{
		{"Address", got.Address},
		{"Path", d.Path()},
		{"Public key", hex.EncodeToString(got.PublicKey)},
	}
	for _, prefix := range slices.Sorted(maps.Keys(got.Aux)) {
		pairs = append(pairs, [2]string{prefix, got.Aux[prefix]})
	}
	if deriveShowMnemonic {
		pairs = append(pairs, [2]string{"Mnemonic", got.Mnemonic})
	}
	fmt.Fprintln(out, ui.KeyValueBlock("Derived account", pairs))
	if deriveShowMnemonic {
		fmt.Fprintln(out, ui.Warn("anyone with this mnemonic controls the account"))
	}
	return nil
}

func init() {
	deriveCmd.Flags().BoolVar(&deriveShowMnemonic, "show-mnemonic", false, "include the mnemonic in the output")
	deriveCmd.Flags().BoolVar(&deriveJSON, "json", false, "print as JSON")
}
