package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var walletsJSON bool

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "List connectable wallets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		all := cat.Snapshot().All()
		out := cmd.OutOrStdout()

		if walletsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		}

		fmt.Fprint(out, ui.WalletTable(all).Render())
		if path := cfg.CatalogPath(); path != "" {
			fmt.Fprintln(out, ui.Meta("catalog: "+path))
		}
		fmt.Fprintln(out, ui.Hint("Onboard with: w3connect onboard --wallet <id>"))
		return nil
	},
}

var walletsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one wallet's descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		d, err := cat.Snapshot().Get(args[0])
		if err != nil {
			return err
		}

		families := make([]string, 0, len(d.Chains))
		for _, c := range d.Chains {
			families = append(families, string(c))
		}
		pairs := [][2]string{
			{"ID", d.ID},
			{"Name", d.Name},
			{"Kind", string(d.Kind)},
			{"Chains", strings.Join(families, ", ")},
		}
		if base := connect.WalletBase(d); base != "" {
			pairs = append(pairs, [2]string{"Link base", base})
		}
		if d.Homepage != "" {
			pairs = append(pairs, [2]string{"Homepage", d.Homepage})
		}
		if d.AppStoreID != "" {
			pairs = append(pairs, [2]string{"App Store", d.AppStoreID})
		}
		if d.PackageName != "" {
			pairs = append(pairs, [2]string{"Android package", d.PackageName})
		}
		if len(d.PeerNames) > 0 {
			pairs = append(pairs, [2]string{"Peer names", strings.Join(d.PeerNames, ", ")})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock(d.Name, pairs))
		return nil
	},
}

func init() {
	walletsCmd.Flags().BoolVar(&walletsJSON, "json", false, "print descriptors as JSON")
	walletsCmd.AddCommand(walletsShowCmd)
}
