package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var (
	chainsJSON    bool
	chainsTestnet bool
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List chains accepted by --chain and config set-chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		list := chains.All()
		if chainsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		t := ui.NewTable([]ui.Column{
			{Title: "NAME", Width: 18},
			{Title: "CHAIN", Width: 20},
			{Title: "ID", Width: 10},
			{Title: "FAMILY", Width: 7},
		})
		for _, c := range list {
			if c.Testnet && !chainsTestnet {
				continue
			}
			id := "-"
			if c.ChainID != 0 {
				id = fmt.Sprint(c.ChainID)
			}
			name := c.Name
			if c.ChainID == cfg.ChainID && string(c.Family) == cfg.ChainFamily {
				name += " *"
			}
			t.AddRow(ui.Row{name, c.DisplayName, id, string(c.Family)})
		}
		fmt.Fprint(out, t.Render())
		fmt.Fprintln(out, ui.Hint("Any other EVM chain id works too: w3connect onboard --chain 31337"))
		return nil
	},
}

func init() {
	chainsCmd.Flags().BoolVar(&chainsJSON, "json", false, "output as JSON")
	chainsCmd.Flags().BoolVar(&chainsTestnet, "testnets", false, "include testnets")
}
