package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/typeddata"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var (
	typedChain  string
	typedFamily string
	typedAction string
	typedDomain string
)

var typedDataCmd = &cobra.Command{
	Use:   "typed-data",
	Short: "Print the onboarding message a wallet is asked to sign",
	Long: `Print the EIP-712 payload (and its signing hash) sent to EVM wallets, or
the plain text message sent to wallets on chains without typed data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if typedChain != "" {
			if _, err := applyChain(cfg, typedChain); err != nil {
				return err
			}
		}
		chainID := cfg.ChainID
		family := catalog.ChainFamily(cfg.ChainFamily)
		if typedFamily != "" {
			family = catalog.ChainFamily(typedFamily)
		}
		action := cfg.Action
		if typedAction != "" {
			action = typedAction
		}
		domain := cfg.DomainName
		if typedDomain != "" {
			domain = typedDomain
		}

		out := cmd.OutOrStdout()
		req := typeddata.ForChain(family, domain, chainID, action)
		if !req.Typed() {
			fmt.Fprintln(out, ui.Info("plain message for "+string(family)))
			fmt.Fprintln(out, req.Plain)
			return nil
		}

		p := req.Payload
		if cfg.PrimaryType != "" && cfg.PrimaryType != p.Message.TypeName {
			p = typeddata.BuildWithType(cfg.PrimaryType, domain, chainID, action)
		}
		if err := p.Validate(); err != nil {
			return err
		}
		raw, err := p.JSON()
		if err != nil {
			return err
		}
		hash, err := p.Hash()
		if err != nil {
			return err
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(out, pretty.String())
		fmt.Fprintln(out, ui.Meta("hash: ")+ui.Val(hexutil.Encode(hash)))
		return nil
	},
}

func init() {
	f := typedDataCmd.Flags()
	f.StringVar(&typedChain, "chain", "", "chain name or id (default from config)")
	f.StringVar(&typedFamily, "family", "", `chain family: "evm" or "solana"`)
	f.StringVar(&typedAction, "action", "", "action text (default from config)")
	f.StringVar(&typedDomain, "domain", "", "domain name (default from config)")
}
