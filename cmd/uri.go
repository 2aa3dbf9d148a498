package cmd

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
	"github.com/Mohsinsiddi/w3connect/internal/ui"
)

var uriCmd = &cobra.Command{
	Use:   "uri <link>",
	Short: "Inspect a pairing link or wallet callback URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, title, err := inspectURI(args[0], cfg.CallbackScheme)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock(title, pairs))
		return nil
	},
}

// inspectURI describes link as a pairing link or a callback URI.
func inspectURI(link, callbackScheme string) ([][2]string, string, error) {
	if topic, symKey, err := connect.ParsePairing(link); err == nil {
		return [][2]string{
			{"Topic", topic},
			{"Symmetric key", symKey},
		}, "Pairing link", nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return nil, "", fmt.Errorf("parsing uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, callbackScheme) {
		return nil, "", fmt.Errorf("%q is neither a pairing link nor a %s:// callback", link, callbackScheme)
	}
	q := u.Query()
	pairs := [][2]string{{"Scheme", u.Scheme}}
	for _, k := range slices.Sorted(maps.Keys(q)) {
		pairs = append(pairs, [2]string{k, q.Get(k)})
	}
	title := "Callback"
	if q.Get("error") != "" {
		title = "Callback (error)"
	}
	return pairs, title, nil
}
