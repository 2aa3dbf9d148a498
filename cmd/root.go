package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3connect/internal/config"
	"github.com/Mohsinsiddi/w3connect/internal/logging"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3connect/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir   string
	cfg      *config.Config
	verbose  bool
	logFile  string
	logger   *slog.Logger
	closeLog = func() error { return nil }
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3connect",
	Short: "Wallet connection and signature-derived key onboarding",
	Long: `w3connect connects an external wallet, asks it to sign a fixed
onboarding message and deterministically derives a dYdX account from the
signature.

Deep-link wallets are reached by opening a pairing link on the device that
runs the wallet; the wallet answers with a callback URI which is pasted back
into the running command.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, closeLog, err = logging.New(logging.Options{
			Level:  level,
			Format: cfg.LogFormat,
			Output: logFile,
		})
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default: $"+config.EnvConfigDir+" or ~/.w3connect)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", `log destination: "stderr", "stdout", "discard" or a file path`)

	rootCmd.AddCommand(
		onboardCmd,
		debugLinkCmd,
		walletsCmd,
		typedDataCmd,
		deriveCmd,
		keyCmd,
		uriCmd,
		chainsCmd,
		configCmd,
	)
}
