package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Mohsinsiddi/alchscan/internal/config"
	"github.com/Mohsinsiddi/alchscan/internal/keys"
	"github.com/Mohsinsiddi/alchscan/internal/logging"
	"github.com/spf13/cobra"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/alchscan/cmd.Version=1.2.3" .
var Version = "0.3.0"

var (
	cfgDir  string
	cfg     *config.Config
	verbose bool
)

// openKeystore is swapped out in tests.
var openKeystore = func() keys.Store { return keys.DefaultKeystore() }

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "alchscan",
	Short: "Download the asset-transfer history of an EVM address",
	Long: `alchscan walks Alchemy's alchemy_getAssetTransfers pages for one address
and writes every transfer as one JSON document per line.

Configuration is read from ~/.alchscan/config.yaml, ALCHSCAN_* environment
variables and flags, in increasing priority. Set ALCHSCAN_CONFIG_DIR or
--config to use another directory.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config (skip for commands that don't need it).
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

func init() {
	// ALCHSCAN_CONFIG_DIR env var overrides the --config default.
	if envDir := os.Getenv("ALCHSCAN_CONFIG_DIR"); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.alchscan)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		collectCmd,
		keyCmd,
		configCmd,
		cacheCmd,
	)
}
