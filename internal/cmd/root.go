// Package cmd provides the CLI commands for openclaw.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	openclaw "github.com/openclaw/gateway-client-go"
)

var (
	// Global flags
	configPath string

	// Loaded configuration
	cfg = openclaw.DefaultConfig()

	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "openclaw",
	Short: "openclaw - A command-line client for OpenClaw gateways",
	Long: `openclaw talks to an OpenClaw gateway over its operator protocol.

It can send one-off or interactive agent requests, stream agent
output as it is produced, probe gateway health, and keep a
supervised connection open.

The gateway token is read from --token, the config file, or
$OPENCLAW_TOKEN, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help and completion commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if configPath != "" {
			loaded, err := openclaw.LoadConfig(configPath)
			if err != nil {
				return err
			}
			// Flags given on the command line win over the file
			if err := openclaw.OverrideFromFlags(cmd.Flags(), &loaded); err != nil {
				return fmt.Errorf("invalid flag: %w", err)
			}
			cfg = loaded
		}
		cfg.ApplyEnv()

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logCloser = openclaw.SetupLogging(cfg, "openclaw-cli")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Clean up logging resources
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	openclaw.BindFlags(rootCmd.PersistentFlags(), &cfg)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (flags override it)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// connectClient creates a client from the loaded configuration and waits
// for the handshake.
func connectClient(ctx context.Context) (*openclaw.Client, error) {
	client, err := openclaw.New(cfg, openclaw.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transport", string(cfg.Transport)).
		Str("address", cfg.Address()).
		Msg("Connecting to gateway")

	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
