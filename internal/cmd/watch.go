package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	openclaw "github.com/openclaw/gateway-client-go"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep a supervised connection open and log gateway health",
	Long: `Keep a connection to the gateway open until interrupted.

The connection is probed every --health-interval. A failed probe
forces a reconnect. Presence and health are logged on every probe.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := openclaw.New(cfg, openclaw.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	defer client.Close()

	// A rejected handshake will not fix itself; anything else is retried.
	if err := client.Connect(ctx); err != nil {
		if errors.Is(err, openclaw.ErrAuthentication) || errors.Is(err, openclaw.ErrProtocol) {
			return err
		}
		log.Warn().Err(err).Msg("Initial connect failed, supervisor will retry")
	}

	supervisor := openclaw.NewSupervisor(client, cfg.HealthCheckInterval).
		WithLogger(log.Logger).
		WithHealthHandler(func(health *openclaw.GatewayHealth) {
			event := log.Info().
				Str("status", health.Status).
				Str("version", health.Version).
				Int64("uptime_ms", health.UptimeMs)
			if count, ok := openclaw.PresenceClientCount(client.Presence()); ok {
				event = event.Int("clients", count)
			}
			event.Msg("Gateway healthy")
		})

	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	report := client.Metrics()
	log.Info().
		Uint64("runs_total", report.RunsTotal).
		Float64("uptime_seconds", report.UptimeSeconds).
		Msg("Stopped watching")
	return nil
}
