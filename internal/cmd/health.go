package cmd

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	openclaw "github.com/openclaw/gateway-client-go"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the gateway and print its health as JSON",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

type healthReport struct {
	Gateway  *openclaw.GatewayHealth `json:"gateway"`
	Raw      map[string]interface{}  `json:"raw"`
	Client   *openclaw.HealthStatus  `json:"client"`
	UptimeMs *int64                  `json:"connect_uptime_ms,omitempty"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}

	report := healthReport{
		Gateway: health,
		Raw:     health.Raw,
		Client:  client.Status(),
	}
	if uptime, ok := openclaw.SnapshotUptimeMs(client.ConnectSnapshot()); ok {
		report.UptimeMs = &uptime
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
