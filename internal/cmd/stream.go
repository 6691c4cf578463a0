package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream <message>",
	Short: "Stream an agent answer as it is produced",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	for delta, err := range client.StreamAgentRequest(ctx, strings.Join(args, " ")) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, delta)
	}
	fmt.Fprintln(out)
	return nil
}
