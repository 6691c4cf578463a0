package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	openclaw "github.com/openclaw/gateway-client-go"
)

var (
	// Chat-specific flags
	stripEmojis    bool
	maxChars       int
	idempotencyKey string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send agent requests and print the final answers",
	Long: `Send a message to the agent and print its final answer.

With a message argument, one request is sent and the command exits:
  openclaw chat "What's on my calendar today?"

Without one, messages are read from stdin, one per line, until EOF.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolVar(&stripEmojis, "strip-emojis", false, "Remove emoji from answers")
	chatCmd.Flags().IntVar(&maxChars, "max-chars", 0, "Truncate answers for speech (0 disables)")
	chatCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key for a single request")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := connectClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(args) > 0 {
		var opts []openclaw.RequestOption
		if idempotencyKey != "" {
			opts = append(opts, openclaw.WithIdempotencyKey(idempotencyKey))
		}
		return sendOnce(ctx, client, strings.Join(args, " "), opts...)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if err := sendOnce(ctx, client, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func sendOnce(ctx context.Context, client *openclaw.Client, message string, opts ...openclaw.RequestOption) error {
	reply, err := client.SendAgentRequest(ctx, message, opts...)
	if err != nil {
		return err
	}
	fmt.Println(formatReply(reply))
	return nil
}

func formatReply(reply string) string {
	if stripEmojis {
		reply = openclaw.StripEmojis(reply)
	}
	return openclaw.TruncateForSpeech(reply, maxChars)
}
