package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
)

var (
	chatSessionID string
	chatUserID    string
	chatVerbose   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the platform from the terminal",
	Long: `Send a message to an in-process instance of the platform.
With a message argument the reply is printed and the command exits; without
one an interactive session reads messages from stdin until "exit" or EOF.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "continue an existing session")
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "user id to attach to new sessions")
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "print routing metadata with each reply")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		out := cmd.OutOrStdout()
		sessionID := chatSessionID

		if len(args) > 0 {
			resp := app.Orchestrator.Process(ctx, orchestrator.Request{
				Message:   strings.Join(args, " "),
				SessionID: sessionID,
				UserID:    chatUserID,
			})
			printReply(out, resp)
			return nil
		}

		return chatLoop(ctx, app.Orchestrator, cmd.InOrStdin(), out, sessionID)
	})
}

func chatLoop(ctx context.Context, orch *orchestrator.Orchestrator, in io.Reader, out io.Writer, sessionID string) error {
	fmt.Fprintln(out, `Type a message and press enter. "exit" quits.`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		resp := orch.Process(ctx, orchestrator.Request{
			Message:   line,
			SessionID: sessionID,
			UserID:    chatUserID,
		})
		if resp.SessionID != orchestrator.GuardrailBlockedSessionID {
			sessionID = resp.SessionID
		}
		printReply(out, resp)
	}
}

func printReply(out io.Writer, resp orchestrator.Response) {
	fmt.Fprintln(out, resp.Text)
	fmt.Fprintf(out, "[%s %.2f] session=%s\n", resp.AgentUsed, resp.Confidence, resp.SessionID)
	if chatVerbose {
		if reasoning, ok := resp.Metadata["routing_reasoning"].(string); ok && reasoning != "" {
			fmt.Fprintf(out, "  reasoning: %s\n", reasoning)
		}
		if fallbacks, ok := resp.Metadata["fallback_agents"].([]string); ok && len(fallbacks) > 0 {
			fmt.Fprintf(out, "  fallbacks: %s\n", strings.Join(fallbacks, ", "))
		}
	}
}
