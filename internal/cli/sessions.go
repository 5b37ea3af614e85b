package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
	"github.com/pramodthe/enterprise-ai-platform/pkg/session"
)

var (
	sessionsUser        string
	sessionsExpiredOnly bool
	sessionsMaxAge      int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and maintain stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session ids",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark sessions idle for longer than --max-age-hours as expired",
	Args:  cobra.NoArgs,
	RunE:  runSessionsExpire,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsUser, "user", "", "only sessions owned by this user")
	sessionsListCmd.Flags().BoolVar(&sessionsExpiredOnly, "expired", false, "only expired sessions")
	sessionsExpireCmd.Flags().IntVar(&sessionsMaxAge, "max-age-hours", 0, "idle age in hours (default session.max_age_hours)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsExpireCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		var f session.Filter
		if sessionsUser != "" {
			f = session.ByUser(sessionsUser)
		}
		if sessionsExpiredOnly {
			expired := true
			f.IsExpired = &expired
		}

		ids, err := app.Sessions.List(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(ids) == 0 {
			cmd.Println("No sessions.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	})
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		s, err := app.Sessions.Get(ctx, args[0])
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found", args[0])
		}
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	})
}

func runSessionsExpire(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		maxAge := sessionsMaxAge
		if maxAge <= 0 {
			maxAge = app.Config.Session.MaxAgeHours
		}
		if maxAge <= 0 {
			maxAge = session.DefaultMaxAgeHours
		}

		n, err := app.Sessions.ExpireStale(ctx, maxAge)
		if err != nil {
			return fmt.Errorf("failed to expire sessions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d session(s)\n", n)
		return nil
	})
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		if err := app.Sessions.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	})
}
