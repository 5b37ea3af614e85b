package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pramodthe/enterprise-ai-platform/pkg/agent"
	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
)

var agentsHealthTimeout int

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect configured agents",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents and their routing keywords",
	Args:  cobra.NoArgs,
	RunE:  runAgentsList,
}

var agentsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every agent's availability",
	Args:  cobra.NoArgs,
	RunE:  runAgentsHealth,
}

func init() {
	agentsHealthCmd.Flags().IntVar(&agentsHealthTimeout, "timeout", 15, "health check timeout in seconds")

	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsHealthCmd)
	rootCmd.AddCommand(agentsCmd)
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENDPOINT\tKEYWORDS")
		for _, name := range app.Router.Agents() {
			endpoint := "local"
			if handle, ok := app.Router.Agent(name); ok {
				if rc, ok := handle.(*agent.RemoteClient); ok {
					endpoint = rc.URL()
				}
			}
			keywords, _ := app.Router.Keywords(name)
			fmt.Fprintf(w, "%s\t%s\t%d (%s)\n", name, endpoint, len(keywords), preview(keywords, 5))
		}
		return w.Flush()
	})
}

type agentHealth struct {
	name      string
	available bool
	caps      []string
}

func runAgentsHealth(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *orchestrator.App) error {
		names := app.Router.Agents()
		results := make([]agentHealth, len(names))

		ctx, cancel := context.WithTimeout(ctx, time.Duration(agentsHealthTimeout)*time.Second)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for i, name := range names {
			results[i].name = name
			handle, ok := app.Router.Agent(name)
			if !ok {
				continue
			}
			g.Go(func() error {
				results[i].available = handle.IsAvailable(gctx)
				results[i].caps = handle.Capabilities(gctx)
				return nil
			})
		}
		_ = g.Wait()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tCAPABILITIES")
		for _, r := range results {
			status := "down"
			if r.available {
				status = "up"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.name, status, preview(r.caps, 5))
		}
		return w.Flush()
	})
}

// preview joins at most n items, noting how many were left out.
func preview(items []string, n int) string {
	if len(items) == 0 {
		return "-"
	}
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, +%d more", strings.Join(items[:n], ", "), len(items)-n)
}
