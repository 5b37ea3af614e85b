package cli

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with
// -ldflags "-X github.com/pramodthe/enterprise-ai-platform/internal/cli.version=...".
var version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "eap",
	Short: "EAP - Enterprise AI Platform orchestration service",
	Long: `EAP is the orchestration core of the Enterprise AI Platform.
It screens chat messages with a guardrail, routes them to specialized
HR, analytics and document agents, and keeps per-session conversation history.

Settings are read from --config and may be overridden with EAP_* environment
variables, for example EAP_SERVER_PORT=9000.`,
	Version:      version,
	SilenceUsage: true,
}

// Execute runs the root command. main calls it once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.eap/config.json)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate("eap version {{.Version}}\n")
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func GetVersion() string {
	return version
}
