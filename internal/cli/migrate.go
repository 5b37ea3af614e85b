package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pramodthe/enterprise-ai-platform/pkg/session"
)

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL session schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE:  runMigrateVersion,
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDSN, "dsn", "", "PostgreSQL DSN (default session.postgres_dsn)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func resolveDSN(cmd *cobra.Command) (string, error) {
	if migrateDSN != "" {
		return migrateDSN, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Session.PostgresDSN == "" {
		return "", errors.New("no PostgreSQL DSN: pass --dsn or set session.postgres_dsn")
	}
	return cfg.Session.PostgresDSN, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	dsn, err := resolveDSN(cmd)
	if err != nil {
		return err
	}
	if err := session.Migrate(dsn); err != nil {
		return err
	}
	cmd.Println("Migrations applied")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, args []string) error {
	dsn, err := resolveDSN(cmd)
	if err != nil {
		return err
	}
	v, dirty, err := session.MigrationVersion(dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", v, dirty)
	return nil
}
