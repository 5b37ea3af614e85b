package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pramodthe/enterprise-ai-platform/internal/config"
	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/internal/server"
	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
)

var (
	serveHost            string
	servePort            int
	serveShutdownTimeout int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP and WebSocket API server in the foreground.
The server runs until it receives SIGINT or SIGTERM, then drains in-flight
requests and exits.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	serveCmd.Flags().IntVar(&serveShutdownTimeout, "shutdown-timeout", 30, "seconds to wait for in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	pidFile := getPIDFilePath(cfg)
	if isRunning(pidFile) {
		return fmt.Errorf("server is already running (PID file: %s)", pidFile)
	}

	l, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}
		defer observability.GetAuditLogger().Close()
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(tracing.Options{
			ServiceName:  cfg.Tracing.ServiceName,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			Insecure:     cfg.Tracing.Insecure,
			SampleRatio:  cfg.Tracing.SampleRatio,
		}); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close app")
		}
	}()
	if err := app.Start(); err != nil {
		return err
	}

	srvCfg := server.ConfigFrom(cfg.Server)
	srvLogger := l.Component("server")
	srvCfg.Logger = &srvLogger
	srv, err := server.New(app, srvCfg)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	if err := writePIDFile(pidFile); err != nil {
		log.Warn().Err(err).Str("pid_file", pidFile).Msg("Failed to write PID file")
	}
	defer os.Remove(pidFile)

	observability.RecordConfigAudit(ctx, "server_started", "cli", map[string]interface{}{
		"addr":          srv.Addr(),
		"session_store": cfg.Session.Store,
	})
	cmd.Printf("EAP listening on %s\n", srv.Addr())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(serveShutdownTimeout)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func getPIDFilePath(cfg *config.Config) string {
	if cfg != nil && cfg.DataDir != "" {
		return filepath.Join(cfg.DataDir, "eap.pid")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "eap.pid")
	}
	return filepath.Join(home, ".eap", "eap.pid")
}

func writePIDFile(pidFile string) error {
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPIDFile(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

func isRunning(pidFile string) bool {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so test with signal 0
	return process.Signal(syscall.Signal(0)) == nil
}
