package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const statusProbeTimeout = 2 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the API server is running",
	Long: `Report the state of an API server started with "eap serve": its PID,
uptime, listen address and what its /healthz endpoint answers.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pidFile := getPIDFilePath(cfg)

	if !isRunning(pidFile) {
		cmd.Println("Status: stopped")
		return nil
	}
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(healthHost(cfg.Server.Host), strconv.Itoa(cfg.Server.Port))
	cmd.Println("Status: running")
	cmd.Printf("PID: %d\n", pid)
	if info, err := os.Stat(pidFile); err == nil {
		cmd.Printf("Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}
	cmd.Printf("Address: %s\n", addr)
	cmd.Printf("Health: %s\n", checkHealth(cmd.Context(), "http://"+addr+"/healthz"))
	return nil
}

// healthHost maps wildcard listen addresses to loopback.
func healthHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	}
	return host
}

func checkHealth(ctx context.Context, url string) string {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "unknown"
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return "ok"
	case http.StatusServiceUnavailable:
		return "shutting down"
	default:
		return fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
}

// formatDuration renders d at second precision, e.g. "1d2h3m4s".
func formatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	days, secs := secs/86400, secs%86400
	hours, secs := secs/3600, secs%3600
	mins, secs := secs/60, secs%60

	out := ""
	if days > 0 {
		out += fmt.Sprintf("%dd", days)
	}
	if out != "" || hours > 0 {
		out += fmt.Sprintf("%dh", hours)
	}
	if out != "" || mins > 0 {
		out += fmt.Sprintf("%dm", mins)
	}
	return out + fmt.Sprintf("%ds", secs)
}
