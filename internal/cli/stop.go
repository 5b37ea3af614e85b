package cli

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopTimeout int
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running API server",
	Long: `Stop the API server started with "eap serve". The server gets SIGTERM
and --timeout seconds to drain in-flight chats before it is killed.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "seconds to wait for a graceful exit")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "send SIGKILL without waiting")
	rootCmd.AddCommand(stopCmd)
}

var errNotRunning = errors.New("server is not running")

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pidFile := getPIDFilePath(cfg)
	if !isRunning(pidFile) {
		return errNotRunning
	}
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	if !stopForce {
		if err := signalPID(pid, syscall.SIGTERM); err != nil {
			return err
		}
		if waitForExit(pidFile, time.Duration(stopTimeout)*time.Second) {
			cmd.Printf("Server (PID %d) stopped\n", pid)
			return nil
		}
		cmd.Println("Server did not exit in time, sending SIGKILL")
	}

	if err := signalPID(pid, syscall.SIGKILL); err != nil {
		return err
	}
	cmd.Printf("Server (PID %d) killed\n", pid)
	return nil
}

func signalPID(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send %s to %d: %w", sig, pid, err)
	}
	return nil
}

// waitForExit polls until the process behind pidFile is gone or timeout passes.
func waitForExit(pidFile string, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		if !isRunning(pidFile) {
			return true
		}
		select {
		case <-deadline.C:
			return !isRunning(pidFile)
		case <-tick.C:
		}
	}
}
