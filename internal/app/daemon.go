package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/config"
	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/output"
	"github.com/fathom-audio/plugsync/internal/scheduler"
)

var (
	daemonBackground bool
	daemonChild      bool
	daemonStop       bool
	daemonPIDFile    string
	daemonLogFile    string

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Watch the plugin folder and rescan on changes",
		Long: `Watch the plugin folder for changes and rescan automatically.

Change notifications are debounced: an installer touching dozens of
bundles triggers one scan, after the burst quiets down. A periodic
rescan at the configured interval catches anything the watcher misses.
When the filesystem watcher cannot start at all, the daemon degrades to
interval-only scanning.

Daemon modes:
  • Foreground (default): run in the current terminal, Ctrl+C to stop
  • Daemon: detach into the background
  • Stop: stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  plugsync daemon

  # Run as background daemon
  plugsync daemon --daemon

  # Stop running daemon
  plugsync daemon --stop

  # Use custom PID and log files
  plugsync daemon --daemon --pid-file /tmp/plugsync.pid --log-file /tmp/plugsync.log`,
		RunE: runDaemon,
	}
)

func init() {
	daemonCmd.Flags().BoolVar(&daemonBackground, "daemon", false, "run as background daemon")
	daemonCmd.Flags().BoolVar(&daemonChild, "daemon-child", false, "internal flag for daemon child process")
	daemonCmd.Flags().BoolVar(&daemonStop, "stop", false, "stop running daemon")
	daemonCmd.Flags().StringVar(&daemonPIDFile, "pid-file", "", "PID file path (default: ~/.plugsync/daemon.pid)")
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "log file path (default: ~/.plugsync/daemon.log)")

	// Hide the internal daemon-child flag from help
	daemonCmd.Flags().MarkHidden("daemon-child")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if daemonPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		daemonPIDFile = defaultPID
	}
	if daemonLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		daemonLogFile = defaultLog
	}

	if daemonStop {
		return stopDaemon()
	}

	// Validate the config before detaching so mistakes surface in the
	// terminal, not the log file.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if daemonBackground {
		return startDaemonProcess()
	}
	if daemonChild {
		return runDaemonLoop(cfg, true)
	}
	return runDaemonForeground(cfg)
}

func stopDaemon() error {
	running, err := scheduler.IsDaemonRunning(daemonPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	if err := scheduler.StopDaemon(daemonPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")
	return nil
}

func startDaemonProcess() error {
	spinner := output.NewSpinner("Starting daemon...")
	childArgs := []string{"daemon", "--daemon-child", "--pid-file", daemonPIDFile, "--log-file", daemonLogFile}
	if configPath != "" {
		childArgs = append(childArgs, "--config", configPath)
	}
	if err := scheduler.StartDaemon(daemonPIDFile, daemonLogFile, childArgs...); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nPlugin watcher daemon started\n")
	fmt.Printf("  PID file: %s\n", daemonPIDFile)
	fmt.Printf("  Log file: %s\n", daemonLogFile)
	fmt.Printf("\nTo stop: plugsync daemon --stop\n")
	return nil
}

func runDaemonForeground(cfg *config.Config) error {
	fmt.Println("Starting plugin watcher (press Ctrl+C to stop)...")
	fmt.Println()
	return runDaemonLoop(cfg, false)
}

// runDaemonLoop runs the scheduler until SIGTERM/SIGINT. In child mode the
// PID file is removed on exit.
func runDaemonLoop(cfg *config.Config, child bool) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	scan := func() error {
		result, err := runScanCycle(cfg, st)
		if err != nil {
			return err
		}
		logScanResult(cfg, result)
		return nil
	}

	sched := scheduler.New(scheduler.Options{
		Debounce: time.Duration(cfg.DebounceSeconds) * time.Second,
		Interval: time.Duration(cfg.ScanIntervalSeconds) * time.Second,
		Scan:     scan,
	})
	sched.Start()
	defer sched.Stop()

	watch, err := scheduler.NewWatch(cfg.PluginsPath, sched.Notify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: filesystem watch unavailable, falling back to interval scans: %v\n", err)
	} else {
		defer watch.Close()
		fmt.Printf("Watching %s (debounce %ds, rescan every %ds)\n",
			cfg.PluginsPath, cfg.DebounceSeconds, cfg.ScanIntervalSeconds)
	}

	// Publish a snapshot right away so a new machine shows up in the fleet
	// without waiting for the first change.
	sched.Notify()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	fmt.Fprintf(os.Stderr, "received signal %v, shutting down...\n", sig)

	if child {
		return scheduler.RemovePIDFile(daemonPIDFile)
	}
	return nil
}

// logScanResult writes one line per scan to the daemon log.
func logScanResult(cfg *config.Config, result *diff.Result) {
	mine := result.Summary.Counts[cfg.MachineName]
	pending := len(result.UpdatesFor(cfg.MachineName))
	fmt.Printf("%s scan: %d plugins, %d machines in fleet, %d pending updates\n",
		time.Now().Format(time.RFC3339), mine.Total, len(result.Summary.Machines), pending)
}
