package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/config"
	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/output"
	"github.com/fathom-audio/plugsync/internal/scheduler"
	"github.com/fathom-audio/plugsync/internal/store"
)

var (
	statusTable   bool
	statusPIDFile string

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show this machine's standing against the fleet",
		Long: `Show the daemon state, this machine's latest snapshot and its pending
update actions, as recorded in the report store.

Unlike 'plugsync diff' this command recomputes nothing; it reads the
documents the last scan wrote.`,
		Example: `  # Standing and pending updates
  plugsync status

  # Include this machine's plugin table
  plugsync status --table

  # Probe a daemon started with a custom PID file
  plugsync status --pid-file /tmp/plugsync.pid`,
		RunE: runStatus,
	}
)

func init() {
	statusCmd.Flags().BoolVar(&statusTable, "table", false, "print this machine's plugin table")
	statusCmd.Flags().StringVar(&statusPIDFile, "pid-file", "", "PID file to probe for a running daemon (default: ~/.plugsync/daemon.pid)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Machine:  %s\n", cfg.MachineName)
	fmt.Printf("Plugins:  %s\n", cfg.PluginsPath)
	if cfg.ReportsBackend == config.BackendRemote {
		fmt.Printf("Reports:  %s (remote)\n", cfg.RemoteEndpoint)
	} else {
		fmt.Printf("Reports:  %s (local)\n", cfg.ReportsPath)
	}

	pidFile := statusPIDFile
	if pidFile == "" {
		if p, err := getDefaultPIDFile(); err == nil {
			pidFile = p
		}
	}
	if pidFile != "" {
		fmt.Printf("Daemon:   %s\n", daemonState(pidFile))
	}
	fmt.Println()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	snap, err := loadOwnSnapshot(cfg, st)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("No snapshot published yet. Run 'plugsync scan' first.")
			return nil
		}
		return err
	}
	fmt.Printf("Last scan: %s (%d plugins)\n", snap.ScanTime.Local().Format("2006-01-02 15:04:05"), len(snap.Plugins))

	if statusTable {
		fmt.Println()
		fmt.Print(output.RenderPluginTable(snap))
	}

	content, err := st.Get(store.UpdatesLatestName(cfg.MachineName))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("No update list yet. Run 'plugsync scan' or 'plugsync diff'.")
			return nil
		}
		return fmt.Errorf("failed to read update list: %w", err)
	}

	var list diff.UpdateList
	if err := json.Unmarshal(content, &list); err != nil {
		return fmt.Errorf("failed to decode update list: %w", err)
	}

	fmt.Println()
	fmt.Print(output.RenderUpdateTable(&list))
	return nil
}

// daemonState reports whether a daemon holds the given PID file.
func daemonState(pidFile string) string {
	if running, err := scheduler.IsDaemonRunning(pidFile); err == nil && running {
		return "running"
	}
	return "not running (start with 'plugsync daemon --daemon')"
}
