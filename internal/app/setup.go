package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/config"
	"github.com/fathom-audio/plugsync/internal/store"
)

var (
	setupMachine      string
	setupPlugins      string
	setupReports      string
	setupBackend      string
	setupEndpoint     string
	setupToken        string
	setupScanInterval int
	setupDebounce     int
	setupPruneDays    int
	setupNoHashing    bool
	setupForce        bool

	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Configure this machine for fleet sync",
		Long: `Write the plugsync config file for this machine.

Every machine in the fleet needs a unique machine name and must point at
the same report store. The machine name is embedded in every document
this machine publishes, so pick it once and keep it.`,
		Example: `  # Shared-folder backend
  plugsync setup --machine StudioA --plugins "/Library/Application Support/Avid/Audio/Plug-Ins" --reports /mnt/shared/plugsync

  # HTTP document service backend
  plugsync setup --machine StudioA --plugins /plugins --backend remote --endpoint https://reports.example.com --token SECRET

  # Rewrite an existing config
  plugsync setup --machine StudioA --plugins /plugins --reports /mnt/shared/plugsync --force`,
		RunE: runSetup,
	}
)

func init() {
	setupCmd.Flags().StringVar(&setupMachine, "machine", "", "machine name (default: hostname)")
	setupCmd.Flags().StringVar(&setupPlugins, "plugins", "", "plugin folder to scan")
	setupCmd.Flags().StringVar(&setupReports, "reports", "", "shared report folder (local backend)")
	setupCmd.Flags().StringVar(&setupBackend, "backend", config.BackendLocal, "report store backend: local or remote")
	setupCmd.Flags().StringVar(&setupEndpoint, "endpoint", "", "document service URL (remote backend)")
	setupCmd.Flags().StringVar(&setupToken, "token", "", "bearer token for the document service")
	setupCmd.Flags().IntVar(&setupScanInterval, "scan-interval", config.DefaultScanInterval, "periodic rescan interval in seconds")
	setupCmd.Flags().IntVar(&setupDebounce, "debounce", config.DefaultDebounce, "seconds of quiet before a change triggers a scan")
	setupCmd.Flags().IntVar(&setupPruneDays, "prune-days", config.DefaultPruneDays, "snapshot retention in days (0 disables pruning)")
	setupCmd.Flags().BoolVar(&setupNoHashing, "no-hashing", false, "skip content hashing of bundle binaries")
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "overwrite an existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	if !setupForce {
		if _, err := config.Load(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.Default()
	if setupMachine != "" {
		cfg.MachineName = store.SafeMachineName(setupMachine)
	}
	if setupPlugins != "" {
		cfg.PluginsPath = setupPlugins
	}
	cfg.ReportsBackend = setupBackend
	cfg.ReportsPath = setupReports
	cfg.RemoteEndpoint = setupEndpoint
	cfg.RemoteToken = setupToken
	cfg.ScanIntervalSeconds = setupScanInterval
	cfg.DebounceSeconds = setupDebounce
	cfg.PruneDays = setupPruneDays
	cfg.HashBinaries = !setupNoHashing

	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Printf("Config written to %s\n", path)
	fmt.Printf("  Machine:  %s\n", cfg.MachineName)
	fmt.Printf("  Plugins:  %s\n", cfg.PluginsPath)
	if cfg.ReportsBackend == config.BackendRemote {
		fmt.Printf("  Reports:  %s (remote)\n", cfg.RemoteEndpoint)
	} else {
		fmt.Printf("  Reports:  %s (local)\n", cfg.ReportsPath)
	}
	fmt.Println("\nNext: run 'plugsync scan' to publish this machine's first snapshot.")
	return nil
}
