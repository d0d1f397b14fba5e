package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/config"
)

var (
	configPath string

	// RootCmd is the root command for plugsync
	RootCmd = &cobra.Command{
		Use:   "plugsync",
		Short: "Keep audio plugin versions in sync across studio machines",
		Long: `plugsync scans a machine's audio plugin folder, publishes the inventory
to a shared report store, and works out which machines are behind the
fleet's best known version of each plugin.

Every machine runs plugsync against the same report store (a shared
folder or an HTTP document service). Each scan writes an immutable
timestamped snapshot plus a "latest" pointer; the diff step reads every
machine's latest snapshot and derives per-machine update lists. No
machine talks to another directly, and a new machine joins the fleet by
simply writing its first snapshot.

Quick Start:
  1. plugsync setup --machine StudioA --plugins /path/to/plugins --reports /mnt/shared/plugsync
  2. plugsync scan
  3. plugsync daemon --daemon  # keep the inventory fresh
  4. plugsync status

Examples:
  # One-off scan and fleet diff
  plugsync scan

  # Recompute the fleet diff without rescanning
  plugsync diff

  # What does this machine need to update?
  plugsync status

  # Background watcher with debounced rescans
  plugsync daemon --daemon

  # Drop snapshot history older than the retention window
  plugsync prune`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err == nil {
				if _, statErr := os.Stat(path); statErr == nil {
					fmt.Println("plugsync: audio plugin inventory sync")
					fmt.Println()
					fmt.Println("Tip: Run 'plugsync status' to see this machine's standing.")
					fmt.Println("     Run 'plugsync scan' to publish a fresh snapshot.")
					fmt.Println("     Run 'plugsync --help' for all commands.")
					return nil
				}
			}
			fmt.Println("plugsync: audio plugin inventory sync")
			fmt.Println()
			fmt.Println("Run 'plugsync setup' to configure this machine.")
			fmt.Println("Run 'plugsync --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/plugsync/config.yaml)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(setupCmd)
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(diffCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(daemonCmd)
	RootCmd.AddCommand(pruneCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// resolveConfigPath returns the config file path, using the flag value or the
// default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.Path()
}
