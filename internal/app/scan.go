package app

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/output"
)

var (
	scanQuiet     bool
	scanShowTable bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Scan the plugin folder and publish a snapshot",
		Long: `Scan the configured plugin folder, publish this machine's snapshot to
the report store and recompute the fleet diff.

Each scan writes an immutable timestamped snapshot into the archive
folder, moves this machine's "latest" pointer, prunes history older than
the retention window, and rewrites the fleet-wide diff, summary and
per-machine update lists.

The scan command should be run:
  • After installing or updating plugins manually
  • Periodically, via 'plugsync daemon', to keep the fleet view fresh`,
		Example: `  # Scan and show the fleet summary
  plugsync scan

  # Scan and list this machine's plugins
  plugsync scan --table

  # Scan quietly (suppress output)
  plugsync scan --quiet`,
		RunE: runScan,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false, "suppress output")
	scanCmd.Flags().BoolVar(&scanShowTable, "table", false, "print this machine's plugin table")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if !scanQuiet && isTTY {
		spinner = output.NewSpinner("Scanning plugins...")
		spinner.Start()
	} else if !scanQuiet {
		fmt.Println("Scanning plugins...")
	}

	result, err := runScanCycle(cfg, st)
	if err != nil {
		if spinner != nil {
			spinner.Stop()
		}
		return err
	}

	if scanQuiet {
		return nil
	}

	mine := result.Summary.Counts[cfg.MachineName]
	if spinner != nil {
		spinner.StopWithMessage(fmt.Sprintf("✓ Snapshot published (%d plugins on %s)", mine.Total, cfg.MachineName))
	} else {
		fmt.Printf("✓ Snapshot published (%d plugins on %s)\n", mine.Total, cfg.MachineName)
	}
	fmt.Println()

	if scanShowTable {
		fleet, err := loadOwnSnapshot(cfg, st)
		if err == nil {
			fmt.Print(output.RenderPluginTable(fleet))
			fmt.Println()
		}
	}

	fmt.Println(diff.FormatSummary(result))

	if pending := result.UpdatesFor(cfg.MachineName); len(pending) > 0 {
		fmt.Println()
		fmt.Print(output.RenderUpdateTable(result.Updates[cfg.MachineName]))
	}
	return nil
}
