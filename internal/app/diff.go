package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/output"
)

var (
	diffMachine  string
	diffResolved bool

	diffCmd = &cobra.Command{
		Use:   "diff",
		Short: "Recompute the fleet diff from the latest snapshots",
		Long: `Read every machine's latest snapshot from the report store and rewrite
the fleet-wide diff, summary and per-machine update lists.

No scan happens; this only re-derives the documents from what the store
already holds. Running it twice on an unchanged store rewrites
byte-identical documents.`,
		Example: `  # Fleet summary table
  plugsync diff

  # Pending updates for one machine
  plugsync diff --machine StudioA

  # Winning version per plugin
  plugsync diff --resolved`,
		RunE: runDiff,
	}
)

func init() {
	diffCmd.Flags().StringVar(&diffMachine, "machine", "", "show the update list for one machine")
	diffCmd.Flags().BoolVar(&diffResolved, "resolved", false, "show the fleet-wide winning versions")
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	result, err := runDiffCycle(st)
	if err != nil {
		return err
	}

	if diffMachine != "" {
		list, ok := result.Updates[diffMachine]
		if !ok {
			return fmt.Errorf("machine %q has no snapshot in the report store", diffMachine)
		}
		fmt.Print(output.RenderUpdateTable(list))
		return nil
	}

	if diffResolved {
		fmt.Print(output.RenderResolvedTable(result.Diff))
		return nil
	}

	fmt.Print(output.RenderFleetTable(result.Summary))
	fmt.Println()
	fmt.Println(diff.FormatSummary(result))
	return nil
}
