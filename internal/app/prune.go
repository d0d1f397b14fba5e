package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fathom-audio/plugsync/internal/output"
)

var (
	pruneDays        int
	pruneAllMachines bool

	pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete archived snapshots older than the retention window",
		Long: `Delete this machine's archived snapshots older than the retention
window. Latest pointers and derived documents are never touched, so the
fleet diff is unaffected.

Age is taken from the timestamp embedded in each snapshot's name, not
from filesystem metadata, so pruning behaves the same on every backend.`,
		Example: `  # Prune with the configured retention
  plugsync prune

  # Keep only the last week
  plugsync prune --days 7

  # Prune every machine's history (e.g. from a maintenance host)
  plugsync prune --all-machines`,
		RunE: runPrune,
	}
)

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention in days (default: prune_days from config)")
	pruneCmd.Flags().BoolVar(&pruneAllMachines, "all-machines", false, "prune every machine's history, not just this one")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := pruneDays
	if days == 0 {
		days = cfg.PruneDays
	}
	if days <= 0 {
		return fmt.Errorf("retention disabled (prune_days is 0); pass --days to prune anyway")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}

	machines := []string{cfg.MachineName}
	if pruneAllMachines {
		machines, err = st.ListLatestMachines()
		if err != nil {
			return fmt.Errorf("failed to list fleet machines: %w", err)
		}
	}

	bar := output.NewProgress(len(machines), fmt.Sprintf("Pruning snapshots older than %d days", days))
	total := 0
	for _, machine := range machines {
		deleted, err := st.Prune(machine, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", machine, err)
		}
		total += deleted
		bar.Increment()
	}
	bar.Finish()

	fmt.Printf("Pruned %d snapshots across %d machines\n", total, len(machines))
	return nil
}
