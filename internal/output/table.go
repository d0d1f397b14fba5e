// Package output provides terminal output utilities for plugsync.
//
// This package includes:
//   - Table rendering for plugin snapshots, update lists and the fleet summary
//   - Progress bars for long-running operations
//   - Spinners for indeterminate operations
//   - Human-readable formatting for sizes and dates
//
// All table rendering uses ASCII characters and ANSI color codes for terminal
// output. Progress indicators are thread-safe.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/inventory"
	"github.com/fathom-audio/plugsync/internal/version"
)

// ANSI color codes for update status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderPluginTable renders the plugins of one snapshot.
func RenderPluginTable(snap *inventory.Snapshot) string {
	if snap == nil || len(snap.Plugins) == 0 {
		return "No plugins found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-18s %-9s %s\n",
		"Plugin", "Version", "Size", "Modified"))
	sb.WriteString(strings.Repeat("─", 76))
	sb.WriteString("\n")

	for _, p := range snap.Plugins {
		label := version.Label(p.ShortVersion, p.BundleVersion)
		if label == "" || p.MetadataError {
			label = version.Unknown
		}
		sb.WriteString(fmt.Sprintf("%-32s %-18s %-9s %s\n",
			truncate(p.BundleName, 32),
			truncate(label, 18),
			formatSize(p.SizeBytes),
			formatRelativeTime(p.ModTime)))
	}

	sb.WriteString(fmt.Sprintf("\n%d plugins on %s (scanned %s)\n",
		len(snap.Plugins), snap.MachineName, formatRelativeTime(snap.ScanTime)))
	return sb.String()
}

// RenderUpdateTable renders one machine's pending update actions.
func RenderUpdateTable(list *diff.UpdateList) string {
	if list == nil || len(list.Updates) == 0 {
		return "Nothing to update.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-16s %-16s %-12s %s\n",
		"Plugin", "Current", "Target", "Source", "Reason"))
	sb.WriteString(strings.Repeat("─", 88))
	sb.WriteString("\n")

	for _, u := range list.Updates {
		name := u.BundleName
		if name == "" {
			name = u.Key
		}
		current := u.CurrentVersion
		if current == "" {
			current = "—"
		}
		sb.WriteString(fmt.Sprintf("%-28s %-16s %-16s %-12s %s\n",
			truncate(name, 28),
			truncate(current, 16),
			truncate(u.TargetVersion, 16),
			truncate(u.SourceMachine, 12),
			colorize(reasonColor(u.Reason), string(u.Reason))))
	}

	return sb.String()
}

// RenderFleetTable renders the per-machine standing from a fleet summary.
func RenderFleetTable(summary *diff.Summary) string {
	if summary == nil || len(summary.Machines) == 0 {
		return "No snapshots found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %-8s %-11s %-9s %-8s %s\n",
		"Machine", "Plugins", "Up to date", "Outdated", "Missing", "Unknown"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, machine := range summary.Machines {
		c := summary.Counts[machine]
		sb.WriteString(fmt.Sprintf("%-20s %-8d %-11s %-9s %-8s %s\n",
			truncate(machine, 20),
			c.Total,
			countCell(c.UpToDate, colorGreen),
			countCell(c.Outdated, colorYellow),
			countCell(c.Missing, colorRed),
			countCell(c.Unknown, colorGray)))
	}

	sb.WriteString(fmt.Sprintf("\nResolved %d plugins across %d machines (as of %s)\n",
		len(summary.Resolved), len(summary.Machines), formatRelativeTime(summary.GeneratedAt)))
	return sb.String()
}

// RenderResolvedTable renders the fleet-wide winning versions, sorted by
// plugin name.
func RenderResolvedTable(d *diff.Diff) string {
	if d == nil || len(d.Resolved) == 0 {
		return "No plugins resolved.\n"
	}

	rows := make([]diff.ResolvedVersion, 0, len(d.Resolved))
	for _, rv := range d.Resolved {
		rows = append(rows, rv)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-18s %s\n", "Plugin", "Best Version", "Source"))
	sb.WriteString(strings.Repeat("─", 66))
	sb.WriteString("\n")

	for _, rv := range rows {
		name := rv.BundleName
		if name == "" {
			name = rv.Key
		}
		sb.WriteString(fmt.Sprintf("%-32s %-18s %s\n",
			truncate(name, 32),
			truncate(rv.Version, 18),
			rv.SourceMachine))
	}

	return sb.String()
}

// countCell formats a count, colored only when non-zero so a clean fleet
// stays visually quiet.
func countCell(n int, color string) string {
	s := fmt.Sprintf("%d", n)
	if n == 0 {
		return s
	}
	return colorize(color, s)
}

// reasonColor maps an update reason to its display color.
func reasonColor(reason diff.UpdateReason) string {
	switch reason {
	case diff.ReasonMissing:
		return colorRed
	case diff.ReasonOutdated:
		return colorYellow
	default:
		return colorGray
	}
}

// formatSize converts bytes to human-readable size (GB, MB, KB).
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
