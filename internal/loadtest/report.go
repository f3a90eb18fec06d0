package loadtest

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const maxListedMismatches = 10

// printSummary writes a coloured summary of the run to w.
func printSummary(w io.Writer, stats *Stats) {
	var runsPerSecond float64
	if stats.Duration > 0 {
		runsPerSecond = float64(stats.RunsSubmitted) / stats.Duration.Seconds()
	}

	title := color.New(color.FgCyan, color.Bold)
	_, _ = title.Fprintln(w, "Seed run summary")
	fmt.Fprintf(w, "  players registered: %d\n", stats.PlayersRegistered)
	fmt.Fprintf(w, "  runs generated:     %d\n", stats.RunsGenerated)
	fmt.Fprintf(w, "  runs accepted:      %s\n", color.GreenString("%d", stats.RunsAccepted))
	fmt.Fprintf(w, "  runs duplicate:     %s\n", color.YellowString("%d", stats.RunsDuplicate))
	fmt.Fprintf(w, "  zero-time runs:     %d\n", stats.ZeroTimeRuns)
	if stats.RunsFailed > 0 {
		fmt.Fprintf(w, "  runs failed:        %s\n", color.RedString("%d", stats.RunsFailed))
	} else {
		fmt.Fprintf(w, "  runs failed:        0\n")
	}
	fmt.Fprintf(w, "  duration:           %s (%.1f runs/s)\n", stats.Duration.Round(1e6), runsPerSecond)
	fmt.Fprintf(w, "  views checked:      %d\n", stats.ViewsChecked)

	if len(stats.Mismatches) == 0 {
		_, _ = color.New(color.FgGreen, color.Bold).Fprintln(w, "Rankings match the reference")
		return
	}
	_, _ = color.New(color.FgRed, color.Bold).Fprintf(w, "%d ranking mismatches\n", len(stats.Mismatches))
	for i, m := range stats.Mismatches {
		if i == maxListedMismatches {
			fmt.Fprintf(w, "  ... and %d more\n", len(stats.Mismatches)-maxListedMismatches)
			break
		}
		fmt.Fprintf(w, "  - %s\n", m)
	}
}
