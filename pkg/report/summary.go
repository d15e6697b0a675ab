package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// PrintSummary writes a per-scenario line and totals for idx to w.
func PrintSummary(w io.Writer, idx *Index) {
	success := color.New(color.FgGreen).SprintFunc()
	failure := color.New(color.FgRed).SprintFunc()
	warning := color.New(color.FgYellow).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(w)
	for _, e := range idx.Scenarios {
		var label string
		switch e.Status {
		case StatusPassed:
			label = success("PASS ")
		case StatusAssertionFailed:
			label = failure("FAIL ")
		case StatusInfrastructureError:
			label = warning("ERROR")
		case StatusSkipped:
			label = dim("SKIP ")
		default:
			label = dim(strings.ToUpper(string(e.Status)))
		}

		line := fmt.Sprintf("  %s %s", label, e.Name)
		if e.Duration != nil {
			line += dim(fmt.Sprintf(" (%s)", formatDuration(*e.Duration)))
		}
		fmt.Fprintln(w, line)

		if e.State != nil && e.Status != StatusPassed {
			fmt.Fprintf(w, "        observed %s\n", e.State)
		}
		if e.Error != nil {
			fmt.Fprintf(w, "        %s: %s\n", e.Error.Kind, e.Error.Message)
		}
	}

	s := idx.Summary
	fmt.Fprintln(w)
	parts := []string{success(fmt.Sprintf("%d passed", s.Passed))}
	if s.AssertionFailed > 0 {
		parts = append(parts, failure(fmt.Sprintf("%d failed", s.AssertionFailed)))
	}
	if s.InfrastructureError > 0 {
		parts = append(parts, warning(fmt.Sprintf("%d errored", s.InfrastructureError)))
	}
	if s.Skipped > 0 {
		parts = append(parts, dim(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	total := ""
	if idx.EndTime != nil {
		total = " in " + formatDuration(idx.EndTime.Sub(idx.StartTime).Milliseconds())
	}
	fmt.Fprintf(w, "%d scenarios: %s%s\n", s.Total, strings.Join(parts, ", "), total)
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return d.Round(100 * time.Millisecond).String()
}
