package api

import (
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/olekukonko/tablewriter"
)

// HandleExit exits with code 1 if any of the targets failed
func HandleExit(results []TargetResult) {

	if HasFailed(results) {
		os.Exit(1)
	}

	os.Exit(0)
}

// RenderStats writes a table with one row per target to w
func RenderStats(w io.Writer, results []TargetResult, colored bool) {

	data := make([][]string, 0)

	attemptsTotal := 0
	durationTotal := 0.0
	statusTotal := TargetStatusSucceeded

	for _, r := range results {

		attempts := len(r.Attempts)
		attemptsTotal += attempts
		durationTotal += r.Duration.Seconds()

		if r.Status == TargetStatusFailed {
			statusTotal = TargetStatusFailed
		}

		detail := string(r.SkipReason)
		if r.Err != nil {
			detail = truncateDetail(r.Err.Error(), 60)
		}

		data = append(data, []string{
			r.Target,
			fmt.Sprintf("%v", attempts),
			fmt.Sprintf("%.1f", r.Duration.Seconds()),
			colorStatus(r.Status, colored),
			detail,
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Target", "Attempts", "Time (s)", "Status", "Detail"})
	table.SetFooter([]string{"Total", fmt.Sprintf("%v", attemptsTotal), fmt.Sprintf("%.1f", durationTotal), colorStatus(statusTotal, colored), ""})
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()
}

func colorStatus(status TargetStatus, colored bool) string {
	if !colored {
		return string(status)
	}

	switch status {
	case TargetStatusSucceeded:
		return aurora.Green(string(status)).String()
	case TargetStatusFailed:
		return aurora.Red(string(status)).String()
	}
	return aurora.Yellow(string(status)).String()
}

// truncateDetail shortens detail to at most max characters, never splitting a multibyte character
func truncateDetail(detail string, max int) string {
	runes := []rune(detail)
	if len(runes) <= max {
		return detail
	}
	return string(runes[:max-3]) + "..."
}
