package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/dialcheck/dialcheck/internal/orchestration"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// verboseProgressListener prints per-event progress lines during a run.
func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventSuiteStart:
		fmt.Printf("Starting suite with %d test case(s)\n", event.TotalTests)
	case orchestration.EventTestStart:
		fmt.Printf("[%d/%d] %s: dialing...\n", event.TestNum, event.TotalTests, event.TestName)
	case orchestration.EventCallConnected:
		fmt.Printf("[%d/%d] %s: call connected\n", event.TestNum, event.TotalTests, event.TestName)
	case orchestration.EventTurnRecorded:
		if speaker, ok := event.Details["speaker"].(string); ok {
			fmt.Printf("[%d/%d] %s: turn recorded (%s)\n", event.TestNum, event.TotalTests, event.TestName, speaker)
		} else {
			fmt.Printf("[%d/%d] %s: turn recorded\n", event.TestNum, event.TotalTests, event.TestName)
		}
	case orchestration.EventTestCached:
		fmt.Printf("[%d/%d] %s: cached result\n", event.TestNum, event.TotalTests, event.TestName)
	case orchestration.EventTestComplete:
		status := "PASS"
		if !event.Successful {
			status = "FAIL"
		}
		fmt.Printf("[%d/%d] %s: %s (%s)\n",
			event.TestNum, event.TotalTests, event.TestName, status,
			formatDuration(time.Duration(event.DurationMs)*time.Millisecond))
	case orchestration.EventSuiteStopped:
		fmt.Println("Suite stopped early")
	case orchestration.EventSuiteComplete:
		fmt.Println()
	}
}

// printTestLines prints one result line per test, for non-verbose runs.
func printTestLines(result *orchestration.SuiteResult) {
	for _, res := range result.Results {
		if res.Report == nil {
			fmt.Printf("  ✗ %s (no report)\n", res.TestID)
			continue
		}
		icon := "✓"
		if !res.Report.Metrics.Successful {
			icon = "✗"
		}
		cached := ""
		if res.Cached {
			cached = " (cached)"
		}
		fmt.Printf("  %s %s  acc %.1f  emp %.1f  rt %.1f%s\n",
			icon, res.Report.TestCaseName,
			res.Report.Metrics.Accuracy, res.Report.Metrics.Empathy,
			res.Report.Metrics.ResponseTime, cached)
	}
	fmt.Println()
}

// printSuiteSummary prints the aggregate table after a run.
func printSuiteSummary(result *orchestration.SuiteResult) {
	stats := result.Stats

	const nameWidth = 30
	const colWidth = 8

	fmt.Printf("Suite: %s\n", result.SuiteName)
	fmt.Printf("Tests: %d total, %d passed, %d failed (%.1f%% pass rate)\n",
		stats.TotalTests, stats.Successful, stats.Failed, stats.PassRate*100)
	fmt.Printf("Duration: %s\n\n", formatDuration(time.Duration(result.DurationMs)*time.Millisecond))

	if stats.Successful == 0 {
		return
	}

	fmt.Printf("%s %s %s %s %s\n",
		padRight("Metric", nameWidth),
		padRight("Avg", colWidth),
		padRight("Min", colWidth),
		padRight("Max", colWidth),
		padRight("StdDev", colWidth),
	)
	fmt.Println(strings.Repeat("-", nameWidth+4*(colWidth+1)))

	printMetricRow("Accuracy", stats.Accuracy, nameWidth, colWidth)
	printMetricRow("Empathy", stats.Empathy, nameWidth, colWidth)
	printMetricRow("Response time", stats.ResponseTime, nameWidth, colWidth)

	if stats.Accuracy.CI.NumBootstraps > 0 {
		fmt.Printf("\n95%% CI (accuracy): [%.2f, %.2f]\n", stats.Accuracy.CI.Lower, stats.Accuracy.CI.Upper)
		fmt.Printf("95%% CI (empathy):  [%.2f, %.2f]\n", stats.Empathy.CI.Lower, stats.Empathy.CI.Upper)
	}
	fmt.Println()
}

func printMetricRow(name string, m orchestration.MetricStats, nameWidth, colWidth int) {
	fmt.Printf("%s %s %s %s %s\n",
		padRight(truncateName(name, nameWidth), nameWidth),
		padRight(fmt.Sprintf("%.2f", m.Avg), colWidth),
		padRight(fmt.Sprintf("%.2f", m.Min), colWidth),
		padRight(fmt.Sprintf("%.2f", m.Max), colWidth),
		padRight(fmt.Sprintf("%.4f", m.StdDev), colWidth),
	)
}

// truncateName shortens a name to maxLen runes, replacing the last rune with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
