package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/alert"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/logger"
)

var (
	logAlertsOnly bool
	logSeverity   string
	logLast       int
	logSummary    bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the analysis log",
	Long: `View the ClaudeWatch analysis log with filtering and summary options.

Examples:
  claudewatch log                      # Show all entries
  claudewatch log --last 20            # Show last 20 entries
  claudewatch log --alerts             # Show only fired alerts
  claudewatch log --severity high      # Show alerts of high severity or worse
  claudewatch log --summary            # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().BoolVar(&logAlertsOnly, "alerts", false, "Show only entries that fired an alert")
	logCmd.Flags().StringVar(&logSeverity, "severity", "", "Minimum alert severity (low, medium, high, critical)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	path := logPath
	if path == "" {
		// The log location does not depend on a valid watch config.
		cfg, _ := config.Load(configPath, logPath)
		if cfg == nil {
			return fmt.Errorf("cannot resolve the log path")
		}
		path = cfg.LogPath
	}

	records, skipped, err := logger.ReadRecords(path)
	if err != nil {
		return fmt.Errorf("failed to read analysis log: %w", err)
	}
	if skipped > 0 {
		warnf("skipped %d malformed log lines", skipped)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No analysis log entries found.")
		return nil
	}

	filtered := filterRecords(records, logAlertsOnly, logSeverity)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(out, records)
		return nil
	}
	printRecords(out, filtered)
	return nil
}

func filterRecords(records []logger.AnalysisRecord, alertsOnly bool, minSeverity string) []logger.AnalysisRecord {
	if !alertsOnly && minSeverity == "" {
		return records
	}
	var filtered []logger.AnalysisRecord
	for _, r := range records {
		if (alertsOnly || minSeverity != "") && !r.Fired {
			continue
		}
		if minSeverity != "" && !alert.AtLeast(r.Severity, minSeverity) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func printRecords(w io.Writer, records []logger.AnalysisRecord) {
	for _, r := range records {
		ts := formatTimestamp(r.Timestamp)
		if r.Error != "" {
			fmt.Fprintf(w, "%s %s [%s] error: %s\n", recordIcon(r), ts, r.Source, r.Error)
		} else {
			fmt.Fprintf(w, "%s %s [%s] %s %.2f (%s)", recordIcon(r), ts, r.Source, r.Label, r.Confidence, r.Strategy)
			if r.Fired {
				fmt.Fprintf(w, " [%s]", r.Severity)
			}
			fmt.Fprintln(w)
		}
		if r.Explanation != "" {
			fmt.Fprintf(w, "     Why: %s\n", r.Explanation)
		}
		if len(r.Features) > 0 {
			fmt.Fprint(w, "     Features:")
			for _, f := range r.Features {
				fmt.Fprintf(w, " %s(%s %.2f)", f.Label, f.Polarity, f.Activation)
			}
			fmt.Fprintln(w)
		}
		if r.Excerpt != "" {
			fmt.Fprintf(w, "     Text: %s\n", r.Excerpt)
		}
		if r.Cwd != "" {
			fmt.Fprintf(w, "     Cwd: %s\n", r.Cwd)
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, all []logger.AnalysisRecord) {
	labels := map[string]int{}
	severities := map[string]int{}
	fired, errorCount := 0, 0
	for _, r := range all {
		if r.Error != "" {
			errorCount++
			continue
		}
		labels[r.Label]++
		if r.Fired {
			fired++
			severities[r.Severity]++
		}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  ClaudeWatch Analysis Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total analyses:  %d\n", len(all))
	fmt.Fprintf(w, "  Alerts fired:    %d\n", fired)
	fmt.Fprintf(w, "  Errors:          %d\n", errorCount)
	if len(all)-errorCount > 0 {
		fmt.Fprintf(w, "  Alert rate:      %.1f%%\n", 100*float64(fired)/float64(len(all)-errorCount))
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════")

	if len(labels) > 0 {
		fmt.Fprintln(w, "  By label:")
		for _, k := range sortedKeys(labels) {
			fmt.Fprintf(w, "    %-16s %d\n", k, labels[k])
		}
	}
	if len(severities) > 0 {
		fmt.Fprintln(w, "  Alerts by severity:")
		for _, s := range []string{alert.SeverityCritical, alert.SeverityHigh, alert.SeverityMedium, alert.SeverityLow} {
			if n := severities[s]; n > 0 {
				fmt.Fprintf(w, "    %-16s %d\n", s, n)
			}
		}
	}

	fmt.Fprintf(w, "  First entry:     %s\n", formatTimestamp(all[0].Timestamp))
	fmt.Fprintf(w, "  Last entry:      %s\n", formatTimestamp(all[len(all)-1].Timestamp))
	fmt.Fprintln(w)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func recordIcon(r logger.AnalysisRecord) string {
	switch {
	case r.Error != "":
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning sign
	case r.Fired:
		return "\xe2\x9d\x8c" // cross mark
	default:
		return "\xe2\x9c\x85" // check mark
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
