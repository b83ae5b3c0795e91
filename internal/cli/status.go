package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/classifier"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ClaudeWatch status: config, directions, model, hook, log",
	Long: `Check whether ClaudeWatch is ready: which config is in use and whether it
validates, where directions come from, whether the trained model exists,
whether the Claude Code hook is installed and what the analysis log holds.

  claudewatch status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, loadErr := config.Load(configPath, logPath)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  ClaudeWatch Status")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Fprintf(out, "  Binary:    %s (%s)\n", binPath, Version)
	if cfg == nil {
		fmt.Fprintf(out, "  ⚠  %v\n", loadErr)
		return nil
	}
	fmt.Fprintf(out, "  Config:    %s\n", cfg.ConfigPath)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Configuration ─────────────────────────────────────")
	if loadErr != nil {
		fmt.Fprintf(out, "  ⚠  %v\n", loadErr)
	} else {
		checkWatchConfig(out, cfg.Watch)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Claude Code Hook ──────────────────────────────────")
	if claudeHookInstalled(claudeSettingsPath()) {
		fmt.Fprintf(out, "  ✅ Stop hook active (%s)\n", claudeSettingsPath())
	} else {
		fmt.Fprintln(out, "  ⬚  not configured (run: claudewatch setup claude-code)")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Analysis Log ──────────────────────────────────────")
	checkAnalysisLog(out, cfg.LogPath)
	fmt.Fprintln(out)
	return nil
}

func checkWatchConfig(w io.Writer, wc *config.WatchConfig) {
	if err := wc.Validate(); err != nil {
		fmt.Fprintf(w, "  ⚠  %v\n", err)
		return
	}
	fmt.Fprintf(w, "  ✅ Strategy:  %s\n", wc.Strategy)
	fmt.Fprintf(w, "     Labels:    %s / %s\n", wc.GoodLabel, wc.BadLabel)
	fmt.Fprintf(w, "     Model:     %s\n", wc.Model)

	if wc.Strategy.UsesFeatures() || wc.HasExamples() {
		switch {
		case !wc.DirectVectors.Empty():
			fmt.Fprintf(w, "  ✅ Directions: direct_vectors (%d good, %d bad)\n", len(wc.DirectVectors.Good), len(wc.DirectVectors.Bad))
		case wc.VectorSource != "":
			checkVectorFile(w, wc.VectorSourcePath())
		default:
			checkVectorFile(w, wc.DerivedVectorPath())
		}
	}

	if wc.Strategy == config.StrategyLogistic || fileExists(wc.ClassifierPath()) {
		m, err := classifier.Load(wc.ClassifierPath())
		if err != nil {
			fmt.Fprintf(w, "  ⚠  Model: %v\n", err)
		} else {
			fmt.Fprintf(w, "  ✅ Model: %s (trained %s, %d features, accuracy %.3f)\n",
				wc.ClassifierPath(), m.TrainedAt, len(m.Features), m.TrainAccuracy)
		}
	}
}

func checkVectorFile(w io.Writer, path string) {
	set, _, err := direction.Load(path)
	if err != nil {
		fmt.Fprintf(w, "  ⬚  Directions: %s not generated (run: claudewatch generate-vectors)\n", path)
		return
	}
	fmt.Fprintf(w, "  ✅ Directions: %s (%d good, %d bad)\n", path, len(set.Good), len(set.Bad))
}

func checkAnalysisLog(w io.Writer, path string) {
	records, _, err := logger.ReadRecords(path)
	if err != nil {
		fmt.Fprintf(w, "  ⚠  %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "  ⬚  %s: no entries yet\n", path)
		return
	}
	fired := 0
	for _, r := range records {
		if r.Fired {
			fired++
		}
	}
	fmt.Fprintf(w, "  ✅ %s: %d analyses, %d alerts\n", path, len(records), fired)
	fmt.Fprintf(w, "     Last entry: %s\n", formatTimestamp(records[len(records)-1].Timestamp))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
