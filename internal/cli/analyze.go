package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/approval"
	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/engine"
	"github.com/gzhole/claudewatch/internal/explain"
	"github.com/gzhole/claudewatch/internal/logger"
	"github.com/gzhole/claudewatch/internal/notify"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Classify one response and alert on the bad behavior",
	Long: `Classify a single assistant response with the configured strategy.

The text is taken from the arguments, or from stdin when stdin is not a
terminal. Exit status is 0 when no alert fired, 1 when an alert fired and
2 on any error.

Examples:
  claudewatch analyze "You're absolutely right, what a brilliant idea!"
  pbpaste | claudewatch analyze
  claudewatch analyze --json --config configs/sycophancy.yaml "..."`,
	RunE: analyzeCommand,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

// analysisMeta is hook context recorded with each analysis.
type analysisMeta struct {
	Source    string
	SessionID string
	Cwd       string
}

func analyzeCommand(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "" && !approval.IsInteractive() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return &ExitError{Code: exitError, Err: fmt.Errorf("failed to read stdin: %w", err)}
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return &ExitError{Code: exitError, Err: fmt.Errorf("no text to analyze: pass it as an argument or on stdin")}
	}

	cfg, err := loadConfig()
	if err != nil {
		return &ExitError{Code: exitError, Err: err}
	}

	out, err := runAnalysis(cmd.Context(), cfg, text, analysisMeta{Source: logger.SourceAnalyze})
	if err != nil {
		return &ExitError{Code: exitError, Err: err}
	}

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Result any `json:"result"`
			Event  any `json:"alert"`
			Scores any `json:"scores"`
		}{out.Result, out.Event, out.Scores}); err != nil {
			return &ExitError{Code: exitError, Err: err}
		}
	} else {
		printOutcome(cmd.OutOrStdout(), out)
	}

	if out.Event.Fired {
		return &ExitError{Code: exitAlert}
	}
	return nil
}

// runAnalysis builds an engine for cfg, analyzes text, appends the outcome
// (or the failure) to the analysis log and dispatches notifications.
func runAnalysis(ctx context.Context, cfg *config.Config, text string, meta analysisMeta) (*engine.Outcome, error) {
	sinks, err := notify.FromConfig(cfg.Watch.NotifyVia, os.Stderr)
	if err != nil {
		return nil, err
	}

	analysisLog, err := logger.New(cfg.LogPath)
	if err != nil {
		warnf("analysis log unavailable: %v", err)
	} else {
		defer func() { _ = analysisLog.Close() }()
	}
	record := func(rec logger.AnalysisRecord) {
		if analysisLog == nil {
			return
		}
		rec.SessionID = meta.SessionID
		rec.Cwd = meta.Cwd
		if err := analysisLog.Log(rec); err != nil {
			warnf("analysis log failed: %v", err)
		}
	}

	e, err := engine.New(ctx, cfg.Watch, engine.Options{Notifiers: sinks})
	if err != nil {
		record(engine.ErrorRecord(meta.Source, text, err))
		return nil, err
	}
	defer func() {
		if err := e.Close(); err != nil {
			warnf("%v", err)
		}
	}()

	out, err := e.Analyze(ctx, text)
	if err != nil {
		record(engine.ErrorRecord(meta.Source, text, err))
		return nil, err
	}
	record(out.Record(meta.Source))

	if err := e.Notify(ctx, out); err != nil {
		warnf("notification failed: %v", err)
	}
	return out, nil
}

func printOutcome(w io.Writer, out *engine.Outcome) {
	r := out.Result
	icon := "\xe2\x9c\x85" // check mark
	if out.Event.Fired {
		icon = "\xe2\x9d\x8c" // cross mark
	}

	fmt.Fprintf(w, "%s %s (confidence %.2f, strategy %s)\n", icon, r.Label, r.Confidence, r.Strategy)
	if r.Bucket != "" {
		fmt.Fprintf(w, "   Bucket:   %s\n", r.Bucket)
	}
	if r.Probability != nil {
		fmt.Fprintf(w, "   P(bad):   %.3f\n", *r.Probability)
	}
	if r.JudgeScore != nil {
		fmt.Fprintf(w, "   Judge:    %.3f\n", *r.JudgeScore)
	}
	if out.Scores.Scores.Total() > 0 {
		fmt.Fprintf(w, "   Scores:   good %.3f, bad %.3f\n", out.Scores.Scores.Good, out.Scores.Scores.Bad)
	}
	if out.Event.Fired {
		fmt.Fprintf(w, "   Severity: %s\n", out.Event.Severity)
	}

	if len(out.Scores.Active) > 0 {
		fmt.Fprintln(w, "   Activated features:")
		for _, a := range out.Scores.Active {
			fmt.Fprintf(w, "     [%s] %s (%s) %.3f\n", a.Polarity, a.Label, a.ID, a.Activation)
		}
	}
	if e := r.Explanation; e != nil && len(e.Lines) > 0 {
		for _, line := range strings.Split(strings.TrimRight(explain.Format(e), "\n"), "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
	fmt.Fprintf(w, "   %s\n", out.Event.Message)
}
