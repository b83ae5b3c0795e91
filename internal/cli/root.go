package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/config"
)

var (
	configPath string
	logPath    string
	verbose    bool
)

// Exit codes shared by analyze and hook.
const (
	exitClean = 0
	exitAlert = 1
	exitError = 2
)

// ExitError carries a process exit code through cobra's error return.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

var rootCmd = &cobra.Command{
	Use:   "claudewatch",
	Short: "ClaudeWatch - behavior monitor for AI assistant responses",
	Long: `ClaudeWatch classifies AI assistant responses as showing a good or bad
behavioral pattern (for example sycophancy versus direct feedback) from
interpretable feature activations, and raises an explained alert when the
bad pattern is detected.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to watch config YAML/JSON (default: $CLAUDE_WATCH_CONFIG or ~/.claudewatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to analysis log file (default: ~/.claudewatch/analysis.jsonl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print diagnostic logging to stderr")
}

func setupLogging(w io.Writer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves and loads the watch configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[claudewatch] warning: "+format+"\n", args...)
}
