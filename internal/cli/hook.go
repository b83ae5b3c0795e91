package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/logger"
	"github.com/gzhole/claudewatch/internal/notify"
	"github.com/gzhole/claudewatch/internal/transcript"
)

// EnvBypass disables the hook without uninstalling it.
const EnvBypass = "CLAUDE_WATCH_BYPASS"

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Claude Code Stop hook handler",
	Long: `Reads a Claude Code hook payload from stdin. On Stop events the session
transcript is parsed and the latest assistant response is analyzed, logged
and sent to the configured notification sinks.

The hook fails open: any error is reported as a warning and the hook exits 0
so a broken monitor never blocks the agent. Exit status 1 means an alert fired.

Setup:
  claudewatch setup claude-code`,
	RunE: hookCommand,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookCommand(cmd *cobra.Command, args []string) error {
	if hookBypassed() {
		return nil
	}
	return runHook(cmd.Context(), os.Stdin, cmd.ErrOrStderr())
}

// hookBypassed reports whether EnvBypass is set to any non-empty value.
func hookBypassed() bool {
	return os.Getenv(EnvBypass) != ""
}

// runHook handles one hook payload read from in. Only an alert produces an
// error; everything else fails open.
func runHook(ctx context.Context, in io.Reader, errOut io.Writer) error {
	ev, err := transcript.ReadEvent(in)
	if err != nil {
		warnf("%v", err)
		return nil
	}
	if ev == nil || ev.HookEventName != transcript.EventStop {
		return nil
	}

	msgs, err := transcript.ParseFile(ev.TranscriptPath)
	if err != nil {
		warnf("%v", err)
		return nil
	}
	text, err := transcript.LatestResponse(msgs)
	if err != nil {
		return nil
	}

	// The log sink writes under the project the agent is working in.
	if ev.Cwd != "" && os.Getenv(notify.EnvProjectDir) == "" {
		_ = os.Setenv(notify.EnvProjectDir, ev.Cwd)
	}

	cfg, err := loadConfig()
	if err != nil {
		warnf("%v", err)
		return nil
	}

	out, err := runAnalysis(ctx, cfg, text, analysisMeta{
		Source:    logger.SourceHook,
		SessionID: ev.SessionID,
		Cwd:       ev.Cwd,
	})
	if err != nil {
		warnf("analysis failed: %v", err)
		return nil
	}
	if out.Event.Fired {
		// Claude Code surfaces stderr of a hook exiting 1.
		if !slices.Contains(cfg.Watch.NotifyVia, config.NotifyCLI) {
			fmt.Fprintf(errOut, "ClaudeWatch: %s\n", out.Event.Message)
		}
		return &ExitError{Code: exitAlert}
	}
	return nil
}
