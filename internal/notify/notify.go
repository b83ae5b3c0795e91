// Package notify delivers alert messages to the configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gzhole/claudewatch/internal/config"
)

// ErrNotification marks a sink that could not deliver.
var ErrNotification = errors.New("notification failed")

// EnvProjectDir is set by Claude Code to the project being worked on.
const EnvProjectDir = "CLAUDE_PROJECT_DIR"

// Notification is what a sink is asked to deliver.
type Notification struct {
	Message  string
	Severity string
	Fired    bool
}

// Notifier is one delivery channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// CLI writes to a terminal stream, normally stderr.
type CLI struct {
	W io.Writer
}

func (c *CLI) Name() string { return config.NotifyCLI }

func (c *CLI) Notify(ctx context.Context, n Notification) error {
	marker := "✅"
	if n.Fired {
		marker = "❌"
	}
	if _, err := fmt.Fprintf(c.W, "%s ClaudeWatch: %s\n", marker, n.Message); err != nil {
		return fmt.Errorf("%w: cli: %v", ErrNotification, err)
	}
	return nil
}

// Emacs shows the message in the echo area via emacsclient. When Emacs is
// unreachable the Fallback sink is used instead.
type Emacs struct {
	Path     string
	Timeout  time.Duration
	Fallback Notifier
}

func (e *Emacs) Name() string { return config.NotifyEmacs }

func (e *Emacs) Notify(ctx context.Context, n Notification) error {
	path := e.Path
	if path == "" {
		path = "emacsclient"
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := fmt.Sprintf(`(message "%%s" %s)`, elispString("ClaudeWatch: "+n.Message))
	cmd := exec.CommandContext(ctx, path, "-e", form)
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if e.Fallback != nil {
			slog.DebugContext(ctx, "emacsclient unavailable, falling back", "error", err)
			return e.Fallback.Notify(ctx, n)
		}
		return fmt.Errorf("%w: emacs: %v", ErrNotification, err)
	}
	return nil
}

func elispString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// LogFile appends timestamped lines to a plain-text log.
type LogFile struct {
	Path string
	Now  func() time.Time

	mu sync.Mutex
}

// ProjectLogPath is <project>/logs/notifications.log, where project is
// $CLAUDE_PROJECT_DIR or else the working directory.
func ProjectLogPath() string {
	dir := os.Getenv(EnvProjectDir)
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	return filepath.Join(dir, "logs", "notifications.log")
}

func (l *LogFile) Name() string { return config.NotifyLog }

func (l *LogFile) Notify(ctx context.Context, n Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("%w: log: %v", ErrNotification, err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: log: %v", ErrNotification, err)
	}
	defer f.Close()

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	level := strings.ToUpper(n.Severity)
	if level == "" {
		level = "INFO"
	}
	if _, err := fmt.Fprintf(f, "%s [%s] %s\n", now().Format("2006-01-02 15:04:05"), level, n.Message); err != nil {
		return fmt.Errorf("%w: log: %v", ErrNotification, err)
	}
	return nil
}

// FromConfig builds sinks in the configured order.
func FromConfig(methods []string, stderr io.Writer) ([]Notifier, error) {
	cli := &CLI{W: stderr}
	var out []Notifier
	for _, m := range methods {
		switch m {
		case config.NotifyCLI:
			out = append(out, cli)
		case config.NotifyEmacs:
			out = append(out, &Emacs{Fallback: cli})
		case config.NotifyLog:
			out = append(out, &LogFile{Path: ProjectLogPath()})
		default:
			return nil, fmt.Errorf("%w: unknown notification method %q", config.ErrConfig, m)
		}
	}
	return out, nil
}

// Dispatch sends n through every sink in order. A failing sink is logged and
// does not stop the others; the failures are returned joined.
func Dispatch(ctx context.Context, sinks []Notifier, n Notification) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Notify(ctx, n); err != nil {
			slog.WarnContext(ctx, "notification failed", "sink", s.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
