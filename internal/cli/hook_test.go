package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gzhole/claudewatch/internal/config"
	"github.com/gzhole/claudewatch/internal/logger"
	"github.com/gzhole/claudewatch/internal/notify"
)

const twoTurnTranscript = `{"type":"user","message":{"role":"user","content":"Is my plan any good?"}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"What a brilliant plan, you are absolutely right!"}]}}
`

const oneTurnTranscript = `{"type":"user","message":{"role":"user","content":"hello"}}
`

// hookFixture points the hook at a temp HOME, config, log and transcript,
// and serves activations from a fake extraction service.
type hookFixture struct {
	dir        string
	logFile    string
	calls      atomic.Int32
	status     int
	activation float64
}

func newHookFixture(t *testing.T) *hookFixture {
	t.Helper()
	f := &hookFixture{dir: t.TempDir(), status: http.StatusOK}
	f.logFile = filepath.Join(f.dir, "analysis.jsonl")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if f.status != http.StatusOK {
			http.Error(w, "unavailable", f.status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"activations": []map[string]any{{"uuid": "f-bad", "label": "Flattery", "activation": f.activation}},
		})
	}))
	t.Cleanup(srv.Close)

	cfgFile := filepath.Join(f.dir, "watch.yaml")
	cfgYAML := fmt.Sprintf(`alert_strategy: any_bad_feature
bad_threshold: 0.1
feature_retries: 0
notification_methods: [log]
data_dir: %s
direct_vectors:
  good: [{uuid: f-good, label: Direct feedback}]
  bad: [{uuid: f-bad, label: Flattery}]
`, filepath.Join(f.dir, "data"))
	if err := os.WriteFile(cfgFile, []byte(cfgYAML), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HOME", f.dir)
	t.Setenv(config.EnvFeatureServiceURL, srv.URL)
	t.Setenv(notify.EnvProjectDir, "")

	oldConfig, oldLog := configPath, logPath
	configPath, logPath = cfgFile, f.logFile
	t.Cleanup(func() { configPath, logPath = oldConfig, oldLog })
	return f
}

func (f *hookFixture) payload(t *testing.T, event, transcriptBody string) string {
	t.Helper()
	path := filepath.Join(f.dir, "session.jsonl")
	if err := os.WriteFile(path, []byte(transcriptBody), 0600); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(map[string]any{
		"hook_event_name": event,
		"session_id":      "sess-1",
		"transcript_path": path,
		"cwd":             f.dir,
	})
	return string(data)
}

func TestRunHook(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		transcript string
		rawInput   string
		status     int
		activation float64
		noConfig   bool
		wantAlert  bool
		wantCalls  int32
		wantLogged string // "", "fired", "clean" or "error"
	}{
		{name: "alert fires", event: "Stop", transcript: twoTurnTranscript, activation: 0.3, wantAlert: true, wantCalls: 1, wantLogged: "fired"},
		{name: "no alert", event: "Stop", transcript: twoTurnTranscript, activation: 0.05, wantCalls: 1, wantLogged: "clean"},
		{name: "other events ignored", event: "PreToolUse", transcript: twoTurnTranscript, activation: 0.3},
		{name: "single turn skipped", event: "Stop", transcript: oneTurnTranscript, activation: 0.3},
		{name: "malformed stdin", rawInput: "{not json", activation: 0.3},
		{name: "empty stdin", rawInput: " ", activation: 0.3},
		{name: "missing config", event: "Stop", transcript: twoTurnTranscript, activation: 0.3, noConfig: true},
		{name: "service down fails open", event: "Stop", transcript: twoTurnTranscript, status: http.StatusServiceUnavailable, wantCalls: 1, wantLogged: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHookFixture(t)
			f.activation = tt.activation
			if tt.status != 0 {
				f.status = tt.status
			}
			if tt.noConfig {
				configPath = filepath.Join(f.dir, "missing.yaml")
			}

			input := tt.rawInput
			if input == "" {
				input = f.payload(t, tt.event, tt.transcript)
			}

			var errOut bytes.Buffer
			err := runHook(context.Background(), strings.NewReader(input), &errOut)

			if tt.wantAlert {
				var exit *ExitError
				if !errors.As(err, &exit) || exit.Code != exitAlert {
					t.Fatalf("expected exit code %d, got %v", exitAlert, err)
				}
				if !strings.Contains(errOut.String(), "ClaudeWatch: Bad behavior detected!") {
					t.Errorf("expected alert on stderr, got %q", errOut.String())
				}
				if _, err := os.Stat(filepath.Join(f.dir, "logs", "notifications.log")); err != nil {
					t.Errorf("expected log sink under the hook cwd: %v", err)
				}
			} else if err != nil {
				t.Fatalf("expected hook to exit cleanly, got %v", err)
			}

			if got := f.calls.Load(); got != tt.wantCalls {
				t.Errorf("expected %d extraction calls, got %d", tt.wantCalls, got)
			}

			records, _, err := logger.ReadRecords(f.logFile)
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantLogged == "" {
				if len(records) != 0 {
					t.Errorf("expected no log records, got %+v", records)
				}
				return
			}
			if len(records) != 1 {
				t.Fatalf("expected 1 log record, got %d", len(records))
			}
			rec := records[0]
			if rec.Source != logger.SourceHook || rec.SessionID != "sess-1" {
				t.Errorf("expected hook record for sess-1, got %+v", rec)
			}
			switch tt.wantLogged {
			case "fired":
				if !rec.Fired {
					t.Errorf("expected fired record, got %+v", rec)
				}
			case "clean":
				if rec.Fired || rec.Error != "" {
					t.Errorf("expected clean record, got %+v", rec)
				}
			case "error":
				if rec.Error == "" {
					t.Errorf("expected error record, got %+v", rec)
				}
			}
		})
	}
}

func TestHookBypassed(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", true},
		{"yes", true},
	}
	for _, tt := range tests {
		t.Setenv(EnvBypass, tt.value)
		if got := hookBypassed(); got != tt.want {
			t.Errorf("%s=%q: expected %v, got %v", EnvBypass, tt.value, tt.want, got)
		}
	}
}

func TestHookCommandBypassSkipsStdin(t *testing.T) {
	t.Setenv(EnvBypass, "1")
	if err := hookCommand(hookCmd, nil); err != nil {
		t.Errorf("expected bypassed hook to exit cleanly, got %v", err)
	}
}
