// Package transcript reads the Claude Code Stop hook payload and the JSONL
// session transcript it points at.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gzhole/claudewatch/internal/examples"
)

// EventStop is the only hook event that triggers an analysis.
const EventStop = "Stop"

// ErrNoResponse means the transcript has nothing worth analyzing yet.
var ErrNoResponse = errors.New("no assistant response to analyze")

// HookEvent is the JSON Claude Code writes to a hook's stdin.
type HookEvent struct {
	HookEventName  string `json:"hook_event_name"`
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	StopHookActive bool   `json:"stop_hook_active"`
}

// ReadEvent decodes a hook payload. Empty input returns a nil event.
func ReadEvent(r io.Reader) (*HookEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read hook input: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var ev HookEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("could not parse hook input: %w", err)
	}
	return &ev, nil
}

type entry struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"message"`
}

// Parse returns the user and assistant turns of a transcript in order.
// Tool-only turns and unparseable lines are skipped.
func Parse(r io.Reader) ([]examples.Message, error) {
	var out []examples.Message
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if e.Type != "user" && e.Type != "assistant" {
			continue
		}
		content := strings.TrimSpace(examples.ContentText(e.Message.Content))
		if e.Message.Role == "" || content == "" {
			continue
		}
		out = append(out, examples.Message{Role: e.Message.Role, Content: content})
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("failed to read transcript: %w", err)
	}
	return out, nil
}

// ParseFile parses the transcript at path. A missing file yields no turns.
func ParseFile(path string) ([]examples.Message, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// LatestResponse returns the assistant's latest response once the
// conversation has at least two turns. Claude Code writes one response as
// several assistant entries split around tool calls; consecutive trailing
// assistant entries are joined.
func LatestResponse(msgs []examples.Message) (string, error) {
	if len(msgs) < 2 {
		return "", ErrNoResponse
	}
	end := len(msgs) - 1
	for end >= 0 && msgs[end].Role != "assistant" {
		end--
	}
	if end < 0 {
		return "", ErrNoResponse
	}
	start := end
	for start > 0 && msgs[start-1].Role == "assistant" {
		start--
	}
	parts := make([]string, 0, end-start+1)
	for _, m := range msgs[start : end+1] {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
