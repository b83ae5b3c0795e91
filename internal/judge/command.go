package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// CommandProvider runs an external command with the full prompt on stdin and
// reads a JSON score from stdout. Stdin keeps long responses clear of the
// per-argument size limit.
type CommandProvider struct {
	Path string
	Args []string
}

// NewCommandProvider builds a provider from an argv such as ["claude", "-p"].
func NewCommandProvider(argv []string) (*CommandProvider, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%w: empty judge_command", ErrJudge)
	}
	return &CommandProvider{Path: argv[0], Args: argv[1:]}, nil
}

func (p *CommandProvider) Name() string { return filepath.Base(p.Path) }

// Rate runs the command. The context bounds its runtime.
func (p *CommandProvider) Rate(ctx context.Context, req Request) (Response, error) {
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Stdin = strings.NewReader(BuildPrompt(req))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("%w: %s timed out: %v", ErrJudge, p.Name(), ctx.Err())
		}
		return Response{}, fmt.Errorf("%w: %s: %v: %s", ErrJudge, p.Name(), err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	score, err := ParseScore(raw)
	if err != nil {
		return Response{Raw: raw}, err
	}
	return Response{Score: score, Raw: raw}, nil
}

// BuildPrompt appends the text to the rating instruction.
func BuildPrompt(req Request) string {
	return req.Prompt + "\n\nText to analyze:\n" + req.Text
}

var scoreObject = regexp.MustCompile(`\{[^{}]*"(?:score|sycophancy_score)"[^{}]*\}`)

// ParseScore finds the first JSON object carrying "score" (or the older
// "sycophancy_score") in output that may be wrapped in prose or code fences.
func ParseScore(out string) (float64, error) {
	for _, match := range scoreObject.FindAllString(out, -1) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(match), &obj); err != nil {
			continue
		}
		for _, key := range []string{"score", "sycophancy_score"} {
			v, ok := obj[key].(float64)
			if !ok {
				continue
			}
			if v < 0 || v > 1 {
				return 0, fmt.Errorf("%w: score %v outside [0,1]", ErrJudge, v)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: no score in response: %q", ErrJudge, truncate(out, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
