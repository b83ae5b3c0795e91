// Package logger appends analysis records to a JSONL file and reads them back
// for the log command.
package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gzhole/claudewatch/internal/redact"
)

// defaultMaxLogBytes is the size at which the log is rotated on open.
const defaultMaxLogBytes = 10 << 20

// ExcerptLen bounds the response excerpt stored with each record.
const ExcerptLen = 200

const (
	SourceAnalyze = "analyze"
	SourceHook    = "hook"
)

// Feature is one activated feature as recorded in the log.
type Feature struct {
	ID         string  `json:"uuid"`
	Label      string  `json:"label"`
	Polarity   string  `json:"polarity"`
	Activation float64 `json:"activation"`
}

// AnalysisRecord is one line of the analysis log.
type AnalysisRecord struct {
	ID          string    `json:"id"`
	Timestamp   string    `json:"timestamp"`
	Source      string    `json:"source"`
	Strategy    string    `json:"strategy"`
	Label       string    `json:"label"`
	Verdict     string    `json:"verdict"`
	Confidence  float64   `json:"confidence"`
	Severity    string    `json:"severity"`
	Fired       bool      `json:"fired"`
	Message     string    `json:"message,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	GoodScore   float64   `json:"good_score"`
	BadScore    float64   `json:"bad_score"`
	Features    []Feature `json:"activated_features,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Cwd         string    `json:"cwd,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// AnalysisLogger writes records; it is safe for concurrent use.
type AnalysisLogger struct {
	file *os.File
	mu   sync.Mutex
}

// New opens path for appending, rotating it to path.1 first if it has grown
// past the size limit.
func New(path string) (*AnalysisLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.Size() >= defaultMaxLogBytes {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, fmt.Errorf("failed to rotate log: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &AnalysisLogger{file: f}, nil
}

// Log redacts free-text fields and appends the record.
func (l *AnalysisLogger) Log(rec AnalysisRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Excerpt = redact.Excerpt(rec.Excerpt, ExcerptLen)
	rec.Message = redact.Redact(rec.Message)
	rec.Explanation = redact.Redact(rec.Explanation)
	rec.Error = redact.Redact(rec.Error)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (l *AnalysisLogger) Close() error {
	return l.file.Close()
}

// ReadRecords returns every parseable record in path, oldest first. A
// missing file yields no records. Corrupt lines are counted and skipped.
func ReadRecords(path string) ([]AnalysisRecord, int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var (
		records []AnalysisRecord
		skipped int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AnalysisRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, skipped, fmt.Errorf("failed to read log file: %w", err)
	}
	return records, skipped, nil
}
