package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalysisLogger_Log(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "analysis.jsonl")

	lg, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Close() }()

	rec := AnalysisRecord{
		ID:         "a1",
		Timestamp:  "2026-02-02T12:00:00Z",
		Source:     SourceAnalyze,
		Strategy:   "any_bad_feature",
		Label:      "BAD",
		Verdict:    "bad",
		Confidence: 0.91,
		Severity:   "high",
		Fired:      true,
		Excerpt:    "You're absolutely right! Here is the key: sk-ant-REDACTED",
		Features:   []Feature{{ID: "f1", Label: "flattery", Polarity: "bad", Activation: 0.3}},
	}
	if err := lg.Log(rec); err != nil {
		t.Fatalf("failed to log record: %v", err)
	}
	_ = lg.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var parsed AnalysisRecord
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to parse log line as JSON: %v", err)
	}
	if parsed.Label != "BAD" || !parsed.Fired {
		t.Errorf("expected fired BAD record, got %+v", parsed)
	}
	if strings.Contains(parsed.Excerpt, "sk-ant-api03") {
		t.Errorf("expected excerpt to be redacted, got %q", parsed.Excerpt)
	}
	if len(parsed.Features) != 1 || parsed.Features[0].ID != "f1" {
		t.Errorf("expected one activated feature, got %+v", parsed.Features)
	}
}

func TestAnalysisLogger_Rotation(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "analysis.jsonl")

	big := make([]byte, defaultMaxLogBytes)
	if err := os.WriteFile(logPath, big, 0600); err != nil {
		t.Fatalf("failed to seed large log file: %v", err)
	}

	lg, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Close() }()

	if err := lg.Log(AnalysisRecord{ID: "x", Label: "GOOD"}); err != nil {
		t.Fatalf("Log after rotation failed: %v", err)
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1 to exist: %v", logPath, err)
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("fresh log file missing: %v", err)
	}
	if info.Size() >= defaultMaxLogBytes {
		t.Errorf("fresh log file is still %d bytes; expected < %d", info.Size(), defaultMaxLogBytes)
	}
}

func TestAnalysisLogger_FilePermissions(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "analysis.jsonl")

	lg, err := New(logPath)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	_ = lg.Close()

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("failed to stat log file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected file permissions 0600, got %04o", perm)
	}
}

func TestReadRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "analysis.jsonl")

	recs, skipped, err := ReadRecords(logPath)
	if err != nil || recs != nil || skipped != 0 {
		t.Fatalf("expected empty result for missing file, got %v %d %v", recs, skipped, err)
	}

	content := `{"id":"1","label":"GOOD"}
not json

{"id":"2","label":"BAD","fired":true}
`
	if err := os.WriteFile(logPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	recs, skipped, err = ReadRecords(logPath)
	if err != nil {
		t.Fatalf("ReadRecords error: %v", err)
	}
	if len(recs) != 2 || recs[1].ID != "2" || !recs[1].Fired {
		t.Errorf("unexpected records %+v", recs)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped line, got %d", skipped)
	}
}
