package engine

import (
	"time"

	"github.com/gzhole/claudewatch/internal/logger"
)

// Record converts an outcome to an analysis log line. The logger redacts and
// trims the excerpt.
func (o *Outcome) Record(source string) logger.AnalysisRecord {
	rec := logger.AnalysisRecord{
		ID:          o.Event.ID,
		Timestamp:   o.Event.Timestamp.Format(time.RFC3339),
		Source:      source,
		Strategy:    string(o.Result.Strategy),
		Label:       o.Result.Label,
		Verdict:     string(o.Result.Verdict),
		Confidence:  o.Result.Confidence,
		Severity:    o.Event.Severity,
		Fired:       o.Event.Fired,
		Message:     o.Event.Message,
		Explanation: o.Event.Explanation,
		GoodScore:   o.Scores.Scores.Good,
		BadScore:    o.Scores.Scores.Bad,
		Excerpt:     o.Text,
	}
	for _, a := range o.Scores.Active {
		rec.Features = append(rec.Features, logger.Feature{
			ID:         a.ID,
			Label:      a.Label,
			Polarity:   string(a.Polarity),
			Activation: a.Activation,
		})
	}
	return rec
}

// ErrorRecord logs a failed analysis so failures are visible in the log next
// to clean negatives.
func ErrorRecord(source, text string, err error) logger.AnalysisRecord {
	return logger.AnalysisRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Source:    source,
		Excerpt:   text,
		Error:     err.Error(),
	}
}
