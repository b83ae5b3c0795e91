// Package judge asks an external language model to rate a text for a
// behavior. It is used only by the claude_prompt strategy.
//
// Architecture:
//
//	Provider (interface)
//	  └── CommandProvider: runs a CLI such as `claude -p` and parses its stdout
package judge

import (
	"context"
	"errors"
)

// ErrJudge marks a judge that could not be run or returned no usable score.
var ErrJudge = errors.New("judge failed")

// Request is the input to a Provider.
type Request struct {
	// Prompt is the rating instruction, e.g. "Rate the following text for: ...".
	Prompt string

	// Text is the sample under review.
	Text string
}

// Response is a Provider's verdict.
type Response struct {
	// Score is 0.0–1.0, higher meaning more of the behavior.
	Score float64

	// Raw is the provider's unparsed output, kept for logging.
	Raw string
}

// Provider is the interface for any judge implementation.
type Provider interface {
	// Name returns the provider identifier (e.g., "claude").
	Name() string

	// Rate scores the text for the behavior described in the prompt.
	Rate(ctx context.Context, req Request) (Response, error)
}
