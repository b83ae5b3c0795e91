package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("Configuration validation failed:")
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrConfig }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field ranges and the cross-field rules that decide where
// directions come from. All problems are reported together.
func (c *WatchConfig) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	hasDirect := !c.DirectVectors.Empty()
	hasSource := c.VectorSource != ""
	if hasDirect && hasSource {
		problems = append(problems, "direct_vectors and _vector_source are mutually exclusive; choose one direction source")
	}
	if len(c.GoodExamplesPath) > 0 != (len(c.BadExamplesPath) > 0) {
		problems = append(problems, "good_examples_path and bad_examples_path must be given together")
	}

	switch c.Strategy {
	case StrategyClaudePrompt:
		if c.BehaviorToDetect == "" && c.ClaudePrompt == "" {
			problems = append(problems, "alert_strategy claude_prompt requires behavior_to_detect or claude_prompt")
		}
	default:
		if !hasDirect && !hasSource && !c.HasExamples() {
			problems = append(problems, fmt.Sprintf(
				"alert_strategy %s needs directions: set direct_vectors, _vector_source, or good_examples_path and bad_examples_path", c.Strategy))
		}
	}
	if c.Strategy == StrategyExpression && strings.TrimSpace(c.AlertExpression) == "" {
		problems = append(problems, "alert_strategy expression requires alert_expression")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s: %v is not one of [%s]", field, fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", field, fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s: %v is not a valid URL", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
