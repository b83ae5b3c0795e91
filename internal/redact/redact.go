// Package redact scrubs secrets from text before it is written to the
// analysis log and trims responses to short excerpts.
package redact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sensitivePatterns = []*regexp.Regexp{
	// Model provider keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-(proj-)?[A-Za-z0-9]{32,}`),
	regexp.MustCompile(`sk-goodfire-[A-Za-z0-9_-]{16,}`),

	// Cloud and VCS credentials
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),

	// key=value assignments
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|access_token|auth_token|goodfire_api_key|anthropic_api_key)\s*[=:]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),

	// Private keys
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),

	// Bearer tokens and basic auth in URLs
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`),
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),
}

const redactedPlaceholder = "[REDACTED]"

// Redact replaces anything that looks like a credential.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// Excerpt redacts text, collapses whitespace and cuts it to at most max runes.
func Excerpt(text string, max int) string {
	s := strings.Join(strings.Fields(Redact(text)), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
