// Package sanitize strips invisible and control characters from response
// text before it is sent for feature extraction or judging.
package sanitize

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Removal records one character dropped from the input.
type Removal struct {
	Category  string // "zero-width", "bidi-control", "tag-char", "control-char", "invalid-utf8"
	Position  int    // byte offset in the input
	Codepoint string // e.g. "U+200B"
}

// Result holds the cleaned text and what was removed from it.
type Result struct {
	Text     string
	Removals []Removal
}

// Clean reports whether anything was removed.
func (r Result) Clean() bool { return len(r.Removals) == 0 }

// Summary groups removals by category, e.g. "zero-width=2 control-char=1".
func (r Result) Summary() string {
	if r.Clean() {
		return ""
	}
	counts := map[string]int{}
	var order []string
	for _, rm := range r.Removals {
		if counts[rm.Category] == 0 {
			order = append(order, rm.Category)
		}
		counts[rm.Category]++
	}
	parts := make([]string, len(order))
	for i, c := range order {
		parts[i] = fmt.Sprintf("%s=%d", c, counts[c])
	}
	return strings.Join(parts, " ")
}

// Text removes characters that render as nothing but still reach the
// extraction model as tokens. Tabs, newlines and carriage returns are kept.
func Text(input string) Result {
	var res Result
	var b strings.Builder
	b.Grow(len(input))

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == utf8.RuneError && size == 1 {
			res.Removals = append(res.Removals, Removal{
				Category:  "invalid-utf8",
				Position:  i,
				Codepoint: fmt.Sprintf("0x%02X", input[i]),
			})
			i++
			continue
		}
		if cat := classifyRune(r); cat != "" {
			res.Removals = append(res.Removals, Removal{
				Category:  cat,
				Position:  i,
				Codepoint: fmt.Sprintf("U+%04X", r),
			})
			i += size
			continue
		}
		b.WriteRune(r)
		i += size
	}

	res.Text = b.String()
	return res
}

func classifyRune(r rune) string {
	switch {
	case isZeroWidth(r):
		return "zero-width"
	case isBidiControl(r):
		return "bidi-control"
	case r >= 0xE0001 && r <= 0xE007F:
		return "tag-char"
	case isUnsafeControl(r):
		return "control-char"
	}
	return ""
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // BOM
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F': // RIGHT-TO-LEFT MARK
		return true
	}
	return false
}

func isBidiControl(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

func isUnsafeControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}
