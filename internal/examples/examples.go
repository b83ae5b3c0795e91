// Package examples loads labeled example conversations from JSON files.
package examples

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MinTextLen is the shortest assistant text worth extracting features from.
const MinTextLen = 10

// ErrNoExamples is returned when a path matches nothing loadable.
var ErrNoExamples = errors.New("no examples found")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Conversation struct {
	Messages []Message
	Source   string
}

// AssistantText is the last assistant message, or the last two joined when the
// conversation has several.
func (c Conversation) AssistantText() string {
	var replies []string
	for _, m := range c.Messages {
		if m.Role == "assistant" && m.Content != "" {
			replies = append(replies, m.Content)
		}
	}
	switch len(replies) {
	case 0:
		return ""
	case 1:
		return replies[0]
	default:
		return strings.Join(replies[len(replies)-2:], " ")
	}
}

// Load reads one path: a file, a directory of *.json files, or a glob.
// Unreadable files inside a directory or glob are skipped with a warning.
func Load(path string) ([]Conversation, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return LoadFile(path)
	case err == nil && info.IsDir():
		files, err := filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, err
		}
		return loadFiles(files), nil
	}

	files, err := filepath.Glob(path)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExamples, path)
	}
	return loadFiles(files), nil
}

// LoadAll loads every path in order and concatenates the results.
func LoadAll(paths []string) ([]Conversation, error) {
	var all []Conversation
	for _, p := range paths {
		convs, err := Load(p)
		if err != nil {
			return nil, err
		}
		all = append(all, convs...)
	}
	return all, nil
}

func loadFiles(files []string) []Conversation {
	sort.Strings(files)
	var out []Conversation
	for _, f := range files {
		convs, err := LoadFile(f)
		if err != nil {
			slog.Warn("skipping example file", "path", f, "error", err)
			continue
		}
		out = append(out, convs...)
	}
	return out
}

// LoadFile parses one JSON file in any of the supported layouts: a list of
// conversations, a list of {"conversation": [...]} objects, a bare list of
// messages, a {"conversations": [...]} container or a single conversation object.
func LoadFile(path string) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var convs [][]Message
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case map[string]any:
				if c, ok := it["conversation"]; ok {
					convs = append(convs, toMessages(c))
				} else if _, ok := it["role"]; ok {
					if len(convs) == 0 {
						convs = append(convs, nil)
					}
					convs[len(convs)-1] = append(convs[len(convs)-1], toMessages([]any{it})...)
				}
			case []any:
				convs = append(convs, toMessages(it))
			}
		}
	case map[string]any:
		switch {
		case v["conversation"] != nil:
			convs = append(convs, toMessages(v["conversation"]))
		case v["conversations"] != nil:
			if list, ok := v["conversations"].([]any); ok {
				for _, c := range list {
					if m, ok := c.(map[string]any); ok && m["conversation"] != nil {
						convs = append(convs, toMessages(m["conversation"]))
					} else {
						convs = append(convs, toMessages(c))
					}
				}
			}
		case v["role"] != nil:
			convs = append(convs, toMessages([]any{v}))
		default:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if msgs := toMessages(v[k]); len(msgs) > 0 {
					convs = append(convs, msgs)
				}
			}
		}
	}

	out := make([]Conversation, 0, len(convs))
	for _, msgs := range convs {
		if len(msgs) == 0 {
			continue
		}
		out = append(out, Conversation{Messages: msgs, Source: path})
	}
	return out, nil
}

func toMessages(v any) []Message {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var msgs []Message
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		if role == "" {
			continue
		}
		msgs = append(msgs, Message{Role: role, Content: ContentText(m["content"])})
	}
	return msgs
}

// ContentText flattens message content that is either a plain string or a
// list of {"type": "text", "text": ...} parts.
func ContentText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, p := range c {
			switch part := p.(type) {
			case string:
				parts = append(parts, part)
			case map[string]any:
				if t, _ := part["type"].(string); t != "" && t != "text" {
					continue
				}
				if text, ok := part["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// Texts extracts the assistant text of each conversation, dropping those too
// short to carry signal.
func Texts(convs []Conversation) []string {
	var out []string
	for _, c := range convs {
		text := c.AssistantText()
		if len(strings.TrimSpace(text)) < MinTextLen {
			continue
		}
		out = append(out, text)
	}
	return out
}

// LoadTexts loads paths and returns their usable assistant texts.
func LoadTexts(paths []string) ([]string, error) {
	convs, err := LoadAll(paths)
	if err != nil {
		return nil, err
	}
	texts := Texts(convs)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExamples, strings.Join(paths, ", "))
	}
	return texts, nil
}

// Balance truncates both sets to the shorter length.
func Balance(good, bad []string) ([]string, []string) {
	n := min(len(good), len(bad))
	return good[:n], bad[:n]
}
