// Package search adapts memory engine results into the uniform SearchItem
// shape the dashboard and MCP tools consume.
package search

import (
	"strings"
	"time"
	"unicode/utf8"
)

// KindMemory is the only item kind the engine produces.
const KindMemory = "memory"

// SnippetMax is the snippet length cap in characters, before the ellipsis.
const SnippetMax = 220

const ellipsis = "…"

// Item is a normalized search result. ScoreFTS and ScoreEmbed are set only
// when the engine reports them.
type Item struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Source     string         `json:"source"`
	Title      string         `json:"title"`
	Snippet    string         `json:"snippet"`
	Score      float64        `json:"score"`
	ScoreFTS   *float64       `json:"score_fts,omitempty"`
	ScoreEmbed *float64       `json:"score_embed,omitempty"`
	CreatedAt  *string        `json:"created_at"`
	Payload    map[string]any `json:"payload"`
}

// Snippet collapses whitespace runs to single spaces, trims, and caps the
// result at SnippetMax characters plus a single ellipsis.
func Snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= SnippetMax {
		return s
	}
	runes := []rune(s)
	return string(runes[:SnippetMax]) + ellipsis
}

func formatCreatedAt(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func floatPtr(v float64) *float64 {
	return &v
}
