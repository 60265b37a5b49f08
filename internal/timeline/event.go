// Package timeline classifies platform log lines into events and merges
// event sources into one newest-first feed.
package timeline

import (
	"time"
	"unicode/utf8"
)

// Event kinds.
const (
	KindSession = "session"
	KindCron    = "cron"
	KindTool    = "tool"
	KindMemory  = "memory"
	KindAlert   = "alert"
)

// Event is one entry in the unified timeline. TS is an ISO-8601 timestamp.
type Event struct {
	ID      string         `json:"id"`
	TS      string         `json:"ts"`
	Kind    string         `json:"kind"`
	Summary string         `json:"summary"`
	Level   string         `json:"level,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Time parses TS. Unparseable timestamps yield the zero time.
func (e Event) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, e.TS); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// FormatTS renders t as an event timestamp.
func FormatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
