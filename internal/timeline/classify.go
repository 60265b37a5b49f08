package timeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

// LogLine is one structured platform log record.
type LogLine struct {
	Time      string `json:"time"`
	Subsystem string `json:"subsystem"`
	Message   string `json:"message"`
	Level     string `json:"level"`
}

// benignVersionMismatch is logged at warn on every start after an upgrade
// and is not worth an alert.
const benignVersionMismatch = "was last written by a newer"

// Summary caps per kind.
const (
	memorySummaryMax = 80
	cronSummaryMax   = 60
	alertSummaryMax  = 80
)

var (
	toolNamePattern  = regexp.MustCompile(`tool=(\S+)`)
	toolPhasePattern = regexp.MustCompile(`tool (start|end)`)
	sessionPattern   = regexp.MustCompile(`new=(\S+)`)
)

// Classify turns raw log lines into events. Malformed lines and lines no
// rule matches are skipped.
func Classify(lines [][]byte) []Event {
	events := make([]Event, 0, len(lines))
	for _, raw := range lines {
		if ev, ok := ClassifyLine(raw); ok {
			events = append(events, ev)
		}
	}
	return events
}

// ClassifyLine decodes and classifies one line.
func ClassifyLine(raw []byte) (Event, bool) {
	var line LogLine
	if err := json.Unmarshal(raw, &line); err != nil {
		return Event{}, false
	}
	return ClassifyRecord(line)
}

// ClassifyRecord applies the rules in order; the first match wins:
//
//  1. agent tool start/end  → tool    "▶ name" / "✓ name"
//  2. session state change  → session "Session <state>"
//  3. memory subsystem/text → memory  (message, 80 chars)
//  4. cron subsystem/text   → cron    (message, 60 chars)
//  5. level warn or error   → alert   (message, 80 chars) unless benign
//  6. anything else is dropped
func ClassifyRecord(line LogLine) (Event, bool) {
	msg := line.Message
	base := Event{TS: line.Time, Level: line.Level}

	if line.Subsystem == "agent/embedded" && strings.Contains(msg, "tool ") {
		name := toolNamePattern.FindStringSubmatch(msg)
		phase := toolPhasePattern.FindStringSubmatch(msg)
		if name != nil && phase != nil {
			marker := "▶"
			if phase[1] == "end" {
				marker = "✓"
			}
			base.ID = line.Time + "-" + name[1]
			base.Kind = KindTool
			base.Summary = marker + " " + name[1]
			base.Details = map[string]any{"tool": name[1], "phase": phase[1]}
			return base, true
		}
	}

	if line.Subsystem == "diagnostic" && strings.Contains(msg, "session state") {
		if m := sessionPattern.FindStringSubmatch(msg); m != nil {
			base.ID = line.Time + "-session"
			base.Kind = KindSession
			base.Summary = "Session " + m[1]
			base.Details = map[string]any{"state": m[1]}
			return base, true
		}
	}

	if line.Subsystem == "memory" || strings.Contains(msg, "memory") || strings.Contains(msg, "Memory") {
		base.ID = line.Time + "-memory"
		base.Kind = KindMemory
		base.Summary = Truncate(msg, memorySummaryMax)
		return base, true
	}

	if line.Subsystem == "cron" || strings.Contains(msg, "cron") {
		base.ID = line.Time + "-cron"
		base.Kind = KindCron
		base.Summary = Truncate(msg, cronSummaryMax)
		return base, true
	}

	switch line.Level {
	case "warn", "error":
		if strings.Contains(msg, benignVersionMismatch) {
			return Event{}, false
		}
		base.ID = line.Time + "-alert"
		base.Kind = KindAlert
		base.Summary = Truncate(msg, alertSummaryMax)
		if line.Subsystem != "" {
			base.Details = map[string]any{"subsystem": line.Subsystem}
		}
		return base, true
	}

	return Event{}, false
}
