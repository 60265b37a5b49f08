package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/internal/upstream"
)

// Task kinds.
const (
	TaskCronJob   = "cron_job"
	TaskReminder  = "reminder"
	TaskHeartbeat = "heartbeat"
)

// ScheduledTask is a normalized cron job, reminder or heartbeat.
type ScheduledTask struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	NextRunAt   *string `json:"nextRunAt"`
	LastRunAt   *string `json:"lastRunAt,omitempty"`
	Schedule    string  `json:"schedule"`
	Active      bool    `json:"active"`
	Source      string  `json:"source"`
	Owner       string  `json:"owner,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Schedule is the platform's schedule descriptor.
type Schedule struct {
	Kind    string  `json:"kind"`
	Expr    string  `json:"expr,omitempty"`
	EveryMs float64 `json:"everyMs,omitempty"`
	At      string  `json:"at,omitempty"`
	TZ      string  `json:"tz,omitempty"`
}

// FormatSchedule renders a schedule for humans:
// cron → the expression, every → "every Nmin", at → "once at <ts>" or
// "once", anything else → "unknown".
func FormatSchedule(s *Schedule) string {
	if s == nil {
		return "unknown"
	}
	switch s.Kind {
	case "cron":
		return s.Expr
	case "every":
		return fmt.Sprintf("every %dmin", int64(math.Round(s.EveryMs/60000)))
	case "at":
		if s.At == "" {
			return "once"
		}
		return "once at " + s.At
	default:
		return "unknown"
	}
}

type jobState struct {
	NextRunAtMs int64  `json:"nextRunAtMs"`
	LastRunAtMs int64  `json:"lastRunAtMs"`
	LastStatus  string `json:"lastStatus"`
}

type rawJob struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Enabled     *bool     `json:"enabled"`
	AgentID     string    `json:"agentId"`
	Description string    `json:"description"`
	Schedule    *Schedule `json:"schedule"`
	State       jobState  `json:"state"`
}

func (j rawJob) normalize(source string) ScheduledTask {
	t := ScheduledTask{
		ID:          j.ID,
		Kind:        TaskCronJob,
		Name:        j.Name,
		Schedule:    FormatSchedule(j.Schedule),
		Active:      j.Enabled == nil || *j.Enabled,
		Source:      source,
		Owner:       j.AgentID,
		Description: j.Description,
	}
	if t.Name == "" {
		t.Name = j.ID
	}
	if j.Schedule != nil && j.Schedule.Kind == "at" {
		t.Kind = TaskReminder
	}

	last := msToISO(j.State.LastRunAtMs)
	if last != "" {
		t.LastRunAt = &last
	}
	// A one-shot that already ran has nothing scheduled.
	if t.Kind == TaskReminder && last != "" {
		return t
	}
	if next := msToISO(j.State.NextRunAtMs); next != "" {
		t.NextRunAt = &next
	}
	return t
}

type rawHeartbeat struct {
	AgentID     string  `json:"agentId"`
	Every       string  `json:"every"`
	EveryMs     float64 `json:"everyMs"`
	Enabled     *bool   `json:"enabled"`
	NextRunAtMs int64   `json:"nextRunAtMs"`
	LastRunAtMs int64   `json:"lastRunAtMs"`
}

func (h rawHeartbeat) normalize(source string) ScheduledTask {
	agent := h.AgentID
	if agent == "" {
		agent = "main"
	}
	t := ScheduledTask{
		ID:     "heartbeat-" + agent,
		Kind:   TaskHeartbeat,
		Name:   "Heartbeat (" + agent + ")",
		Active: h.Enabled == nil || *h.Enabled,
		Source: source,
		Owner:  h.AgentID,
	}
	switch {
	case h.Every != "":
		t.Schedule = "every " + h.Every
	case h.EveryMs > 0:
		t.Schedule = FormatSchedule(&Schedule{Kind: "every", EveryMs: h.EveryMs})
	default:
		t.Schedule = "unknown"
	}
	if next := msToISO(h.NextRunAtMs); next != "" {
		t.NextRunAt = &next
	}
	if last := msToISO(h.LastRunAtMs); last != "" {
		t.LastRunAt = &last
	}
	return t
}

// TaskProvider lists scheduled tasks.
type TaskProvider struct {
	chain *upstream.Chain[json.RawMessage]
}

// NewTaskProvider creates a provider over src.
func NewTaskProvider(src Sources) *TaskProvider {
	return &TaskProvider{
		chain: rawChain("tasks", src, "/tasks", nil, src.CLITimeout, "cron", "list", "--json"),
	}
}

// List returns normalized tasks, jobs first then heartbeats. When every
// source fails it returns an empty list with the error.
func (p *TaskProvider) List(ctx context.Context) ([]ScheduledTask, error) {
	raw, source, err := p.chain.Run(ctx)
	if err != nil {
		return []ScheduledTask{}, err
	}

	tasks, err := decodeTasks(raw, source)
	if err != nil {
		log.Debug().Err(err).Str("source", source).Msg("task payload rejected")
		return []ScheduledTask{}, err
	}
	return tasks, nil
}

func decodeTasks(raw json.RawMessage, source string) ([]ScheduledTask, error) {
	jobs, err := decodeList[rawJob](raw, "jobs")
	if err != nil {
		return nil, err
	}

	var heartbeats []rawHeartbeat
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		heartbeats, err = decodeList[rawHeartbeat](raw, "heartbeats")
		if err != nil {
			log.Debug().Err(err).Msg("heartbeats skipped")
			heartbeats = nil
		}
	}

	out := make([]ScheduledTask, 0, len(jobs)+len(heartbeats))
	for _, j := range jobs {
		if j.ID == "" {
			continue
		}
		out = append(out, j.normalize(source))
	}
	for _, h := range heartbeats {
		out = append(out, h.normalize(source))
	}
	return out, nil
}

const taskSummaryMax = 60

// TaskEvents turns tasks that have run into cron timeline events keyed
// "cron-<id>-<lastRunAt>", so each run is its own event.
func TaskEvents(tasks []ScheduledTask) []timeline.Event {
	events := make([]timeline.Event, 0, len(tasks))
	for _, t := range tasks {
		if t.LastRunAt == nil {
			continue
		}
		events = append(events, timeline.Event{
			ID:      "cron-" + t.ID + "-" + *t.LastRunAt,
			TS:      *t.LastRunAt,
			Kind:    timeline.KindCron,
			Summary: timeline.Truncate("Ran "+t.Name, taskSummaryMax),
			Details: map[string]any{"taskId": t.ID, "taskKind": t.Kind, "schedule": t.Schedule},
		})
	}
	return events
}
