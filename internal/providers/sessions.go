package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/cache"
	"github.com/scrypster/clawscope/internal/metrics"
	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/internal/upstream"
)

// Session is one agent conversation as listed by the platform.
type Session struct {
	Key            string `json:"key"`
	SessionID      string `json:"sessionId,omitempty"`
	Kind           string `json:"kind,omitempty"`
	Channel        string `json:"channel,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	Model          string `json:"model,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
	TotalTokens    int64  `json:"totalTokens"`
	ContextTokens  int64  `json:"contextTokens"`
	AbortedLastRun bool   `json:"abortedLastRun,omitempty"`
}

// rawSession is the platform's shape. updatedAt arrives as epoch
// milliseconds from the CLI and as an ISO string from some companion builds.
type rawSession struct {
	Key            string          `json:"key"`
	SessionID      string          `json:"sessionId"`
	Kind           string          `json:"kind"`
	Channel        string          `json:"channel"`
	DisplayName    string          `json:"displayName"`
	Model          string          `json:"model"`
	UpdatedAt      json.RawMessage `json:"updatedAt"`
	TotalTokens    int64           `json:"totalTokens"`
	ContextTokens  int64           `json:"contextTokens"`
	AbortedLastRun bool            `json:"abortedLastRun"`
}

func (r rawSession) normalize() Session {
	return Session{
		Key:            r.Key,
		SessionID:      r.SessionID,
		Kind:           r.Kind,
		Channel:        r.Channel,
		DisplayName:    r.DisplayName,
		Model:          r.Model,
		UpdatedAt:      normalizeTimestamp(r.UpdatedAt),
		TotalTokens:    r.TotalTokens,
		ContextTokens:  r.ContextTokens,
		AbortedLastRun: r.AbortedLastRun,
	}
}

func normalizeTimestamp(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return ""
	}
	return msToISO(int64(ms))
}

// SessionProvider lists sessions through a single-slot TTL cache.
type SessionProvider struct {
	chain *upstream.Chain[json.RawMessage]
	cache *cache.Slot[[]Session]
}

// NewSessionProvider creates a provider. A nil slot disables caching.
func NewSessionProvider(src Sources, slot *cache.Slot[[]Session]) *SessionProvider {
	return &SessionProvider{
		chain: rawChain("sessions", src, "/sessions", nil, src.CLITimeout, "sessions", "--json"),
		cache: slot,
	}
}

// List returns the session list. When every source fails it returns an
// empty list together with the error; callers showing panels ignore it.
// Failed fetches are never cached.
func (p *SessionProvider) List(ctx context.Context) ([]Session, error) {
	if p.cache != nil {
		if v, ok := p.cache.Get(); ok {
			metrics.SessionCacheTotal.WithLabelValues("hit").Inc()
			return v, nil
		}
		metrics.SessionCacheTotal.WithLabelValues("miss").Inc()
	}

	raw, source, err := p.chain.Run(ctx)
	if err != nil {
		return []Session{}, err
	}

	rows, err := decodeList[rawSession](raw, "sessions")
	if err != nil {
		log.Debug().Err(err).Str("source", source).Msg("session payload rejected")
		return []Session{}, err
	}

	out := make([]Session, 0, len(rows))
	for _, r := range rows {
		if r.Key == "" {
			continue
		}
		out = append(out, r.normalize())
	}

	if p.cache != nil {
		p.cache.Put(out)
	}
	return out, nil
}

// SessionEvents turns sessions into timeline events keyed "session-<key>".
// Sessions without a timestamp are skipped.
func SessionEvents(sessions []Session) []timeline.Event {
	events := make([]timeline.Event, 0, len(sessions))
	for _, s := range sessions {
		if s.UpdatedAt == "" {
			continue
		}
		name := s.DisplayName
		if name == "" {
			name = s.Key
		}
		summary := "Session " + name
		if s.Channel != "" {
			summary += " (" + s.Channel + ")"
		}
		details := map[string]any{"key": s.Key, "totalTokens": s.TotalTokens}
		if s.Model != "" {
			details["model"] = s.Model
		}
		events = append(events, timeline.Event{
			ID:      "session-" + s.Key,
			TS:      s.UpdatedAt,
			Kind:    timeline.KindSession,
			Summary: timeline.Truncate(summary, sessionSummaryMax),
			Details: details,
		})
	}
	return events
}

const sessionSummaryMax = 100
