package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/providers"
	"github.com/scrypster/clawscope/internal/timeline"
)

// SessionLister lists platform sessions.
type SessionLister interface {
	List(ctx context.Context) ([]providers.Session, error)
}

// TaskLister lists scheduled tasks.
type TaskLister interface {
	List(ctx context.Context) ([]providers.ScheduledTask, error)
}

// ActivityLister lists recent activity events.
type ActivityLister interface {
	List(ctx context.Context, limit int) ([]timeline.Event, error)
}

// TimelineFeed builds the merged timeline.
type TimelineFeed interface {
	Timeline(ctx context.Context, since time.Time, limit int) []timeline.Event
}

// PlatformHandlers serve the best-effort panels fed by the agent platform.
// Every route answers 200 with a list, empty when the platform is down.
type PlatformHandlers struct {
	sessions SessionLister
	tasks    TaskLister
	activity ActivityLister
	feed     TimelineFeed
}

// NewPlatformHandlers creates the handlers.
func NewPlatformHandlers(s SessionLister, t TaskLister, a ActivityLister, f TimelineFeed) *PlatformHandlers {
	return &PlatformHandlers{sessions: s, tasks: t, activity: a, feed: f}
}

// Sessions handles GET /sessions.
func (h *PlatformHandlers) Sessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.List(r.Context())
	if err != nil {
		log.Debug().Err(err).Msg("sessions unavailable")
	}
	if list == nil {
		list = []providers.Session{}
	}
	respondJSON(w, http.StatusOK, list)
}

// Tasks handles GET /tasks.
func (h *PlatformHandlers) Tasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.tasks.List(r.Context())
	if err != nil {
		log.Debug().Err(err).Msg("tasks unavailable")
	}
	if list == nil {
		list = []providers.ScheduledTask{}
	}
	respondJSON(w, http.StatusOK, list)
}

// Activity handles GET /activity?limit=.
func (h *PlatformHandlers) Activity(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), providers.DefaultActivityLimit)
	list, err := h.activity.List(r.Context(), limit)
	if err != nil {
		log.Debug().Err(err).Msg("activity unavailable")
	}
	if list == nil {
		list = []timeline.Event{}
	}
	respondJSON(w, http.StatusOK, list)
}

// TimelineData handles GET /timeline-data?since=&limit=. since accepts an
// ISO-8601 timestamp or epoch milliseconds; anything else means no bound.
func (h *PlatformHandlers) TimelineData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since := parseSince(q.Get("since"))
	limit := parseInt(q.Get("limit"), timeline.DefaultLimit)

	events := h.feed.Timeline(r.Context(), since, limit)
	if events == nil {
		events = []timeline.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}

func parseSince(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t := (timeline.Event{TS: s}).Time(); !t.IsZero() {
		return t
	}
	if ms := parseInt(s, 0); ms > 0 {
		return time.UnixMilli(int64(ms))
	}
	return time.Time{}
}
