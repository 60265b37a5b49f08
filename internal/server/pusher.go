package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/web/handlers"
)

// Broadcaster sends a message to every live client.
type Broadcaster interface {
	Broadcast(message any)
}

// TimelineMessage is pushed over /ws.
type TimelineMessage struct {
	Type   string           `json:"type"`
	Events []timeline.Event `json:"events"`
}

// Pusher polls the timeline feed and pushes events clients have not seen.
// It keeps the same bounded, id-keyed cache a browser does.
type Pusher struct {
	feed     handlers.TimelineFeed
	out      Broadcaster
	interval time.Duration

	cached []timeline.Event
	primed bool
}

// NewPusher creates a pusher polling every interval.
func NewPusher(feed handlers.TimelineFeed, out Broadcaster, interval time.Duration) *Pusher {
	return &Pusher{feed: feed, out: out, interval: interval}
}

// Run ticks until ctx is cancelled.
func (p *Pusher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick fetches the feed once and broadcasts the events whose ids were not
// in the cache. The first tick only fills the cache, since pages load the
// initial feed themselves. It returns what was broadcast.
func (p *Pusher) Tick(ctx context.Context) []timeline.Event {
	fresh := p.feed.Timeline(ctx, time.Time{}, 0)

	seen := make(map[string]bool, len(p.cached))
	for _, ev := range p.cached {
		seen[ev.ID] = true
	}
	var added []timeline.Event
	for _, ev := range fresh {
		if !seen[ev.ID] {
			added = append(added, ev)
		}
	}

	p.cached = timeline.MergeCached(p.cached, fresh, timeline.ClientCacheMax)

	if !p.primed {
		p.primed = true
		return nil
	}
	if len(added) == 0 {
		return nil
	}

	p.out.Broadcast(TimelineMessage{Type: "timeline", Events: added})
	log.Debug().Int("events", len(added)).Msg("timeline push")
	return added
}
