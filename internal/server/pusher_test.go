package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/clawscope/internal/timeline"
)

type scriptFeed struct {
	batches [][]timeline.Event
	n       int
}

func (f *scriptFeed) Timeline(context.Context, time.Time, int) []timeline.Event {
	if f.n >= len(f.batches) {
		return f.batches[len(f.batches)-1]
	}
	b := f.batches[f.n]
	f.n++
	return b
}

type captureHub struct {
	mu   sync.Mutex
	msgs []any
}

func (c *captureHub) Broadcast(m any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func ev(id, ts string) timeline.Event {
	return timeline.Event{ID: id, TS: ts, Kind: timeline.KindCron, Summary: id}
}

func TestPusher_BroadcastsOnlyUnseenEvents(t *testing.T) {
	feed := &scriptFeed{batches: [][]timeline.Event{
		{ev("a", "2026-02-01T10:00:00Z")},
		{ev("a", "2026-02-01T10:00:00Z"), ev("b", "2026-02-01T10:01:00Z")},
		{ev("a", "2026-02-01T10:00:00Z"), ev("b", "2026-02-01T10:01:00Z")},
	}}
	hub := &captureHub{}
	p := NewPusher(feed, hub, time.Second)

	assert.Nil(t, p.Tick(context.Background()), "first tick primes the cache")

	added := p.Tick(context.Background())
	require.Len(t, added, 1)
	assert.Equal(t, "b", added[0].ID)

	assert.Nil(t, p.Tick(context.Background()))

	require.Len(t, hub.msgs, 1)
	msg := hub.msgs[0].(TimelineMessage)
	assert.Equal(t, "timeline", msg.Type)
	assert.Equal(t, "b", msg.Events[0].ID)
}

func TestPusher_RunStopsWithContext(t *testing.T) {
	feed := &scriptFeed{batches: [][]timeline.Event{{}}}
	p := NewPusher(feed, &captureHub{}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pusher did not stop")
	}
}
