package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/clawscope/internal/cache"
	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/internal/upstream"
)

// scriptedRunner answers CLI invocations by their joined arguments.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	err     error
	calls   []string
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	if r.err != nil {
		return nil, r.err
	}
	out, ok := r.outputs[key]
	if !ok {
		return nil, errors.New("unexpected command: " + key)
	}
	return []byte(out), nil
}

func (r *scriptedRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// companionStub serves fixed bodies per path and counts requests.
func companionStub(t *testing.T, bodies map[string]string) (*upstream.Companion, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.Error(w, "nope", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return upstream.NewCompanion(srv.URL, time.Second), &hits
}

func deadCompanion(t *testing.T) *upstream.Companion {
	t.Helper()
	c, _ := companionStub(t, nil)
	return c
}

func TestFormatSchedule(t *testing.T) {
	cases := []struct {
		in   *Schedule
		want string
	}{
		{&Schedule{Kind: "every", EveryMs: 600000}, "every 10min"},
		{&Schedule{Kind: "every", EveryMs: 90000}, "every 2min"},
		{&Schedule{Kind: "cron", Expr: "*/30 * * * *"}, "*/30 * * * *"},
		{&Schedule{Kind: "at", At: "2026-01-01T08:00:00Z"}, "once at 2026-01-01T08:00:00Z"},
		{&Schedule{Kind: "at"}, "once"},
		{&Schedule{Kind: "lunar"}, "unknown"},
		{&Schedule{}, "unknown"},
		{nil, "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatSchedule(tc.in))
	}
}

func TestSessionProvider_CachesSuccessfulFetch(t *testing.T) {
	companion, hits := companionStub(t, map[string]string{
		"/sessions": `{"sessions":[{"key":"agent:main:main","kind":"direct","channel":"telegram","updatedAt":1767225600000,"totalTokens":1200}]}`,
	})
	runner := &scriptedRunner{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	slot := cache.NewSlot[[]Session](15 * time.Minute).WithClock(func() time.Time { return now })

	p := NewSessionProvider(Sources{Companion: companion, CLI: upstream.NewCLI("openclaw", runner)}, slot)

	first, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "agent:main:main", first[0].Key)
	assert.Equal(t, "2026-01-01T00:00:00Z", first[0].UpdatedAt)
	assert.Equal(t, int64(1200), first[0].TotalTokens)

	now = now.Add(10 * time.Minute)
	second, err := p.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(hits))
	assert.Zero(t, runner.count())

	now = now.Add(6 * time.Minute)
	_, err = p.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(hits))
}

func TestSessionProvider_FallsBackToCLI(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]string{
		"sessions --json": "\x1b[2mgateway ok\x1b[0m\n" + `[{"key":"k1","displayName":"Ops","updatedAt":"2026-02-01T10:00:00Z"}]`,
	}}
	p := NewSessionProvider(Sources{Companion: deadCompanion(t), CLI: upstream.NewCLI("openclaw", runner)}, nil)

	got, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ops", got[0].DisplayName)
	assert.Equal(t, "2026-02-01T10:00:00Z", got[0].UpdatedAt)
}

func TestSessionProvider_FailureIsEmptyAndNotCached(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("exit status 1")}
	slot := cache.NewSlot[[]Session](time.Hour)
	p := NewSessionProvider(Sources{Companion: deadCompanion(t), CLI: upstream.NewCLI("openclaw", runner)}, slot)

	got, err := p.List(context.Background())
	require.Error(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, ok := slot.Get()
	assert.False(t, ok)

	_, _ = p.List(context.Background())
	assert.Equal(t, 2, runner.count())
}

func TestTaskProvider_Normalizes(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]string{
		"cron list --json": `{
			"jobs": [
				{"id":"digest","name":"Daily digest","agentId":"main","schedule":{"kind":"cron","expr":"0 8 * * *"},
				 "state":{"nextRunAtMs":1767254400000,"lastRunAtMs":1767168000000}},
				{"id":"poll","enabled":false,"schedule":{"kind":"every","everyMs":600000},"state":{}},
				{"id":"remind","name":"Call mom","schedule":{"kind":"at","at":"2026-01-01T08:00:00Z"},
				 "state":{"nextRunAtMs":1767254400000,"lastRunAtMs":1767254400000}},
				{"name":"no id"}
			],
			"heartbeats": [{"agentId":"main","every":"30m","nextRunAtMs":1767254400000}]
		}`,
	}}
	p := NewTaskProvider(Sources{CLI: upstream.NewCLI("openclaw", runner)})

	tasks, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 4)

	digest := tasks[0]
	assert.Equal(t, TaskCronJob, digest.Kind)
	assert.Equal(t, "0 8 * * *", digest.Schedule)
	assert.True(t, digest.Active)
	assert.Equal(t, StrategyCLI, digest.Source)
	assert.Equal(t, "main", digest.Owner)
	require.NotNil(t, digest.NextRunAt)
	assert.Equal(t, "2026-01-01T08:00:00Z", *digest.NextRunAt)
	require.NotNil(t, digest.LastRunAt)

	poll := tasks[1]
	assert.Equal(t, "poll", poll.Name)
	assert.Equal(t, "every 10min", poll.Schedule)
	assert.False(t, poll.Active)
	assert.Nil(t, poll.NextRunAt)

	remind := tasks[2]
	assert.Equal(t, TaskReminder, remind.Kind)
	assert.Equal(t, "once at 2026-01-01T08:00:00Z", remind.Schedule)
	assert.Nil(t, remind.NextRunAt, "executed one-shot has no next run")

	hb := tasks[3]
	assert.Equal(t, TaskHeartbeat, hb.Kind)
	assert.Equal(t, "heartbeat-main", hb.ID)
	assert.Equal(t, "every 30m", hb.Schedule)
}

func TestTaskProvider_PrefersCompanion(t *testing.T) {
	companion, _ := companionStub(t, map[string]string{
		"/tasks": `[{"id":"j1","schedule":{"kind":"cron","expr":"* * * * *"}}]`,
	})
	runner := &scriptedRunner{}
	p := NewTaskProvider(Sources{Companion: companion, CLI: upstream.NewCLI("openclaw", runner)})

	tasks, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, StrategyPlugin, tasks[0].Source)
	assert.Zero(t, runner.count())
}

func TestTaskProvider_BothFail(t *testing.T) {
	p := NewTaskProvider(Sources{Companion: deadCompanion(t), CLI: upstream.NewCLI("openclaw", &scriptedRunner{err: errors.New("boom")})})
	tasks, err := p.List(context.Background())
	assert.ErrorIs(t, err, upstream.ErrAllStrategiesFailed)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestSessionProvider_SkipsMalformedRecord(t *testing.T) {
	companion, _ := companionStub(t, map[string]string{
		"/sessions": `{"sessions":[{"key":"a","updatedAt":1767225600000,"totalTokens":10},{"key":"b","totalTokens":"n/a"}]}`,
	})
	runner := &scriptedRunner{}
	p := NewSessionProvider(Sources{Companion: companion, CLI: upstream.NewCLI("openclaw", runner)}, nil)

	got, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, int64(10), got[0].TotalTokens)
	assert.Zero(t, runner.count())
}

func TestTaskProvider_SkipsMalformedJob(t *testing.T) {
	companion, _ := companionStub(t, map[string]string{
		"/tasks": `[{"id":"j1","name":"Digest","schedule":{"kind":"cron","expr":"0 9 * * *"}},{"id":42}]`,
	})
	runner := &scriptedRunner{}
	p := NewTaskProvider(Sources{Companion: companion, CLI: upstream.NewCLI("openclaw", runner)})

	tasks, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "j1", tasks[0].ID)
	assert.Equal(t, "0 9 * * *", tasks[0].Schedule)
	assert.Zero(t, runner.count())
}

func TestDecodeList(t *testing.T) {
	type rec struct {
		N int `json:"n"`
	}

	got, err := decodeList[rec](json.RawMessage(`[{"n":1},{"n":"x"},"junk",{"n":3}]`), "items")
	require.NoError(t, err)
	assert.Equal(t, []rec{{N: 1}, {N: 3}}, got)

	got, err = decodeList[rec](json.RawMessage(`{"items":null}`), "items")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = decodeList[rec](json.RawMessage(`{"other":[]}`), "items")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = decodeList[rec](json.RawMessage(`{"items":"nope"}`), "items")
	assert.Error(t, err)
}

func TestActivityProvider_CompanionEvents(t *testing.T) {
	companion, _ := companionStub(t, map[string]string{
		"/activity": `{"events":[{"id":"e1","ts":"2026-02-01T10:00:00Z","kind":"tool","summary":"▶ exec"},{"summary":"no id"}]}`,
	})
	p := NewActivityProvider(Sources{Companion: companion})

	events, err := p.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
}

func TestActivityProvider_ClassifiesCLILogs(t *testing.T) {
	logs := strings.Join([]string{
		`{"time":"2026-02-01T10:00:00Z","subsystem":"agent/embedded","message":"embedded run tool start: tool=exec","level":"debug"}`,
		`not json at all`,
		"\x1b[33m" + `{"time":"2026-02-01T10:00:05Z","subsystem":"gateway","message":"webhook failed","level":"error"}` + "\x1b[0m",
		`{"time":"2026-02-01T10:00:06Z","subsystem":"gateway","message":"ok","level":"info"}`,
	}, "\n")
	runner := &scriptedRunner{outputs: map[string]string{"logs --json --limit 25": logs}}
	p := NewActivityProvider(Sources{Companion: deadCompanion(t), CLI: upstream.NewCLI("openclaw", runner)})

	events, err := p.List(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, timeline.KindTool, events[0].Kind)
	assert.Equal(t, timeline.KindAlert, events[1].Kind)
}

func TestSessionAndTaskEvents(t *testing.T) {
	last := "2026-02-01T09:00:00Z"
	evs := TaskEvents([]ScheduledTask{
		{ID: "digest", Name: "Daily digest", LastRunAt: &last},
		{ID: "never", Name: "Never ran"},
	})
	require.Len(t, evs, 1)
	assert.Equal(t, "cron-digest-2026-02-01T09:00:00Z", evs[0].ID)
	assert.Equal(t, "Ran Daily digest", evs[0].Summary)
	assert.Equal(t, timeline.KindCron, evs[0].Kind)

	sevs := SessionEvents([]Session{
		{Key: "k1", DisplayName: strings.Repeat("x", 200), UpdatedAt: last},
		{Key: "k2"},
	})
	require.Len(t, sevs, 1)
	assert.Equal(t, "session-k1", sevs[0].ID)
	assert.Len(t, []rune(sevs[0].Summary), 100)
}

func TestFeed_MergesSources(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string]string{
		"sessions --json":  `[{"key":"k1","updatedAt":"2026-02-01T08:00:00Z"}]`,
		"cron list --json": `{"jobs":[{"id":"d","name":"Digest","schedule":{"kind":"cron","expr":"0 9 * * *"},"state":{"lastRunAtMs":1769936400000}}]}`,
		"logs --json --limit 100": `{"time":"2026-02-01T10:00:00Z","subsystem":"memory","message":"memory synced","level":"info"}`,
	}}
	src := Sources{CLI: upstream.NewCLI("openclaw", runner)}
	feed := &Feed{
		Sessions: NewSessionProvider(src, nil),
		Tasks:    NewTaskProvider(src),
		Activity: NewActivityProvider(src),
	}

	events := feed.Timeline(context.Background(), time.Time{}, 0)
	require.Len(t, events, 3)
	assert.Equal(t, timeline.KindMemory, events[0].Kind)
	assert.Equal(t, timeline.KindCron, events[1].Kind)
	assert.Equal(t, timeline.KindSession, events[2].Kind)

	since, _ := time.Parse(time.RFC3339, "2026-02-01T09:30:00Z")
	events = feed.Timeline(context.Background(), since, 0)
	require.Len(t, events, 1)
}
