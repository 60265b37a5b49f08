package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/clawscope/internal/engine"
	"github.com/scrypster/clawscope/internal/providers"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/settings"
	"github.com/scrypster/clawscope/internal/storage"
	"github.com/scrypster/clawscope/internal/timeline"
	"github.com/scrypster/clawscope/web/handlers"
	"github.com/scrypster/clawscope/web/templates"
)

type fakeSearcher struct {
	got   search.Request
	items []search.Item
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) ([]search.Item, error) {
	f.got = req
	return f.items, f.err
}

type fakeReader struct {
	err   error
	graph *storage.Graph
}

func (f *fakeReader) Stats(context.Context) (storage.Stats, error) {
	if f.err != nil {
		return storage.Stats{}, f.err
	}
	return storage.Stats{TotalItems: 3, TotalFacts: 5, TotalEntities: 4, TotalPredicates: 2}, nil
}

func (f *fakeReader) Categories(context.Context) ([]storage.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []storage.Category{{Tag: "notes", Count: 2}}, nil
}

func (f *fakeReader) Items(_ context.Context, limit int) ([]storage.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []storage.Item{{ID: int64(limit), Text: "hello"}}, nil
}

func (f *fakeReader) Graph(_ context.Context, q storage.GraphQuery) (*storage.Graph, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.graph, nil
}

type fakeExtractor struct {
	mode string
	err  error
}

func (f *fakeExtractor) ExtractFacts(_ context.Context, mode string) (engine.ExtractionRun, error) {
	f.mode = mode
	if f.err != nil {
		return engine.ExtractionRun{}, f.err
	}
	return engine.ExtractionRun{ID: "run-1", Mode: mode, Items: 2, Facts: 7}, nil
}

type fixedPrefs struct{ search, extract string }

func (p fixedPrefs) SearchMode() string     { return p.search }
func (p fixedPrefs) ExtractionMode() string { return p.extract }

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestMemorySearch(t *testing.T) {
	s := &fakeSearcher{items: []search.Item{{ID: "1", Kind: "memory", Snippet: "hi", Score: 0.9}}}
	h := handlers.NewMemoryHandlers(s, &fakeReader{}, &fakeExtractor{}, fixedPrefs{search: "lexical"})

	w := get(t, h.Search, "/memory/search?q=hello&limit=5&source=telegram")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, search.ModeLexical, s.got.Mode, "settings supply the default mode")
	assert.Equal(t, 5, s.got.Limit)
	assert.Equal(t, "telegram", s.got.Source)

	var items []search.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	get(t, h.Search, "/memory/search?q=hello&mode=semantic")
	assert.Equal(t, search.ModeSemantic, s.got.Mode)
}

func TestMemorySearch_FailureIs500(t *testing.T) {
	s := &fakeSearcher{err: errors.New("database is locked")}
	h := handlers.NewMemoryHandlers(s, &fakeReader{}, &fakeExtractor{}, nil)

	w := get(t, h.Search, "/memory/search?q=x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"database is locked"}`, w.Body.String())
}

func TestMemoryPanels_DegradeOnFailure(t *testing.T) {
	h := handlers.NewMemoryHandlers(&fakeSearcher{}, &fakeReader{err: storage.ErrStoreUnavailable}, &fakeExtractor{}, nil)

	w := get(t, h.Stats, "/memory/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalItems":0,"totalFacts":0,"totalEntities":0,"totalPredicates":0}`, w.Body.String())

	w = get(t, h.Categories, "/memory/categories")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = get(t, h.Items, "/memory/items")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = get(t, h.GraphData, "/graph-data?entity=Ada")
	assert.Equal(t, http.StatusOK, w.Code)
	var g storage.Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.NotNil(t, g.Nodes)
	assert.Empty(t, g.Nodes)
	assert.Contains(t, w.Body.String(), `"edges":[]`)
}

func TestMemoryPanels_Success(t *testing.T) {
	reader := &fakeReader{graph: &storage.Graph{
		Nodes: []storage.GraphNode{{ID: "ada", Label: "Ada", Degree: 1}},
		Edges: []storage.GraphEdge{{ID: 1, Source: "ada", Target: "go", Predicate: "uses", Confidence: 0.7}},
	}}
	h := handlers.NewMemoryHandlers(&fakeSearcher{}, reader, &fakeExtractor{}, nil)

	w := get(t, h.Stats, "/memory/stats")
	assert.Contains(t, w.Body.String(), `"totalFacts":5`)

	w = get(t, h.Items, "/memory/items?limit=5000")
	assert.Contains(t, w.Body.String(), `"id":1000`, "limit is capped")

	w = get(t, h.GraphData, "/graph-data?minConfidence=0.5&limit=10")
	assert.Contains(t, w.Body.String(), `"predicate":"uses"`)
}

func TestExtractFacts(t *testing.T) {
	x := &fakeExtractor{}
	h := handlers.NewMemoryHandlers(&fakeSearcher{}, &fakeReader{}, x, fixedPrefs{extract: "llm"})

	w := get(t, h.ExtractFacts, "/extract-facts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "llm", x.mode)
	assert.JSONEq(t, `{"success":true,"count":7,"items":2,"runId":"run-1","mode":"llm"}`, w.Body.String())

	get(t, h.ExtractFacts, "/extract-facts?mode=pattern")
	assert.Equal(t, "pattern", x.mode)

	x.err = engine.ErrExtractionRunning
	w = get(t, h.ExtractFacts, "/extract-facts")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

type failingSessions struct{}

func (failingSessions) List(context.Context) ([]providers.Session, error) {
	return nil, errors.New("down")
}

type fixedTasks []providers.ScheduledTask

func (f fixedTasks) List(context.Context) ([]providers.ScheduledTask, error) { return f, nil }

type fixedActivity struct{ limit int }

func (f *fixedActivity) List(_ context.Context, limit int) ([]timeline.Event, error) {
	f.limit = limit
	return nil, errors.New("down")
}

type recordingFeed struct {
	since time.Time
	limit int
}

func (f *recordingFeed) Timeline(_ context.Context, since time.Time, limit int) []timeline.Event {
	f.since, f.limit = since, limit
	return []timeline.Event{{ID: "e1", TS: "2026-02-01T10:00:00Z", Kind: timeline.KindCron, Summary: "tick"}}
}

func TestPlatformHandlers(t *testing.T) {
	activity := &fixedActivity{}
	feed := &recordingFeed{}
	h := handlers.NewPlatformHandlers(failingSessions{}, fixedTasks{{ID: "t1", Kind: providers.TaskCronJob, Schedule: "* * * * *"}}, activity, feed)

	w := get(t, h.Sessions, "/sessions")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = get(t, h.Tasks, "/tasks")
	assert.Contains(t, w.Body.String(), `"nextRunAt":null`)

	w = get(t, h.Activity, "/activity?limit=7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, 7, activity.limit)

	w = get(t, h.TimelineData, "/timeline-data?since=2026-02-01T09:00:00Z&limit=10")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, feed.limit)
	assert.True(t, feed.since.Equal(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)))

	get(t, h.TimelineData, "/timeline-data?since=1769936400000")
	assert.True(t, feed.since.Equal(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, timeline.DefaultLimit, feed.limit)

	get(t, h.TimelineData, "/timeline-data?since=yesterday")
	assert.True(t, feed.since.IsZero())
}

type staticStatus struct{}

func (staticStatus) Status(context.Context) settings.Status {
	return settings.Status{SettingsPath: "/tmp/s.json", CompanionURL: "http://127.0.0.1:18789/clawscope"}
}

func TestSettingsHandlers(t *testing.T) {
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	h := handlers.NewSettingsHandlers(store, staticStatus{})

	w := get(t, h.Config, "/settings/config")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"searchMode":"hybrid","extractionMode":"pattern"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.Save(w, httptest.NewRequest(http.MethodPost, "/settings/save", strings.NewReader(`{"searchMode":"lexical"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, h.Config, "/settings/config")
	assert.JSONEq(t, `{"searchMode":"lexical"}`, w.Body.String())

	prefs := handlers.StorePreferences{Store: store}
	assert.Equal(t, "lexical", prefs.SearchMode())
	assert.Equal(t, "pattern", prefs.ExtractionMode())

	w = httptest.NewRecorder()
	h.Save(w, httptest.NewRequest(http.MethodPost, "/settings/save", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = get(t, h.Status, "/settings/status")
	assert.Contains(t, w.Body.String(), `"companionUrl":"http://127.0.0.1:18789/clawscope"`)
}

func TestPages(t *testing.T) {
	pages, err := handlers.NewPages(templates.FS)
	require.NoError(t, err)

	for _, name := range handlers.PageNames {
		w := get(t, pages.Handler(name), "/")
		assert.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "<title>ClawScope", name)
		assert.Contains(t, w.Body.String(), "<script>", name)
	}

	w := get(t, pages.Handler("missing"), "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
