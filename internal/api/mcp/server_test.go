package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/clawscope/internal/providers"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/storage"
	"github.com/scrypster/clawscope/internal/timeline"
)

type fakeSessions struct {
	list []providers.Session
	err  error
}

func (f fakeSessions) List(context.Context) ([]providers.Session, error) { return f.list, f.err }

type fakeTasks struct {
	list []providers.ScheduledTask
	err  error
}

func (f fakeTasks) List(context.Context) ([]providers.ScheduledTask, error) { return f.list, f.err }

type fakeActivity struct {
	gotLimit int
	err      error
}

func (f *fakeActivity) List(_ context.Context, limit int) ([]timeline.Event, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []timeline.Event{{ID: "a1", Kind: timeline.KindAlert, Summary: "disk full", TS: "2026-01-01T00:00:00.000Z"}}, nil
}

type fakeSearch struct {
	got search.Request
}

func (f *fakeSearch) Search(_ context.Context, req search.Request) ([]search.Item, error) {
	f.got = req
	if strings.TrimSpace(req.Query) == "" {
		return []search.Item{}, nil
	}
	return []search.Item{{ID: "7", Kind: search.KindMemory, Title: "note", Score: 1.5}}, nil
}

type fakeGraph struct {
	got storage.GraphQuery
	err error
}

func (f *fakeGraph) Graph(_ context.Context, q storage.GraphQuery) (*storage.Graph, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Graph{Nodes: []storage.GraphNode{}, Edges: []storage.GraphEdge{}}, nil
}

func (f *fakeGraph) GraphStats(context.Context) (storage.GraphStats, error) {
	return storage.GraphStats{Entities: 3, Facts: 4, Predicates: 2}, f.err
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestListSessions(t *testing.T) {
	s := NewServer(Deps{Sessions: fakeSessions{list: []providers.Session{{Key: "main", Channel: "telegram"}}}}, "test")

	res, err := s.handleListSessions(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got []providers.Session
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "telegram", got[0].Channel)
}

func TestToolFailureIsResultNotError(t *testing.T) {
	s := NewServer(Deps{Tasks: fakeTasks{err: errors.New("openclaw not found")}}, "test")

	res, err := s.handleListTasks(context.Background(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	assert.Equal(t, "openclaw not found", body["error"])
}

func TestGetActivityLimit(t *testing.T) {
	act := &fakeActivity{}
	s := NewServer(Deps{Activity: act}, "test")

	_, err := s.handleGetActivity(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultActivityLimit, act.gotLimit)

	res, err := s.handleGetActivity(context.Background(), call(map[string]any{"limit": float64(5)}))
	require.NoError(t, err)
	assert.Equal(t, 5, act.gotLimit)
	assert.Contains(t, resultText(t, res), "disk full")
}

func TestSearchMemory(t *testing.T) {
	fs := &fakeSearch{}
	s := NewServer(Deps{Search: fs}, "test")

	t.Run("blank query is an empty result", func(t *testing.T) {
		res, err := s.handleSearchMemory(context.Background(), call(map[string]any{"query": "  "}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "  ", fs.got.Query)
		assert.JSONEq(t, `[]`, resultText(t, res))
	})

	t.Run("defaults", func(t *testing.T) {
		res, err := s.handleSearchMemory(context.Background(), call(map[string]any{"query": "coffee"}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, search.ModeHybrid, fs.got.Mode)
		assert.Equal(t, search.DefaultLimit, fs.got.Limit)
		assert.Contains(t, resultText(t, res), `"title": "note"`)
	})

	t.Run("explicit mode and limit", func(t *testing.T) {
		_, err := s.handleSearchMemory(context.Background(), call(map[string]any{"query": "coffee", "mode": "lexical", "limit": float64(3)}))
		require.NoError(t, err)
		assert.Equal(t, search.ModeLexical, fs.got.Mode)
		assert.Equal(t, 3, fs.got.Limit)
	})
}

func TestGetGraph(t *testing.T) {
	g := &fakeGraph{}
	s := NewServer(Deps{Graph: g}, "test")

	res, err := s.handleGetGraph(context.Background(), call(map[string]any{
		"entity":        " alice ",
		"minConfidence": 0.6,
		"limit":         float64(10),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, storage.GraphQuery{Entity: "alice", MinConfidence: 0.6, Limit: 10}, g.got)

	res, err = s.handleGetGraphStats(context.Background(), call(nil))
	require.NoError(t, err)
	var st storage.GraphStats
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &st))
	assert.Equal(t, 4, st.Facts)
}

func TestServeStdioListsTools(t *testing.T) {
	s := NewServer(Deps{}, "test")

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n")
	pr, pw := io.Pipe()
	defer pw.Close()
	go func() {
		_, _ = io.Copy(pw, in)
	}()

	var out safeBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.ServeStdio(ctx, pr, &out)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"id":2`)
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	for _, name := range []string{"list_sessions", "list_tasks", "get_activity", "search_memory", "get_graph", "get_graph_stats"} {
		assert.Contains(t, out.String(), `"`+name+`"`)
	}
}
