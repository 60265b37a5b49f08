package search_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/clawscope/internal/engine"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/storage"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Lexical(ctx context.Context, query string, limit int, source string) ([]storage.LexicalHit, error) {
	args := m.Called(ctx, query, limit, source)
	hits, _ := args.Get(0).([]storage.LexicalHit)
	return hits, args.Error(1)
}

func (m *mockEngine) Hybrid(ctx context.Context, query string, opts engine.HybridOptions) ([]engine.HybridHit, error) {
	args := m.Called(ctx, query, opts)
	hits, _ := args.Get(0).([]engine.HybridHit)
	return hits, args.Error(1)
}

func item(id int64, text string) storage.Item {
	return storage.Item{ID: id, Text: text, Source: "memory/notes.md", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestSearch_EmptyQueryShortCircuits(t *testing.T) {
	eng := &mockEngine{}
	a := search.NewAdapter(eng)

	for _, q := range []string{"", "   ", "\n\t"} {
		items, err := a.Search(context.Background(), search.Request{Query: q})
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
	eng.AssertNotCalled(t, "Lexical", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	eng.AssertNotCalled(t, "Hybrid", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_DefaultsToHybrid(t *testing.T) {
	eng := &mockEngine{}
	want := engine.HybridOptions{Candidates: 80, Limit: 20, SemanticWeight: 0.7}
	eng.On("Hybrid", mock.Anything, "gateway", want).Return([]engine.HybridHit{
		{Item: item(1, "a"), Score: 0.5, LexicalScore: 0.5, EmbedScore: 0.5},
	}, nil).Once()

	items, err := search.NewAdapter(eng).Search(context.Background(), search.Request{Query: " gateway "})
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, search.KindMemory, got.Kind)
	assert.Equal(t, "notes.md", got.Title)
	require.NotNil(t, got.ScoreFTS)
	require.NotNil(t, got.ScoreEmbed)
	require.NotNil(t, got.CreatedAt)
	assert.Equal(t, "2026-01-02T03:04:05Z", *got.CreatedAt)
	assert.Equal(t, int64(1), got.Payload["engineId"])
	eng.AssertExpectations(t)
}

func TestSearch_SemanticEqualsHybrid(t *testing.T) {
	hits := []engine.HybridHit{
		{Item: item(1, "first"), Score: 0.9, LexicalScore: 1, EmbedScore: 0.85},
		{Item: item(2, "second"), Score: 0.4, LexicalScore: 0.2, EmbedScore: 0.5},
	}
	eng := &mockEngine{}
	eng.On("Hybrid", mock.Anything, "q", mock.Anything).Return(hits, nil).Twice()

	a := search.NewAdapter(eng)
	semantic, err := a.Search(context.Background(), search.Request{Query: "q", Mode: search.ModeSemantic})
	require.NoError(t, err)
	hybrid, err := a.Search(context.Background(), search.Request{Query: "q", Mode: search.ModeHybrid})
	require.NoError(t, err)

	assert.Equal(t, hybrid, semantic)
	eng.AssertNumberOfCalls(t, "Hybrid", 2)
	eng.AssertNotCalled(t, "Lexical", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_LexicalMode(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Lexical", mock.Anything, "cron", 5, "src").Return([]storage.LexicalHit{
		{Item: item(3, "x"), Score: 2.5},
	}, nil)

	items, err := search.NewAdapter(eng).Search(context.Background(),
		search.Request{Query: "cron", Mode: search.ModeLexical, Limit: 5, Source: "src"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2.5, items[0].Score)
	require.NotNil(t, items[0].ScoreFTS)
	assert.Equal(t, 2.5, *items[0].ScoreFTS)
	assert.Nil(t, items[0].ScoreEmbed)
}

func TestSearch_UniqueAndSortedStable(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Hybrid", mock.Anything, mock.Anything, mock.Anything).Return([]engine.HybridHit{
		{Item: item(1, "a"), Score: 0.2},
		{Item: item(2, "b"), Score: 0.8},
		{Item: item(1, "a again"), Score: 0.99},
		{Item: item(3, "c"), Score: 0.2},
		{Item: item(4, "d"), Score: 0.8},
	}, nil)

	items, err := search.NewAdapter(eng).Search(context.Background(), search.Request{Query: "x"})
	require.NoError(t, err)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"2", "4", "1", "3"}, ids)
	for i := 1; i < len(items); i++ {
		assert.GreaterOrEqual(t, items[i-1].Score, items[i].Score)
	}
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	var hits []engine.HybridHit
	for i := int64(1); i <= 10; i++ {
		hits = append(hits, engine.HybridHit{Item: item(i, "t"), Score: float64(i)})
	}
	eng := &mockEngine{}
	eng.On("Hybrid", mock.Anything, mock.Anything, mock.Anything).Return(hits, nil)

	items, err := search.NewAdapter(eng).Search(context.Background(), search.Request{Query: "x", Limit: 3, CandidateCount: 1})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "10", items[0].ID)

	opts := eng.Calls[0].Arguments.Get(2).(engine.HybridOptions)
	assert.Equal(t, 3, opts.Candidates, "candidate count never drops below limit")
}

func TestSearch_FailureSurfaces(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Hybrid", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("store locked"))

	items, err := search.NewAdapter(eng).Search(context.Background(), search.Request{Query: "x"})
	require.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "store locked")
}

func TestSearch_ConcurrentCalls(t *testing.T) {
	eng := &mockEngine{}
	eng.On("Hybrid", mock.Anything, mock.Anything, mock.Anything).Return([]engine.HybridHit{{Item: item(1, "a"), Score: 1}}, nil)
	a := search.NewAdapter(eng, search.WithSemanticWeight(0.5))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := a.Search(context.Background(), search.Request{Query: "x"})
			assert.NoError(t, err)
			assert.Len(t, items, 1)
		}()
	}
	wg.Wait()
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", search.Snippet("  a\n\n b\t\tc  "))

	long := strings.Repeat("word ", 100)
	s := search.Snippet(long)
	assert.Equal(t, search.SnippetMax+1, utf8.RuneCountInString(s))
	assert.True(t, strings.HasSuffix(s, "…"))
	assert.NotContains(t, s, "  ")

	exact := strings.Repeat("é", search.SnippetMax)
	assert.Equal(t, exact, search.Snippet(exact))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, search.ModeLexical, search.ParseMode("LEXICAL", search.ModeHybrid))
	assert.Equal(t, search.ModeSemantic, search.ParseMode("semantic", search.ModeHybrid))
	assert.Equal(t, search.ModeHybrid, search.ParseMode("", search.ModeHybrid))
	assert.Equal(t, search.ModeLexical, search.ParseMode("bogus", search.ModeLexical))
	assert.Equal(t, search.ModeHybrid, search.ModeSemantic.Effective())
}
