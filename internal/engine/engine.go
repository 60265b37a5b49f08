// Package engine is the memory engine client: lexical and hybrid retrieval
// over the engine store, and the fact extraction pass that feeds the graph.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/llm"
	"github.com/scrypster/clawscope/internal/storage"
)

// ErrExtractionRunning is returned when an extraction pass is already active.
var ErrExtractionRunning = errors.New("fact extraction already running")

// Extraction modes.
const (
	ModePattern = "pattern"
	ModeLLM     = "llm"
)

const extractBatch = 100

// MemoryEngine wraps the engine store with retrieval scoring and extraction.
// It is safe for concurrent use.
type MemoryEngine struct {
	store      storage.Store
	embedder   llm.EmbeddingGenerator
	extractors map[string]Extractor
	now        func() time.Time

	extractMu sync.Mutex
}

// Option configures a MemoryEngine.
type Option func(*MemoryEngine)

// WithEmbedder enables the embedding half of hybrid search and stores
// embeddings during extraction.
func WithEmbedder(e llm.EmbeddingGenerator) Option {
	return func(m *MemoryEngine) { m.embedder = e }
}

// WithGenerator enables the "llm" extraction mode.
func WithGenerator(g llm.TextGenerator) Option {
	return func(m *MemoryEngine) { m.extractors[ModeLLM] = NewLLMExtractor(g) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryEngine) { m.now = now }
}

// New creates an engine over store.
func New(store storage.Store, opts ...Option) *MemoryEngine {
	m := &MemoryEngine{
		store:      store,
		extractors: map[string]Extractor{ModePattern: NewPatternExtractor()},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HasEmbedder reports whether hybrid search has a semantic component.
func (m *MemoryEngine) HasEmbedder() bool {
	return m.embedder != nil
}

// Lexical runs a full-text search.
func (m *MemoryEngine) Lexical(ctx context.Context, query string, limit int, source string) ([]storage.LexicalHit, error) {
	return m.store.LexicalSearch(ctx, storage.SearchOptions{Query: query, Limit: limit, Source: source})
}

// HybridOptions tunes Hybrid.
type HybridOptions struct {
	Candidates     int
	Limit          int
	SemanticWeight float64
	Source         string
}

// HybridHit is a blended result. LexicalScore and EmbedScore are in [0, 1].
type HybridHit struct {
	Item         storage.Item
	Score        float64
	LexicalScore float64
	EmbedScore   float64
}

// Hybrid blends lexical and embedding candidates:
//
//	score = w*embed + (1-w)*lexical
//
// Lexical scores are normalised by the best lexical candidate. Without an
// embedder every EmbedScore is 0.
func (m *MemoryEngine) Hybrid(ctx context.Context, query string, opts HybridOptions) ([]HybridHit, error) {
	if opts.Candidates <= 0 {
		opts.Candidates = 80
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	w := clamp01(opts.SemanticWeight)

	lex, err := m.store.LexicalSearch(ctx, storage.SearchOptions{Query: query, Limit: opts.Candidates, Source: opts.Source})
	if err != nil {
		return nil, fmt.Errorf("hybrid: lexical candidates: %w", err)
	}

	var best float64
	for _, h := range lex {
		if h.Score > best {
			best = h.Score
		}
	}

	order := make([]int64, 0, len(lex))
	hits := make(map[int64]*HybridHit, len(lex))
	for _, h := range lex {
		if _, dup := hits[h.Item.ID]; dup {
			continue
		}
		norm := 0.0
		if best > 0 {
			norm = clamp01(h.Score / best)
		}
		hits[h.Item.ID] = &HybridHit{Item: h.Item, LexicalScore: norm}
		order = append(order, h.Item.ID)
	}

	if m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("hybrid: embed query: %w", err)
		}
		vhits, err := m.store.VectorCandidates(ctx, vec, storage.SearchOptions{Limit: opts.Candidates, Source: opts.Source})
		if err != nil {
			return nil, fmt.Errorf("hybrid: vector candidates: %w", err)
		}

		var missing []int64
		for _, v := range vhits {
			if h, ok := hits[v.ItemID]; ok {
				h.EmbedScore = clamp01(v.Similarity)
				continue
			}
			hits[v.ItemID] = &HybridHit{EmbedScore: clamp01(v.Similarity)}
			order = append(order, v.ItemID)
			missing = append(missing, v.ItemID)
		}

		if len(missing) > 0 {
			items, err := m.store.GetItems(ctx, missing)
			if err != nil {
				return nil, fmt.Errorf("hybrid: load items: %w", err)
			}
			for _, id := range missing {
				item, ok := items[id]
				if !ok {
					delete(hits, id)
					continue
				}
				hits[id].Item = item
			}
		}
	}

	out := make([]HybridHit, 0, len(order))
	for _, id := range order {
		h, ok := hits[id]
		if !ok {
			continue
		}
		h.Score = w*h.EmbedScore + (1-w)*h.LexicalScore
		out = append(out, *h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Stats returns corpus counters.
func (m *MemoryEngine) Stats(ctx context.Context) (storage.Stats, error) {
	return m.store.Stats(ctx)
}

// Categories returns item groupings.
func (m *MemoryEngine) Categories(ctx context.Context) ([]storage.Category, error) {
	return m.store.Categories(ctx)
}

// Items returns the newest raw items.
func (m *MemoryEngine) Items(ctx context.Context, limit int) ([]storage.Item, error) {
	return m.store.ListItems(ctx, limit)
}

// Graph returns the fact graph filtered by q.
func (m *MemoryEngine) Graph(ctx context.Context, q storage.GraphQuery) (*storage.Graph, error) {
	return m.store.Graph(ctx, q)
}

// GraphStats summarises the whole fact graph.
func (m *MemoryEngine) GraphStats(ctx context.Context) (storage.GraphStats, error) {
	st, err := m.store.Stats(ctx)
	if err != nil {
		return storage.GraphStats{}, err
	}
	return storage.GraphStats{
		Nodes:      st.TotalEntities,
		Edges:      st.TotalFacts,
		Entities:   st.TotalEntities,
		Facts:      st.TotalFacts,
		Predicates: st.TotalPredicates,
	}, nil
}

// ExtractionRun reports one pass of ExtractFacts.
type ExtractionRun struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Items      int       `json:"items"`
	Facts      int       `json:"facts"`
	Embedded   int       `json:"embedded"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// LastExtraction returns the time and run id of the last completed pass.
// Both are empty when extraction has never run.
func (m *MemoryEngine) LastExtraction(ctx context.Context) (at, runID string, err error) {
	at, err = m.store.GetMeta(ctx, storage.MetaLastExtractionAt)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", "", err
	}
	runID, err = m.store.GetMeta(ctx, storage.MetaLastExtractionRun)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", "", err
	}
	return at, runID, nil
}

// ExtractFacts visits every item not yet extracted, stores the facts found
// by the extractor for mode, embeds the item when an embedder is configured,
// and records the last-extraction marker. An unknown mode, or "llm" without
// a generator, uses the pattern extractor. Work done before an extractor
// failure is kept.
func (m *MemoryEngine) ExtractFacts(ctx context.Context, mode string) (ExtractionRun, error) {
	if !m.extractMu.TryLock() {
		return ExtractionRun{}, ErrExtractionRunning
	}
	defer m.extractMu.Unlock()

	extractor, ok := m.extractors[mode]
	if !ok {
		if mode != "" && mode != ModePattern {
			log.Warn().Str("mode", mode).Msg("extraction mode unavailable, using pattern extractor")
		}
		extractor = m.extractors[ModePattern]
	}

	run := ExtractionRun{ID: uuid.NewString(), Mode: extractor.Name(), StartedAt: m.now().UTC()}
	logger := log.With().Str("run", run.ID).Str("mode", run.Mode).Logger()

	for {
		items, err := m.store.UnextractedItems(ctx, extractBatch)
		if err != nil {
			return run, fmt.Errorf("extract: load items: %w", err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return run, err
			}

			facts, err := extractor.Extract(ctx, item.Text)
			if err != nil {
				return run, fmt.Errorf("extract: item %d: %w", item.ID, err)
			}
			n, err := m.store.SaveFacts(ctx, item.ID, facts)
			if err != nil {
				return run, fmt.Errorf("extract: item %d: %w", item.ID, err)
			}
			run.Facts += n

			if m.embedder != nil {
				if vec, err := m.embedder.Embed(ctx, item.Text); err != nil {
					logger.Warn().Err(err).Int64("item", item.ID).Msg("embedding failed")
				} else if err := m.store.StoreEmbedding(ctx, item.ID, vec, m.embedder.GetModel()); err != nil {
					logger.Warn().Err(err).Int64("item", item.ID).Msg("store embedding failed")
				} else {
					run.Embedded++
				}
			}

			if err := m.store.MarkExtracted(ctx, item.ID, m.now()); err != nil {
				return run, fmt.Errorf("extract: item %d: %w", item.ID, err)
			}
			run.Items++
		}
	}

	run.FinishedAt = m.now().UTC()
	if err := m.store.SetMeta(ctx, storage.MetaLastExtractionAt, run.FinishedAt.Format(time.RFC3339)); err != nil {
		return run, err
	}
	if err := m.store.SetMeta(ctx, storage.MetaLastExtractionRun, run.ID); err != nil {
		return run, err
	}

	logger.Info().Int("items", run.Items).Int("facts", run.Facts).Int("embedded", run.Embedded).Msg("fact extraction complete")
	return run, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
