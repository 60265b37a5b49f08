package search

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/engine"
	"github.com/scrypster/clawscope/internal/metrics"
	"github.com/scrypster/clawscope/internal/storage"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Defaults applied when a Request leaves a field zero.
const (
	DefaultLimit          = 20
	DefaultCandidateCount = 80
	DefaultSemanticWeight = 0.7
)

// ParseMode maps a user-supplied mode name to a Mode. Empty and unknown
// names return fallback.
func ParseMode(s string, fallback Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLexical:
		return ModeLexical
	case ModeSemantic:
		return ModeSemantic
	case ModeHybrid:
		return ModeHybrid
	default:
		return fallback
	}
}

// Effective returns the mode that actually executes. Semantic runs the
// hybrid path so that results keep a lexical component.
func (m Mode) Effective() Mode {
	if m == ModeLexical {
		return ModeLexical
	}
	return ModeHybrid
}

// Engine is the part of the memory engine the adapter needs.
type Engine interface {
	Lexical(ctx context.Context, query string, limit int, source string) ([]storage.LexicalHit, error)
	Hybrid(ctx context.Context, query string, opts engine.HybridOptions) ([]engine.HybridHit, error)
}

// Request is one search call. Zero fields take the adapter defaults.
type Request struct {
	Query          string
	Mode           Mode
	Limit          int
	CandidateCount int
	Source         string
}

// Adapter runs searches against an Engine and normalizes the results.
// It holds no mutable state and is safe for concurrent use.
type Adapter struct {
	engine         Engine
	semanticWeight float64
	limit          int
	candidates     int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSemanticWeight sets the embedding share of the hybrid score.
func WithSemanticWeight(w float64) Option {
	return func(a *Adapter) {
		if w >= 0 && w <= 1 {
			a.semanticWeight = w
		}
	}
}

// WithDefaults overrides the default limit and candidate count.
func WithDefaults(limit, candidates int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.limit = limit
		}
		if candidates > 0 {
			a.candidates = candidates
		}
	}
}

// NewAdapter creates an adapter over e.
func NewAdapter(e Engine, opts ...Option) *Adapter {
	a := &Adapter{
		engine:         e,
		semanticWeight: DefaultSemanticWeight,
		limit:          DefaultLimit,
		candidates:     DefaultCandidateCount,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search returns items unique by id in descending score order. A blank
// query returns an empty list without calling the engine. Engine failures
// are returned as errors, never as partial results.
func (a *Adapter) Search(ctx context.Context, req Request) ([]Item, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return []Item{}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = a.limit
	}
	candidates := req.CandidateCount
	if candidates <= 0 {
		candidates = a.candidates
	}
	if candidates < limit {
		candidates = limit
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	effective := mode.Effective()

	start := time.Now()
	hits, err := a.fetch(ctx, effective, query, limit, candidates, req.Source)
	metrics.SearchDuration.WithLabelValues(string(effective)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Str("mode", string(mode)).Msg("memory search failed")
		return nil, fmt.Errorf("search %s: %w", mode, err)
	}

	items := make([]Item, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		item := h.normalize()
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (a *Adapter) fetch(ctx context.Context, mode Mode, query string, limit, candidates int, source string) ([]hit, error) {
	switch mode {
	case ModeLexical:
		raw, err := a.engine.Lexical(ctx, query, limit, source)
		if err != nil {
			return nil, err
		}
		hits := make([]hit, len(raw))
		for i, r := range raw {
			hits[i] = lexicalHit(r)
		}
		return hits, nil
	default:
		raw, err := a.engine.Hybrid(ctx, query, engine.HybridOptions{
			Candidates:     candidates,
			Limit:          limit,
			SemanticWeight: a.semanticWeight,
			Source:         source,
		})
		if err != nil {
			return nil, err
		}
		hits := make([]hit, len(raw))
		for i, r := range raw {
			hits[i] = hybridHit(r)
		}
		return hits, nil
	}
}

// hit is the tagged union of engine result shapes.
type hit interface {
	normalize() Item
}

type lexicalHit storage.LexicalHit

func (h lexicalHit) normalize() Item {
	item := baseItem(h.Item)
	item.Score = h.Score
	item.ScoreFTS = floatPtr(h.Score)
	return item
}

type hybridHit engine.HybridHit

func (h hybridHit) normalize() Item {
	item := baseItem(h.Item)
	item.Score = h.Score
	item.ScoreFTS = floatPtr(h.LexicalScore)
	item.ScoreEmbed = floatPtr(h.EmbedScore)
	return item
}

func baseItem(it storage.Item) Item {
	return Item{
		ID:        strconv.FormatInt(it.ID, 10),
		Kind:      KindMemory,
		Source:    it.Source,
		Title:     title(it),
		Snippet:   Snippet(it.Text),
		CreatedAt: formatCreatedAt(it.CreatedAt),
		Payload: map[string]any{
			"engineId":  it.ID,
			"text":      it.Text,
			"title":     it.Title,
			"source":    it.Source,
			"category":  it.Category,
			"createdAt": formatCreatedAt(it.CreatedAt),
		},
	}
}

func title(it storage.Item) string {
	switch {
	case it.Title != "":
		return it.Title
	case it.Source != "":
		return path.Base(it.Source)
	default:
		return "Memory #" + strconv.FormatInt(it.ID, 10)
	}
}
