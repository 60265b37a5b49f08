package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scrypster/clawscope/internal/engine"
	"github.com/scrypster/clawscope/internal/search"
	"github.com/scrypster/clawscope/internal/storage"
)

// Searcher runs normalized memory searches.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Item, error)
}

// MemoryReader is the read side of the memory engine.
type MemoryReader interface {
	Stats(ctx context.Context) (storage.Stats, error)
	Categories(ctx context.Context) ([]storage.Category, error)
	Items(ctx context.Context, limit int) ([]storage.Item, error)
	Graph(ctx context.Context, q storage.GraphQuery) (*storage.Graph, error)
}

// FactExtractor triggers a fact extraction pass.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, mode string) (engine.ExtractionRun, error)
}

// PreferenceSource supplies the saved default modes.
type PreferenceSource interface {
	SearchMode() string
	ExtractionMode() string
}

const (
	defaultItemsLimit = 50
	maxItemsLimit     = 1000
	maxSearchLimit    = 200
)

// MemoryHandlers serves the /memory/* API, /graph-data and /extract-facts.
type MemoryHandlers struct {
	searcher  Searcher
	reader    MemoryReader
	extractor FactExtractor
	prefs     PreferenceSource
}

// NewMemoryHandlers creates the handlers. prefs may be nil.
func NewMemoryHandlers(s Searcher, r MemoryReader, x FactExtractor, prefs PreferenceSource) *MemoryHandlers {
	return &MemoryHandlers{searcher: s, reader: r, extractor: x, prefs: prefs}
}

// Search handles GET /memory/search?q=&mode=&limit=&source=.
func (h *MemoryHandlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fallback := search.ModeHybrid
	if h.prefs != nil {
		fallback = search.ParseMode(h.prefs.SearchMode(), search.ModeHybrid)
	}
	limit := parseInt(q.Get("limit"), search.DefaultLimit)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	items, err := h.searcher.Search(r.Context(), search.Request{
		Query:  q.Get("q"),
		Mode:   search.ParseMode(q.Get("mode"), fallback),
		Limit:  limit,
		Source: strings.TrimSpace(q.Get("source")),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Categories handles GET /memory/categories. Failures degrade to [].
func (h *MemoryHandlers) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.reader.Categories(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("categories unavailable")
		cats = nil
	}
	if cats == nil {
		cats = []storage.Category{}
	}
	respondJSON(w, http.StatusOK, cats)
}

// Stats handles GET /memory/stats. Failures degrade to zeros.
func (h *MemoryHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.reader.Stats(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("stats unavailable")
		st = storage.Stats{}
	}
	respondJSON(w, http.StatusOK, st)
}

// Items handles GET /memory/items?limit=. Failures degrade to [].
func (h *MemoryHandlers) Items(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultItemsLimit)
	if limit > maxItemsLimit {
		limit = maxItemsLimit
	}
	items, err := h.reader.Items(r.Context(), limit)
	if err != nil {
		log.Warn().Err(err).Msg("items unavailable")
		items = nil
	}
	if items == nil {
		items = []storage.Item{}
	}
	respondJSON(w, http.StatusOK, items)
}

// GraphData handles GET /graph-data?entity=&minConfidence=&limit=.
// Failures degrade to an empty graph.
func (h *MemoryHandlers) GraphData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gq := storage.GraphQuery{
		Entity:        strings.TrimSpace(q.Get("entity")),
		MinConfidence: parseFloat(q.Get("minConfidence"), 0),
		Limit:         parseInt(q.Get("limit"), 0),
	}

	g, err := h.reader.Graph(r.Context(), gq)
	if err != nil || g == nil {
		if err != nil {
			log.Warn().Err(err).Msg("graph unavailable")
		}
		g = &storage.Graph{}
	}
	if g.Nodes == nil {
		g.Nodes = []storage.GraphNode{}
	}
	if g.Edges == nil {
		g.Edges = []storage.GraphEdge{}
	}
	respondJSON(w, http.StatusOK, g)
}

type extractResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Items   int    `json:"items,omitempty"`
	RunID   string `json:"runId,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExtractFacts handles GET /extract-facts?mode=.
func (h *MemoryHandlers) ExtractFacts(w http.ResponseWriter, r *http.Request) {
	mode := strings.TrimSpace(r.URL.Query().Get("mode"))
	if mode == "" && h.prefs != nil {
		mode = h.prefs.ExtractionMode()
	}

	run, err := h.extractor.ExtractFacts(r.Context(), mode)
	if err != nil {
		log.Error().Err(err).Str("mode", mode).Msg("fact extraction failed")
		respondJSON(w, http.StatusInternalServerError, extractResponse{Success: false, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, extractResponse{
		Success: true,
		Count:   run.Facts,
		Items:   run.Items,
		RunID:   run.ID,
		Mode:    run.Mode,
	})
}
