// Package storage defines the memory engine store: the indexed corpus of
// memory items the dashboard searches, plus the fact graph extracted from it.
//
// The interfaces are small and composed into Store so that each consumer can
// depend on only the part it uses.
package storage

import (
	"context"
	"time"
)

// ItemStore provides access to raw memory items.
type ItemStore interface {
	// AddItem inserts an item and returns its engine id.
	AddItem(ctx context.Context, item Item) (int64, error)

	// GetItems returns the items with the given ids, keyed by id. Missing ids
	// are omitted.
	GetItems(ctx context.Context, ids []int64) (map[int64]Item, error)

	// ListItems returns the newest items first.
	ListItems(ctx context.Context, limit int) ([]Item, error)

	// Categories groups items by category (falling back to source) with
	// counts, largest first.
	Categories(ctx context.Context) ([]Category, error)
}

// SearchProvider provides the two retrieval primitives the engine builds on.
type SearchProvider interface {
	// LexicalSearch runs a full-text query. Score is higher-is-better.
	LexicalSearch(ctx context.Context, opts SearchOptions) ([]LexicalHit, error)

	// VectorCandidates ranks stored embeddings by cosine similarity to vector.
	VectorCandidates(ctx context.Context, vector []float64, opts SearchOptions) ([]VectorHit, error)
}

// EmbeddingStore persists item embeddings.
type EmbeddingStore interface {
	StoreEmbedding(ctx context.Context, itemID int64, vector []float64, model string) error
}

// FactStore persists and queries the extracted fact graph.
type FactStore interface {
	// UnextractedItems returns items fact extraction has not visited yet,
	// oldest first.
	UnextractedItems(ctx context.Context, limit int) ([]Item, error)

	// SaveFacts upserts the entities named by facts and records the facts
	// against itemID. Duplicate facts for the same item are ignored.
	SaveFacts(ctx context.Context, itemID int64, facts []Fact) (int, error)

	// MarkExtracted stamps an item as visited by extraction.
	MarkExtracted(ctx context.Context, itemID int64, at time.Time) error

	// Graph returns entities and facts filtered by q.
	Graph(ctx context.Context, q GraphQuery) (*Graph, error)

	// Stats returns corpus and graph counters.
	Stats(ctx context.Context) (Stats, error)
}

// MetaStore is a small key/value table for engine bookkeeping.
type MetaStore interface {
	// GetMeta returns ErrNotFound when key is unset.
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Store is the full engine store.
type Store interface {
	ItemStore
	SearchProvider
	EmbeddingStore
	FactStore
	MetaStore
	Close() error
}
