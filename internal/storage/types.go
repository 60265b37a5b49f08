package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the engine store could not be opened.
	ErrStoreUnavailable = errors.New("memory store unavailable")
)

// Meta keys written by fact extraction.
const (
	MetaLastExtractionAt  = "last_extraction_at"
	MetaLastExtractionRun = "last_extraction_run"
)

// Item is one indexed unit of memory text.
type Item struct {
	ID          int64      `json:"id"`
	Text        string     `json:"text"`
	Title       string     `json:"title,omitempty"`
	Source      string     `json:"source,omitempty"`
	Category    string     `json:"category,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExtractedAt *time.Time `json:"extractedAt,omitempty"`
}

// SearchOptions narrows a retrieval call.
type SearchOptions struct {
	Query  string
	Limit  int
	Source string
}

// Normalize applies the default limit.
func (o *SearchOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
}

// LexicalHit is a full-text match.
type LexicalHit struct {
	Item  Item
	Score float64
}

// VectorHit is an embedding match. Similarity is cosine, in [-1, 1].
type VectorHit struct {
	ItemID     int64
	Similarity float64
}

// Category is an item grouping with its size.
type Category struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats are corpus and graph counters.
type Stats struct {
	TotalItems      int `json:"totalItems"`
	TotalFacts      int `json:"totalFacts"`
	TotalEntities   int `json:"totalEntities"`
	TotalPredicates int `json:"totalPredicates"`
}

// Fact is a subject-predicate-object triple extracted from an item.
type Fact struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// GraphQuery filters the fact graph. An empty Entity returns the whole graph.
type GraphQuery struct {
	Entity        string
	MinConfidence float64
	Limit         int
}

// Normalize applies defaults and bounds.
func (q *GraphQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = 200
	}
	if q.Limit > 2000 {
		q.Limit = 2000
	}
	if q.MinConfidence < 0 {
		q.MinConfidence = 0
	}
}

// GraphNode is an entity in the fact graph.
type GraphNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type,omitempty"`
	Degree int    `json:"degree"`
}

// GraphEdge is a fact between two entities.
type GraphEdge struct {
	ID         int64   `json:"id"`
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Predicate  string  `json:"predicate"`
	Confidence float64 `json:"confidence"`
	ItemID     int64   `json:"itemId"`
}

// Graph is the node/edge view of the facts.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

// GraphStats summarises a Graph or the whole fact table.
type GraphStats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Entities   int `json:"entities"`
	Facts      int `json:"facts"`
	Predicates int `json:"predicates"`
}
