package sqlite

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/scrypster/clawscope/internal/storage"
)

// LexicalSearch runs an FTS5 query over item text and title.
//
// bm25() is negative with more negative meaning a better match, so the
// returned Score is its negation: higher is better.
func (s *MemoryStore) LexicalSearch(ctx context.Context, opts storage.SearchOptions) ([]storage.LexicalHit, error) {
	opts.Normalize()

	ftsQuery := sanitiseFTSQuery(opts.Query)
	if ftsQuery == "" {
		return []storage.LexicalHit{}, nil
	}

	query := `
		SELECT ` + itemColumns + `, bm25(items_fts) AS rank
		FROM items_fts
		JOIN items i ON i.id = items_fts.rowid
		WHERE items_fts MATCH ?`
	args := []any{ftsQuery}
	if opts.Source != "" {
		query += ` AND i.source = ?`
		args = append(args, opts.Source)
	}
	query += ` ORDER BY rank ASC, i.id ASC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lexical search: %w", err)
	}
	defer rows.Close()

	hits := []storage.LexicalHit{}
	for rows.Next() {
		var (
			hit  storage.LexicalHit
			rank float64
		)
		item, err := scanItem(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &rank)...)
		}))
		if err != nil {
			return nil, fmt.Errorf("sqlite: lexical search: scan: %w", err)
		}
		hit.Item = item
		hit.Score = -rank
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: lexical search: %w", err)
	}
	return hits, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// VectorCandidates scores every stored embedding against vector and returns
// the best opts.Limit matches. Embeddings of a different dimension are
// skipped.
func (s *MemoryStore) VectorCandidates(ctx context.Context, vector []float64, opts storage.SearchOptions) ([]storage.VectorHit, error) {
	opts.Normalize()
	if len(vector) == 0 {
		return []storage.VectorHit{}, nil
	}

	query := `SELECT e.item_id, e.vector, e.dimension FROM embeddings e`
	var args []any
	if opts.Source != "" {
		query += ` JOIN items i ON i.id = e.item_id WHERE i.source = ?`
		args = append(args, opts.Source)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: vector candidates: %w", err)
	}
	defer rows.Close()

	hits := []storage.VectorHit{}
	for rows.Next() {
		var (
			itemID int64
			blob   []byte
			dim    int
		)
		if err := rows.Scan(&itemID, &blob, &dim); err != nil {
			return nil, fmt.Errorf("sqlite: vector candidates: scan: %w", err)
		}
		if dim != len(vector) {
			continue
		}
		emb, err := deserializeEmbedding(blob, dim)
		if err != nil {
			continue
		}
		hits = append(hits, storage.VectorHit{ItemID: itemID, Similarity: cosineSimilarity(vector, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: vector candidates: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ItemID < hits[j].ItemID
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// cosineSimilarity returns 0 when either vector has zero magnitude or the
// lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true,
	"to": true, "of": true, "in": true, "on": true, "at": true,
	"by": true, "for": true, "with": true, "from": true, "as": true,
	"what": true, "how": true, "when": true, "where": true, "why": true,
	"who": true, "which": true,
	"this": true, "that": true, "these": true, "those": true,
	"i": true, "you": true, "it": true, "we": true, "they": true,
	"and": true, "or": true, "but": true, "if": true, "not": true,
	"s": true, "t": true,
}

// sanitiseFTSQuery turns free text into a safe FTS5 MATCH expression: FTS5
// operators are stripped, stop words dropped, and each remaining term is
// prefix-matched with OR semantics.
//
//	"What does the gateway log?" → "gateway* OR log*"
func sanitiseFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, ` `, `'`, ` `, `(`, ` `, `)`, ` `, `*`, ` `,
		`-`, ` `, `^`, ` `, `?`, ` `, `:`, ` `, `.`, ` `,
		`,`, ` `, `;`, ` `, `!`, ` `, `+`, ` `, `{`, ` `, `}`, ` `,
	)
	words := strings.Fields(strings.ToLower(replacer.Replace(query)))

	var terms, all []string
	for _, w := range words {
		all = append(all, `"`+w+`"`)
		if !stopWords[w] && len(w) >= 2 {
			terms = append(terms, `"`+w+`"*`)
		}
	}
	if len(terms) == 0 {
		// Only stop words: match them literally rather than returning nothing.
		return strings.Join(all, " OR ")
	}
	return strings.Join(terms, " OR ")
}
