package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/clawscope/internal/storage"
)

// UnextractedItems returns items that fact extraction has not visited yet.
func (s *MemoryStore) UnextractedItems(ctx context.Context, limit int) ([]storage.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items i WHERE i.extracted_at IS NULL ORDER BY i.id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: unextracted items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: unextracted items: %w", err)
	}
	return items, nil
}

// SaveFacts stores facts for itemID in one transaction and returns how many
// new facts were written.
func (s *MemoryStore) SaveFacts(ctx context.Context, itemID int64, facts []storage.Fact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: save facts: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	written := 0
	for _, f := range facts {
		subject, object := strings.TrimSpace(f.Subject), strings.TrimSpace(f.Object)
		predicate := strings.ToLower(strings.TrimSpace(f.Predicate))
		if subject == "" || object == "" || predicate == "" {
			continue
		}

		subjectID, err := upsertEntity(ctx, tx, subject, now)
		if err != nil {
			return 0, err
		}
		objectID, err := upsertEntity(ctx, tx, object, now)
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO facts (item_id, subject_id, predicate, object_id, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(item_id, subject_id, predicate, object_id) DO NOTHING`,
			itemID, subjectID, predicate, objectID, clamp01(f.Confidence), now)
		if err != nil {
			return 0, fmt.Errorf("sqlite: save facts: insert: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: save facts: commit: %w", err)
	}
	return written, nil
}

func upsertEntity(ctx context.Context, tx *sql.Tx, name, now string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, name, now); err != nil {
		return 0, fmt.Errorf("sqlite: upsert entity %q: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM entities WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlite: lookup entity %q: %w", name, err)
	}
	return id, nil
}

// MarkExtracted stamps itemID as visited by extraction.
func (s *MemoryStore) MarkExtracted(ctx context.Context, itemID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET extracted_at = ? WHERE id = ?`, formatTime(at), itemID)
	if err != nil {
		return fmt.Errorf("sqlite: mark extracted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Graph returns the facts matching q as edges between entity nodes,
// strongest facts first.
func (s *MemoryStore) Graph(ctx context.Context, q storage.GraphQuery) (*storage.Graph, error) {
	q.Normalize()

	query := `
		SELECT f.id, se.name, se.type, f.predicate, oe.name, oe.type, f.confidence, f.item_id
		FROM facts f
		JOIN entities se ON se.id = f.subject_id
		JOIN entities oe ON oe.id = f.object_id
		WHERE f.confidence >= ?`
	args := []any{q.MinConfidence}
	if entity := strings.TrimSpace(q.Entity); entity != "" {
		query += ` AND (se.name = ? OR oe.name = ?)`
		args = append(args, entity, entity)
	}
	query += ` ORDER BY f.confidence DESC, f.id ASC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: graph: %w", err)
	}
	defer rows.Close()

	graph := &storage.Graph{Nodes: []storage.GraphNode{}, Edges: []storage.GraphEdge{}}
	nodes := map[string]*storage.GraphNode{}
	touch := func(name, typ string) {
		key := strings.ToLower(name)
		n, ok := nodes[key]
		if !ok {
			n = &storage.GraphNode{ID: name, Label: name, Type: typ}
			nodes[key] = n
		}
		n.Degree++
	}

	predicates := map[string]bool{}
	for rows.Next() {
		var (
			e                 storage.GraphEdge
			subjType, objType string
		)
		if err := rows.Scan(&e.ID, &e.Source, &subjType, &e.Predicate, &e.Target, &objType, &e.Confidence, &e.ItemID); err != nil {
			return nil, fmt.Errorf("sqlite: graph: scan: %w", err)
		}
		touch(e.Source, subjType)
		touch(e.Target, objType)
		predicates[e.Predicate] = true
		graph.Edges = append(graph.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: graph: %w", err)
	}

	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, *n)
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		if graph.Nodes[i].Degree != graph.Nodes[j].Degree {
			return graph.Nodes[i].Degree > graph.Nodes[j].Degree
		}
		return graph.Nodes[i].Label < graph.Nodes[j].Label
	})

	graph.Stats = storage.GraphStats{
		Nodes:      len(graph.Nodes),
		Edges:      len(graph.Edges),
		Entities:   len(graph.Nodes),
		Facts:      len(graph.Edges),
		Predicates: len(predicates),
	}
	return graph, nil
}

// Stats counts items, facts, entities and distinct predicates.
func (s *MemoryStore) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM items),
			(SELECT COUNT(*) FROM facts),
			(SELECT COUNT(*) FROM entities),
			(SELECT COUNT(DISTINCT predicate) FROM facts)`).
		Scan(&st.TotalItems, &st.TotalFacts, &st.TotalEntities, &st.TotalPredicates)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
	}
	return st, nil
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
