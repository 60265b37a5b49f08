// Package sqlite implements the memory engine store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/clawscope/internal/storage"
)

// Ensure *MemoryStore implements storage.Store at compile time.
var _ storage.Store = (*MemoryStore)(nil)

// timeLayout is fixed-width so that TEXT ordering is chronological.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// MemoryStore is the SQLite-backed engine store.
type MemoryStore struct {
	db *sql.DB
}

// NewMemoryStore opens (creating if needed) the store at dsn. If the first
// open fails on stale WAL files left by a crashed process, and no other
// process holds them, the files are removed and the open retried once.
func NewMemoryStore(dsn string) (*MemoryStore, error) {
	if path := dbPathFromDSN(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %v", storage.ErrStoreUnavailable, err)
		}
	}

	store, err := openMemoryStore(dsn)
	if err == nil {
		return store, nil
	}

	dbPath := dbPathFromDSN(dsn)
	if !isRecoverableWALError(err) || dbPath == "" || !isWALStale(dbPath) {
		return nil, fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
	}

	removeStaleWAL(dbPath)

	store, retryErr := openMemoryStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: failed after WAL recovery: %v (original: %v)", storage.ErrStoreUnavailable, retryErr, err)
	}

	log.Warn().Str("path", dbPath).Msg("sqlite: recovered from stale WAL files")
	return store, nil
}

func openMemoryStore(dsn string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has one writer; a single connection serialises access and
	// keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &MemoryStore{db: db}, nil
}

// GetDB exposes the underlying connection for diagnostics.
func (s *MemoryStore) GetDB() *sql.DB {
	return s.db
}

// AddItem inserts item. A zero CreatedAt is stamped with the current time.
func (s *MemoryStore) AddItem(ctx context.Context, item storage.Item) (int64, error) {
	if strings.TrimSpace(item.Text) == "" {
		return 0, fmt.Errorf("%w: item text is required", storage.ErrInvalidInput)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (text, title, source, category, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		item.Text, item.Title, item.Source, item.Category, formatTime(item.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("sqlite: add item: %w", err)
	}
	return res.LastInsertId()
}

const itemColumns = `i.id, i.text, i.title, i.source, i.category, i.created_at, i.extracted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (storage.Item, error) {
	var (
		item      storage.Item
		createdAt string
		extracted sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Text, &item.Title, &item.Source, &item.Category, &createdAt, &extracted); err != nil {
		return storage.Item{}, err
	}
	item.CreatedAt = parseTime(createdAt)
	if extracted.Valid {
		t := parseTime(extracted.String)
		item.ExtractedAt = &t
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]storage.Item, error) {
	defer rows.Close()
	var items []storage.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItems loads items by id.
func (s *MemoryStore) GetItems(ctx context.Context, ids []int64) (map[int64]storage.Item, error) {
	out := make(map[int64]storage.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items i WHERE i.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get items: %w", err)
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

// ListItems returns the newest items first.
func (s *MemoryStore) ListItems(ctx context.Context, limit int) ([]storage.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items i ORDER BY i.created_at DESC, i.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list items: %w", err)
	}
	return items, nil
}

// Categories groups items by category, or by source when uncategorised.
func (s *MemoryStore) Categories(ctx context.Context) ([]storage.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS n FROM (
			SELECT CASE WHEN category <> '' THEN category
			            WHEN source <> '' THEN source
			            ELSE 'uncategorized' END AS tag
			FROM items
		)
		GROUP BY tag
		ORDER BY n DESC, tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: categories: %w", err)
	}
	defer rows.Close()

	cats := []storage.Category{}
	for rows.Next() {
		var c storage.Category
		if err := rows.Scan(&c.Tag, &c.Count); err != nil {
			return nil, fmt.Errorf("sqlite: categories: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetMeta reads a bookkeeping value.
func (s *MemoryStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts a bookkeeping value.
func (s *MemoryStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: set meta %s: %w", key, err)
	}
	return nil
}

// Close flushes the WAL into the main file so the next process (web or MCP)
// opens a clean database, then releases the connection.
func (s *MemoryStore) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Debug().Err(err).Msg("sqlite: WAL checkpoint on close failed")
	}
	return s.db.Close()
}

// dbPathFromDSN extracts the filesystem path from a DSN. It returns "" for
// in-memory databases.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" || u.Query().Get("mode") == "memory" {
			return ""
		}
		return path
	}
	return dsn
}

func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale reports whether -shm/-wal files exist and no process holds
// them. Without lsof it conservatively reports false.
func isWALStale(dbPath string) bool {
	shmPath, walPath := dbPath+"-shm", dbPath+"-wal"
	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	output, err := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath).Output()
	if err != nil {
		// lsof exits 1 when nothing holds the files.
		return true
	}
	return strings.TrimSpace(string(output)) == ""
}

func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("sqlite: failed to remove stale WAL file")
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
