package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UnavailableStore stands in for an engine store that could not be opened.
// Every call fails with an error wrapping ErrStoreUnavailable, so callers
// that degrade on store errors keep working and search surfaces the cause.
type UnavailableStore struct {
	err error
}

// NewUnavailableStore returns a Store whose calls all fail with cause.
func NewUnavailableStore(cause error) *UnavailableStore {
	switch {
	case cause == nil:
		cause = ErrStoreUnavailable
	case !errors.Is(cause, ErrStoreUnavailable):
		cause = fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}
	return &UnavailableStore{err: cause}
}

// Err returns the open failure every call reports.
func (s *UnavailableStore) Err() error { return s.err }

func (s *UnavailableStore) AddItem(context.Context, Item) (int64, error) { return 0, s.err }

func (s *UnavailableStore) GetItems(context.Context, []int64) (map[int64]Item, error) {
	return nil, s.err
}

func (s *UnavailableStore) ListItems(context.Context, int) ([]Item, error) { return nil, s.err }

func (s *UnavailableStore) Categories(context.Context) ([]Category, error) { return nil, s.err }

func (s *UnavailableStore) LexicalSearch(context.Context, SearchOptions) ([]LexicalHit, error) {
	return nil, s.err
}

func (s *UnavailableStore) VectorCandidates(context.Context, []float64, SearchOptions) ([]VectorHit, error) {
	return nil, s.err
}

func (s *UnavailableStore) StoreEmbedding(context.Context, int64, []float64, string) error {
	return s.err
}

func (s *UnavailableStore) UnextractedItems(context.Context, int) ([]Item, error) { return nil, s.err }

func (s *UnavailableStore) SaveFacts(context.Context, int64, []Fact) (int, error) { return 0, s.err }

func (s *UnavailableStore) MarkExtracted(context.Context, int64, time.Time) error { return s.err }

func (s *UnavailableStore) Graph(context.Context, GraphQuery) (*Graph, error) { return nil, s.err }

func (s *UnavailableStore) Stats(context.Context) (Stats, error) { return Stats{}, s.err }

func (s *UnavailableStore) GetMeta(context.Context, string) (string, error) { return "", s.err }

func (s *UnavailableStore) SetMeta(context.Context, string, string) error { return s.err }

// Close is a no-op.
func (s *UnavailableStore) Close() error { return nil }

var _ Store = (*UnavailableStore)(nil)
