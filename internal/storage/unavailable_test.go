package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnavailableStore(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("open memory.db: not a directory")
	s := NewUnavailableStore(cause)

	assert.ErrorIs(t, s.Err(), ErrStoreUnavailable)
	assert.Contains(t, s.Err().Error(), "not a directory")

	_, err := s.LexicalSearch(ctx, SearchOptions{Query: "x"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	st, err := s.Stats(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, Stats{}, st)
	_, err = s.GetMeta(ctx, MetaLastExtractionAt)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	require.NoError(t, s.Close())
}

func TestUnavailableStore_KeepsWrappedCause(t *testing.T) {
	wrapped := errors.Join(ErrStoreUnavailable, errors.New("disk gone"))
	s := NewUnavailableStore(wrapped)
	assert.Equal(t, wrapped, s.Err())

	assert.ErrorIs(t, NewUnavailableStore(nil).Err(), ErrStoreUnavailable)
}
