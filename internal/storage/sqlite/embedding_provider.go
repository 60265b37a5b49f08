package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/scrypster/clawscope/internal/storage"
)

// StoreEmbedding upserts the embedding for itemID.
func (s *MemoryStore) StoreEmbedding(ctx context.Context, itemID int64, vector []float64, model string) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty embedding", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (item_id, vector, dimension, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model,
			created_at = excluded.created_at`,
		itemID, serializeEmbedding(vector), len(vector), model, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: store embedding for item %d: %w", itemID, err)
	}
	return nil
}

// serializeEmbedding encodes a vector as little-endian float64s.
func serializeEmbedding(embedding []float64) []byte {
	buf := make([]byte, len(embedding)*8)
	for i, v := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func deserializeEmbedding(buf []byte, dimension int) ([]float64, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*8 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*8, len(buf))
	}

	embedding := make([]float64, dimension)
	for i := range embedding {
		embedding[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return embedding, nil
}
