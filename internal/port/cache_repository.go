package port

import (
	"context"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
)

// CacheRepository accelerates reads and deduplicates requests at the edge.
// It is never authoritative: the repository and journal always win.
type CacheRepository interface {
	// SetStock stores the allocatable on-hand quantity observed at a record
	// version. A write carrying an older version than the cached one is
	// discarded, so writes landing out of order cannot leave the cache
	// pointing at an earlier state.
	SetStock(ctx context.Context, key domain.InventoryKey, quantity int64, version int) error

	// GetStock returns the cached quantity; ok is false on a miss.
	GetStock(ctx context.Context, key domain.InventoryKey) (quantity int64, ok bool, err error)

	// SetIdempotency sets a request-dedup key, returning false if it already
	// exists.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
