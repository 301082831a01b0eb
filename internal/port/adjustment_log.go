package port

import (
	"context"
	"time"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
)

// AdjustmentQuery filters and pages the journal. Entries are ordered by
// recorded time (ascending unless Descending); Offset/Limit make the scan
// restartable from any cursor position.
type AdjustmentQuery struct {
	ItemID     string
	ItemType   domain.ItemType
	From       time.Time // inclusive; zero = unbounded
	To         time.Time // exclusive; zero = unbounded
	Offset     int
	Limit      int // 0 = no limit
	Descending bool
}

type AdjustmentLog interface {
	// FindByOperation returns the entry recorded under an idempotency key,
	// or (nil, nil) when the operation was never applied.
	FindByOperation(ctx context.Context, operationID string) (*domain.AdjustmentEntry, error)

	Query(ctx context.Context, q AdjustmentQuery) ([]domain.AdjustmentEntry, error)
}
