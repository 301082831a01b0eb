package port

import (
	"context"
	"errors"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
)

var (
	// ErrVersionConflict is returned when a versioned write loses the race.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateOperation is returned when an adjustment's operation id
	// already exists in the journal.
	ErrDuplicateOperation = errors.New("duplicate operation id")

	// ErrRecordExists is returned when creating a record whose key is taken.
	ErrRecordExists = errors.New("inventory record already exists")
)

// InventoryFilter narrows List scans. Nil fields match everything.
type InventoryFilter struct {
	ItemType *domain.ItemType
	Status   *domain.InventoryStatus
}

type InventoryRepository interface {
	// Get retrieves a record by key. Returns (nil, nil) when absent.
	Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error)

	// Create persists a brand-new record together with its initial journal
	// entry. Fails with ErrRecordExists or ErrDuplicateOperation.
	Create(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error

	// ApplyAdjustment atomically writes the updated record conditioned on
	// rec.Version being the stored version, incrementing it, and appends the
	// journal entry. Fails with ErrVersionConflict when the version moved,
	// ErrDuplicateOperation when the entry's operation id is taken; in both
	// cases nothing is written.
	ApplyAdjustment(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error

	// UpdateVersioned writes record fields that do not touch the journal
	// (status retire, location). Same CAS semantics as ApplyAdjustment.
	UpdateVersioned(ctx context.Context, rec domain.InventoryRecord) error

	List(ctx context.Context, filter InventoryFilter) ([]domain.InventoryRecord, error)
}
