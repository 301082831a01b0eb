package port

import (
	"context"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
)

type PickingListRepository interface {
	CreatePickingList(ctx context.Context, list domain.PickingList) error

	// GetPickingList returns (nil, nil) when the list is unknown.
	GetPickingList(ctx context.Context, id string) (*domain.PickingList, error)

	// UpdatePickingList replaces the whole aggregate (list row plus items).
	UpdatePickingList(ctx context.Context, list domain.PickingList) error

	// ListActivePickingLists returns every in_progress picking list. Used to
	// compute advisory reservations held by other lists.
	ListActivePickingLists(ctx context.Context) ([]domain.PickingList, error)

	ListPickingListsByProject(ctx context.Context, projectID string) ([]domain.PickingList, error)
}

type ToolListRepository interface {
	CreateToolList(ctx context.Context, list domain.ToolList) error

	// GetToolList returns (nil, nil) when the list is unknown.
	GetToolList(ctx context.Context, id string) (*domain.ToolList, error)

	UpdateToolList(ctx context.Context, list domain.ToolList) error

	// ActiveAssignments sums QuantityAssigned for a tool across every
	// in_progress tool list.
	ActiveAssignments(ctx context.Context, key domain.InventoryKey) (int64, error)

	ListToolListsByProject(ctx context.Context, projectID string) ([]domain.ToolList, error)
}
