package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

// ToolService manages non-consumable tool checkout with the same lifecycle
// shape as picking lists. Assigning a tool never writes a ledger entry; the
// hard invariant is that assignments across all active lists never exceed
// the tool's owned quantity.
type ToolService struct {
	ledger *LedgerService
	lists  port.ToolListRepository
	bom    port.BOMProvider

	// mu serializes the availability check against concurrent assigns.
	mu sync.Mutex
}

func NewToolService(ledger *LedgerService, lists port.ToolListRepository, bom port.BOMProvider) *ToolService {
	return &ToolService{ledger: ledger, lists: lists, bom: bom}
}

// CreateFromProject derives a draft tool list from the project BOM's tool
// rows, duplicates summed.
func (s *ToolService) CreateFromProject(ctx context.Context, projectID string) (*domain.ToolList, error) {
	reqs, err := s.bom.Requirements(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("read project %s requirements: %w", projectID, err)
	}

	now := time.Now().UTC()
	list := domain.ToolList{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    domain.ListStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, agg := range domain.AggregateRequirements(reqs) {
		if agg.Key.ItemType != domain.ItemTypeTool {
			continue
		}
		list.Items = append(list.Items, domain.ToolListItem{
			ItemID:           agg.Key.ItemID,
			ItemType:         agg.Key.ItemType,
			QuantityRequired: agg.Quantity,
		})
	}

	if err := s.lists.CreateToolList(ctx, list); err != nil {
		return nil, fmt.Errorf("create tool list: %w", err)
	}
	return &list, nil
}

// Start moves a draft tool list to in_progress. Availability is not checked
// here; it is enforced per assign.
func (s *ToolService) Start(ctx context.Context, listID string) (*domain.ToolList, error) {
	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status != domain.ListStatusDraft {
		return nil, &domain.StateError{Resource: "tool list", ID: listID, Status: list.Status, Op: "start"}
	}

	list.Status = domain.ListStatusInProgress
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdateToolList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update tool list %s: %w", listID, err)
	}
	return list, nil
}

// Assign checks out qty units of a tool to the list. Fails with
// ValidationError when the checkout would push total active assignments past
// the owned quantity, or past the list's own requirement.
func (s *ToolService) Assign(ctx context.Context, listID, itemID string, qty int64) (*domain.ToolList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status != domain.ListStatusInProgress {
		return nil, &domain.StateError{Resource: "tool list", ID: listID, Status: list.Status, Op: "assign on"}
	}

	key := domain.InventoryKey{ItemID: itemID, ItemType: domain.ItemTypeTool}
	item := list.Item(key)
	if item == nil {
		return nil, &domain.NotFoundError{Resource: "list item", ID: key.String()}
	}
	if qty <= 0 {
		return nil, &domain.ValidationError{ItemID: itemID, ItemType: domain.ItemTypeTool,
			Reason: "assign quantity must be positive", Requested: qty}
	}
	if item.QuantityAssigned+qty > item.QuantityRequired {
		return nil, &domain.ValidationError{
			ItemID:    itemID,
			ItemType:  domain.ItemTypeTool,
			Reason:    "assign exceeds required quantity",
			Requested: item.QuantityAssigned + qty,
			Available: item.QuantityRequired,
		}
	}

	rec, err := s.ledger.Get(ctx, itemID, domain.ItemTypeTool)
	if err != nil {
		return nil, err
	}
	assigned, err := s.lists.ActiveAssignments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sum active assignments for %s: %w", key, err)
	}
	if assigned+qty > rec.Quantity {
		return nil, &domain.ValidationError{
			ItemID:    itemID,
			ItemType:  domain.ItemTypeTool,
			Reason:    "insufficient tool availability",
			Requested: qty,
			Available: rec.Quantity - assigned,
		}
	}

	item.QuantityAssigned += qty
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdateToolList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update tool list %s: %w", listID, err)
	}
	return list, nil
}

// ReturnTool checks qty units back in.
func (s *ToolService) ReturnTool(ctx context.Context, listID, itemID string, qty int64) (*domain.ToolList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status != domain.ListStatusInProgress {
		return nil, &domain.StateError{Resource: "tool list", ID: listID, Status: list.Status, Op: "return on"}
	}

	key := domain.InventoryKey{ItemID: itemID, ItemType: domain.ItemTypeTool}
	item := list.Item(key)
	if item == nil {
		return nil, &domain.NotFoundError{Resource: "list item", ID: key.String()}
	}
	if qty <= 0 || qty > item.QuantityAssigned {
		return nil, &domain.ValidationError{
			ItemID:    itemID,
			ItemType:  domain.ItemTypeTool,
			Reason:    "return exceeds assigned quantity",
			Requested: qty,
			Available: item.QuantityAssigned,
		}
	}

	item.QuantityAssigned -= qty
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdateToolList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update tool list %s: %w", listID, err)
	}
	return list, nil
}

// Complete finishes an in_progress tool list. Unless forced, every tool must
// have been returned; forcing returns the stragglers itself. Completing an
// already-completed list is a no-op.
func (s *ToolService) Complete(ctx context.Context, listID string, force bool) (*domain.ToolList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	switch list.Status {
	case domain.ListStatusCompleted:
		return list, nil
	case domain.ListStatusInProgress:
	default:
		return nil, &domain.StateError{Resource: "tool list", ID: listID, Status: list.Status, Op: "complete"}
	}

	if list.Outstanding() && !force {
		for i := range list.Items {
			item := &list.Items[i]
			if item.QuantityAssigned > 0 {
				return nil, &domain.ValidationError{
					ItemID:    item.ItemID,
					ItemType:  item.ItemType,
					Reason:    "tools still checked out; pass force to return them",
					Requested: item.QuantityAssigned,
				}
			}
		}
	}
	for i := range list.Items {
		list.Items[i].QuantityAssigned = 0
	}

	list.Status = domain.ListStatusCompleted
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdateToolList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update tool list %s: %w", listID, err)
	}
	return list, nil
}

// Cancel moves any non-terminal list to cancelled, returning all outstanding
// tools. Cancelling a terminal list returns it unchanged.
func (s *ToolService) Cancel(ctx context.Context, listID string) (*domain.ToolList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status.Terminal() {
		return list, nil
	}

	for i := range list.Items {
		list.Items[i].QuantityAssigned = 0
	}
	list.Status = domain.ListStatusCancelled
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdateToolList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update tool list %s: %w", listID, err)
	}
	return list, nil
}

// Get returns a list snapshot.
func (s *ToolService) Get(ctx context.Context, listID string) (*domain.ToolList, error) {
	return s.get(ctx, listID)
}

// ListByProject returns every tool list derived from a project.
func (s *ToolService) ListByProject(ctx context.Context, projectID string) ([]domain.ToolList, error) {
	return s.lists.ListToolListsByProject(ctx, projectID)
}

func (s *ToolService) get(ctx context.Context, listID string) (*domain.ToolList, error) {
	list, err := s.lists.GetToolList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("get tool list %s: %w", listID, err)
	}
	if list == nil {
		return nil, &domain.NotFoundError{Resource: "tool list", ID: listID}
	}
	return list, nil
}
