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

// PickingService derives material picking lists from project BOMs and walks
// them through draft → in_progress → completed/cancelled. Reservations taken
// at start are advisory: they are persisted on the list items and summed
// across active lists, but they never mutate the ledger. Consumption happens
// only in RecordPick.
type PickingService struct {
	ledger *LedgerService
	lists  port.PickingListRepository
	bom    port.BOMProvider

	// mu serializes reservation arithmetic across lists. Availability is
	// still a per-item snapshot read, so two processes may over-promise the
	// same marginal unit; that surfaces as a short item later, by design.
	mu sync.Mutex
}

func NewPickingService(ledger *LedgerService, lists port.PickingListRepository, bom port.BOMProvider) *PickingService {
	return &PickingService{ledger: ledger, lists: lists, bom: bom}
}

// PickOptions modifies RecordPick behavior.
type PickOptions struct {
	// OperationID makes the underlying consumption adjust idempotent. A
	// fresh id is generated when empty.
	OperationID string

	// Override permits picking beyond the required quantity.
	Override bool
}

// CreateFromProject reads the project's component tree and creates a draft
// list with one line per distinct (item, type), duplicate requirements
// summed. Tools are excluded; they go through tool lists and are never
// consumed.
func (s *PickingService) CreateFromProject(ctx context.Context, projectID string) (*domain.PickingList, error) {
	reqs, err := s.bom.Requirements(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("read project %s requirements: %w", projectID, err)
	}

	now := time.Now().UTC()
	list := domain.PickingList{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    domain.ListStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, agg := range domain.AggregateRequirements(reqs) {
		if agg.Key.ItemType == domain.ItemTypeTool {
			continue
		}
		list.Items = append(list.Items, domain.PickingListItem{
			ItemID:           agg.Key.ItemID,
			ItemType:         agg.Key.ItemType,
			QuantityRequired: agg.Quantity,
		})
	}

	if err := s.lists.CreatePickingList(ctx, list); err != nil {
		return nil, fmt.Errorf("create picking list: %w", err)
	}
	return &list, nil
}

// StartPicking moves a draft list to in_progress and takes a soft
// reservation per item: min(required, on-hand minus other active lists'
// reservations). Items that cannot be fully covered are marked short but do
// not block the rest of the list.
func (s *PickingService) StartPicking(ctx context.Context, listID string) (*domain.PickingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status != domain.ListStatusDraft {
		return nil, &domain.StateError{Resource: "picking list", ID: listID, Status: list.Status, Op: "start"}
	}

	reserved, err := s.activeReservations(ctx, listID)
	if err != nil {
		return nil, err
	}

	for i := range list.Items {
		item := &list.Items[i]
		key := item.Key()

		// Cache-first allocatable read; unknown and discontinued items
		// report zero and simply come out short.
		onHand, err := s.ledger.Available(ctx, item.ItemID, item.ItemType)
		if err != nil {
			return nil, fmt.Errorf("read stock for %s: %w", key, err)
		}

		available := onHand - reserved[key]
		if available < 0 {
			available = 0
		}

		hold := item.QuantityRequired
		if hold > available {
			hold = available
		}
		item.QuantityReserved = hold
		item.Short = hold < item.QuantityRequired
		item.ShortBy = item.QuantityRequired - hold
	}

	list.Status = domain.ListStatusInProgress
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdatePickingList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update picking list %s: %w", listID, err)
	}
	return list, nil
}

// RecordPick registers delta units picked for one line and issues the
// authoritative consumption adjust on the ledger. The pick is capped at the
// required quantity unless the caller overrides.
func (s *PickingService) RecordPick(ctx context.Context, listID, itemID string, itemType domain.ItemType, delta int64, opts PickOptions) (*domain.PickingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.get(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status != domain.ListStatusInProgress {
		return nil, &domain.StateError{Resource: "picking list", ID: listID, Status: list.Status, Op: "pick on"}
	}

	key := domain.InventoryKey{ItemID: itemID, ItemType: itemType}
	item := list.Item(key)
	if item == nil {
		return nil, &domain.NotFoundError{Resource: "list item", ID: key.String()}
	}
	if delta <= 0 {
		return nil, &domain.ValidationError{ItemID: itemID, ItemType: itemType,
			Reason: "pick quantity must be positive", Requested: delta}
	}
	if item.QuantityPicked+delta > item.QuantityRequired && !opts.Override {
		return nil, &domain.ValidationError{
			ItemID:    itemID,
			ItemType:  itemType,
			Reason:    "pick exceeds required quantity",
			Requested: item.QuantityPicked + delta,
			Available: item.QuantityRequired,
		}
	}

	res, err := s.ledger.Adjust(ctx, AdjustRequest{
		ItemID:      itemID,
		ItemType:    itemType,
		Delta:       -delta,
		Type:        domain.AdjustmentConsumption,
		Reason:      fmt.Sprintf("picking list %s", listID),
		OperationID: opts.OperationID,
	})
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		// Only honor the replay if the original operation was this exact
		// pick; an operation id reused from another adjustment must not
		// masquerade as one.
		if res.Entry.Key() != key || res.Entry.Delta != -delta || res.Entry.Type != domain.AdjustmentConsumption {
			return nil, &domain.ValidationError{
				ItemID:   itemID,
				ItemType: itemType,
				Reason:   fmt.Sprintf("operation %s was already used for a different adjustment", opts.OperationID),
			}
		}
		// The consumption already happened on an earlier call; the list
		// state reflects it.
		return list, nil
	}

	item.QuantityPicked += delta
	item.QuantityReserved -= delta
	if item.QuantityReserved < 0 {
		item.QuantityReserved = 0
	}
	if item.QuantityPicked >= item.QuantityRequired {
		item.Short = false
		item.ShortBy = 0
	}

	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdatePickingList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update picking list %s: %w", listID, err)
	}
	return list, nil
}

// Complete finishes an in_progress list. Unless forced, every line must have
// reached its required quantity. Forcing records the shortfall on the short
// lines instead of hiding it. All reservations held by the list are
// released. Completing an already-completed list is a no-op.
func (s *PickingService) Complete(ctx context.Context, listID string, force bool) (*domain.PickingList, error) {
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
		return nil, &domain.StateError{Resource: "picking list", ID: listID, Status: list.Status, Op: "complete"}
	}

	if !list.FullyPicked() && !force {
		for i := range list.Items {
			item := &list.Items[i]
			if item.QuantityPicked < item.QuantityRequired {
				return nil, &domain.ValidationError{
					ItemID:    item.ItemID,
					ItemType:  item.ItemType,
					Reason:    "unpicked quantity remains; pass force to acknowledge the shortfall",
					Requested: item.QuantityRequired,
					Available: item.QuantityPicked,
				}
			}
		}
	}

	for i := range list.Items {
		item := &list.Items[i]
		if item.QuantityPicked < item.QuantityRequired {
			item.Short = true
			item.ShortBy = item.QuantityRequired - item.QuantityPicked
		}
		item.QuantityReserved = 0
	}

	list.Status = domain.ListStatusCompleted
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdatePickingList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update picking list %s: %w", listID, err)
	}
	return list, nil
}

// Cancel moves any non-terminal list to cancelled and releases its
// reservations. Cancelling a terminal list returns it unchanged.
func (s *PickingService) Cancel(ctx context.Context, listID string) (*domain.PickingList, error) {
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
		list.Items[i].QuantityReserved = 0
	}
	list.Status = domain.ListStatusCancelled
	list.UpdatedAt = time.Now().UTC()
	if err := s.lists.UpdatePickingList(ctx, *list); err != nil {
		return nil, fmt.Errorf("update picking list %s: %w", listID, err)
	}
	return list, nil
}

// Get returns a list snapshot.
func (s *PickingService) Get(ctx context.Context, listID string) (*domain.PickingList, error) {
	return s.get(ctx, listID)
}

// ListByProject returns every picking list derived from a project.
func (s *PickingService) ListByProject(ctx context.Context, projectID string) ([]domain.PickingList, error) {
	return s.lists.ListPickingListsByProject(ctx, projectID)
}

func (s *PickingService) get(ctx context.Context, listID string) (*domain.PickingList, error) {
	list, err := s.lists.GetPickingList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("get picking list %s: %w", listID, err)
	}
	if list == nil {
		return nil, &domain.NotFoundError{Resource: "picking list", ID: listID}
	}
	return list, nil
}

// activeReservations sums reservations held by in_progress lists other than
// the one being started.
func (s *PickingService) activeReservations(ctx context.Context, excludeListID string) (map[domain.InventoryKey]int64, error) {
	active, err := s.lists.ListActivePickingLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active picking lists: %w", err)
	}

	reserved := make(map[domain.InventoryKey]int64)
	for _, l := range active {
		if l.ID == excludeListID {
			continue
		}
		for _, item := range l.Items {
			reserved[item.Key()] += item.QuantityReserved
		}
	}
	return reserved, nil
}
