package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

// MemoryStore implements every persistence port in process memory. It is the
// default backing for tests and for single-process deployments; the CAS
// semantics mirror the SQL adapters exactly.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[domain.InventoryKey]domain.InventoryRecord
	entries      []domain.AdjustmentEntry
	byOperation  map[string]int
	pickingLists map[string]domain.PickingList
	toolLists    map[string]domain.ToolList
}

var (
	_ port.InventoryRepository   = (*MemoryStore)(nil)
	_ port.AdjustmentLog         = (*MemoryStore)(nil)
	_ port.PickingListRepository = (*MemoryStore)(nil)
	_ port.ToolListRepository    = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[domain.InventoryKey]domain.InventoryRecord),
		byOperation:  make(map[string]int),
		pickingLists: make(map[string]domain.PickingList),
		toolLists:    make(map[string]domain.ToolList),
	}
}

// --- InventoryRepository ---

func (s *MemoryStore) Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Create(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Key()]; ok {
		return port.ErrRecordExists
	}
	if _, ok := s.byOperation[entry.OperationID]; ok {
		return port.ErrDuplicateOperation
	}

	s.records[rec.Key()] = rec
	s.appendEntry(entry)
	return nil
}

func (s *MemoryStore) ApplyAdjustment(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.Key()]
	if !ok {
		return fmt.Errorf("apply adjustment: no record for %s", rec.Key())
	}
	if cur.Version != rec.Version {
		return port.ErrVersionConflict
	}
	if _, ok := s.byOperation[entry.OperationID]; ok {
		return port.ErrDuplicateOperation
	}

	rec.Version++
	s.records[rec.Key()] = rec
	s.appendEntry(entry)
	return nil
}

func (s *MemoryStore) UpdateVersioned(ctx context.Context, rec domain.InventoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.Key()]
	if !ok {
		return fmt.Errorf("update: no record for %s", rec.Key())
	}
	if cur.Version != rec.Version {
		return port.ErrVersionConflict
	}

	rec.Version++
	s.records[rec.Key()] = rec
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter port.InventoryFilter) ([]domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.InventoryRecord
	for _, rec := range s.records {
		if filter.ItemType != nil && rec.ItemType != *filter.ItemType {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemType != out[j].ItemType {
			return out[i].ItemType < out[j].ItemType
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

// appendEntry must be called with the write lock held.
func (s *MemoryStore) appendEntry(entry domain.AdjustmentEntry) {
	s.byOperation[entry.OperationID] = len(s.entries)
	s.entries = append(s.entries, entry)
}

// --- AdjustmentLog ---

func (s *MemoryStore) FindByOperation(ctx context.Context, operationID string) (*domain.AdjustmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byOperation[operationID]
	if !ok {
		return nil, nil
	}
	entry := s.entries[idx]
	return &entry, nil
}

func (s *MemoryStore) Query(ctx context.Context, q port.AdjustmentQuery) ([]domain.AdjustmentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.AdjustmentEntry
	for _, e := range s.entries {
		if q.ItemID != "" && e.ItemID != q.ItemID {
			continue
		}
		if q.ItemType != "" && e.ItemType != q.ItemType {
			continue
		}
		if !q.From.IsZero() && e.RecordedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.RecordedAt.Before(q.To) {
			continue
		}
		matched = append(matched, e)
	}

	// Entries are appended in recorded order already; flip for descending.
	if q.Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// --- PickingListRepository ---

func (s *MemoryStore) CreatePickingList(ctx context.Context, list domain.PickingList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pickingLists[list.ID]; ok {
		return fmt.Errorf("picking list %s already exists", list.ID)
	}
	s.pickingLists[list.ID] = copyPickingList(list)
	return nil
}

func (s *MemoryStore) GetPickingList(ctx context.Context, id string) (*domain.PickingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.pickingLists[id]
	if !ok {
		return nil, nil
	}
	out := copyPickingList(list)
	return &out, nil
}

func (s *MemoryStore) UpdatePickingList(ctx context.Context, list domain.PickingList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pickingLists[list.ID]; !ok {
		return fmt.Errorf("picking list %s does not exist", list.ID)
	}
	s.pickingLists[list.ID] = copyPickingList(list)
	return nil
}

func (s *MemoryStore) ListActivePickingLists(ctx context.Context) ([]domain.PickingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PickingList
	for _, list := range s.pickingLists {
		if list.Status == domain.ListStatusInProgress {
			out = append(out, copyPickingList(list))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListPickingListsByProject(ctx context.Context, projectID string) ([]domain.PickingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PickingList
	for _, list := range s.pickingLists {
		if list.ProjectID == projectID {
			out = append(out, copyPickingList(list))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- ToolListRepository ---

func (s *MemoryStore) CreateToolList(ctx context.Context, list domain.ToolList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.toolLists[list.ID]; ok {
		return fmt.Errorf("tool list %s already exists", list.ID)
	}
	s.toolLists[list.ID] = copyToolList(list)
	return nil
}

func (s *MemoryStore) GetToolList(ctx context.Context, id string) (*domain.ToolList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.toolLists[id]
	if !ok {
		return nil, nil
	}
	out := copyToolList(list)
	return &out, nil
}

func (s *MemoryStore) UpdateToolList(ctx context.Context, list domain.ToolList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.toolLists[list.ID]; !ok {
		return fmt.Errorf("tool list %s does not exist", list.ID)
	}
	s.toolLists[list.ID] = copyToolList(list)
	return nil
}

func (s *MemoryStore) ActiveAssignments(ctx context.Context, key domain.InventoryKey) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, list := range s.toolLists {
		if list.Status != domain.ListStatusInProgress {
			continue
		}
		for _, item := range list.Items {
			if item.Key() == key {
				total += item.QuantityAssigned
			}
		}
	}
	return total, nil
}

func (s *MemoryStore) ListToolListsByProject(ctx context.Context, projectID string) ([]domain.ToolList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ToolList
	for _, list := range s.toolLists {
		if list.ProjectID == projectID {
			out = append(out, copyToolList(list))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copyPickingList(list domain.PickingList) domain.PickingList {
	out := list
	out.Items = make([]domain.PickingListItem, len(list.Items))
	copy(out.Items, list.Items)
	return out
}

func copyToolList(list domain.ToolList) domain.ToolList {
	out := list
	out.Items = make([]domain.ToolListItem, len(list.Items))
	copy(out.Items, list.Items)
	return out
}

// StaticBOMProvider serves bill-of-materials lines from a fixed map; stands
// in for the external project system in tests and the memory deployment.
type StaticBOMProvider struct {
	projects map[string][]domain.BOMRequirement
}

var _ port.BOMProvider = (*StaticBOMProvider)(nil)

func NewStaticBOMProvider(projects map[string][]domain.BOMRequirement) *StaticBOMProvider {
	return &StaticBOMProvider{projects: projects}
}

func (p *StaticBOMProvider) Requirements(ctx context.Context, projectID string) ([]domain.BOMRequirement, error) {
	reqs, ok := p.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("unknown project %s", projectID)
	}
	out := make([]domain.BOMRequirement, len(reqs))
	copy(out, reqs)
	return out, nil
}
