package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

func testRecord(itemID string, qty int64) domain.InventoryRecord {
	now := time.Now().UTC()
	return domain.InventoryRecord{
		ItemID:    itemID,
		ItemType:  domain.ItemTypeLeather,
		Quantity:  qty,
		Status:    domain.StatusAvailable,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testEntry(itemID, opID string, delta, resulting int64) domain.AdjustmentEntry {
	return domain.AdjustmentEntry{
		ID:                "entry-" + opID,
		ItemID:            itemID,
		ItemType:          domain.ItemTypeLeather,
		Delta:             delta,
		Type:              domain.AdjustmentCorrection,
		OperationID:       opID,
		ResultingQuantity: resulting,
		RecordedAt:        time.Now().UTC(),
	}
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := testRecord("veg-tan-4oz", 10)
	if err := store.Create(ctx, rec, testEntry("veg-tan-4oz", "op-1", 10, 10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A write carrying a stale version must be rejected.
	stale := rec
	stale.Version = 0
	stale.Quantity = 5
	err := store.ApplyAdjustment(ctx, stale, testEntry("veg-tan-4oz", "op-2", -5, 5))
	if !errors.Is(err, port.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got: %v", err)
	}

	// The matching version succeeds and bumps the stored version.
	fresh := rec
	fresh.Quantity = 5
	if err := store.ApplyAdjustment(ctx, fresh, testEntry("veg-tan-4oz", "op-3", -5, 5)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	got, _ := store.Get(ctx, rec.Key())
	if got.Version != 2 || got.Quantity != 5 {
		t.Errorf("expected version 2 quantity 5, got version %d quantity %d", got.Version, got.Quantity)
	}
}

func TestMemoryStore_DuplicateOperation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := testRecord("veg-tan-4oz", 10)
	if err := store.Create(ctx, rec, testEntry("veg-tan-4oz", "op-1", 10, 10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dup := rec
	dup.Quantity = 8
	err := store.ApplyAdjustment(ctx, dup, testEntry("veg-tan-4oz", "op-1", -2, 8))
	if !errors.Is(err, port.ErrDuplicateOperation) {
		t.Fatalf("expected ErrDuplicateOperation, got: %v", err)
	}

	// The rejected write must not have touched the record.
	got, _ := store.Get(ctx, rec.Key())
	if got.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", got.Quantity)
	}

	found, err := store.FindByOperation(ctx, "op-1")
	if err != nil || found == nil {
		t.Fatalf("expected to find op-1, got %v / %v", found, err)
	}
	if missing, _ := store.FindByOperation(ctx, "op-x"); missing != nil {
		t.Errorf("expected nil for unknown operation, got %+v", missing)
	}
}

func TestMemoryStore_CreateExisting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := testRecord("veg-tan-4oz", 10)
	if err := store.Create(ctx, rec, testEntry("veg-tan-4oz", "op-1", 10, 10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := store.Create(ctx, rec, testEntry("veg-tan-4oz", "op-2", 10, 10))
	if !errors.Is(err, port.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got: %v", err)
	}
}

func TestMemoryStore_QueryWindowAndPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := testRecord("veg-tan-4oz", 0)
	entry := testEntry("veg-tan-4oz", "op-0", 0, 0)
	entry.RecordedAt = base
	if err := store.Create(ctx, rec, entry); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cur := rec
	for i := 1; i <= 4; i++ {
		cur.Quantity = int64(i)
		e := testEntry("veg-tan-4oz", "op-"+string(rune('0'+i)), 1, int64(i))
		e.RecordedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.ApplyAdjustment(ctx, cur, e); err != nil {
			t.Fatalf("apply %d failed: %v", i, err)
		}
		cur.Version++
	}

	// Window is from-inclusive, to-exclusive.
	got, err := store.Query(ctx, port.AdjustmentQuery{
		ItemID:   "veg-tan-4oz",
		ItemType: domain.ItemTypeLeather,
		From:     base.Add(1 * time.Hour),
		To:       base.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries in window, got %d", len(got))
	}
	if got[0].OperationID != "op-1" || got[1].OperationID != "op-2" {
		t.Errorf("unexpected window contents: %s, %s", got[0].OperationID, got[1].OperationID)
	}

	// Descending with limit yields the latest entry.
	got, err = store.Query(ctx, port.AdjustmentQuery{
		ItemID: "veg-tan-4oz", ItemType: domain.ItemTypeLeather,
		Descending: true, Limit: 1,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].OperationID != "op-4" {
		t.Fatalf("expected latest entry op-4, got %+v", got)
	}

	// Offset past the end is empty, not an error.
	got, err = store.Query(ctx, port.AdjustmentQuery{ItemID: "veg-tan-4oz", ItemType: domain.ItemTypeLeather, Offset: 10})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty page, got %d", len(got))
	}
}

func TestMemoryStore_ListFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	leather := testRecord("veg-tan-4oz", 10)
	if err := store.Create(ctx, leather, testEntry("veg-tan-4oz", "op-1", 10, 10)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	tool := testRecord("edge-beveler", 2)
	tool.ItemType = domain.ItemTypeTool
	toolEntry := testEntry("edge-beveler", "op-2", 2, 2)
	toolEntry.ItemType = domain.ItemTypeTool
	if err := store.Create(ctx, tool, toolEntry); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	all, _ := store.List(ctx, port.InventoryFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}

	typ := domain.ItemTypeTool
	tools, _ := store.List(ctx, port.InventoryFilter{ItemType: &typ})
	if len(tools) != 1 || tools[0].ItemID != "edge-beveler" {
		t.Errorf("expected only the tool record, got %+v", tools)
	}
}

func TestMemoryStore_ListCopiesAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	list := domain.PickingList{
		ID:        "pl-1",
		ProjectID: "wallet-batch",
		Status:    domain.ListStatusInProgress,
		Items: []domain.PickingListItem{
			{ItemID: "veg-tan-4oz", ItemType: domain.ItemTypeLeather, QuantityRequired: 5, QuantityReserved: 5},
		},
	}
	if err := store.CreatePickingList(ctx, list); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, _ := store.GetPickingList(ctx, "pl-1")
	got.Items[0].QuantityReserved = 99

	again, _ := store.GetPickingList(ctx, "pl-1")
	if again.Items[0].QuantityReserved != 5 {
		t.Errorf("stored list must be isolated from returned copies, got %d", again.Items[0].QuantityReserved)
	}
}

func TestStaticBOMProvider(t *testing.T) {
	p := NewStaticBOMProvider(map[string][]domain.BOMRequirement{
		"wallet-batch": {{ItemID: "veg-tan-4oz", ItemType: domain.ItemTypeLeather, QtyPerUnit: 3, Count: 2}},
	})

	reqs, err := p.Requirements(context.Background(), "wallet-batch")
	if err != nil || len(reqs) != 1 {
		t.Fatalf("expected 1 requirement, got %v / %v", reqs, err)
	}
	if _, err := p.Requirements(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown project")
	}
}
