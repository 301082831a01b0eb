package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Skund404/WAWI-Claude-sub001/internal/adapter/storage"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
)

func newTestTools(t *testing.T, projects map[string][]domain.BOMRequirement) (*ToolService, *LedgerService) {
	t.Helper()
	store := storage.NewMemoryStore()
	ledger := NewLedgerService(store, store, nil, LedgerConfig{})
	return NewToolService(ledger, store, storage.NewStaticBOMProvider(projects)), ledger
}

func benchProjects() map[string][]domain.BOMRequirement {
	return map[string][]domain.BOMRequirement{
		"bench-a": {
			{ItemID: "stitching-pony", ItemType: domain.ItemTypeTool, QtyPerUnit: 1, Count: 2},
			{ItemID: "veg-tan-4oz", ItemType: domain.ItemTypeLeather, QtyPerUnit: 3, Count: 1},
		},
		"bench-b": {
			{ItemID: "stitching-pony", ItemType: domain.ItemTypeTool, QtyPerUnit: 1, Count: 2},
		},
	}
}

func TestToolCreateFromProject_ToolRowsOnly(t *testing.T) {
	svc, _ := newTestTools(t, benchProjects())

	list, err := svc.CreateFromProject(context.Background(), "bench-a")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected only the tool line, got %d lines", len(list.Items))
	}
	if list.Items[0].ItemID != "stitching-pony" || list.Items[0].QuantityRequired != 2 {
		t.Errorf("expected stitching-pony required 2, got %+v", list.Items[0])
	}
}

func TestAssign_EnforcesCrossListAvailability(t *testing.T) {
	svc, ledger := newTestTools(t, benchProjects())
	ctx := context.Background()

	seedStock(t, ledger, "stitching-pony", domain.ItemTypeTool, 3)

	a, _ := svc.CreateFromProject(ctx, "bench-a")
	b, _ := svc.CreateFromProject(ctx, "bench-b")
	if _, err := svc.Start(ctx, a.ID); err != nil {
		t.Fatalf("start a failed: %v", err)
	}
	if _, err := svc.Start(ctx, b.ID); err != nil {
		t.Fatalf("start b failed: %v", err)
	}

	if _, err := svc.Assign(ctx, a.ID, "stitching-pony", 2); err != nil {
		t.Fatalf("assign on a failed: %v", err)
	}
	if _, err := svc.Assign(ctx, b.ID, "stitching-pony", 1); err != nil {
		t.Fatalf("assign on b failed: %v", err)
	}

	// 3 of 3 checked out across both lists; one more must fail.
	_, err := svc.Assign(ctx, b.ID, "stitching-pony", 1)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got: %v", err)
	}
	if verr.Available != 0 {
		t.Errorf("expected 0 available, got %d", verr.Available)
	}

	// Returning on one list frees capacity for the other.
	if _, err := svc.ReturnTool(ctx, a.ID, "stitching-pony", 1); err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if _, err := svc.Assign(ctx, b.ID, "stitching-pony", 1); err != nil {
		t.Fatalf("assign after return failed: %v", err)
	}

	// Tool checkout never touches the ledger.
	rec, _ := ledger.Get(ctx, "stitching-pony", domain.ItemTypeTool)
	if rec.Quantity != 3 {
		t.Errorf("checkout must not consume stock, got %d", rec.Quantity)
	}
}

func TestAssign_CapsAtListRequirement(t *testing.T) {
	svc, ledger := newTestTools(t, benchProjects())
	ctx := context.Background()

	seedStock(t, ledger, "stitching-pony", domain.ItemTypeTool, 10)

	list, _ := svc.CreateFromProject(ctx, "bench-a")
	svc.Start(ctx, list.ID)

	_, err := svc.Assign(ctx, list.ID, "stitching-pony", 3)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError beyond required quantity, got: %v", err)
	}
}

func TestReturnTool_BoundedByAssigned(t *testing.T) {
	svc, ledger := newTestTools(t, benchProjects())
	ctx := context.Background()

	seedStock(t, ledger, "stitching-pony", domain.ItemTypeTool, 5)

	list, _ := svc.CreateFromProject(ctx, "bench-a")
	svc.Start(ctx, list.ID)
	svc.Assign(ctx, list.ID, "stitching-pony", 1)

	_, err := svc.ReturnTool(ctx, list.ID, "stitching-pony", 2)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError returning more than assigned, got: %v", err)
	}
}

func TestToolComplete_ForceReturnsOutstanding(t *testing.T) {
	svc, ledger := newTestTools(t, benchProjects())
	ctx := context.Background()

	seedStock(t, ledger, "stitching-pony", domain.ItemTypeTool, 5)

	list, _ := svc.CreateFromProject(ctx, "bench-a")
	svc.Start(ctx, list.ID)
	svc.Assign(ctx, list.ID, "stitching-pony", 2)

	_, err := svc.Complete(ctx, list.ID, false)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError with tools outstanding, got: %v", err)
	}

	list, err = svc.Complete(ctx, list.ID, true)
	if err != nil {
		t.Fatalf("forced complete failed: %v", err)
	}
	if list.Status != domain.ListStatusCompleted {
		t.Errorf("expected completed, got %s", list.Status)
	}
	if list.Outstanding() {
		t.Error("forced completion must return every tool")
	}

	// Freed capacity is immediately visible to other lists.
	assigned, err := svc.lists.ActiveAssignments(ctx, domain.InventoryKey{ItemID: "stitching-pony", ItemType: domain.ItemTypeTool})
	if err != nil {
		t.Fatalf("active assignments failed: %v", err)
	}
	if assigned != 0 {
		t.Errorf("expected 0 active assignments, got %d", assigned)
	}
}

func TestToolCancel_ReturnsToolsAndIsIdempotent(t *testing.T) {
	svc, ledger := newTestTools(t, benchProjects())
	ctx := context.Background()

	seedStock(t, ledger, "stitching-pony", domain.ItemTypeTool, 5)

	list, _ := svc.CreateFromProject(ctx, "bench-a")
	svc.Start(ctx, list.ID)
	svc.Assign(ctx, list.ID, "stitching-pony", 2)

	list, err := svc.Cancel(ctx, list.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if list.Status != domain.ListStatusCancelled || list.Outstanding() {
		t.Errorf("cancel must return tools, got %+v", list)
	}

	again, err := svc.Cancel(ctx, list.ID)
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if again.Status != domain.ListStatusCancelled {
		t.Errorf("expected cancelled, got %s", again.Status)
	}

	// Assigning on a cancelled list fails.
	_, err = svc.Assign(ctx, list.ID, "stitching-pony", 1)
	var serr *domain.StateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StateError, got: %v", err)
	}
}

func TestAssign_UnknownToolLine(t *testing.T) {
	svc, ledger := newTestTools(t, benchProjects())
	ctx := context.Background()

	seedStock(t, ledger, "stitching-pony", domain.ItemTypeTool, 5)

	list, _ := svc.CreateFromProject(ctx, "bench-a")
	svc.Start(ctx, list.ID)

	_, err := svc.Assign(ctx, list.ID, "edge-beveler", 1)
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got: %v", err)
	}
}
