package domain

import "testing"

func TestAggregateRequirements_SumsDuplicates(t *testing.T) {
	reqs := []BOMRequirement{
		{ItemID: "thread-tiger", ItemType: ItemTypeSupplies, QtyPerUnit: 2, Count: 1},
		{ItemID: "veg-tan-4oz", ItemType: ItemTypeLeather, QtyPerUnit: 3, Count: 2},
		{ItemID: "thread-tiger", ItemType: ItemTypeSupplies, QtyPerUnit: 1, Count: 4},
	}

	agg := AggregateRequirements(reqs)
	if len(agg) != 2 {
		t.Fatalf("expected 2 aggregated lines, got %d", len(agg))
	}

	// Deterministic order: leather before supplies.
	if agg[0].Key.ItemID != "veg-tan-4oz" || agg[0].Quantity != 6 {
		t.Errorf("expected veg-tan-4oz qty 6, got %s qty %d", agg[0].Key.ItemID, agg[0].Quantity)
	}
	if agg[1].Key.ItemID != "thread-tiger" || agg[1].Quantity != 6 {
		t.Errorf("expected thread-tiger qty 6, got %s qty %d", agg[1].Key.ItemID, agg[1].Quantity)
	}
}

func TestAggregateRequirements_Empty(t *testing.T) {
	if agg := AggregateRequirements(nil); len(agg) != 0 {
		t.Errorf("expected no lines, got %d", len(agg))
	}
}

func TestAggregateRequirements_SameIDDifferentType(t *testing.T) {
	reqs := []BOMRequirement{
		{ItemID: "edge-beveler", ItemType: ItemTypeTool, QtyPerUnit: 1, Count: 1},
		{ItemID: "edge-beveler", ItemType: ItemTypeProduct, QtyPerUnit: 1, Count: 1},
	}
	if agg := AggregateRequirements(reqs); len(agg) != 2 {
		t.Errorf("expected distinct lines per item type, got %d", len(agg))
	}
}
