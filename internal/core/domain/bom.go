package domain

import "sort"

// BOMRequirement is one raw line enumerated by the external project
// collaborator: a component needs QtyPerUnit of the item, Count times.
type BOMRequirement struct {
	ItemID     string
	ItemType   ItemType
	QtyPerUnit int64
	Count      int64
}

type AggregatedRequirement struct {
	Key      InventoryKey
	Quantity int64
}

// AggregateRequirements collapses raw BOM lines into one requirement per
// (item, type), duplicates summed. Output order is deterministic: by item
// type, then item id.
func AggregateRequirements(reqs []BOMRequirement) []AggregatedRequirement {
	totals := make(map[InventoryKey]int64)
	for _, r := range reqs {
		key := InventoryKey{ItemID: r.ItemID, ItemType: r.ItemType}
		totals[key] += r.QtyPerUnit * r.Count
	}

	out := make([]AggregatedRequirement, 0, len(totals))
	for key, qty := range totals {
		out = append(out, AggregatedRequirement{Key: key, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ItemType != out[j].Key.ItemType {
			return out[i].Key.ItemType < out[j].Key.ItemType
		}
		return out[i].Key.ItemID < out[j].Key.ItemID
	})
	return out
}
