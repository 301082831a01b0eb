package domain

import "time"

// ToolListItem tracks non-consumable checkout. Tools never generate ledger
// consumption; QuantityAssigned is bounded by the tool's owned quantity
// across all concurrently active lists.
type ToolListItem struct {
	ItemID           string   `json:"item_id"`
	ItemType         ItemType `json:"item_type"`
	QuantityRequired int64    `json:"quantity_required"`
	QuantityAssigned int64    `json:"quantity_assigned"`
}

func (i *ToolListItem) Key() InventoryKey {
	return InventoryKey{ItemID: i.ItemID, ItemType: i.ItemType}
}

type ToolList struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Status    ListStatus     `json:"status"`
	Items     []ToolListItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (l *ToolList) Item(key InventoryKey) *ToolListItem {
	for i := range l.Items {
		if l.Items[i].Key() == key {
			return &l.Items[i]
		}
	}
	return nil
}

// Outstanding reports whether any tool is still checked out.
func (l *ToolList) Outstanding() bool {
	for i := range l.Items {
		if l.Items[i].QuantityAssigned > 0 {
			return true
		}
	}
	return false
}
