package domain

import "time"

type ListStatus string

const (
	ListStatusDraft      ListStatus = "draft"
	ListStatusInProgress ListStatus = "in_progress"
	ListStatusCompleted  ListStatus = "completed"
	ListStatusCancelled  ListStatus = "cancelled"
)

// Terminal reports whether a list can never change status again.
func (s ListStatus) Terminal() bool {
	return s == ListStatusCompleted || s == ListStatusCancelled
}

// PickingListItem is one aggregated requirement line. QuantityReserved is
// the advisory hold taken at start time; it never touches the ledger and is
// released on completion or cancellation.
type PickingListItem struct {
	ItemID           string   `json:"item_id"`
	ItemType         ItemType `json:"item_type"`
	QuantityRequired int64    `json:"quantity_required"`
	QuantityPicked   int64    `json:"quantity_picked"`
	QuantityReserved int64    `json:"quantity_reserved"`
	Short            bool     `json:"short"`
	ShortBy          int64    `json:"short_by,omitempty"`
}

func (i *PickingListItem) Key() InventoryKey {
	return InventoryKey{ItemID: i.ItemID, ItemType: i.ItemType}
}

type PickingList struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	Status    ListStatus        `json:"status"`
	Items     []PickingListItem `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Item returns a pointer to the line for key, or nil.
func (l *PickingList) Item(key InventoryKey) *PickingListItem {
	for i := range l.Items {
		if l.Items[i].Key() == key {
			return &l.Items[i]
		}
	}
	return nil
}

// FullyPicked reports whether every line reached its required quantity.
func (l *PickingList) FullyPicked() bool {
	for i := range l.Items {
		if l.Items[i].QuantityPicked < l.Items[i].QuantityRequired {
			return false
		}
	}
	return true
}
