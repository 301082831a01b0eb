package domain

import "time"

type AdjustmentType string

const (
	AdjustmentInitial     AdjustmentType = "initial"
	AdjustmentRestock     AdjustmentType = "restock"
	AdjustmentConsumption AdjustmentType = "consumption"
	AdjustmentCorrection  AdjustmentType = "correction"
	AdjustmentTransfer    AdjustmentType = "transfer"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentInitial, AdjustmentRestock, AdjustmentConsumption,
		AdjustmentCorrection, AdjustmentTransfer:
		return true
	}
	return false
}

// AdjustmentEntry is one immutable line of the audit journal. Replaying all
// entries for an item in recorded order reconstructs its current quantity:
// ResultingQuantity always equals the record's quantity immediately after
// the entry was applied.
type AdjustmentEntry struct {
	ID                string         `json:"id"`
	ItemID            string         `json:"item_id"`
	ItemType          ItemType       `json:"item_type"`
	Delta             int64          `json:"delta"`
	Type              AdjustmentType `json:"type"`
	Reason            string         `json:"reason,omitempty"`
	OperationID       string         `json:"operation_id"` // idempotency key, unique across the journal
	ResultingQuantity int64          `json:"resulting_quantity"`
	RecordedAt        time.Time      `json:"recorded_at"`
}

func (e *AdjustmentEntry) Key() InventoryKey {
	return InventoryKey{ItemID: e.ItemID, ItemType: e.ItemType}
}
