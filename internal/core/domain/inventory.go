package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemTypeMaterial ItemType = "material"
	ItemTypeLeather  ItemType = "leather"
	ItemTypeHardware ItemType = "hardware"
	ItemTypeSupplies ItemType = "supplies"
	ItemTypeTool     ItemType = "tool"
	ItemTypeProduct  ItemType = "product"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeMaterial, ItemTypeLeather, ItemTypeHardware,
		ItemTypeSupplies, ItemTypeTool, ItemTypeProduct:
		return true
	}
	return false
}

type InventoryStatus string

const (
	StatusAvailable    InventoryStatus = "available"
	StatusLow          InventoryStatus = "low"
	StatusOutOfStock   InventoryStatus = "out_of_stock"
	StatusDiscontinued InventoryStatus = "discontinued"
)

// InventoryKey is the composite identity of a stock record. One record
// exists per (item, item type); the type is a discriminator, not a hierarchy.
type InventoryKey struct {
	ItemID   string
	ItemType ItemType
}

func (k InventoryKey) String() string {
	return string(k.ItemType) + ":" + k.ItemID
}

type InventoryRecord struct {
	ItemID    string          `json:"item_id"`
	ItemType  ItemType        `json:"item_type"`
	Quantity  int64           `json:"quantity"`
	Status    InventoryStatus `json:"status"`
	Location  string          `json:"location,omitempty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Version   int             `json:"-"` // optimistic locking, never exposed
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (r *InventoryRecord) Key() InventoryKey {
	return InventoryKey{ItemID: r.ItemID, ItemType: r.ItemType}
}

// StatusFor derives the stock status from a quantity and a low-stock
// threshold. Discontinued is sticky and never derived here.
func StatusFor(quantity, threshold int64) InventoryStatus {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= threshold:
		return StatusLow
	default:
		return StatusAvailable
	}
}
