package service

import (
	"context"
	"fmt"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

// ThresholdEvaluator is the pure read side of low-stock detection. It never
// mutates anything; resolution order is per-item override, then default.
type ThresholdEvaluator struct {
	inventory port.InventoryRepository
}

func NewThresholdEvaluator(inventory port.InventoryRepository) *ThresholdEvaluator {
	return &ThresholdEvaluator{inventory: inventory}
}

// LowStockItem pairs a record with the threshold that flagged it, so callers
// can show exactly which limit was crossed.
type LowStockItem struct {
	Record    domain.InventoryRecord `json:"record"`
	Threshold int64                  `json:"threshold"`
}

// LowStock returns every record at or below its resolved threshold.
// Discontinued records are excluded; they are retired, not replenishable.
func (e *ThresholdEvaluator) LowStock(ctx context.Context, defaultThreshold int64, overrides map[domain.InventoryKey]int64) ([]LowStockItem, error) {
	records, err := e.inventory.List(ctx, port.InventoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("scan inventory: %w", err)
	}

	var out []LowStockItem
	for _, rec := range records {
		if rec.Status == domain.StatusDiscontinued {
			continue
		}
		threshold := defaultThreshold
		if t, ok := overrides[rec.Key()]; ok {
			threshold = t
		}
		if rec.Quantity <= threshold {
			out = append(out, LowStockItem{Record: rec, Threshold: threshold})
		}
	}
	return out, nil
}
