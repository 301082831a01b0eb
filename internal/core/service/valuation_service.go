package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

// ValuationService computes read-only roll-ups over the ledger and the
// adjustment journal. It never mutates state.
type ValuationService struct {
	inventory port.InventoryRepository
	journal   port.AdjustmentLog
}

func NewValuationService(inventory port.InventoryRepository, journal port.AdjustmentLog) *ValuationService {
	return &ValuationService{inventory: inventory, journal: journal}
}

type ValueReport struct {
	ByType map[domain.ItemType]decimal.Decimal `json:"by_type"`
	Total  decimal.Decimal                     `json:"total"`
}

// ComputeValue sums quantity × unit cost over the records matching the
// filter, grouped by item type.
func (s *ValuationService) ComputeValue(ctx context.Context, filter port.InventoryFilter) (*ValueReport, error) {
	records, err := s.inventory.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("scan inventory: %w", err)
	}

	report := &ValueReport{
		ByType: make(map[domain.ItemType]decimal.Decimal),
		Total:  decimal.Zero,
	}
	for _, rec := range records {
		value := rec.UnitCost.Mul(decimal.NewFromInt(rec.Quantity))
		report.ByType[rec.ItemType] = report.ByType[rec.ItemType].Add(value)
		report.Total = report.Total.Add(value)
	}
	return report, nil
}

type TurnoverReport struct {
	ItemID        string          `json:"item_id"`
	ItemType      domain.ItemType `json:"item_type"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Consumed      int64           `json:"consumed"`
	AverageOnHand decimal.Decimal `json:"average_on_hand"`
	Turnover      decimal.Decimal `json:"turnover"`
}

// ComputeTurnover derives consumption over average on-hand quantity for one
// item in a period, reconstructed purely from the journal: the opening
// quantity is the last resulting quantity before the window, and the average
// is time-weighted across the in-window entries. A zero average yields a
// zero ratio.
func (s *ValuationService) ComputeTurnover(ctx context.Context, itemID string, itemType domain.ItemType, from, to time.Time) (*TurnoverReport, error) {
	if itemID == "" {
		return nil, &domain.ValidationError{ItemType: itemType, Reason: "item id is required"}
	}
	if !itemType.Valid() {
		return nil, &domain.ValidationError{ItemID: itemID, ItemType: itemType, Reason: "invalid item type"}
	}
	if !to.After(from) {
		return nil, &domain.ValidationError{ItemID: itemID, ItemType: itemType,
			Reason: "turnover period end must be after start"}
	}

	opening, err := s.openingQuantity(ctx, itemID, itemType, from)
	if err != nil {
		return nil, err
	}

	entries, err := s.journal.Query(ctx, port.AdjustmentQuery{
		ItemID:   itemID,
		ItemType: itemType,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("query adjustments for %s:%s: %w", itemType, itemID, err)
	}

	var consumed int64
	weighted := decimal.Zero
	cursor := from
	quantity := opening
	for _, e := range entries {
		if e.Type == domain.AdjustmentConsumption && e.Delta < 0 {
			consumed += -e.Delta
		}
		span := decimal.NewFromFloat(e.RecordedAt.Sub(cursor).Seconds())
		weighted = weighted.Add(decimal.NewFromInt(quantity).Mul(span))
		cursor = e.RecordedAt
		quantity = e.ResultingQuantity
	}
	span := decimal.NewFromFloat(to.Sub(cursor).Seconds())
	weighted = weighted.Add(decimal.NewFromInt(quantity).Mul(span))

	total := decimal.NewFromFloat(to.Sub(from).Seconds())
	average := decimal.Zero
	if total.IsPositive() {
		average = weighted.Div(total)
	}

	turnover := decimal.Zero
	if average.IsPositive() {
		turnover = decimal.NewFromInt(consumed).Div(average)
	}

	return &TurnoverReport{
		ItemID:        itemID,
		ItemType:      itemType,
		From:          from,
		To:            to,
		Consumed:      consumed,
		AverageOnHand: average,
		Turnover:      turnover,
	}, nil
}

func (s *ValuationService) openingQuantity(ctx context.Context, itemID string, itemType domain.ItemType, at time.Time) (int64, error) {
	entries, err := s.journal.Query(ctx, port.AdjustmentQuery{
		ItemID:     itemID,
		ItemType:   itemType,
		To:         at,
		Limit:      1,
		Descending: true,
	})
	if err != nil {
		return 0, fmt.Errorf("query opening quantity for %s:%s: %w", itemType, itemID, err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].ResultingQuantity, nil
}
