package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

const defaultMaxRetries = 5

// LedgerConfig tunes the ledger. Zero values fall back to defaults.
type LedgerConfig struct {
	// MaxRetries bounds the optimistic-concurrency retry loop per adjust.
	MaxRetries int

	// LowStockThreshold drives status derivation when no override exists.
	LowStockThreshold int64

	// ThresholdOverrides maps items to their own low-stock threshold.
	ThresholdOverrides map[domain.InventoryKey]int64
}

// LedgerService owns current quantities. Every mutation goes through a
// compare-and-swap on (quantity, version) with a bounded retry, and appends
// exactly one journal entry in the same atomic step.
type LedgerService struct {
	inventory port.InventoryRepository
	journal   port.AdjustmentLog
	cache     port.CacheRepository // optional, best-effort
	cfg       LedgerConfig
}

func NewLedgerService(inventory port.InventoryRepository, journal port.AdjustmentLog, cache port.CacheRepository, cfg LedgerConfig) *LedgerService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &LedgerService{
		inventory: inventory,
		journal:   journal,
		cache:     cache,
		cfg:       cfg,
	}
}

type AdjustRequest struct {
	ItemID      string
	ItemType    domain.ItemType
	Delta       int64
	Type        domain.AdjustmentType
	Reason      string
	OperationID string

	// AllowNegative permits a correction to drive the quantity below zero.
	// Ignored for every other adjustment type.
	AllowNegative bool

	// Location and UnitCost update the record when provided; Location is
	// required context only on first stock entry.
	Location string
	UnitCost *decimal.Decimal
}

type AdjustResult struct {
	Record   domain.InventoryRecord `json:"record"`
	Entry    domain.AdjustmentEntry `json:"entry"`
	Replayed bool                   `json:"replayed"` // the operation id had already been applied
	Retries  int                    `json:"retries"`  // CAS retries consumed, surfaced for diagnostics
}

// Get retrieves a record or fails with NotFoundError.
func (s *LedgerService) Get(ctx context.Context, itemID string, itemType domain.ItemType) (*domain.InventoryRecord, error) {
	key := domain.InventoryKey{ItemID: itemID, ItemType: itemType}
	rec, err := s.inventory.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get inventory %s: %w", key, err)
	}
	if rec == nil {
		return nil, &domain.NotFoundError{Resource: "inventory", ID: key.String()}
	}
	return rec, nil
}

// Adjust applies a signed quantity change and appends one journal entry.
// Replays of an already-applied operation id are no-ops returning the prior
// entry. Concurrent adjusts on the same item never lose an update: the write
// is conditioned on the record version and retried up to the configured
// bound, after which ConflictError is returned.
func (s *LedgerService) Adjust(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	if !req.ItemType.Valid() {
		return nil, &domain.ValidationError{ItemID: req.ItemID, ItemType: req.ItemType, Reason: "invalid item type"}
	}
	if !req.Type.Valid() {
		return nil, &domain.ValidationError{ItemID: req.ItemID, ItemType: req.ItemType, Reason: "invalid adjustment type"}
	}
	if req.AllowNegative && req.Type != domain.AdjustmentCorrection {
		return nil, &domain.ValidationError{ItemID: req.ItemID, ItemType: req.ItemType,
			Reason: "allow-negative is restricted to corrections"}
	}
	if req.OperationID == "" {
		req.OperationID = uuid.NewString()
	}

	// Fast path: a fresh SetNX on the operation id means the journal cannot
	// hold it yet, so the pre-check read can be skipped. The journal's
	// uniqueness constraint stays authoritative either way.
	firstSeen := false
	if s.cache != nil {
		if ok, err := s.cache.SetIdempotency(ctx, "op:"+req.OperationID); err == nil {
			firstSeen = ok
		}
	}
	if !firstSeen {
		prior, err := s.journal.FindByOperation(ctx, req.OperationID)
		if err != nil {
			return nil, fmt.Errorf("lookup operation %s: %w", req.OperationID, err)
		}
		if prior != nil {
			return s.replayed(ctx, prior)
		}
	}

	key := domain.InventoryKey{ItemID: req.ItemID, ItemType: req.ItemType}
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		rec, err := s.inventory.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get inventory %s: %w", key, err)
		}

		now := time.Now().UTC()
		if rec == nil {
			res, retry, err := s.createInitial(ctx, req, key, now)
			if retry {
				continue
			}
			if err != nil {
				return nil, err
			}
			res.Retries = attempt
			return res, nil
		}

		newQty := rec.Quantity + req.Delta
		if newQty < 0 && !(req.Type == domain.AdjustmentCorrection && req.AllowNegative) {
			return nil, &domain.ValidationError{
				ItemID:    req.ItemID,
				ItemType:  req.ItemType,
				Reason:    "insufficient quantity",
				Requested: -req.Delta,
				Available: rec.Quantity,
			}
		}

		updated := *rec
		updated.Quantity = newQty
		if updated.Status != domain.StatusDiscontinued {
			updated.Status = domain.StatusFor(newQty, s.threshold(key))
		}
		if req.UnitCost != nil {
			updated.UnitCost = *req.UnitCost
		}
		if req.Location != "" {
			updated.Location = req.Location
		}
		updated.UpdatedAt = now

		entry := s.newEntry(req, newQty, now)
		err = s.inventory.ApplyAdjustment(ctx, updated, entry)
		if errors.Is(err, port.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, port.ErrDuplicateOperation) {
			// Lost a race against an identical operation id.
			return s.replayOperation(ctx, req.OperationID)
		}
		if err != nil {
			return nil, fmt.Errorf("apply adjustment %s: %w", key, err)
		}

		updated.Version++
		cacheQty := newQty
		if updated.Status == domain.StatusDiscontinued {
			cacheQty = 0
		}
		s.cacheStock(ctx, key, cacheQty, updated.Version)
		return &AdjustResult{Record: updated, Entry: entry, Retries: attempt}, nil
	}

	return nil, &domain.ConflictError{ItemID: req.ItemID, ItemType: req.ItemType, Attempts: s.cfg.MaxRetries}
}

// Retire soft-deletes a record: quantity history is preserved and the journal
// keeps referencing it, but the status becomes discontinued.
func (s *LedgerService) Retire(ctx context.Context, itemID string, itemType domain.ItemType) (*domain.InventoryRecord, error) {
	key := domain.InventoryKey{ItemID: itemID, ItemType: itemType}
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		rec, err := s.Get(ctx, itemID, itemType)
		if err != nil {
			return nil, err
		}
		if rec.Status == domain.StatusDiscontinued {
			return rec, nil
		}

		updated := *rec
		updated.Status = domain.StatusDiscontinued
		updated.UpdatedAt = time.Now().UTC()

		err = s.inventory.UpdateVersioned(ctx, updated)
		if errors.Is(err, port.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("retire %s: %w", key, err)
		}
		updated.Version++
		// Discontinued stock is never allocatable.
		s.cacheStock(ctx, key, 0, updated.Version)
		return &updated, nil
	}
	return nil, &domain.ConflictError{ItemID: itemID, ItemType: itemType, Attempts: s.cfg.MaxRetries}
}

// List scans records, optionally filtered by type and status.
func (s *LedgerService) List(ctx context.Context, filter port.InventoryFilter) ([]domain.InventoryRecord, error) {
	return s.inventory.List(ctx, filter)
}

// Adjustments queries the audit journal.
func (s *LedgerService) Adjustments(ctx context.Context, q port.AdjustmentQuery) ([]domain.AdjustmentEntry, error) {
	return s.journal.Query(ctx, q)
}

// Available returns the quantity open to allocation, answering from the
// cache when it can and falling back to the repository. Unknown and
// discontinued items report zero.
func (s *LedgerService) Available(ctx context.Context, itemID string, itemType domain.ItemType) (int64, error) {
	key := domain.InventoryKey{ItemID: itemID, ItemType: itemType}
	if s.cache != nil {
		if qty, ok, err := s.cache.GetStock(ctx, key); err == nil && ok {
			return qty, nil
		}
	}
	rec, err := s.inventory.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get inventory %s: %w", key, err)
	}
	if rec == nil || rec.Status == domain.StatusDiscontinued {
		return 0, nil
	}
	return rec.Quantity, nil
}

func (s *LedgerService) createInitial(ctx context.Context, req AdjustRequest, key domain.InventoryKey, now time.Time) (res *AdjustResult, retry bool, err error) {
	if req.Type != domain.AdjustmentInitial {
		return nil, false, &domain.NotFoundError{Resource: "inventory", ID: key.String()}
	}
	if req.Delta < 0 {
		return nil, false, &domain.ValidationError{
			ItemID: req.ItemID, ItemType: req.ItemType,
			Reason: "initial stock entry cannot be negative", Requested: -req.Delta,
		}
	}

	fresh := domain.InventoryRecord{
		ItemID:    req.ItemID,
		ItemType:  req.ItemType,
		Quantity:  req.Delta,
		Status:    domain.StatusFor(req.Delta, s.threshold(key)),
		Location:  req.Location,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.UnitCost != nil {
		fresh.UnitCost = *req.UnitCost
	}

	entry := s.newEntry(req, fresh.Quantity, now)
	err = s.inventory.Create(ctx, fresh, entry)
	if errors.Is(err, port.ErrRecordExists) {
		// Raced with another first-entry writer; re-read and adjust.
		return nil, true, nil
	}
	if errors.Is(err, port.ErrDuplicateOperation) {
		res, err = s.replayOperation(ctx, req.OperationID)
		return res, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("create inventory %s: %w", key, err)
	}

	s.cacheStock(ctx, key, fresh.Quantity, fresh.Version)
	return &AdjustResult{Record: fresh, Entry: entry}, false, nil
}

func (s *LedgerService) replayOperation(ctx context.Context, operationID string) (*AdjustResult, error) {
	prior, err := s.journal.FindByOperation(ctx, operationID)
	if err != nil {
		return nil, fmt.Errorf("lookup operation %s: %w", operationID, err)
	}
	if prior == nil {
		return nil, fmt.Errorf("operation %s reported duplicate but is missing from the journal", operationID)
	}
	return s.replayed(ctx, prior)
}

func (s *LedgerService) replayed(ctx context.Context, prior *domain.AdjustmentEntry) (*AdjustResult, error) {
	rec, err := s.Get(ctx, prior.ItemID, prior.ItemType)
	if err != nil {
		return nil, err
	}
	return &AdjustResult{Record: *rec, Entry: *prior, Replayed: true}, nil
}

func (s *LedgerService) threshold(key domain.InventoryKey) int64 {
	if t, ok := s.cfg.ThresholdOverrides[key]; ok {
		return t
	}
	return s.cfg.LowStockThreshold
}

func (s *LedgerService) newEntry(req AdjustRequest, resulting int64, now time.Time) domain.AdjustmentEntry {
	return domain.AdjustmentEntry{
		ID:                uuid.NewString(),
		ItemID:            req.ItemID,
		ItemType:          req.ItemType,
		Delta:             req.Delta,
		Type:              req.Type,
		Reason:            req.Reason,
		OperationID:       req.OperationID,
		ResultingQuantity: resulting,
		RecordedAt:        now,
	}
}

func (s *LedgerService) cacheStock(ctx context.Context, key domain.InventoryKey, qty int64, version int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStock(ctx, key, qty, version); err != nil {
		log.Printf("stock cache update failed for %s: %v", key, err)
	}
}
