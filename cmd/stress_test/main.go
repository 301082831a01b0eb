package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skund404/WAWI-Claude-sub001/internal/adapter/storage"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/service"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

const (
	itemID        = "hw-rivet-brass"
	initialStock  = 200
	totalRequests = 500
	consumeQty    = 1
	maxRetries    = 50
)

// Hammers one inventory record with concurrent single-unit consumptions.
// Exactly initialStock of them must succeed, the rest must fail with
// insufficient quantity, and the journal must replay to the final quantity.
func main() {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	ledger := service.NewLedgerService(store, store, nil, service.LedgerConfig{
		MaxRetries: maxRetries,
	})

	if _, err := ledger.Adjust(ctx, service.AdjustRequest{
		ItemID:   itemID,
		ItemType: domain.ItemTypeHardware,
		Delta:    initialStock,
		Type:     domain.AdjustmentInitial,
		Reason:   "stress seed",
	}); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	var successCount atomic.Int32
	var shortCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := ledger.Adjust(ctx, service.AdjustRequest{
				ItemID:   itemID,
				ItemType: domain.ItemTypeHardware,
				Delta:    -consumeQty,
				Type:     domain.AdjustmentConsumption,
				Reason:   fmt.Sprintf("stress request %d", n),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case isInsufficient(err):
				shortCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("request %d: unexpected error: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	short := shortCount.Load()
	other := otherCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", short)
	fmt.Printf("Other Errors:     %d\n", other)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && short == totalRequests-initialStock && other == 0 {
		fmt.Printf("PASS: exactly %d consumptions succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d insufficient, got %d/%d (+%d other)\n",
			initialStock, totalRequests-initialStock, success, short, other)
	}

	rec, err := ledger.Get(ctx, itemID, domain.ItemTypeHardware)
	if err != nil {
		log.Fatalf("failed to read final record: %v", err)
	}
	fmt.Printf("Final Quantity:    %d\n", rec.Quantity)
	if rec.Quantity == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected quantity 0, got %d\n", rec.Quantity)
	}

	// Replay the journal and confirm it lands on the stored quantity.
	entries, err := ledger.Adjustments(ctx, port.AdjustmentQuery{
		ItemID: itemID, ItemType: domain.ItemTypeHardware,
	})
	if err != nil {
		log.Fatalf("failed to query journal: %v", err)
	}
	var replayed int64
	for _, e := range entries {
		replayed += e.Delta
	}
	fmt.Printf("Journal Entries:   %d (net %+d)\n", len(entries), replayed)
	if replayed == rec.Quantity && len(entries) == int(success)+1 {
		fmt.Println("PASS: journal replays to the stored quantity")
	} else {
		fmt.Printf("FAIL: journal net %d vs quantity %d, %d entries\n",
			replayed, rec.Quantity, len(entries))
	}
}

func isInsufficient(err error) bool {
	var v *domain.ValidationError
	return errors.As(err, &v)
}
