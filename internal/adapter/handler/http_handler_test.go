package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Skund404/WAWI-Claude-sub001/internal/adapter/storage"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := storage.NewMemoryStore()
	ledger := service.NewLedgerService(store, store, nil, service.LedgerConfig{LowStockThreshold: 5})
	bom := storage.NewStaticBOMProvider(map[string][]domain.BOMRequirement{
		"wallet-batch": {
			{ItemID: "veg-tan-4oz", ItemType: domain.ItemTypeLeather, QtyPerUnit: 3, Count: 10},
			{ItemID: "stitching-pony", ItemType: domain.ItemTypeTool, QtyPerUnit: 1, Count: 1},
		},
	})
	picking := service.NewPickingService(ledger, store, bom)
	tools := service.NewToolService(ledger, store, bom)
	threshold := service.NewThresholdEvaluator(store)
	valuation := service.NewValuationService(store, store)

	mux := http.NewServeMux()
	NewHTTPHandler(ledger, picking, tools, threshold, valuation).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s failed: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

func TestHTTP_AdjustAndGet(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/inventory/adjust", map[string]any{
		"item_id": "veg-tan-4oz", "item_type": "leather",
		"delta": 100, "type": "initial", "unit_cost": "12.50",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res service.AdjustResult
	decode(t, resp, &res)
	if res.Record.Quantity != 100 {
		t.Errorf("expected quantity 100, got %d", res.Record.Quantity)
	}

	resp, err := http.Get(srv.URL + "/api/inventory?item_id=veg-tan-4oz&item_type=leather")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rec domain.InventoryRecord
	decode(t, resp, &rec)
	if rec.Quantity != 100 || rec.Status != domain.StatusAvailable {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestHTTP_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	// Unknown item: 404.
	resp, err := http.Get(srv.URL + "/api/inventory?item_id=ghost&item_type=leather")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	// Over-consumption: 422.
	resp = postJSON(t, srv.URL+"/api/inventory/adjust", map[string]any{
		"item_id": "veg-tan-4oz", "item_type": "leather", "delta": 10, "type": "initial",
	})
	resp.Body.Close()
	resp = postJSON(t, srv.URL+"/api/inventory/adjust", map[string]any{
		"item_id": "veg-tan-4oz", "item_type": "leather", "delta": -50, "type": "consumption",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}

	// Missing fields: 400.
	resp = postJSON(t, srv.URL+"/api/inventory/adjust", map[string]any{"delta": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}

	// Wrong method: 405.
	resp, err = http.Get(srv.URL + "/api/inventory/adjust")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}

	// Turnover without an item id would blend every item's history: 400.
	resp, err = http.Get(srv.URL + "/api/reports/turnover?item_type=leather&from=2026-03-01T00:00:00Z&to=2026-03-10T00:00:00Z")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unscoped turnover, got %d", resp.StatusCode)
	}
}

func TestHTTP_PickingListLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/inventory/adjust", map[string]any{
		"item_id": "veg-tan-4oz", "item_type": "leather", "delta": 100, "type": "initial",
	})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/picking-lists", map[string]any{"project_id": "wallet-batch"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var list domain.PickingList
	decode(t, resp, &list)
	if len(list.Items) != 1 || list.Items[0].QuantityRequired != 30 {
		t.Fatalf("unexpected list: %+v", list)
	}

	resp = postJSON(t, srv.URL+"/api/picking-lists/start", map[string]any{"list_id": list.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &list)
	if list.Status != domain.ListStatusInProgress {
		t.Errorf("expected in_progress, got %s", list.Status)
	}

	resp = postJSON(t, srv.URL+"/api/picking-lists/pick", map[string]any{
		"list_id": list.ID, "item_id": "veg-tan-4oz", "item_type": "leather", "quantity": 30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pick: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/picking-lists/complete", map[string]any{"list_id": list.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &list)
	if list.Status != domain.ListStatusCompleted {
		t.Errorf("expected completed, got %s", list.Status)
	}

	// Starting a completed list maps StateError to 409.
	resp = postJSON(t, srv.URL+"/api/picking-lists/start", map[string]any{"list_id": list.ID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestHTTP_ToolListLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/inventory/adjust", map[string]any{
		"item_id": "stitching-pony", "item_type": "tool", "delta": 1, "type": "initial",
	})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/tool-lists", map[string]any{"project_id": "wallet-batch"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var list domain.ToolList
	decode(t, resp, &list)

	resp = postJSON(t, srv.URL+"/api/tool-lists/start", map[string]any{"list_id": list.ID})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/tool-lists/assign", map[string]any{
		"list_id": list.ID, "item_id": "stitching-pony", "quantity": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/tool-lists/return", map[string]any{
		"list_id": list.ID, "item_id": "stitching-pony", "quantity": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/tool-lists/complete", map[string]any{"list_id": list.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &list)
	if list.Status != domain.ListStatusCompleted {
		t.Errorf("expected completed, got %s", list.Status)
	}
}

func TestHTTP_LowStockAndValue(t *testing.T) {
	srv := newTestServer(t)

	for _, seed := range []map[string]any{
		{"item_id": "thread-tiger", "item_type": "supplies", "delta": 2, "type": "initial", "unit_cost": "4.00"},
		{"item_id": "veg-tan-4oz", "item_type": "leather", "delta": 50, "type": "initial", "unit_cost": "12.50"},
	} {
		resp := postJSON(t, srv.URL+"/api/inventory/adjust", seed)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/inventory/low-stock?threshold=5")
	if err != nil {
		t.Fatalf("low-stock failed: %v", err)
	}
	var items []service.LowStockItem
	decode(t, resp, &items)
	if len(items) != 1 || items[0].Record.ItemID != "thread-tiger" {
		t.Errorf("unexpected low stock report: %+v", items)
	}

	resp, err = http.Get(srv.URL + "/api/reports/value")
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}
	var report service.ValueReport
	decode(t, resp, &report)
	if !report.Total.Equal(decimal.RequireFromString("633.00")) {
		t.Errorf("expected total 633.00, got %s", report.Total)
	}
}

func TestHTTP_Health(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
