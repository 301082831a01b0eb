package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/core/service"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

// HTTPHandler exposes the engine's command and query operations as JSON
// endpoints. It holds no allocation logic; every decision lives in the
// services.
type HTTPHandler struct {
	ledger    *service.LedgerService
	picking   *service.PickingService
	tools     *service.ToolService
	threshold *service.ThresholdEvaluator
	valuation *service.ValuationService
}

func NewHTTPHandler(ledger *service.LedgerService, picking *service.PickingService,
	tools *service.ToolService, threshold *service.ThresholdEvaluator,
	valuation *service.ValuationService) *HTTPHandler {
	return &HTTPHandler{
		ledger:    ledger,
		picking:   picking,
		tools:     tools,
		threshold: threshold,
		valuation: valuation,
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)

	mux.HandleFunc("/api/inventory", h.GetInventory)
	mux.HandleFunc("/api/inventory/list", h.ListInventory)
	mux.HandleFunc("/api/inventory/adjust", h.Adjust)
	mux.HandleFunc("/api/inventory/retire", h.Retire)
	mux.HandleFunc("/api/inventory/low-stock", h.LowStock)
	mux.HandleFunc("/api/adjustments", h.QueryAdjustments)

	mux.HandleFunc("/api/reports/value", h.Value)
	mux.HandleFunc("/api/reports/turnover", h.Turnover)

	mux.HandleFunc("/api/picking-lists", h.PickingLists)
	mux.HandleFunc("/api/picking-lists/start", h.StartPicking)
	mux.HandleFunc("/api/picking-lists/pick", h.RecordPick)
	mux.HandleFunc("/api/picking-lists/complete", h.CompletePicking)
	mux.HandleFunc("/api/picking-lists/cancel", h.CancelPicking)

	mux.HandleFunc("/api/tool-lists", h.ToolLists)
	mux.HandleFunc("/api/tool-lists/start", h.StartToolList)
	mux.HandleFunc("/api/tool-lists/assign", h.AssignTool)
	mux.HandleFunc("/api/tool-lists/return", h.ReturnTool)
	mux.HandleFunc("/api/tool-lists/complete", h.CompleteToolList)
	mux.HandleFunc("/api/tool-lists/cancel", h.CancelToolList)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type adjustHTTPRequest struct {
	ItemID        string `json:"item_id"`
	ItemType      string `json:"item_type"`
	Delta         int64  `json:"delta"`
	Type          string `json:"type"`
	Reason        string `json:"reason"`
	OperationID   string `json:"operation_id"`
	AllowNegative bool   `json:"allow_negative"`
	Location      string `json:"location"`
	UnitCost      string `json:"unit_cost"`
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req adjustHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == "" || req.ItemType == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "item_id, item_type and type are required")
		return
	}

	adjust := service.AdjustRequest{
		ItemID:        req.ItemID,
		ItemType:      domain.ItemType(req.ItemType),
		Delta:         req.Delta,
		Type:          domain.AdjustmentType(req.Type),
		Reason:        req.Reason,
		OperationID:   req.OperationID,
		AllowNegative: req.AllowNegative,
		Location:      req.Location,
	}
	if req.UnitCost != "" {
		cost, err := decimal.NewFromString(req.UnitCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid unit_cost")
			return
		}
		adjust.UnitCost = &cost
	}

	res, err := h.ledger.Adjust(r.Context(), adjust)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID := r.URL.Query().Get("item_id")
	itemType := r.URL.Query().Get("item_type")
	if itemID == "" || itemType == "" {
		writeError(w, http.StatusBadRequest, "item_id and item_type are required")
		return
	}

	rec, err := h.ledger.Get(r.Context(), itemID, domain.ItemType(itemType))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := port.InventoryFilter{}
	if v := r.URL.Query().Get("item_type"); v != "" {
		t := domain.ItemType(v)
		filter.ItemType = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.InventoryStatus(v)
		filter.Status = &s
	}

	records, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *HTTPHandler) Retire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ItemID   string `json:"item_id"`
		ItemType string `json:"item_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.ledger.Retire(r.Context(), req.ItemID, domain.ItemType(req.ItemType))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	threshold := int64(0)
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseInt(v, 10, 64)
		if err != nil || t < 0 {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = t
	}

	items, err := h.threshold.LowStock(r.Context(), threshold, nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) QueryAdjustments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := port.AdjustmentQuery{
		ItemID:   r.URL.Query().Get("item_id"),
		ItemType: domain.ItemType(r.URL.Query().Get("item_type")),
	}
	var err error
	if q.From, err = parseTimeParam(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	if q.To, err = parseTimeParam(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
	}
	q.Descending = r.URL.Query().Get("order") == "desc"

	entries, err := h.ledger.Adjustments(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HTTPHandler) Value(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := port.InventoryFilter{}
	if v := r.URL.Query().Get("item_type"); v != "" {
		t := domain.ItemType(v)
		filter.ItemType = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.InventoryStatus(v)
		filter.Status = &s
	}

	report, err := h.valuation.ComputeValue(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) Turnover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, err := parseTimeParam(r, "from")
	if err != nil || from.IsZero() {
		writeError(w, http.StatusBadRequest, "from timestamp is required")
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil || to.IsZero() {
		writeError(w, http.StatusBadRequest, "to timestamp is required")
		return
	}

	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	report, err := h.valuation.ComputeTurnover(r.Context(),
		itemID, domain.ItemType(r.URL.Query().Get("item_type")), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// PickingLists creates a list from a project (POST) or fetches lists (GET).
func (h *HTTPHandler) PickingLists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" {
			writeError(w, http.StatusBadRequest, "project_id is required")
			return
		}
		list, err := h.picking.CreateFromProject(r.Context(), req.ProjectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, list)

	case http.MethodGet:
		if id := r.URL.Query().Get("id"); id != "" {
			list, err := h.picking.Get(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
			return
		}
		if projectID := r.URL.Query().Get("project_id"); projectID != "" {
			lists, err := h.picking.ListByProject(r.Context(), projectID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, lists)
			return
		}
		writeError(w, http.StatusBadRequest, "id or project_id is required")

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) StartPicking(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDFromBody(w, r)
	if !ok {
		return
	}
	list, err := h.picking.StartPicking(r.Context(), listID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) RecordPick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ListID      string `json:"list_id"`
		ItemID      string `json:"item_id"`
		ItemType    string `json:"item_type"`
		Quantity    int64  `json:"quantity"`
		Override    bool   `json:"override"`
		OperationID string `json:"operation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list, err := h.picking.RecordPick(r.Context(), req.ListID, req.ItemID,
		domain.ItemType(req.ItemType), req.Quantity,
		service.PickOptions{OperationID: req.OperationID, Override: req.Override})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) CompletePicking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ListID string `json:"list_id"`
		Force  bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListID == "" {
		writeError(w, http.StatusBadRequest, "list_id is required")
		return
	}

	list, err := h.picking.Complete(r.Context(), req.ListID, req.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) CancelPicking(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDFromBody(w, r)
	if !ok {
		return
	}
	list, err := h.picking.Cancel(r.Context(), listID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) ToolLists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" {
			writeError(w, http.StatusBadRequest, "project_id is required")
			return
		}
		list, err := h.tools.CreateFromProject(r.Context(), req.ProjectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, list)

	case http.MethodGet:
		if id := r.URL.Query().Get("id"); id != "" {
			list, err := h.tools.Get(r.Context(), id)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
			return
		}
		if projectID := r.URL.Query().Get("project_id"); projectID != "" {
			lists, err := h.tools.ListByProject(r.Context(), projectID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, lists)
			return
		}
		writeError(w, http.StatusBadRequest, "id or project_id is required")

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) StartToolList(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDFromBody(w, r)
	if !ok {
		return
	}
	list, err := h.tools.Start(r.Context(), listID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) AssignTool(w http.ResponseWriter, r *http.Request) {
	h.toolQuantityOp(w, r, h.tools.Assign)
}

func (h *HTTPHandler) ReturnTool(w http.ResponseWriter, r *http.Request) {
	h.toolQuantityOp(w, r, h.tools.ReturnTool)
}

func (h *HTTPHandler) toolQuantityOp(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, listID, itemID string, qty int64) (*domain.ToolList, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ListID   string `json:"list_id"`
		ItemID   string `json:"item_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list, err := op(r.Context(), req.ListID, req.ItemID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) CompleteToolList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ListID string `json:"list_id"`
		Force  bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListID == "" {
		writeError(w, http.StatusBadRequest, "list_id is required")
		return
	}

	list, err := h.tools.Complete(r.Context(), req.ListID, req.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) CancelToolList(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDFromBody(w, r)
	if !ok {
		return
	}
	list, err := h.tools.Cancel(r.Context(), listID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		state      *domain.StateError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error(), Code: "not_found"})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: err.Error(), Code: "validation"})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error(), Code: "conflict"})
	case errors.As(err, &state):
		writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error(), Code: "state"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func listIDFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	var req struct {
		ListID string `json:"list_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListID == "" {
		writeError(w, http.StatusBadRequest, "list_id is required")
		return "", false
	}
	return req.ListID, true
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
