package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/asset-custody/internal/core/domain"
	"github.com/rl1809/asset-custody/internal/core/service"
)

type HTTPHandler struct {
	settlement *service.SettlementService
}

func NewHTTPHandler(settlement *service.SettlementService) *HTTPHandler {
	return &HTTPHandler{settlement: settlement}
}

// Register wires every route onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/initialize", h.Initialize)
	mux.HandleFunc("/api/inventory", h.Inventory)
	mux.HandleFunc("/api/inventory/deposit", h.Deposit)
	mux.HandleFunc("/api/inventory/withdraw", h.Withdraw)
	mux.HandleFunc("/api/inventory/update", h.Update)
	mux.HandleFunc("/api/inventory/close", h.Close)
	mux.HandleFunc("/api/purchase", h.Purchase)
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type initializeRequest struct {
	Caller string `json:"caller"`
}

func (h *HTTPHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Caller == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := h.settlement.Initialize(r.Context(), req.Caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "inventory initialized"})
}

type createListingRequest struct {
	Caller string `json:"caller"`
	Mint   string `json:"mint"`
	Price  uint64 `json:"price"`
}

type assetView struct {
	Mint         string `json:"mint"`
	Price        uint64 `json:"price"`
	PriceDisplay string `json:"price_display"`
	Amount       uint64 `json:"amount"`
	Owner        string `json:"owner"`
}

func (h *HTTPHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listAssets(w, r)
	case http.MethodPost:
		h.createListing(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.settlement.ListAssets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, assetView{
			Mint:         a.Mint,
			Price:        a.Price,
			PriceDisplay: domain.FormatQuote(a.Price),
			Amount:       a.Amount,
			Owner:        a.Owner,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assets": views})
}

func (h *HTTPHandler) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Caller == "" || req.Mint == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := h.settlement.CreateInventory(r.Context(), req.Caller, req.Mint, req.Price); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "asset listed"})
}

type depositRequest struct {
	Caller string `json:"caller"`
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Caller == "" || req.Mint == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := h.settlement.AddAsset(r.Context(), req.Caller, req.Mint, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "asset escrowed"})
}

type mintRequest struct {
	Caller string `json:"caller"`
	Mint   string `json:"mint"`
}

func (h *HTTPHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.teardown(w, r, h.settlement.WithdrawAsset, "asset withdrawn")
}

func (h *HTTPHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.teardown(w, r, h.settlement.CloseInventory, "inventory closed")
}

func (h *HTTPHandler) teardown(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller, mint string) error, message string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Caller == "" || req.Mint == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := op(r.Context(), req.Caller, req.Mint); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: message})
}

type updateRequest struct {
	Caller string  `json:"caller"`
	Mint   string  `json:"mint"`
	Amount *uint64 `json:"amount,omitempty"`
	Owner  *string `json:"owner,omitempty"`
}

func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Caller == "" || req.Mint == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "invalid request body"})
		return
	}

	update := domain.AssetUpdate{Amount: req.Amount, Owner: req.Owner}
	if err := h.settlement.UpdateAssetInfo(r.Context(), req.Caller, req.Mint, update); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "asset updated"})
}

type purchaseRequest struct {
	RequestID string `json:"request_id"`
	Buyer     string `json:"buyer"`
	Mint      string `json:"mint"`
	Quantity  uint64 `json:"quantity"`
}

type purchaseResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ReceiptID        string `json:"receipt_id,omitempty"`
	TotalCost        uint64 `json:"total_cost,omitempty"`
	TotalCostDisplay string `json:"total_cost_display,omitempty"`
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "invalid request body"})
		return
	}
	if req.RequestID == "" || req.Buyer == "" || req.Mint == "" || req.Quantity == 0 {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: "missing required fields"})
		return
	}

	receipt, err := h.settlement.BuyAsset(r.Context(), req.RequestID, req.Buyer, req.Mint, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		Success:          true,
		Message:          "purchase settled",
		ReceiptID:        receipt.ID,
		TotalCost:        receipt.TotalCost,
		TotalCostDisplay: domain.FormatQuote(receipt.TotalCost),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrAlreadyInitialized):
		status, message = http.StatusConflict, "already initialized"
	case errors.Is(err, domain.ErrDuplicateAsset):
		status, message = http.StatusConflict, "asset already listed"
	case errors.Is(err, service.ErrDuplicateRequest):
		status, message = http.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusForbidden, "not the asset owner"
	case errors.Is(err, domain.ErrInvalidPrice):
		status, message = http.StatusBadRequest, "price must be positive"
	case errors.Is(err, domain.ErrInvalidAmount):
		status, message = http.StatusBadRequest, "amount must be positive"
	case errors.Is(err, domain.ErrOverflow):
		status, message = http.StatusBadRequest, "cost overflow"
	case errors.Is(err, domain.ErrInsufficientSupply):
		status, message = http.StatusGone, "sold out"
	case errors.Is(err, domain.ErrInsufficientFunds):
		status, message = http.StatusPaymentRequired, "insufficient quote balance"
	case errors.Is(err, domain.ErrInsufficientAsset):
		status, message = http.StatusUnprocessableEntity, "insufficient asset balance"
	case errors.Is(err, domain.ErrInsufficientCustody):
		status, message = http.StatusUnprocessableEntity, "amount exceeds custody balance"
	case errors.Is(err, domain.ErrAlreadyClosed):
		status, message = http.StatusServiceUnavailable, "service shutting down"
	}

	writeJSON(w, status, statusResponse{Success: false, Message: message})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
