package handler

import (
	"context"
	"errors"

	"github.com/rl1809/asset-custody/internal/adapter/handler/rpc"
	"github.com/rl1809/asset-custody/internal/core/domain"
	"github.com/rl1809/asset-custody/internal/core/service"
)

type GRPCHandler struct {
	settlement *service.SettlementService
}

func NewGRPCHandler(settlement *service.SettlementService) *GRPCHandler {
	return &GRPCHandler{settlement: settlement}
}

func (h *GRPCHandler) Buy(ctx context.Context, req *rpc.BuyRequest) (*rpc.BuyResponse, error) {
	receipt, err := h.settlement.BuyAsset(ctx, req.RequestID, req.Buyer, req.Mint, req.Quantity)
	if err != nil {
		return &rpc.BuyResponse{
			Success: false,
			Message: buyErrorMessage(err),
		}, nil
	}

	return &rpc.BuyResponse{
		Success:   true,
		Message:   "purchase settled",
		ReceiptID: receipt.ID,
		TotalCost: receipt.TotalCost,
	}, nil
}

func buyErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		return "duplicate request"
	case errors.Is(err, domain.ErrNotFound):
		return "asset not listed"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "quantity must be positive"
	case errors.Is(err, domain.ErrInsufficientSupply):
		return "sold out"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient quote balance"
	case errors.Is(err, domain.ErrOverflow):
		return "cost overflow"
	default:
		return "internal error"
	}
}
