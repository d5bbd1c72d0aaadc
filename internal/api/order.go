package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/order"
)

type orderItem struct {
	ProductID string  `json:"productId" validate:"required"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unitPrice" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
}

type applyOrderRequest struct {
	Items          []orderItem `json:"items" validate:"required,min=1,dive"`
	VoucherCode    string      `json:"voucherCode" validate:"omitempty,max=64"`
	PromotionCodes []string    `json:"promotionCodes" validate:"omitempty,dive,required,max=64"`
}

type applyOrderResponse struct {
	OrderID           string   `json:"orderId"`
	TotalAmount       float64  `json:"totalAmount"`
	DiscountAmount    float64  `json:"discountAmount"`
	FinalAmount       float64  `json:"finalAmount"`
	AppliedVouchers   []string `json:"appliedVouchers"`
	AppliedPromotions []string `json:"appliedPromotions"`
}

func (h *Handler) applyOrder(w http.ResponseWriter, r *http.Request) {
	var req applyOrderRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	lines := make([]discount.Line, len(req.Items))
	for i, it := range req.Items {
		lines[i] = discount.Line{
			ProductID: it.ProductID,
			Category:  it.Category,
			UnitPrice: decimal.NewFromFloat(it.UnitPrice),
			Quantity:  it.Quantity,
		}
	}

	res, err := h.orders.Apply(r.Context(), order.ApplyRequest{
		Lines:          lines,
		VoucherCode:    req.VoucherCode,
		PromotionCodes: req.PromotionCodes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	vouchers := []string{}
	if res.AppliedVoucherCode != "" {
		vouchers = append(vouchers, res.AppliedVoucherCode)
	}
	promotions := res.AppliedPromotionCodes
	if promotions == nil {
		promotions = []string{}
	}

	writeJSON(w, http.StatusCreated, applyOrderResponse{
		OrderID:           res.OrderID.String(),
		TotalAmount:       res.Subtotal.InexactFloat64(),
		DiscountAmount:    res.DiscountAmount.InexactFloat64(),
		FinalAmount:       res.FinalAmount.InexactFloat64(),
		AppliedVouchers:   vouchers,
		AppliedPromotions: promotions,
	})
}
