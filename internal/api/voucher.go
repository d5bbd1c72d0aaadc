package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

type createVoucherRequest struct {
	Code           string    `json:"code" validate:"omitempty,max=64"`
	DiscountType   string    `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue  float64   `json:"discountValue" validate:"required,gt=0"`
	ExpirationDate time.Time `json:"expirationDate" validate:"required"`
	UsageLimit     int       `json:"usageLimit" validate:"required,gt=0"`
	MinOrderValue  *float64  `json:"minOrderValue" validate:"omitempty,gte=0"`
}

type updateVoucherRequest struct {
	Code           *string    `json:"code" validate:"omitempty,min=1,max=64"`
	DiscountType   *string    `json:"discountType" validate:"omitempty,oneof=PERCENTAGE FIXED"`
	DiscountValue  *float64   `json:"discountValue" validate:"omitempty,gt=0"`
	ExpirationDate *time.Time `json:"expirationDate"`
	UsageLimit     *int       `json:"usageLimit" validate:"omitempty,gt=0"`
	MinOrderValue  *float64   `json:"minOrderValue" validate:"omitempty,gte=0"`
}

type voucherResponse struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	DiscountType   string    `json:"discountType"`
	DiscountValue  float64   `json:"discountValue"`
	ExpirationDate time.Time `json:"expirationDate"`
	UsageLimit     int       `json:"usageLimit"`
	UsageCount     int       `json:"usageCount"`
	MinOrderValue  *float64  `json:"minOrderValue,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toVoucherResponse(v *voucher.Voucher) voucherResponse {
	resp := voucherResponse{
		ID:             v.ID.String(),
		Code:           v.Code,
		DiscountType:   string(v.Type),
		DiscountValue:  v.Value.InexactFloat64(),
		ExpirationDate: v.ExpirationDate,
		UsageLimit:     v.UsageLimit,
		UsageCount:     v.UsageCount,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	if v.MinOrderValue != nil {
		m := v.MinOrderValue.InexactFloat64()
		resp.MinOrderValue = &m
	}
	return resp
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	params := voucher.CreateParams{
		Code:           req.Code,
		DiscountType:   discount.Type(req.DiscountType),
		DiscountValue:  decimal.NewFromFloat(req.DiscountValue),
		ExpirationDate: req.ExpirationDate,
		UsageLimit:     req.UsageLimit,
	}
	if req.MinOrderValue != nil {
		m := decimal.NewFromFloat(*req.MinOrderValue)
		params.MinOrderValue = &m
	}

	v, err := h.vouchers.Create(r.Context(), params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherResponse(v))
}

func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	vs, err := h.vouchers.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherListResponse(vs))
}

func (h *Handler) listAvailableVouchers(w http.ResponseWriter, r *http.Request) {
	vs, err := h.vouchers.ListAvailable(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherListResponse(vs))
}

func voucherListResponse(vs []voucher.Voucher) []voucherResponse {
	out := make([]voucherResponse, len(vs))
	for i := range vs {
		out[i] = toVoucherResponse(&vs[i])
	}
	return out
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	v, err := h.vouchers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (h *Handler) updateVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req updateVoucherRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	params := voucher.UpdateParams{
		Code:           req.Code,
		ExpirationDate: req.ExpirationDate,
		UsageLimit:     req.UsageLimit,
	}
	if req.DiscountType != nil {
		t := discount.Type(*req.DiscountType)
		params.DiscountType = &t
	}
	if req.DiscountValue != nil {
		d := decimal.NewFromFloat(*req.DiscountValue)
		params.DiscountValue = &d
	}
	if req.MinOrderValue != nil {
		m := decimal.NewFromFloat(*req.MinOrderValue)
		params.MinOrderValue = &m
	}

	v, err := h.vouchers.Update(r.Context(), id, params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (h *Handler) deleteVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.vouchers.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
