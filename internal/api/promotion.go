package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
)

type createPromotionRequest struct {
	Code               string    `json:"code" validate:"omitempty,max=64"`
	EligibleCategories []string  `json:"eligibleCategories" validate:"omitempty,dive,required"`
	EligibleItems      []string  `json:"eligibleItems" validate:"omitempty,dive,required"`
	DiscountType       string    `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue      float64   `json:"discountValue" validate:"required,gt=0"`
	ExpirationDate     time.Time `json:"expirationDate" validate:"required"`
	UsageLimit         int       `json:"usageLimit" validate:"required,gt=0"`
}

type updatePromotionRequest struct {
	Code               *string    `json:"code" validate:"omitempty,min=1,max=64"`
	EligibleCategories []string   `json:"eligibleCategories" validate:"omitempty,dive,required"`
	EligibleItems      []string   `json:"eligibleItems" validate:"omitempty,dive,required"`
	DiscountType       *string    `json:"discountType" validate:"omitempty,oneof=PERCENTAGE FIXED"`
	DiscountValue      *float64   `json:"discountValue" validate:"omitempty,gt=0"`
	ExpirationDate     *time.Time `json:"expirationDate"`
	UsageLimit         *int       `json:"usageLimit" validate:"omitempty,gt=0"`
}

type promotionResponse struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	EligibleCategories []string  `json:"eligibleCategories"`
	EligibleItems      []string  `json:"eligibleItems"`
	DiscountType       string    `json:"discountType"`
	DiscountValue      float64   `json:"discountValue"`
	ExpirationDate     time.Time `json:"expirationDate"`
	UsageLimit         int       `json:"usageLimit"`
	UsageCount         int       `json:"usageCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	categories := p.EligibleCategories
	if categories == nil {
		categories = []string{}
	}
	items := p.EligibleItems
	if items == nil {
		items = []string{}
	}
	return promotionResponse{
		ID:                 p.ID.String(),
		Code:               p.Code,
		EligibleCategories: categories,
		EligibleItems:      items,
		DiscountType:       string(p.Type),
		DiscountValue:      p.Value.InexactFloat64(),
		ExpirationDate:     p.ExpirationDate,
		UsageLimit:         p.UsageLimit,
		UsageCount:         p.UsageCount,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) {
	var req createPromotionRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	p, err := h.promotions.Create(r.Context(), promotion.CreateParams{
		Code:               req.Code,
		EligibleCategories: req.EligibleCategories,
		EligibleItems:      req.EligibleItems,
		DiscountType:       discount.Type(req.DiscountType),
		DiscountValue:      decimal.NewFromFloat(req.DiscountValue),
		ExpirationDate:     req.ExpirationDate,
		UsageLimit:         req.UsageLimit,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionResponse(p))
}

func (h *Handler) listPromotions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.promotions.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promotionListResponse(ps))
}

func (h *Handler) listAvailablePromotions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.promotions.ListAvailable(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promotionListResponse(ps))
}

func promotionListResponse(ps []promotion.Promotion) []promotionResponse {
	out := make([]promotionResponse, len(ps))
	for i := range ps {
		out[i] = toPromotionResponse(&ps[i])
	}
	return out
}

func (h *Handler) getPromotion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	p, err := h.promotions.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) updatePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req updatePromotionRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	params := promotion.UpdateParams{
		Code:               req.Code,
		EligibleCategories: req.EligibleCategories,
		EligibleItems:      req.EligibleItems,
		ExpirationDate:     req.ExpirationDate,
		UsageLimit:         req.UsageLimit,
	}
	if req.DiscountType != nil {
		t := discount.Type(*req.DiscountType)
		params.DiscountType = &t
	}
	if req.DiscountValue != nil {
		d := decimal.NewFromFloat(*req.DiscountValue)
		params.DiscountValue = &d
	}

	p, err := h.promotions.Update(r.Context(), id, params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) deletePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.promotions.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
