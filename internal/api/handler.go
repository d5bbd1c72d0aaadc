// Package api exposes the discount engine over HTTP: order application plus
// voucher and promotion management.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ordokit/promo-engine/internal/domain/order"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

// Handler holds the domain services behind the HTTP surface. It performs
// request decoding and validation, then delegates to the services.
type Handler struct {
	orders     *order.Service
	vouchers   *voucher.Service
	promotions *promotion.Service
	validate   *validator.Validate
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(orders *order.Service, vouchers *voucher.Service, promotions *promotion.Service) *Handler {
	return &Handler{
		orders:     orders,
		vouchers:   vouchers,
		promotions: promotions,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/orders/apply", h.applyOrder)

		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/", h.createVoucher)
			r.Get("/", h.listVouchers)
			r.Get("/available", h.listAvailableVouchers)
			r.Get("/{id}", h.getVoucher)
			r.Patch("/{id}", h.updateVoucher)
			r.Delete("/{id}", h.deleteVoucher)
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Post("/", h.createPromotion)
			r.Get("/", h.listPromotions)
			r.Get("/available", h.listAvailablePromotions)
			r.Get("/{id}", h.getPromotion)
			r.Patch("/{id}", h.updatePromotion)
			r.Delete("/{id}", h.deletePromotion)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code:    http.StatusNotFound,
			Message: "not found",
		})
	})
	return r
}
