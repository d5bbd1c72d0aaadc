package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordokit/promo-engine/internal/domain/order"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decode reads the request body into dst and runs struct validation on it.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decode body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// idParam parses the {id} route parameter as a UUID.
func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "parse id")
	}
	return id, nil
}

// writeBadRequest reports request-shape failures: malformed JSON, failed
// struct validation, bad route parameters.
func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}

// writeDomainError maps a service error onto an HTTP status. Domain rule
// violations are caller-fixable and map to 400, missing records to 404,
// code collisions to 409. Anything unrecognized is treated as an
// infrastructure failure: logged and reported as a plain 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, voucher.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, voucher.ErrCodeExists),
		errors.Is(err, promotion.ErrCodeExists):
		return http.StatusConflict
	case isDomainValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isDomainValidation(err error) bool {
	sentinels := []error{
		voucher.ErrExpired,
		voucher.ErrUsageLimitReached,
		voucher.ErrBelowMinOrderValue,
		voucher.ErrExpirationNotFuture,
		voucher.ErrNonPositiveValue,
		voucher.ErrInvalidType,
		voucher.ErrNonPositiveUsageLimit,
		voucher.ErrNegativeMinOrderValue,
		promotion.ErrExpired,
		promotion.ErrUsageLimitReached,
		promotion.ErrNotApplicable,
		promotion.ErrNoEligibility,
		promotion.ErrExpirationNotFuture,
		promotion.ErrNonPositiveValue,
		promotion.ErrInvalidType,
		promotion.ErrNonPositiveUsageLimit,
		order.ErrNonPositiveSubtotal,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}

	var (
		quantityErr  *order.InvalidQuantityError
		unitPriceErr *order.InvalidUnitPriceError
		dupErr       *order.DuplicatePromotionError
	)
	return errors.As(err, &quantityErr) ||
		errors.As(err, &unitPriceErr) ||
		errors.As(err, &dupErr)
}
