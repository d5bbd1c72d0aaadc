package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokit/promo-engine/internal/domain/order"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
	"github.com/ordokit/promo-engine/internal/storage/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	h := NewHandler(
		order.NewService(store.Registry(), 50),
		voucher.NewService(store.Vouchers()),
		promotion.NewService(store.Promotions()),
	)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func createVoucherPayload(code string) map[string]any {
	return map[string]any{
		"code":           code,
		"discountType":   "PERCENTAGE",
		"discountValue":  10,
		"expirationDate": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"usageLimit":     100,
	}
}

func createPromotionPayload(code string) map[string]any {
	return map[string]any{
		"code":               code,
		"discountType":       "PERCENTAGE",
		"discountValue":      20,
		"expirationDate":     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"usageLimit":         100,
		"eligibleCategories": []string{"electronics"},
	}
}

func TestApplyOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", createVoucherPayload("SAVE10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/orders/apply", map[string]any{
		"items": []map[string]any{
			{"productId": "p1", "unitPrice": 100, "quantity": 1},
		},
		"voucherCode": "save10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got struct {
		OrderID           string   `json:"orderId"`
		TotalAmount       float64  `json:"totalAmount"`
		DiscountAmount    float64  `json:"discountAmount"`
		FinalAmount       float64  `json:"finalAmount"`
		AppliedVouchers   []string `json:"appliedVouchers"`
		AppliedPromotions []string `json:"appliedPromotions"`
	}
	decodeBody(t, resp, &got)

	_, err := uuid.Parse(got.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, got.TotalAmount)
	assert.Equal(t, 10.0, got.DiscountAmount)
	assert.Equal(t, 90.0, got.FinalAmount)
	assert.Equal(t, []string{"SAVE10"}, got.AppliedVouchers)
	assert.Equal(t, []string{}, got.AppliedPromotions)
}

func TestApplyOrderWithPromotion(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/promotions/", createPromotionPayload("ELEC20"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/orders/apply", map[string]any{
		"items": []map[string]any{
			{"productId": "tv", "category": "electronics", "unitPrice": 100, "quantity": 1},
			{"productId": "book", "category": "books", "unitPrice": 50, "quantity": 1},
		},
		"promotionCodes": []string{"ELEC20"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got struct {
		DiscountAmount    float64  `json:"discountAmount"`
		FinalAmount       float64  `json:"finalAmount"`
		AppliedVouchers   []string `json:"appliedVouchers"`
		AppliedPromotions []string `json:"appliedPromotions"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, 20.0, got.DiscountAmount)
	assert.Equal(t, 130.0, got.FinalAmount)
	assert.Equal(t, []string{}, got.AppliedVouchers)
	assert.Equal(t, []string{"ELEC20"}, got.AppliedPromotions)
}

func TestApplyOrderErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/promotions/", createPromotionPayload("ELEC20"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "no items",
			body:       map[string]any{"items": []map[string]any{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "zero quantity",
			body: map[string]any{
				"items": []map[string]any{{"productId": "p1", "unitPrice": 10, "quantity": 0}},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown field",
			body: map[string]any{
				"items":  []map[string]any{{"productId": "p1", "unitPrice": 10, "quantity": 1}},
				"coupon": "SAVE10",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown voucher code",
			body: map[string]any{
				"items":       []map[string]any{{"productId": "p1", "unitPrice": 10, "quantity": 1}},
				"voucherCode": "NOPE",
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "unknown promotion code",
			body: map[string]any{
				"items":          []map[string]any{{"productId": "p1", "unitPrice": 10, "quantity": 1}},
				"promotionCodes": []string{"NOPE"},
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "duplicate promotion codes",
			body: map[string]any{
				"items":          []map[string]any{{"productId": "tv", "category": "electronics", "unitPrice": 10, "quantity": 1}},
				"promotionCodes": []string{"ELEC20", "elec20"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "promotion with no eligible lines",
			body: map[string]any{
				"items":          []map[string]any{{"productId": "p1", "category": "books", "unitPrice": 10, "quantity": 1}},
				"promotionCodes": []string{"ELEC20"},
			},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders/apply", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestVoucherCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", createVoucherPayload("SAVE10"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID         string  `json:"id"`
		Code       string  `json:"code"`
		Value      float64 `json:"discountValue"`
		UsageCount int     `json:"usageCount"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, "SAVE10", created.Code)
	assert.Equal(t, 10.0, created.Value)
	assert.Zero(t, created.UsageCount)

	// Codes are unique among active vouchers, case-insensitively.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", createVoucherPayload(" save10 "))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/vouchers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/vouchers/"+created.ID, map[string]any{
		"discountValue": 15,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		Code  string  `json:"code"`
		Value float64 `json:"discountValue"`
	}
	decodeBody(t, resp, &updated)
	assert.Equal(t, "SAVE10", updated.Code, "untouched fields survive a partial update")
	assert.Equal(t, 15.0, updated.Value)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/vouchers/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []json.RawMessage
	decodeBody(t, resp, &list)
	assert.Len(t, list, 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/vouchers/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/vouchers/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVoucherValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("bad discount type", func(t *testing.T) {
		payload := createVoucherPayload("X1")
		payload["discountType"] = "BOGUS"
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("past expiration", func(t *testing.T) {
		payload := createVoucherPayload("X2")
		payload["expirationDate"] = time.Now().Add(-time.Hour).Format(time.RFC3339)
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed id", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/vouchers/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/vouchers/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestPromotionCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/promotions/", createPromotionPayload("ELEC20"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID                 string   `json:"id"`
		Code               string   `json:"code"`
		EligibleCategories []string `json:"eligibleCategories"`
		EligibleItems      []string `json:"eligibleItems"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, "ELEC20", created.Code)
	assert.Equal(t, []string{"ELECTRONICS"}, created.EligibleCategories, "categories stored normalized")
	assert.Equal(t, []string{}, created.EligibleItems)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/promotions/", createPromotionPayload("ELEC20"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/promotions/"+created.ID, map[string]any{
		"eligibleItems": []string{"sku-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		EligibleCategories []string `json:"eligibleCategories"`
		EligibleItems      []string `json:"eligibleItems"`
	}
	decodeBody(t, resp, &updated)
	assert.Equal(t, []string{"ELECTRONICS"}, updated.EligibleCategories)
	assert.Equal(t, []string{"SKU-1"}, updated.EligibleItems)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/promotions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/promotions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPromotionNoEligibility(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := createPromotionPayload("EMPTY")
	payload["eligibleCategories"] = []string{}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/promotions/", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListAvailable(t *testing.T) {
	srv, store := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", createVoucherPayload("LIVE"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/vouchers/", createVoucherPayload("SPENT"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var spent struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &spent)

	// Exhaust the second voucher directly in the store.
	id := uuid.MustParse(spent.ID)
	v, ok := store.Voucher(id)
	require.True(t, ok)
	v.UsageCount = v.UsageLimit
	require.NoError(t, store.Vouchers().Update(t.Context(), &v))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/vouchers/available", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "LIVE", list[0].Code)
}

func TestNotFoundRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRoutesRegistered(t *testing.T) {
	srv, _ := newTestServer(t)

	// Method mismatches on registered paths return 405 from the router.
	for _, path := range []string{"/api/orders/apply", "/api/vouchers/", "/api/promotions/"} {
		resp := doJSON(t, http.MethodPut, srv.URL+path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, fmt.Sprintf("PUT %s", path))
	}
}
