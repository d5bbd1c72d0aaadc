package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ordokit/promo-engine/internal/domain/discount"
)

func TestPromotionEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		promo   Promotion
		wantErr error
	}{
		{
			name:  "valid promotion passes",
			promo: Promotion{Rule: discount.Rule{ExpirationDate: now.Add(time.Hour), UsageLimit: 10}},
		},
		{
			name:    "expired",
			promo:   Promotion{Rule: discount.Rule{ExpirationDate: now.Add(-time.Minute), UsageLimit: 10}},
			wantErr: ErrExpired,
		},
		{
			name:    "usage limit reached",
			promo:   Promotion{Rule: discount.Rule{ExpirationDate: now.Add(time.Hour), UsageLimit: 3, UsageCount: 3}},
			wantErr: ErrUsageLimitReached,
		},
		{
			name:    "expiry checked before usage limit",
			promo:   Promotion{Rule: discount.Rule{ExpirationDate: now.Add(-time.Minute), UsageLimit: 3, UsageCount: 3}},
			wantErr: ErrExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.promo.Evaluate(now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEligibleBase(t *testing.T) {
	lines := []discount.Line{
		{ProductID: "sku-1", Category: "electronics", UnitPrice: decimal.NewFromInt(100), Quantity: 1},
		{ProductID: "sku-2", Category: "books", UnitPrice: decimal.NewFromInt(20), Quantity: 2},
		{ProductID: "sku-3", Category: "", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
	}

	tests := []struct {
		name  string
		promo Promotion
		want  decimal.Decimal
	}{
		{
			name:  "matches by category",
			promo: Promotion{EligibleCategories: []string{"ELECTRONICS"}},
			want:  decimal.NewFromInt(100),
		},
		{
			name:  "matches by product id",
			promo: Promotion{EligibleItems: []string{"SKU-2"}},
			want:  decimal.NewFromInt(40),
		},
		{
			name: "line matching both sets counts once",
			promo: Promotion{
				EligibleCategories: []string{"ELECTRONICS"},
				EligibleItems:      []string{"SKU-1"},
			},
			want: decimal.NewFromInt(100),
		},
		{
			name: "union across lines",
			promo: Promotion{
				EligibleCategories: []string{"BOOKS"},
				EligibleItems:      []string{"SKU-1"},
			},
			want: decimal.NewFromInt(140),
		},
		{
			name:  "case and whitespace insensitive",
			promo: Promotion{EligibleCategories: []string{"  electronics  "}},
			want:  decimal.NewFromInt(100),
		},
		{
			name:  "no matches",
			promo: Promotion{EligibleCategories: []string{"TOYS"}},
			want:  decimal.Zero,
		},
		{
			name:  "empty category on line does not match empty set entry",
			promo: Promotion{EligibleItems: []string{"SKU-3"}},
			want:  decimal.NewFromInt(5),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.promo.EligibleBase(lines)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}
