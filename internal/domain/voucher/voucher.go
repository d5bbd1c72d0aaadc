// Package voucher defines the voucher entity, its evaluation rules, and the
// persistence contract for voucher records.
package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
)

var (
	// ErrNotFound is returned when no active voucher matches a code or id.
	ErrNotFound = errors.New("voucher not found")
	// ErrExpired is returned when a voucher is past its expiration date.
	ErrExpired = errors.New("voucher has expired")
	// ErrUsageLimitReached is returned when a voucher has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrBelowMinOrderValue is returned when the order subtotal does not meet
	// the voucher's minimum order value.
	ErrBelowMinOrderValue = errors.New("voucher cannot be used below the minimum order value")
	// ErrCodeExists is returned when creating or updating a voucher with a code
	// already taken by another voucher.
	ErrCodeExists = errors.New("voucher code already exists")
	// ErrExpirationNotFuture is returned when a voucher is created or updated
	// with an expiration date that is not in the future.
	ErrExpirationNotFuture = errors.New("expiration date must be in the future")
	// ErrNonPositiveValue is returned when the discount value is zero or negative.
	ErrNonPositiveValue = errors.New("discount value must be greater than zero")
	// ErrInvalidType is returned for an unknown discount type.
	ErrInvalidType = errors.New("invalid discount type")
	// ErrNonPositiveUsageLimit is returned when the usage limit is zero or negative.
	ErrNonPositiveUsageLimit = errors.New("usage limit must be greater than zero")
	// ErrNegativeMinOrderValue is returned when the minimum order value is negative.
	ErrNegativeMinOrderValue = errors.New("minimum order value must not be negative")
)

// Voucher is an order-level discount code. At most one voucher applies per
// order, and its discount is computed against the full order subtotal.
type Voucher struct {
	ID   uuid.UUID
	Code string
	discount.Rule
	MinOrderValue *decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Evaluate decides whether the voucher may be applied to an order with the
// given subtotal at the given time. Checks run in a fixed order and the first
// failure wins: expired, usage limit reached, below minimum order value.
func (v *Voucher) Evaluate(subtotal decimal.Decimal, now time.Time) error {
	if v.Expired(now) {
		return ErrExpired
	}
	if v.Exhausted() {
		return ErrUsageLimitReached
	}
	if v.MinOrderValue != nil && subtotal.LessThan(*v.MinOrderValue) {
		return ErrBelowMinOrderValue
	}
	return nil
}

// Repository defines persistence operations for voucher records. All lookups
// are scoped to non-deleted vouchers.
type Repository interface {
	Create(ctx context.Context, v *Voucher) error
	List(ctx context.Context) ([]Voucher, error)
	// ListAvailable returns vouchers that are not expired at the given time and
	// still have usage headroom, ordered by expiration date ascending.
	ListAvailable(ctx context.Context, now time.Time) ([]Voucher, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	Update(ctx context.Context, v *Voucher) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}
