// Package order assembles discounted orders: it coordinates voucher and
// promotion evaluation, discount arithmetic, usage accounting, and order
// persistence under a single atomic transaction.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

// ErrNonPositiveSubtotal is returned when the order lines sum to zero or less.
var ErrNonPositiveSubtotal = errors.New("order total must be greater than zero")

// InvalidQuantityError indicates a line has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidUnitPriceError indicates a line has a unit price below 0.01.
type InvalidUnitPriceError struct {
	ProductID string
}

func (e *InvalidUnitPriceError) Error() string {
	return fmt.Sprintf("unit price must be at least 0.01 for product %s", e.ProductID)
}

// DuplicatePromotionError indicates the same promotion code appears more than
// once in a single request (codes compare case-insensitively).
type DuplicatePromotionError struct {
	Code string
}

func (e *DuplicatePromotionError) Error() string {
	return fmt.Sprintf("promotion %s already applied to this order", e.Code)
}

// AppliedCode references a voucher or promotion redeemed by an order.
type AppliedCode struct {
	ID   uuid.UUID
	Code string
}

// Order is the persisted aggregate produced by a successful apply call.
// It is immutable once created.
type Order struct {
	ID             uuid.UUID
	Lines          []discount.Line
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Voucher        *AppliedCode
	// Promotions preserves the order in which codes appeared in the request.
	Promotions []AppliedCode
	CreatedAt  time.Time
}

// RegistryTx is the set of registry operations available inside one
// transaction. Lookups see only non-deleted records and hold a lock on the
// returned row; increments fail when the entity no longer exists or its usage
// limit would be exceeded, aborting the enclosing transaction.
type RegistryTx interface {
	FindVoucherByCode(ctx context.Context, code string) (*voucher.Voucher, error)
	FindPromotionByCode(ctx context.Context, code string) (*promotion.Promotion, error)
	IncrementVoucherUsage(ctx context.Context, id uuid.UUID) error
	IncrementPromotionUsage(ctx context.Context, id uuid.UUID) error
	CreateOrder(ctx context.Context, o *Order) error
}

// Registry provides transactional access to the code registry and order store.
// InTx runs fn inside one atomic transaction: if fn returns an error the
// transaction rolls back and no registry state changes; otherwise it commits.
type Registry interface {
	InTx(ctx context.Context, fn func(tx RegistryTx) error) error
}
