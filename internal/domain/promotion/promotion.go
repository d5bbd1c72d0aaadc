// Package promotion defines the promotion entity, its eligibility rules, and
// the persistence contract for promotion records.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
)

var (
	// ErrNotFound is returned when no active promotion matches a code or id.
	ErrNotFound = errors.New("promotion not found")
	// ErrExpired is returned when a promotion is past its expiration date.
	ErrExpired = errors.New("promotion has expired")
	// ErrUsageLimitReached is returned when a promotion has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
	// ErrNotApplicable is returned when none of the order lines match the
	// promotion's eligible categories or items.
	ErrNotApplicable = errors.New("promotion is not applicable to order items")
	// ErrCodeExists is returned when creating or updating a promotion with a
	// code already taken by another promotion.
	ErrCodeExists = errors.New("promotion code already exists")
	// ErrNoEligibility is returned when a promotion is created or updated with
	// neither eligible categories nor eligible items.
	ErrNoEligibility = errors.New("at least one eligible category or item is required")
	// ErrExpirationNotFuture is returned when a promotion is created or updated
	// with an expiration date that is not in the future.
	ErrExpirationNotFuture = errors.New("expiration date must be in the future")
	// ErrNonPositiveValue is returned when the discount value is zero or negative.
	ErrNonPositiveValue = errors.New("discount value must be greater than zero")
	// ErrInvalidType is returned for an unknown discount type.
	ErrInvalidType = errors.New("invalid discount type")
	// ErrNonPositiveUsageLimit is returned when the usage limit is zero or negative.
	ErrNonPositiveUsageLimit = errors.New("usage limit must be greater than zero")
)

// Promotion is a discount code restricted to a subset of order lines: those
// whose category or product identifier matches the promotion's eligibility
// sets. Its discount applies to the eligible base, not the full subtotal.
type Promotion struct {
	ID   uuid.UUID
	Code string
	discount.Rule
	// EligibleCategories and EligibleItems are stored uppercase-trimmed.
	// At least one of the two is non-empty.
	EligibleCategories []string
	EligibleItems      []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// Evaluate decides whether the promotion may be applied at the given time.
// The first failing check wins: expired, then usage limit reached.
// Line eligibility is checked separately via EligibleBase.
func (p *Promotion) Evaluate(now time.Time) error {
	if p.Expired(now) {
		return ErrExpired
	}
	if p.Exhausted() {
		return ErrUsageLimitReached
	}
	return nil
}

// EligibleBase sums the totals of lines whose normalized category or product
// identifier appears in the promotion's eligibility sets. A line counts once
// even when it matches both sets. Normalization of the line fields happens
// here; callers pass lines as received.
func (p *Promotion) EligibleBase(lines []discount.Line) decimal.Decimal {
	categories := toSet(p.EligibleCategories)
	items := toSet(p.EligibleItems)

	base := decimal.Zero
	for _, l := range lines {
		_, byCategory := categories[discount.NormalizeCode(l.Category)]
		_, byItem := items[discount.NormalizeCode(l.ProductID)]
		if byCategory || byItem {
			base = base.Add(l.Total())
		}
	}
	return base
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[discount.NormalizeCode(v)] = struct{}{}
	}
	return set
}

// Repository defines persistence operations for promotion records. All lookups
// are scoped to non-deleted promotions.
type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	List(ctx context.Context) ([]Promotion, error)
	// ListAvailable returns promotions that are not expired at the given time
	// and still have usage headroom, ordered by expiration date ascending.
	ListAvailable(ctx context.Context, now time.Time) ([]Promotion, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}
