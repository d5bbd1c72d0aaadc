package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/pkg/codes"
)

// CreateParams holds the input for creating a promotion. Code is optional;
// when empty a PROMO-prefixed code is generated.
type CreateParams struct {
	Code               string
	EligibleCategories []string
	EligibleItems      []string
	DiscountType       discount.Type
	DiscountValue      decimal.Decimal
	ExpirationDate     time.Time
	UsageLimit         int
}

// UpdateParams holds a partial update; nil fields keep their current value.
// Eligibility slices replace the stored sets when non-nil.
type UpdateParams struct {
	Code               *string
	EligibleCategories []string
	EligibleItems      []string
	DiscountType       *discount.Type
	DiscountValue      *decimal.Decimal
	ExpirationDate     *time.Time
	UsageLimit         *int
}

// Service manages the promotion lifecycle outside of order application.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a promotion Service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates the params and persists a new promotion. Eligibility sets
// are normalized uppercase-trimmed; at least one must be non-empty.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Promotion, error) {
	now := s.now()

	categories := normalizeSet(p.EligibleCategories)
	items := normalizeSet(p.EligibleItems)
	if len(categories) == 0 && len(items) == 0 {
		return nil, ErrNoEligibility
	}
	if err := validateRule(p.DiscountType, p.DiscountValue, p.ExpirationDate, p.UsageLimit, now); err != nil {
		return nil, err
	}

	code := p.Code
	if code == "" {
		code = codes.Generate("PROMO")
	}
	code = discount.NormalizeCode(code)

	if existing, err := s.repo.FindByCode(ctx, code); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "check code")
	} else if existing != nil {
		return nil, ErrCodeExists
	}

	promo := &Promotion{
		ID:   uuid.New(),
		Code: code,
		Rule: discount.Rule{
			Type:           p.DiscountType,
			Value:          p.DiscountValue,
			ExpirationDate: p.ExpirationDate,
			UsageLimit:     p.UsageLimit,
		},
		EligibleCategories: categories,
		EligibleItems:      items,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, errors.Wrap(err, "create promotion")
	}
	return promo, nil
}

// List returns all non-deleted promotions.
func (s *Service) List(ctx context.Context) ([]Promotion, error) {
	return s.repo.List(ctx)
}

// ListAvailable returns promotions currently usable: not expired and with
// usage headroom, ordered by expiration date ascending.
func (s *Service) ListAvailable(ctx context.Context) ([]Promotion, error) {
	return s.repo.ListAvailable(ctx, s.now())
}

// Get returns the promotion with the given id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update to an existing promotion. The resulting
// record must still carry at least one eligibility set and a valid rule.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Promotion, error) {
	promo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if p.Code != nil {
		code := discount.NormalizeCode(*p.Code)
		existing, err := s.repo.FindByCode(ctx, code)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "check code")
		}
		if existing != nil && existing.ID != id {
			return nil, ErrCodeExists
		}
		promo.Code = code
	}
	if p.EligibleCategories != nil {
		promo.EligibleCategories = normalizeSet(p.EligibleCategories)
	}
	if p.EligibleItems != nil {
		promo.EligibleItems = normalizeSet(p.EligibleItems)
	}
	if p.DiscountType != nil {
		promo.Type = *p.DiscountType
	}
	if p.DiscountValue != nil {
		promo.Value = *p.DiscountValue
	}
	if p.ExpirationDate != nil {
		promo.ExpirationDate = *p.ExpirationDate
	}
	if p.UsageLimit != nil {
		promo.UsageLimit = *p.UsageLimit
	}

	if len(promo.EligibleCategories) == 0 && len(promo.EligibleItems) == 0 {
		return nil, ErrNoEligibility
	}
	if err := validateRule(promo.Type, promo.Value, promo.ExpirationDate, promo.UsageLimit, now); err != nil {
		return nil, err
	}

	promo.UpdatedAt = now
	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, errors.Wrap(err, "update promotion")
	}
	return promo, nil
}

// Delete soft-deletes the promotion, hiding it from all subsequent lookups.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id, s.now())
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		n := discount.NormalizeCode(v)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func validateRule(t discount.Type, value decimal.Decimal, expiration time.Time, usageLimit int, now time.Time) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	if !value.IsPositive() {
		return ErrNonPositiveValue
	}
	if !expiration.After(now) {
		return ErrExpirationNotFuture
	}
	if usageLimit <= 0 {
		return ErrNonPositiveUsageLimit
	}
	return nil
}
