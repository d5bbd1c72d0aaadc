package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/pkg/codes"
)

// CreateParams holds the input for creating a voucher. Code is optional; when
// empty a VOUCHER-prefixed code is generated.
type CreateParams struct {
	Code           string
	DiscountType   discount.Type
	DiscountValue  decimal.Decimal
	ExpirationDate time.Time
	UsageLimit     int
	MinOrderValue  *decimal.Decimal
}

// UpdateParams holds a partial update; nil fields keep their current value.
type UpdateParams struct {
	Code           *string
	DiscountType   *discount.Type
	DiscountValue  *decimal.Decimal
	ExpirationDate *time.Time
	UsageLimit     *int
	MinOrderValue  *decimal.Decimal
}

// Service manages the voucher lifecycle outside of order application:
// creation, listing, updates, and soft deletion.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a voucher Service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates the params and persists a new voucher. The code is stored
// uppercase; a generated code is used when none is provided.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Voucher, error) {
	now := s.now()

	code := p.Code
	if code == "" {
		code = codes.Generate("VOUCHER")
	}
	code = discount.NormalizeCode(code)

	if err := validateRule(p.DiscountType, p.DiscountValue, p.ExpirationDate, p.UsageLimit, now); err != nil {
		return nil, err
	}
	if p.MinOrderValue != nil && p.MinOrderValue.IsNegative() {
		return nil, ErrNegativeMinOrderValue
	}

	if existing, err := s.repo.FindByCode(ctx, code); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "check code")
	} else if existing != nil {
		return nil, ErrCodeExists
	}

	v := &Voucher{
		ID:   uuid.New(),
		Code: code,
		Rule: discount.Rule{
			Type:           p.DiscountType,
			Value:          p.DiscountValue,
			ExpirationDate: p.ExpirationDate,
			UsageLimit:     p.UsageLimit,
		},
		MinOrderValue: p.MinOrderValue,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, errors.Wrap(err, "create voucher")
	}
	return v, nil
}

// List returns all non-deleted vouchers.
func (s *Service) List(ctx context.Context) ([]Voucher, error) {
	return s.repo.List(ctx)
}

// ListAvailable returns vouchers currently usable: not expired and with usage
// headroom, ordered by expiration date ascending.
func (s *Service) ListAvailable(ctx context.Context) ([]Voucher, error) {
	return s.repo.ListAvailable(ctx, s.now())
}

// Get returns the voucher with the given id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Voucher, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update to an existing voucher. Changing the code
// re-checks uniqueness against other vouchers; changing the expiration date
// requires it to be in the future.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Voucher, error) {
	v, err := s.repo.GetByID(ctx, id)
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
		v.Code = code
	}
	if p.DiscountType != nil {
		v.Type = *p.DiscountType
	}
	if p.DiscountValue != nil {
		v.Value = *p.DiscountValue
	}
	if p.ExpirationDate != nil {
		v.ExpirationDate = *p.ExpirationDate
	}
	if p.UsageLimit != nil {
		v.UsageLimit = *p.UsageLimit
	}
	if p.MinOrderValue != nil {
		if p.MinOrderValue.IsNegative() {
			return nil, ErrNegativeMinOrderValue
		}
		v.MinOrderValue = p.MinOrderValue
	}

	if err := validateRule(v.Type, v.Value, v.ExpirationDate, v.UsageLimit, now); err != nil {
		return nil, err
	}

	v.UpdatedAt = now
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, errors.Wrap(err, "update voucher")
	}
	return v, nil
}

// Delete soft-deletes the voucher, hiding it from all subsequent lookups.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id, s.now())
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
