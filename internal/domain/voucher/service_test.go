package voucher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokit/promo-engine/internal/domain/discount"
)

type fakeRepo struct {
	byID map[uuid.UUID]*Voucher
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[uuid.UUID]*Voucher)}
}

func (f *fakeRepo) Create(_ context.Context, v *Voucher) error {
	cp := *v
	f.byID[v.ID] = &cp
	return nil
}

func (f *fakeRepo) List(_ context.Context) ([]Voucher, error) {
	out := make([]Voucher, 0, len(f.byID))
	for _, v := range f.byID {
		if v.DeletedAt == nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAvailable(_ context.Context, now time.Time) ([]Voucher, error) {
	var out []Voucher
	for _, v := range f.byID {
		if v.DeletedAt == nil && !v.Expired(now) && !v.Exhausted() {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Voucher, error) {
	v, ok := f.byID[id]
	if !ok || v.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeRepo) FindByCode(_ context.Context, code string) (*Voucher, error) {
	for _, v := range f.byID {
		if v.DeletedAt == nil && v.Code == code {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, v *Voucher) error {
	if _, ok := f.byID[v.ID]; !ok {
		return ErrNotFound
	}
	cp := *v
	f.byID[v.ID] = &cp
	return nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	v, ok := f.byID[id]
	if !ok || v.DeletedAt != nil {
		return ErrNotFound
	}
	v.DeletedAt = &at
	return nil
}

func newTestService(repo Repository, now time.Time) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return now }
	return s
}

func validCreateParams(expiry time.Time) CreateParams {
	return CreateParams{
		Code:           "save10",
		DiscountType:   discount.TypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		ExpirationDate: expiry,
		UsageLimit:     100,
	}
}

func TestServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)

	t.Run("stores uppercase code", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), now)

		v, err := svc.Create(context.Background(), validCreateParams(future))
		require.NoError(t, err)
		assert.Equal(t, "SAVE10", v.Code)
		assert.Equal(t, now, v.CreatedAt)
		assert.Zero(t, v.UsageCount)
	})

	t.Run("generates code when none given", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), now)

		p := validCreateParams(future)
		p.Code = ""
		v, err := svc.Create(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(v.Code, "VOUCHER-"), "got %s", v.Code)
		assert.Len(t, v.Code, len("VOUCHER-")+6)
	})

	t.Run("rejects duplicate code", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), now)

		_, err := svc.Create(context.Background(), validCreateParams(future))
		require.NoError(t, err)

		p := validCreateParams(future)
		p.Code = " Save10 "
		_, err = svc.Create(context.Background(), p)
		assert.ErrorIs(t, err, ErrCodeExists)
	})

	t.Run("validation failures", func(t *testing.T) {
		negative := decimal.NewFromInt(-1)

		tests := []struct {
			name    string
			mutate  func(*CreateParams)
			wantErr error
		}{
			{"expiration in the past", func(p *CreateParams) { p.ExpirationDate = now.Add(-time.Hour) }, ErrExpirationNotFuture},
			{"expiration exactly now", func(p *CreateParams) { p.ExpirationDate = now }, ErrExpirationNotFuture},
			{"zero discount value", func(p *CreateParams) { p.DiscountValue = decimal.Zero }, ErrNonPositiveValue},
			{"unknown discount type", func(p *CreateParams) { p.DiscountType = "BOGO" }, ErrInvalidType},
			{"zero usage limit", func(p *CreateParams) { p.UsageLimit = 0 }, ErrNonPositiveUsageLimit},
			{"negative min order value", func(p *CreateParams) { p.MinOrderValue = &negative }, ErrNegativeMinOrderValue},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := newTestService(newFakeRepo(), now)
				p := validCreateParams(future)
				tt.mutate(&p)
				_, err := svc.Create(context.Background(), p)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})
}

func TestServiceUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	later := now.Add(time.Hour)

	setup := func(t *testing.T) (*Service, *Voucher) {
		t.Helper()
		svc := newTestService(newFakeRepo(), now)
		v, err := svc.Create(context.Background(), validCreateParams(future))
		require.NoError(t, err)
		svc.now = func() time.Time { return later }
		return svc, v
	}

	t.Run("partial update keeps other fields", func(t *testing.T) {
		svc, v := setup(t)

		newValue := decimal.NewFromInt(25)
		updated, err := svc.Update(context.Background(), v.ID, UpdateParams{DiscountValue: &newValue})
		require.NoError(t, err)

		assert.True(t, newValue.Equal(updated.Value))
		assert.Equal(t, v.Code, updated.Code)
		assert.Equal(t, v.UsageLimit, updated.UsageLimit)
		assert.Equal(t, later, updated.UpdatedAt)
	})

	t.Run("code change to own code is allowed", func(t *testing.T) {
		svc, v := setup(t)

		code := "save10"
		updated, err := svc.Update(context.Background(), v.ID, UpdateParams{Code: &code})
		require.NoError(t, err)
		assert.Equal(t, "SAVE10", updated.Code)
	})

	t.Run("code collision with another voucher", func(t *testing.T) {
		svc, v := setup(t)

		other := validCreateParams(future)
		other.Code = "OTHER5"
		_, err := svc.Create(context.Background(), other)
		require.NoError(t, err)

		code := "other5"
		_, err = svc.Update(context.Background(), v.ID, UpdateParams{Code: &code})
		assert.ErrorIs(t, err, ErrCodeExists)
	})

	t.Run("expiration must stay in the future", func(t *testing.T) {
		svc, v := setup(t)

		past := now.Add(-time.Hour)
		_, err := svc.Update(context.Background(), v.ID, UpdateParams{ExpirationDate: &past})
		assert.ErrorIs(t, err, ErrExpirationNotFuture)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _ := setup(t)

		_, err := svc.Update(context.Background(), uuid.New(), UpdateParams{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceDelete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(newFakeRepo(), now)

	v, err := svc.Create(context.Background(), validCreateParams(now.Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), v.ID))

	_, err = svc.Get(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), v.ID), ErrNotFound)
}

func TestServiceListAvailable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc := newTestService(repo, now)

	usable, err := svc.Create(context.Background(), validCreateParams(now.Add(time.Hour)))
	require.NoError(t, err)

	expired := validCreateParams(now.Add(time.Minute))
	expired.Code = "GONE"
	_, err = svc.Create(context.Background(), expired)
	require.NoError(t, err)

	// Advance past the short-lived voucher's expiry.
	svc.now = func() time.Time { return now.Add(30 * time.Minute) }

	available, err := svc.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, usable.Code, available[0].Code)
}
