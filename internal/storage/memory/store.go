// Package memory provides in-memory implementations of the voucher and
// promotion repositories and the order registry. A single mutex serializes
// registry transactions, giving the same effective isolation as the row
// locking used by the PostgreSQL implementation. Intended for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordokit/promo-engine/internal/domain/order"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

// Store holds all in-memory state. Create repository and registry views with
// Vouchers, Promotions, and Registry.
type Store struct {
	mu         sync.Mutex
	vouchers   map[uuid.UUID]*voucher.Voucher
	promotions map[uuid.UUID]*promotion.Promotion
	orders     map[uuid.UUID]*order.Order
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		vouchers:   make(map[uuid.UUID]*voucher.Voucher),
		promotions: make(map[uuid.UUID]*promotion.Promotion),
		orders:     make(map[uuid.UUID]*order.Order),
	}
}

// Vouchers returns a voucher.Repository view of the store.
func (s *Store) Vouchers() *VoucherRepository {
	return &VoucherRepository{s: s}
}

// Promotions returns a promotion.Repository view of the store.
func (s *Store) Promotions() *PromotionRepository {
	return &PromotionRepository{s: s}
}

// Registry returns an order.Registry view of the store.
func (s *Store) Registry() *Registry {
	return &Registry{s: s}
}

// Orders returns a snapshot of all persisted orders.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Voucher returns a copy of the voucher with the given id, including deleted
// ones, for test assertions.
func (s *Store) Voucher(id uuid.UUID) (voucher.Voucher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vouchers[id]
	if !ok {
		return voucher.Voucher{}, false
	}
	return *cloneVoucher(v), true
}

// Promotion returns a copy of the promotion with the given id, including
// deleted ones, for test assertions.
func (s *Store) Promotion(id uuid.UUID) (promotion.Promotion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promotions[id]
	if !ok {
		return promotion.Promotion{}, false
	}
	return *clonePromotion(p), true
}

func cloneVoucher(v *voucher.Voucher) *voucher.Voucher {
	out := *v
	if v.MinOrderValue != nil {
		m := *v.MinOrderValue
		out.MinOrderValue = &m
	}
	if v.DeletedAt != nil {
		d := *v.DeletedAt
		out.DeletedAt = &d
	}
	return &out
}

func clonePromotion(p *promotion.Promotion) *promotion.Promotion {
	out := *p
	out.EligibleCategories = append([]string(nil), p.EligibleCategories...)
	out.EligibleItems = append([]string(nil), p.EligibleItems...)
	if p.DeletedAt != nil {
		d := *p.DeletedAt
		out.DeletedAt = &d
	}
	return &out
}

func cloneOrder(o *order.Order) *order.Order {
	out := *o
	out.Lines = append(out.Lines[:0:0], o.Lines...)
	out.Promotions = append(out.Promotions[:0:0], o.Promotions...)
	if o.Voucher != nil {
		v := *o.Voucher
		out.Voucher = &v
	}
	return &out
}

// VoucherRepository implements voucher.Repository on a Store.
type VoucherRepository struct {
	s *Store
}

var _ voucher.Repository = (*VoucherRepository)(nil)

func (r *VoucherRepository) Create(_ context.Context, v *voucher.Voucher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.vouchers {
		if existing.DeletedAt == nil && existing.Code == v.Code {
			return voucher.ErrCodeExists
		}
	}
	r.s.vouchers[v.ID] = cloneVoucher(v)
	return nil
}

func (r *VoucherRepository) List(_ context.Context) ([]voucher.Voucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]voucher.Voucher, 0, len(r.s.vouchers))
	for _, v := range r.s.vouchers {
		if v.DeletedAt == nil {
			out = append(out, *cloneVoucher(v))
		}
	}
	sortVouchers(out)
	return out, nil
}

func (r *VoucherRepository) ListAvailable(_ context.Context, now time.Time) ([]voucher.Voucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]voucher.Voucher, 0, len(r.s.vouchers))
	for _, v := range r.s.vouchers {
		if v.DeletedAt == nil && !v.Expired(now) && !v.Exhausted() {
			out = append(out, *cloneVoucher(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(out[j].ExpirationDate)
	})
	return out, nil
}

func (r *VoucherRepository) GetByID(_ context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.vouchers[id]
	if !ok || v.DeletedAt != nil {
		return nil, voucher.ErrNotFound
	}
	return cloneVoucher(v), nil
}

func (r *VoucherRepository) FindByCode(_ context.Context, code string) (*voucher.Voucher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if v := r.s.findVoucherByCode(code); v != nil {
		return cloneVoucher(v), nil
	}
	return nil, voucher.ErrNotFound
}

func (r *VoucherRepository) Update(_ context.Context, v *voucher.Voucher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.vouchers[v.ID]
	if !ok || current.DeletedAt != nil {
		return voucher.ErrNotFound
	}
	for _, other := range r.s.vouchers {
		if other.ID != v.ID && other.DeletedAt == nil && other.Code == v.Code {
			return voucher.ErrCodeExists
		}
	}
	r.s.vouchers[v.ID] = cloneVoucher(v)
	return nil
}

func (r *VoucherRepository) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.vouchers[id]
	if !ok || v.DeletedAt != nil {
		return voucher.ErrNotFound
	}
	v.DeletedAt = &at
	return nil
}

// PromotionRepository implements promotion.Repository on a Store.
type PromotionRepository struct {
	s *Store
}

var _ promotion.Repository = (*PromotionRepository)(nil)

func (r *PromotionRepository) Create(_ context.Context, p *promotion.Promotion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.promotions {
		if existing.DeletedAt == nil && existing.Code == p.Code {
			return promotion.ErrCodeExists
		}
	}
	r.s.promotions[p.ID] = clonePromotion(p)
	return nil
}

func (r *PromotionRepository) List(_ context.Context) ([]promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]promotion.Promotion, 0, len(r.s.promotions))
	for _, p := range r.s.promotions {
		if p.DeletedAt == nil {
			out = append(out, *clonePromotion(p))
		}
	}
	sortPromotions(out)
	return out, nil
}

func (r *PromotionRepository) ListAvailable(_ context.Context, now time.Time) ([]promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]promotion.Promotion, 0, len(r.s.promotions))
	for _, p := range r.s.promotions {
		if p.DeletedAt == nil && !p.Expired(now) && !p.Exhausted() {
			out = append(out, *clonePromotion(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(out[j].ExpirationDate)
	})
	return out, nil
}

func (r *PromotionRepository) GetByID(_ context.Context, id uuid.UUID) (*promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.promotions[id]
	if !ok || p.DeletedAt != nil {
		return nil, promotion.ErrNotFound
	}
	return clonePromotion(p), nil
}

func (r *PromotionRepository) FindByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p := r.s.findPromotionByCode(code); p != nil {
		return clonePromotion(p), nil
	}
	return nil, promotion.ErrNotFound
}

func (r *PromotionRepository) Update(_ context.Context, p *promotion.Promotion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.promotions[p.ID]
	if !ok || current.DeletedAt != nil {
		return promotion.ErrNotFound
	}
	for _, other := range r.s.promotions {
		if other.ID != p.ID && other.DeletedAt == nil && other.Code == p.Code {
			return promotion.ErrCodeExists
		}
	}
	r.s.promotions[p.ID] = clonePromotion(p)
	return nil
}

func (r *PromotionRepository) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.promotions[id]
	if !ok || p.DeletedAt != nil {
		return promotion.ErrNotFound
	}
	p.DeletedAt = &at
	return nil
}

func (s *Store) findVoucherByCode(code string) *voucher.Voucher {
	for _, v := range s.vouchers {
		if v.DeletedAt == nil && v.Code == code {
			return v
		}
	}
	return nil
}

func (s *Store) findPromotionByCode(code string) *promotion.Promotion {
	for _, p := range s.promotions {
		if p.DeletedAt == nil && p.Code == code {
			return p
		}
	}
	return nil
}

func sortVouchers(vs []voucher.Voucher) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].CreatedAt.Equal(vs[j].CreatedAt) {
			return vs[i].Code < vs[j].Code
		}
		return vs[i].CreatedAt.Before(vs[j].CreatedAt)
	})
}

func sortPromotions(ps []promotion.Promotion) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].Code < ps[j].Code
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}
