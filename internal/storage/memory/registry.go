package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/ordokit/promo-engine/internal/domain/order"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

// Registry implements order.Registry on a Store. Transactions hold the store
// mutex for their whole duration, so concurrent apply calls observe usage
// counters one at a time, exactly like row-locked rows in PostgreSQL.
type Registry struct {
	s *Store
}

var _ order.Registry = (*Registry)(nil)

// InTx runs fn against a staged view of the store. Usage increments and order
// writes accumulate in the transaction and are applied only when fn returns
// nil; on error the staged changes are discarded.
func (r *Registry) InTx(_ context.Context, fn func(tx order.RegistryTx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &registryTx{
		s:           r.s,
		voucherIncs: make(map[uuid.UUID]int),
		promoIncs:   make(map[uuid.UUID]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type registryTx struct {
	s           *Store
	voucherIncs map[uuid.UUID]int
	promoIncs   map[uuid.UUID]int
	orders      []*order.Order
}

var _ order.RegistryTx = (*registryTx)(nil)

// FindVoucherByCode returns the active voucher with the given code, with any
// increments staged in this transaction already reflected in its usage count.
func (t *registryTx) FindVoucherByCode(_ context.Context, code string) (*voucher.Voucher, error) {
	v := t.s.findVoucherByCode(code)
	if v == nil {
		return nil, voucher.ErrNotFound
	}
	out := cloneVoucher(v)
	out.UsageCount += t.voucherIncs[v.ID]
	return out, nil
}

func (t *registryTx) FindPromotionByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	p := t.s.findPromotionByCode(code)
	if p == nil {
		return nil, promotion.ErrNotFound
	}
	out := clonePromotion(p)
	out.UsageCount += t.promoIncs[p.ID]
	return out, nil
}

func (t *registryTx) IncrementVoucherUsage(_ context.Context, id uuid.UUID) error {
	v, ok := t.s.vouchers[id]
	if !ok || v.DeletedAt != nil {
		return voucher.ErrNotFound
	}
	if v.UsageCount+t.voucherIncs[id] >= v.UsageLimit {
		return voucher.ErrUsageLimitReached
	}
	t.voucherIncs[id]++
	return nil
}

func (t *registryTx) IncrementPromotionUsage(_ context.Context, id uuid.UUID) error {
	p, ok := t.s.promotions[id]
	if !ok || p.DeletedAt != nil {
		return promotion.ErrNotFound
	}
	if p.UsageCount+t.promoIncs[id] >= p.UsageLimit {
		return promotion.ErrUsageLimitReached
	}
	t.promoIncs[id]++
	return nil
}

func (t *registryTx) CreateOrder(_ context.Context, o *order.Order) error {
	t.orders = append(t.orders, cloneOrder(o))
	return nil
}

// commit applies the staged changes. Caller holds the store mutex.
func (t *registryTx) commit() {
	for id, n := range t.voucherIncs {
		t.s.vouchers[id].UsageCount += n
	}
	for id, n := range t.promoIncs {
		t.s.promotions[id].UsageCount += n
	}
	for _, o := range t.orders {
		t.s.orders[o.ID] = o
	}
}
