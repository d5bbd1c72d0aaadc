package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordokit/promo-engine/internal/domain/order"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

const (
	lockVoucherByCodeSQL = `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE code = $1 AND deleted_at IS NULL FOR UPDATE`

	lockPromotionByCodeSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE code = $1 AND deleted_at IS NULL FOR UPDATE`

	incrementVoucherUsageSQL = `UPDATE vouchers SET usage_count = usage_count + 1
		WHERE id = $1 AND deleted_at IS NULL AND usage_count < usage_limit`

	incrementPromotionUsageSQL = `UPDATE promotions SET usage_count = usage_count + 1
		WHERE id = $1 AND deleted_at IS NULL AND usage_count < usage_limit`

	insertOrderSQL = `INSERT INTO orders (id, subtotal, discount_amount, final_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertOrderLineSQL = `INSERT INTO order_lines (id, order_id, position, product_id, category, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertOrderVoucherSQL = `INSERT INTO order_vouchers (order_id, voucher_id)
		VALUES ($1, $2)`

	insertOrderPromotionSQL = `INSERT INTO order_promotions (order_id, promotion_id, position)
		VALUES ($1, $2, $3)`
)

var _ order.Registry = (*Registry)(nil)

// Registry implements order.Registry on top of PostgreSQL transactions.
// Code lookups inside a transaction take row locks so that concurrent
// applications of the same code serialize on the usage counter.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry returns a Registry that opens transactions on the given pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// InTx runs fn inside a single transaction. The transaction commits only
// when fn returns nil; any error rolls back every staged write.
func (r *Registry) InTx(ctx context.Context, fn func(tx order.RegistryTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&registryTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type registryTx struct {
	tx pgx.Tx
}

func (t *registryTx) FindVoucherByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := t.tx.Query(ctx, lockVoucherByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("locking voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("locking voucher %q: %w", code, err)
	}
	return &v, nil
}

func (t *registryTx) FindPromotionByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	rows, err := t.tx.Query(ctx, lockPromotionByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("locking promotion %q: %w", code, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("locking promotion %q: %w", code, err)
	}
	return &p, nil
}

// IncrementVoucherUsage bumps the usage counter. The update carries a
// usage_count < usage_limit guard so a concurrent transaction that consumed
// the last slot surfaces as voucher.ErrUsageLimitReached rather than an
// overshoot.
func (t *registryTx) IncrementVoucherUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, incrementVoucherUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for voucher %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrUsageLimitReached
	}
	return nil
}

func (t *registryTx) IncrementPromotionUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, incrementPromotionUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for promotion %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrUsageLimitReached
	}
	return nil
}

// CreateOrder persists the order aggregate: header row, lines in input
// order, and the applied voucher and promotion codes.
func (t *registryTx) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Subtotal, o.DiscountAmount, o.FinalAmount, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %s: %w", o.ID, err)
	}
	for i, line := range o.Lines {
		_, err := t.tx.Exec(ctx, insertOrderLineSQL,
			uuid.New(), o.ID, i, line.ProductID, line.Category, line.UnitPrice, line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("creating order line %d for order %s: %w", i, o.ID, err)
		}
	}
	if o.Voucher != nil {
		_, err := t.tx.Exec(ctx, insertOrderVoucherSQL, o.ID, o.Voucher.ID)
		if err != nil {
			return fmt.Errorf("linking voucher %q to order %s: %w", o.Voucher.Code, o.ID, err)
		}
	}
	for i, p := range o.Promotions {
		_, err := t.tx.Exec(ctx, insertOrderPromotionSQL, o.ID, p.ID, i)
		if err != nil {
			return fmt.Errorf("linking promotion %q to order %s: %w", p.Code, o.ID, err)
		}
	}
	return nil
}
