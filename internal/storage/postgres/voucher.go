package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
)

const voucherColumns = `id, code, discount_type, discount_value, expiration_date,
	usage_limit, usage_count, min_order_value, created_at, updated_at`

const (
	insertVoucherSQL = `INSERT INTO vouchers (id, code, discount_type, discount_value,
		expiration_date, usage_limit, usage_count, min_order_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listVouchersSQL = `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE deleted_at IS NULL ORDER BY created_at, code`

	listAvailableVouchersSQL = `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE deleted_at IS NULL AND expiration_date > $1 AND usage_count < usage_limit
		ORDER BY expiration_date ASC`

	getVoucherByIDSQL = `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE id = $1 AND deleted_at IS NULL`

	findVoucherByCodeSQL = `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE code = $1 AND deleted_at IS NULL`

	updateVoucherSQL = `UPDATE vouchers SET code = $2, discount_type = $3,
		discount_value = $4, expiration_date = $5, usage_limit = $6,
		min_order_value = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL`

	softDeleteVoucherSQL = `UPDATE vouchers SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// Create inserts a new voucher. Returns voucher.ErrCodeExists when another
// active voucher already uses the code.
func (r *VoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	_, err := r.pool.Exec(ctx, insertVoucherSQL,
		v.ID, v.Code, string(v.Type), v.Value, v.ExpirationDate,
		v.UsageLimit, v.UsageCount, v.MinOrderValue, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return voucher.ErrCodeExists
		}
		return fmt.Errorf("creating voucher %q: %w", v.Code, err)
	}
	return nil
}

// List returns all non-deleted vouchers.
func (r *VoucherRepository) List(ctx context.Context) ([]voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, listVouchersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	return pgx.CollectRows(rows, scanVoucher)
}

// ListAvailable returns vouchers usable at the given time, ordered by
// expiration date ascending.
func (r *VoucherRepository) ListAvailable(ctx context.Context, now time.Time) ([]voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, listAvailableVouchersSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing available vouchers: %w", err)
	}
	return pgx.CollectRows(rows, scanVoucher)
}

// GetByID returns the active voucher with the given id, or voucher.ErrNotFound.
func (r *VoucherRepository) GetByID(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, getVoucherByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting voucher %s: %w", id, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("getting voucher %s: %w", id, err)
	}
	return &v, nil
}

// FindByCode returns the active voucher with the given code, or
// voucher.ErrNotFound. Codes are stored uppercase; callers pass them normalized.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, findVoucherByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}
	return &v, nil
}

// Update rewrites the mutable fields of an existing voucher.
func (r *VoucherRepository) Update(ctx context.Context, v *voucher.Voucher) error {
	tag, err := r.pool.Exec(ctx, updateVoucherSQL,
		v.ID, v.Code, string(v.Type), v.Value, v.ExpirationDate,
		v.UsageLimit, v.MinOrderValue, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return voucher.ErrCodeExists
		}
		return fmt.Errorf("updating voucher %s: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrNotFound
	}
	return nil
}

// SoftDelete marks the voucher deleted, hiding it from all lookups.
func (r *VoucherRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, softDeleteVoucherSQL, id, at)
	if err != nil {
		return fmt.Errorf("deleting voucher %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrNotFound
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v            voucher.Voucher
		discountType string
	)
	err := row.Scan(
		&v.ID, &v.Code, &discountType, &v.Value, &v.ExpirationDate,
		&v.UsageLimit, &v.UsageCount, &v.MinOrderValue, &v.CreatedAt, &v.UpdatedAt,
	)
	v.Type = discount.Type(discountType)
	return v, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
