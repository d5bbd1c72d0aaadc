package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
)

const promotionColumns = `id, code, eligible_categories, eligible_items, discount_type,
	discount_value, expiration_date, usage_limit, usage_count, created_at, updated_at`

const (
	insertPromotionSQL = `INSERT INTO promotions (id, code, eligible_categories,
		eligible_items, discount_type, discount_value, expiration_date,
		usage_limit, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listPromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE deleted_at IS NULL ORDER BY created_at, code`

	listAvailablePromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE deleted_at IS NULL AND expiration_date > $1 AND usage_count < usage_limit
		ORDER BY expiration_date ASC`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE id = $1 AND deleted_at IS NULL`

	findPromotionByCodeSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE code = $1 AND deleted_at IS NULL`

	updatePromotionSQL = `UPDATE promotions SET code = $2, eligible_categories = $3,
		eligible_items = $4, discount_type = $5, discount_value = $6,
		expiration_date = $7, usage_limit = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL`

	softDeletePromotionSQL = `UPDATE promotions SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// Create inserts a new promotion. Returns promotion.ErrCodeExists when another
// active promotion already uses the code.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	_, err := r.pool.Exec(ctx, insertPromotionSQL,
		p.ID, p.Code, p.EligibleCategories, p.EligibleItems, string(p.Type),
		p.Value, p.ExpirationDate, p.UsageLimit, p.UsageCount, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return promotion.ErrCodeExists
		}
		return fmt.Errorf("creating promotion %q: %w", p.Code, err)
	}
	return nil
}

// List returns all non-deleted promotions.
func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// ListAvailable returns promotions usable at the given time, ordered by
// expiration date ascending.
func (r *PromotionRepository) ListAvailable(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listAvailablePromotionsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing available promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// GetByID returns the active promotion with the given id, or promotion.ErrNotFound.
func (r *PromotionRepository) GetByID(ctx context.Context, id uuid.UUID) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, getPromotionByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %s: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %s: %w", id, err)
	}
	return &p, nil
}

// FindByCode returns the active promotion with the given code, or
// promotion.ErrNotFound. Codes are stored uppercase; callers pass them normalized.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, findPromotionByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promotion by code %q: %w", code, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("finding promotion by code %q: %w", code, err)
	}
	return &p, nil
}

// Update rewrites the mutable fields of an existing promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	tag, err := r.pool.Exec(ctx, updatePromotionSQL,
		p.ID, p.Code, p.EligibleCategories, p.EligibleItems, string(p.Type),
		p.Value, p.ExpirationDate, p.UsageLimit, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return promotion.ErrCodeExists
		}
		return fmt.Errorf("updating promotion %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// SoftDelete marks the promotion deleted, hiding it from all lookups.
func (r *PromotionRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, softDeletePromotionSQL, id, at)
	if err != nil {
		return fmt.Errorf("deleting promotion %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p            promotion.Promotion
		discountType string
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.EligibleCategories, &p.EligibleItems, &discountType,
		&p.Value, &p.ExpirationDate, &p.UsageLimit, &p.UsageCount, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Type = discount.Type(discountType)
	return p, err
}
