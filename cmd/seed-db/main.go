// Command seed-db runs migrations and loads a set of sample vouchers and
// promotions for local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
	"github.com/ordokit/promo-engine/internal/storage/postgres"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedVouchers(ctx, voucher.NewService(postgres.NewVoucherRepository(pool))); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if err := seedPromotions(ctx, promotion.NewService(postgres.NewPromotionRepository(pool))); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	return nil
}

func seedVouchers(ctx context.Context, svc *voucher.Service) error {
	expiry := time.Now().AddDate(1, 0, 0)
	minOrder := decimal.NewFromInt(50)

	samples := []voucher.CreateParams{
		{
			Code:           "SAVE10",
			DiscountType:   discount.TypePercentage,
			DiscountValue:  decimal.NewFromInt(10),
			ExpirationDate: expiry,
			UsageLimit:     100,
		},
		{
			Code:           "WELCOME5",
			DiscountType:   discount.TypeFixed,
			DiscountValue:  decimal.NewFromInt(5),
			ExpirationDate: expiry,
			UsageLimit:     500,
			MinOrderValue:  &minOrder,
		},
	}

	for _, p := range samples {
		v, err := svc.Create(ctx, p)
		switch {
		case errors.Is(err, voucher.ErrCodeExists):
			slog.Info("voucher already seeded", slog.String("code", p.Code))
		case err != nil:
			return errors.Wrapf(err, "voucher %s", p.Code)
		default:
			slog.Info("seeded voucher", slog.String("code", v.Code), slog.String("id", v.ID.String()))
		}
	}
	return nil
}

func seedPromotions(ctx context.Context, svc *promotion.Service) error {
	expiry := time.Now().AddDate(1, 0, 0)

	samples := []promotion.CreateParams{
		{
			Code:               "ELEC20",
			EligibleCategories: []string{"ELECTRONICS"},
			DiscountType:       discount.TypePercentage,
			DiscountValue:      decimal.NewFromInt(20),
			ExpirationDate:     expiry,
			UsageLimit:         200,
		},
		{
			Code:           "COFFEE2",
			EligibleItems:  []string{"SKU-COFFEE-250"},
			DiscountType:   discount.TypeFixed,
			DiscountValue:  decimal.NewFromInt(2),
			ExpirationDate: expiry,
			UsageLimit:     1000,
		},
	}

	for _, p := range samples {
		promo, err := svc.Create(ctx, p)
		switch {
		case errors.Is(err, promotion.ErrCodeExists):
			slog.Info("promotion already seeded", slog.String("code", p.Code))
		case err != nil:
			return errors.Wrapf(err, "promotion %s", p.Code)
		default:
			slog.Info("seeded promotion", slog.String("code", promo.Code), slog.String("id", promo.ID.String()))
		}
	}
	return nil
}
