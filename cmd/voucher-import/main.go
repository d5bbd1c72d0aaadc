// Command voucher-import bulk-loads voucher codes from gzipped code lists,
// one code per line. Files are scanned concurrently; a bloom filter drops
// duplicate codes across files without holding every code in memory. The
// filter's false positive rate (0.1%) means a tiny fraction of valid codes
// may be skipped, which is acceptable for bulk campaign imports.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/voucher"
	"github.com/ordokit/promo-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 64
	codeBuffer    = 4096
)

func main() {
	var (
		dataDir       string
		pattern       string
		databaseURL   string
		discountType  string
		discountValue float64
		usageLimit    int
		validFor      time.Duration
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing gzipped code lists")
	flag.StringVar(&pattern, "pattern", "vouchers*.gz", "glob pattern for code list files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&discountType, "discount-type", "PERCENTAGE", "discount type for imported vouchers (PERCENTAGE or FIXED)")
	flag.Float64Var(&discountValue, "discount-value", 10, "discount value for imported vouchers")
	flag.IntVar(&usageLimit, "usage-limit", 1, "usage limit per imported voucher")
	flag.DurationVar(&validFor, "valid-for", 365*24*time.Hour, "how long imported vouchers stay valid")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	rule := discount.Rule{
		Type:           discount.Type(discountType),
		Value:          decimal.NewFromFloat(discountValue),
		ExpirationDate: time.Now().Add(validFor),
		UsageLimit:     usageLimit,
	}
	if !rule.Type.Valid() {
		slog.Error("invalid discount type", slog.String("type", discountType))
		os.Exit(1)
	}
	if !rule.Value.IsPositive() || rule.UsageLimit <= 0 {
		slog.Error("discount value and usage limit must be positive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, rule); err != nil {
		slog.Error("voucher import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher import completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, rule discount.Rule) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "glob code lists")
	}
	if len(files) == 0 {
		return errors.Errorf("no code lists matching %s in %s", pattern, dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewVoucherRepository(pool)

	// Producers stream codes from each file; a single consumer owns the
	// bloom filter and the database writes.
	codes := make(chan string, codeBuffer)

	g, ctx := errgroup.WithContext(ctx)

	scanners, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		scanners.Go(scanFile(ctx, i, f, codes))
	}
	g.Go(func() error {
		defer close(codes)
		return scanners.Wait()
	})

	g.Go(func() error {
		return importCodes(ctx, repo, rule, codes)
	})

	return g.Wait()
}

// scanFile streams one gzipped code list into out, normalizing and dropping
// codes outside the accepted length range.
func scanFile(ctx context.Context, idx int, path string, out chan<- string) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			code := discount.NormalizeCode(scanner.Text())
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				continue
			}

			select {
			case out <- code:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("scan progress", slog.Int("file", idx+1), slog.Uint64("codes", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("scan complete", slog.Int("file", idx+1), slog.Uint64("total_codes", count))
		return nil
	}
}

// importCodes inserts one voucher per unique code. The bloom filter catches
// duplicates within this run; the unique index on the code column catches
// codes already present in the database.
func importCodes(ctx context.Context, repo *postgres.VoucherRepository, rule discount.Rule, codes <-chan string) error {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var imported, skipped int
	for code := range codes {
		if filter.TestAndAddString(code) {
			skipped++
			continue
		}

		now := time.Now()
		v := &voucher.Voucher{
			ID:        uuid.New(),
			Code:      code,
			Rule:      rule,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := repo.Create(ctx, v)
		switch {
		case errors.Is(err, voucher.ErrCodeExists):
			skipped++
			continue
		case err != nil:
			return errors.Wrapf(err, "import voucher %s", code)
		}

		imported++
		if imported%100_000 == 0 {
			slog.Info("import progress", slog.Int("imported", imported), slog.Int("skipped", skipped))
		}
	}

	slog.Info("import finished", slog.Int("imported", imported), slog.Int("skipped", skipped))
	return nil
}
