package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordokit/promo-engine/internal/domain/discount"
	"github.com/ordokit/promo-engine/internal/domain/promotion"
)

// ApplyRequest holds the input for applying discounts to an order: the raw
// lines, at most one voucher code, and zero or more promotion codes.
type ApplyRequest struct {
	Lines          []discount.Line
	VoucherCode    string
	PromotionCodes []string
}

// ApplyResult is the snapshot returned after a successful apply call.
type ApplyResult struct {
	OrderID               uuid.UUID
	Subtotal              decimal.Decimal
	DiscountAmount        decimal.Decimal
	FinalAmount           decimal.Decimal
	AppliedVoucherCode    string
	AppliedPromotionCodes []string
}

// Service applies vouchers and promotions to orders. It owns all in-flight
// computation state for one apply call; the only state shared across calls is
// the registry's usage counters, protected by the registry transaction.
type Service struct {
	registry           Registry
	maxDiscountPercent int
	now                func() time.Time
}

// NewService creates an order Service. maxDiscountPercent is the process-wide
// ceiling on the total discount as a percentage of the subtotal.
func NewService(registry Registry, maxDiscountPercent int) *Service {
	return &Service{
		registry:           registry,
		maxDiscountPercent: maxDiscountPercent,
		now:                time.Now,
	}
}

// Apply computes and records the monetary effect of the requested codes on the
// order, atomically: code usage counters and the persisted order move together
// or not at all. Any rejected code aborts the whole call.
//
// The subtotal check runs before a transaction is opened. Inside the
// transaction, the voucher is processed first against the full subtotal, then
// each promotion in request order against its eligible base (each capped at
// that base), then the aggregate cap, then the order write.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: l.ProductID}
		}
		if l.UnitPrice.LessThan(decimal.New(1, -2)) {
			return nil, &InvalidUnitPriceError{ProductID: l.ProductID}
		}
	}

	subtotal := discount.Subtotal(req.Lines)
	if !subtotal.IsPositive() {
		return nil, ErrNonPositiveSubtotal
	}

	now := s.now()

	var result *ApplyResult
	err := s.registry.InTx(ctx, func(tx RegistryTx) error {
		total := decimal.Zero

		var appliedVoucher *AppliedCode
		if req.VoucherCode != "" {
			code := discount.NormalizeCode(req.VoucherCode)
			v, err := tx.FindVoucherByCode(ctx, code)
			if err != nil {
				return errors.Wrapf(err, "voucher %s", code)
			}
			if err := v.Evaluate(subtotal, now); err != nil {
				return errors.Wrapf(err, "voucher %s", v.Code)
			}
			total = total.Add(discount.Amount(v.Rule, subtotal))
			if err := tx.IncrementVoucherUsage(ctx, v.ID); err != nil {
				return errors.Wrapf(err, "voucher %s", v.Code)
			}
			appliedVoucher = &AppliedCode{ID: v.ID, Code: v.Code}
		}

		seen := make(map[string]struct{}, len(req.PromotionCodes))
		appliedPromotions := make([]AppliedCode, 0, len(req.PromotionCodes))
		for _, raw := range req.PromotionCodes {
			code := discount.NormalizeCode(raw)
			if _, dup := seen[code]; dup {
				return &DuplicatePromotionError{Code: code}
			}
			seen[code] = struct{}{}

			p, err := tx.FindPromotionByCode(ctx, code)
			if err != nil {
				return errors.Wrapf(err, "promotion %s", code)
			}
			if err := p.Evaluate(now); err != nil {
				return errors.Wrapf(err, "promotion %s", p.Code)
			}
			base := p.EligibleBase(req.Lines)
			if !base.IsPositive() {
				return errors.Wrapf(promotion.ErrNotApplicable, "promotion %s", p.Code)
			}

			// A promotion never discounts more than the lines it applies to.
			amount := decimal.Min(discount.Amount(p.Rule, base), base)
			total = total.Add(amount)

			if err := tx.IncrementPromotionUsage(ctx, p.ID); err != nil {
				return errors.Wrapf(err, "promotion %s", p.Code)
			}
			appliedPromotions = append(appliedPromotions, AppliedCode{ID: p.ID, Code: p.Code})
		}

		// Rounding happens once, here, so intermediate amounts keep full precision.
		applied := discount.Cap(total, subtotal, s.maxDiscountPercent).Round(2)
		final := subtotal.Sub(applied).Round(2)

		o := &Order{
			ID:             uuid.New(),
			Lines:          normalizeLines(req.Lines),
			Subtotal:       subtotal,
			DiscountAmount: applied,
			FinalAmount:    final,
			Voucher:        appliedVoucher,
			Promotions:     appliedPromotions,
			CreatedAt:      now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		promoCodes := make([]string, len(appliedPromotions))
		for i, p := range appliedPromotions {
			promoCodes[i] = p.Code
		}
		voucherCode := ""
		if appliedVoucher != nil {
			voucherCode = appliedVoucher.Code
		}

		result = &ApplyResult{
			OrderID:               o.ID,
			Subtotal:              subtotal,
			DiscountAmount:        applied,
			FinalAmount:           final,
			AppliedVoucherCode:    voucherCode,
			AppliedPromotionCodes: promoCodes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// normalizeLines returns a copy of lines with categories uppercased for
// persistence. Product identifiers are stored as received.
func normalizeLines(lines []discount.Line) []discount.Line {
	out := make([]discount.Line, len(lines))
	for i, l := range lines {
		l.Category = discount.NormalizeCode(l.Category)
		out[i] = l
	}
	return out
}
