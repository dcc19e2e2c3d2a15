package seed

import (
	"context"
	"fmt"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// CouponAdder creates coupons on behalf of a company.
type CouponAdder interface {
	Add(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error)
}

// Summary counts what an import did.
type Summary struct {
	Companies int
	Customers int
	Coupons   int
	Skipped   int
}

// Importer writes fixtures into the store.
type Importer struct {
	accounts repository.AccountRepository
	coupons  CouponAdder
	logger   zerolog.Logger
}

// NewImporter creates an importer.
func NewImporter(accounts repository.AccountRepository, coupons CouponAdder, logger zerolog.Logger) *Importer {
	return &Importer{
		accounts: accounts,
		coupons:  coupons,
		logger:   logger.With().Str("component", "seed-importer").Logger(),
	}
}

// Import upserts accounts and adds coupons. Coupons that fail validation or
// whose title the company already uses are skipped, which makes re-running an
// import harmless. Other failures are collected and returned together.
func (i *Importer) Import(ctx context.Context, f *Fixtures) (Summary, error) {
	var (
		sum  Summary
		errs error
	)
	if f == nil {
		return sum, nil
	}

	for idx := range f.Companies {
		c := &f.Companies[idx]
		if err := i.accounts.UpsertCompany(ctx, c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("company %d: %w", c.ID, err))
			continue
		}
		sum.Companies++
	}

	for idx := range f.Customers {
		c := &f.Customers[idx]
		if err := i.accounts.UpsertCustomer(ctx, c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("customer %d: %w", c.ID, err))
			continue
		}
		sum.Customers++
	}

	for idx := range f.Coupons {
		c := &f.Coupons[idx]
		_, err := i.coupons.Add(ctx, c.CompanyID, c)
		switch model.CodeOf(err) {
		case "":
			sum.Coupons++
		case model.ErrCodeValidation, model.ErrCodeConflict:
			sum.Skipped++
			i.logger.Debug().Err(err).
				Int64("company_id", c.CompanyID).
				Str("title", c.Title).
				Msg("seed coupon skipped")
		default:
			errs = multierr.Append(errs, fmt.Errorf("coupon %q of company %d: %w", c.Title, c.CompanyID, err))
		}
	}

	i.logger.Info().
		Int("companies", sum.Companies).
		Int("customers", sum.Customers).
		Int("coupons", sum.Coupons).
		Int("skipped", sum.Skipped).
		Int("failed", len(multierr.Errors(errs))).
		Msg("seed import finished")

	return sum, errs
}
