package service

import (
	"context"
	"fmt"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"

	"github.com/rs/zerolog"
)

// couponService implements CouponService.
type couponService struct {
	store  CouponStore
	logger zerolog.Logger
}

// NewCouponService creates a new company coupon management service.
func NewCouponService(store CouponStore, logger zerolog.Logger) CouponService {
	return &couponService{
		store:  store,
		logger: logger.With().Str("service", "coupon").Logger(),
	}
}

// Add creates a coupon owned by companyID. The ID in the request is ignored.
func (s *couponService) Add(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error) {
	if coupon == nil {
		return nil, model.NewDomainError(model.ErrCodeValidation, "coupon is required")
	}
	in := coupon.Clone()
	in.ID = 0
	in.CompanyID = companyID

	if err := model.ValidateCoupon(in); err != nil {
		s.logger.Warn().Err(err).Int64("company_id", companyID).Msg("invalid coupon")
		return nil, err
	}

	created, err := s.store.Create(ctx, in)
	if err != nil {
		s.logger.Warn().Err(err).Int64("company_id", companyID).Str("title", in.Title).Msg("failed to add coupon")
		return nil, err
	}

	s.logger.Info().
		Int64("company_id", companyID).
		Int64("coupon_id", created.ID).
		Msg("coupon added")
	return created, nil
}

// Update replaces a coupon the company owns. Ownership cannot be transferred.
func (s *couponService) Update(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error) {
	if coupon == nil {
		return nil, model.NewDomainError(model.ErrCodeValidation, "coupon is required")
	}
	in := coupon.Clone()
	in.CompanyID = companyID

	if in.ID <= 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "coupon ID must be positive")
	}
	if err := model.ValidateCoupon(in); err != nil {
		s.logger.Warn().Err(err).Int64("coupon_id", in.ID).Msg("invalid coupon")
		return nil, err
	}

	err := s.store.WithCoupon(ctx, in.ID, func(ctx context.Context, tx repository.Tx) error {
		if err := s.checkOwner(ctx, tx, companyID, in.ID); err != nil {
			return err
		}
		return tx.Update(ctx, in)
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("company_id", companyID).Int64("coupon_id", in.ID).Msg("failed to update coupon")
		return nil, err
	}

	s.logger.Info().Int64("company_id", companyID).Int64("coupon_id", in.ID).Msg("coupon updated")
	return in, nil
}

// Delete removes a coupon the company owns together with its ledger entries.
func (s *couponService) Delete(ctx context.Context, companyID, couponID int64) error {
	if couponID <= 0 {
		return model.NewDomainError(model.ErrCodeValidation, "coupon ID must be positive")
	}

	var removed int
	err := s.store.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		if err := s.checkOwner(ctx, tx, companyID, couponID); err != nil {
			return err
		}
		var err error
		if removed, err = tx.RemoveEntriesForCoupon(ctx, couponID); err != nil {
			return err
		}
		_, err = tx.Delete(ctx, couponID)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("company_id", companyID).Int64("coupon_id", couponID).Msg("failed to delete coupon")
		return err
	}

	s.logger.Info().
		Int64("company_id", companyID).
		Int64("coupon_id", couponID).
		Int("entries_removed", removed).
		Msg("coupon deleted")
	return nil
}

func (s *couponService) checkOwner(ctx context.Context, tx repository.Tx, companyID, couponID int64) error {
	existing, err := tx.GetForUpdate(ctx, couponID)
	if err != nil {
		return err
	}
	if existing == nil {
		return model.NewDomainError(model.ErrCodeNotFound, fmt.Sprintf("coupon %d not found", couponID))
	}
	if existing.CompanyID != companyID {
		return model.ErrNotOwner
	}
	return nil
}
