package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/metrics"
	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"

	"github.com/rs/zerolog"
)

// purchaseService implements PurchaseService.
type purchaseService struct {
	store   CouponStore
	now     Clock
	metrics *metrics.PurchaseMetrics
	logger  zerolog.Logger
}

// NewPurchaseService creates a new purchase service. A nil clock uses time.Now.
func NewPurchaseService(store CouponStore, now Clock, m *metrics.PurchaseMetrics, logger zerolog.Logger) PurchaseService {
	if now == nil {
		now = time.Now
	}
	return &purchaseService{
		store:   store,
		now:     now,
		metrics: m,
		logger:  logger.With().Str("service", "purchase").Logger(),
	}
}

// Purchase runs the eligibility checks and the stock decrement plus ledger
// insert as one critical section on the coupon.
func (s *purchaseService) Purchase(ctx context.Context, customerID, couponID int64) (*model.Coupon, error) {
	start := time.Now()

	purchased, err := s.purchase(ctx, customerID, couponID)

	outcome := outcomeLabel(err)
	s.metrics.Observe(outcome, time.Since(start))
	if err != nil {
		event := s.logger.Warn()
		switch outcome {
		case "invariant_violation", "store_unavailable", "internal_error":
			event = s.logger.Error()
		}
		event.Err(err).
			Int64("customer_id", customerID).
			Int64("coupon_id", couponID).
			Msg("purchase rejected")
		return nil, err
	}

	s.logger.Info().
		Int64("customer_id", customerID).
		Int64("coupon_id", couponID).
		Int("remaining", purchased.Amount).
		Msg("coupon purchased")
	return purchased, nil
}

func (s *purchaseService) purchase(ctx context.Context, customerID, couponID int64) (*model.Coupon, error) {
	if couponID <= 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "coupon ID must be positive")
	}
	if customerID <= 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "customer ID must be positive")
	}

	var purchased *model.Coupon
	err := s.store.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		coupon, err := tx.GetForUpdate(ctx, couponID)
		if err != nil {
			return err
		}
		if coupon == nil {
			return model.NewDomainError(model.ErrCodeNotFound, fmt.Sprintf("coupon %d not found", couponID))
		}

		known, err := tx.CustomerExists(ctx, customerID)
		if err != nil {
			return err
		}
		if !known {
			return model.NewDomainError(model.ErrCodeNotFound, fmt.Sprintf("customer %d not found", customerID))
		}

		owned, err := tx.HasEntry(ctx, customerID, couponID)
		if err != nil {
			return err
		}
		if owned {
			return model.ErrAlreadyPurchased
		}

		if coupon.Amount <= 0 {
			return model.ErrOutOfStock
		}

		// today is read under the hold, same as the sweeper's re-check
		if coupon.ExpiredOn(model.DateOf(s.now())) {
			return model.ErrExpired
		}

		updated, err := tx.UpdateStock(ctx, couponID, -1)
		if err != nil {
			return asInvariantViolation(err)
		}
		if err := tx.AddEntry(ctx, customerID, couponID); err != nil {
			return asInvariantViolation(err)
		}

		purchased = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchased, nil
}

// asInvariantViolation reports that a write the checks had already cleared
// was refused by the store.
func asInvariantViolation(err error) error {
	switch model.CodeOf(err) {
	case model.ErrCodeInvariantViolation, model.ErrCodeStoreUnavailable, model.ErrCodeInternalError:
		return err
	}
	return model.WrapDomainError(model.ErrCodeInvariantViolation, "write refused after checks passed", err)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return strings.ToLower(string(model.CodeOf(err)))
}
