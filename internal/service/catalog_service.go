package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/rs/zerolog"
)

// catalogService implements CatalogService.
type catalogService struct {
	store  CouponStore
	now    Clock
	logger zerolog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store CouponStore, now Clock, logger zerolog.Logger) CatalogService {
	if now == nil {
		now = time.Now
	}
	return &catalogService{
		store:  store,
		now:    now,
		logger: logger.With().Str("service", "catalog").Logger(),
	}
}

// Get retrieves a single coupon by ID.
func (s *catalogService) Get(ctx context.Context, couponID int64) (*model.Coupon, error) {
	if couponID <= 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "coupon ID must be positive")
	}
	return s.store.Get(ctx, couponID)
}

// ListAvailable returns coupons in stock whose end date has not passed.
func (s *catalogService) ListAvailable(ctx context.Context, q model.ListQuery) ([]model.Coupon, error) {
	today := model.DateOf(s.now())
	filter, err := filterFor(q)
	if err != nil {
		return nil, err
	}
	filter.AvailableOn = &today

	return s.list(ctx, filter)
}

// ListByCompany returns the coupons a company owns.
func (s *catalogService) ListByCompany(ctx context.Context, companyID int64, q model.ListQuery) ([]model.Coupon, error) {
	if companyID <= 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "company ID must be positive")
	}
	filter, err := filterFor(q)
	if err != nil {
		return nil, err
	}
	filter.CompanyID = companyID

	return s.list(ctx, filter)
}

// ListByCustomer returns the coupons a customer has purchased.
func (s *catalogService) ListByCustomer(ctx context.Context, customerID int64, q model.ListQuery) ([]model.Coupon, error) {
	if customerID <= 0 {
		return nil, model.NewDomainError(model.ErrCodeValidation, "customer ID must be positive")
	}
	filter, err := filterFor(q)
	if err != nil {
		return nil, err
	}

	known, err := s.store.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, model.NewDomainError(model.ErrCodeNotFound, fmt.Sprintf("customer %d not found", customerID))
	}
	filter.CustomerID = customerID

	return s.list(ctx, filter)
}

func (s *catalogService) list(ctx context.Context, filter model.CouponFilter) ([]model.Coupon, error) {
	coupons, err := s.store.ListBy(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("company_id", filter.CompanyID).
			Int64("customer_id", filter.CustomerID).
			Msg("failed to list coupons")
		return nil, err
	}

	s.logger.Debug().
		Int("count", len(coupons)).
		Int64("company_id", filter.CompanyID).
		Int64("customer_id", filter.CustomerID).
		Msg("retrieved coupons")

	return coupons, nil
}

func filterFor(q model.ListQuery) (model.CouponFilter, error) {
	if q.Category != nil && !q.Category.Valid() {
		return model.CouponFilter{}, model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf("unknown category %q", *q.Category))
	}
	if q.MaxPrice != nil && q.MaxPrice.IsNegative() {
		return model.CouponFilter{}, model.NewDomainError(model.ErrCodeValidation, "max price must not be negative")
	}
	return model.CouponFilter{
		Category: q.Category,
		MaxPrice: q.MaxPrice,
	}, nil
}
