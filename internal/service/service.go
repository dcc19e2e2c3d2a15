package service

import (
	"context"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"
)

// PurchaseService defines the purchase engine.
type PurchaseService interface {
	// Purchase gives one unit of the coupon to the customer. Failures are
	// classified as NotFound, AlreadyPurchased, OutOfStock, Expired,
	// InvariantViolation or StoreUnavailable, checked in that order.
	Purchase(ctx context.Context, customerID, couponID int64) (*model.Coupon, error)
}

// CatalogService defines read-only coupon views.
type CatalogService interface {
	// Get retrieves a single coupon by ID.
	Get(ctx context.Context, couponID int64) (*model.Coupon, error)

	// ListAvailable returns coupons that can be purchased today.
	ListAvailable(ctx context.Context, q model.ListQuery) ([]model.Coupon, error)

	// ListByCompany returns the coupons a company owns.
	ListByCompany(ctx context.Context, companyID int64, q model.ListQuery) ([]model.Coupon, error)

	// ListByCustomer returns the coupons a customer has purchased.
	ListByCustomer(ctx context.Context, customerID int64, q model.ListQuery) ([]model.Coupon, error)
}

// CouponService defines company-side coupon management.
type CouponService interface {
	// Add creates a coupon owned by companyID.
	Add(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error)

	// Update replaces a coupon owned by companyID.
	Update(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error)

	// Delete removes a coupon owned by companyID together with its purchase history.
	Delete(ctx context.Context, companyID, couponID int64) error
}

// CouponStore is the concurrency-safe store the services operate on.
type CouponStore interface {
	WithCoupon(ctx context.Context, couponID int64, fn func(ctx context.Context, tx repository.Tx) error) error
	Get(ctx context.Context, couponID int64) (*model.Coupon, error)
	Create(ctx context.Context, coupon *model.Coupon) (*model.Coupon, error)
	ListBy(ctx context.Context, filter model.CouponFilter) ([]model.Coupon, error)
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time
