package repository

import (
	"context"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
)

// CouponRepository defines data access for coupons and the purchase ledger.
//
// Lookups return (nil, nil) when the row does not exist. Multi-step writes go
// through a Tx obtained from BeginTx.
type CouponRepository interface {
	// BeginTx starts a unit of work whose writes become visible together on Commit.
	BeginTx(ctx context.Context) (Tx, error)

	// GetByID retrieves a single coupon by its ID.
	GetByID(ctx context.Context, id int64) (*model.Coupon, error)

	// List returns every coupon matching the filter, ordered by ID.
	List(ctx context.Context, filter model.CouponFilter) ([]model.Coupon, error)

	// ListExpired returns the IDs of coupons whose end date is before asOf.
	ListExpired(ctx context.Context, asOf model.Date) ([]int64, error)

	// HasEntry reports whether the customer holds the coupon.
	HasEntry(ctx context.Context, customerID, couponID int64) (bool, error)

	// CustomerExists reports whether the customer is known.
	CustomerExists(ctx context.Context, customerID int64) (bool, error)

	// Create inserts a new coupon and returns it with its assigned ID.
	// A title already used by the same company yields model.ErrTitleTaken.
	Create(ctx context.Context, coupon *model.Coupon) (*model.Coupon, error)
}

// Tx is a single unit of work against the coupon store.
type Tx interface {
	// GetForUpdate reads a coupon and, where the backend supports it, locks the row.
	GetForUpdate(ctx context.Context, id int64) (*model.Coupon, error)

	// CustomerExists reports whether the customer is known.
	CustomerExists(ctx context.Context, customerID int64) (bool, error)

	// HasEntry reports whether the customer holds the coupon.
	HasEntry(ctx context.Context, customerID, couponID int64) (bool, error)

	// UpdateStock adds delta to the coupon amount and returns the updated coupon.
	// It fails with model.ErrStockViolation if the result would be negative.
	UpdateStock(ctx context.Context, id int64, delta int) (*model.Coupon, error)

	// AddEntry records a purchase. It fails with model.ErrDuplicateEntry if the
	// pair already exists.
	AddEntry(ctx context.Context, customerID, couponID int64) error

	// RemoveEntriesForCoupon deletes every ledger entry for the coupon.
	RemoveEntriesForCoupon(ctx context.Context, couponID int64) (int, error)

	// Update replaces the mutable fields of an existing coupon.
	Update(ctx context.Context, coupon *model.Coupon) error

	// Delete removes the coupon and its ledger entries. It reports whether a
	// row was removed.
	Delete(ctx context.Context, id int64) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AccountRepository writes the company and customer references coupons and
// ledger entries point to. Account management lives elsewhere; this is used
// for fixtures.
type AccountRepository interface {
	UpsertCompany(ctx context.Context, company *model.Company) error
	UpsertCustomer(ctx context.Context, customer *model.Customer) error
}
