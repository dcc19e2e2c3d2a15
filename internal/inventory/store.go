// Package inventory serialises every mutation of a coupon and its ledger
// entries behind a per-coupon exclusive hold.
//
// Operations on the same coupon ID are totally ordered; operations on different
// IDs never contend. Waiting for a hold honours context cancellation. Once the
// hold is taken, the critical section runs to completion even if the caller's
// context is cancelled, so a purchase or removal either commits fully or fails
// explicitly.
package inventory

import (
	"context"
	"fmt"

	"github.com/vitaly-zn/coupons-project-back-end/internal/keylock"
	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"

	"github.com/rs/zerolog"
)

// Store is the concurrency-safe coupon store and purchase ledger.
type Store struct {
	repo   repository.CouponRepository
	locks  *keylock.Locker[int64]
	logger zerolog.Logger
}

// NewStore wraps repo with per-coupon exclusivity.
func NewStore(repo repository.CouponRepository, logger zerolog.Logger) *Store {
	return &Store{
		repo:   repo,
		locks:  keylock.New[int64](),
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

// WithCoupon runs fn inside a repository transaction while holding the
// exclusive hold on couponID. The transaction commits when fn returns nil and
// rolls back otherwise, including when fn panics. Giving up while waiting for
// the hold yields a REQUEST_CANCELLED error and changes nothing.
func (s *Store) WithCoupon(ctx context.Context, couponID int64, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := s.locks.Lock(ctx, couponID); err != nil {
		return model.WrapDomainError(model.ErrCodeCancelled, fmt.Sprintf("gave up waiting for coupon %d", couponID), err)
	}
	defer s.locks.Unlock(couponID)

	ctx = context.WithoutCancel(ctx)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return s.classify(couponID, err)
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error().Err(rbErr).Int64("coupon_id", couponID).Msg("failed to rollback transaction")
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return s.classify(couponID, err)
	}

	finished = true
	if err := tx.Commit(ctx); err != nil {
		return s.classify(couponID, err)
	}
	return nil
}

// Get returns the coupon or a NotFound error.
func (s *Store) Get(ctx context.Context, couponID int64) (*model.Coupon, error) {
	c, err := s.repo.GetByID(ctx, couponID)
	if err != nil {
		return nil, s.classify(couponID, err)
	}
	if c == nil {
		return nil, notFound(couponID)
	}
	return c, nil
}

// Create stores a new coupon and returns it with its assigned ID.
func (s *Store) Create(ctx context.Context, coupon *model.Coupon) (*model.Coupon, error) {
	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		return nil, s.classify(0, err)
	}
	return created, nil
}

// UpdateStock adds delta to the coupon amount. A result below zero fails
// with an invariant violation and leaves the amount unchanged.
func (s *Store) UpdateStock(ctx context.Context, couponID int64, delta int) (*model.Coupon, error) {
	var updated *model.Coupon
	err := s.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		updated, err = tx.UpdateStock(ctx, couponID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the coupon together with its ledger entries.
func (s *Store) Delete(ctx context.Context, couponID int64) error {
	return s.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		deleted, err := tx.Delete(ctx, couponID)
		if err != nil {
			return err
		}
		if !deleted {
			return notFound(couponID)
		}
		return nil
	})
}

// ListBy returns the coupons matching filter.
func (s *Store) ListBy(ctx context.Context, filter model.CouponFilter) ([]model.Coupon, error) {
	coupons, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.classify(0, err)
	}
	return coupons, nil
}

// ListExpired returns the IDs of coupons whose end date is before asOf.
func (s *Store) ListExpired(ctx context.Context, asOf model.Date) ([]int64, error) {
	ids, err := s.repo.ListExpired(ctx, asOf)
	if err != nil {
		return nil, s.classify(0, err)
	}
	return ids, nil
}

// HasEntry reports whether the customer holds the coupon.
func (s *Store) HasEntry(ctx context.Context, customerID, couponID int64) (bool, error) {
	ok, err := s.repo.HasEntry(ctx, customerID, couponID)
	if err != nil {
		return false, s.classify(couponID, err)
	}
	return ok, nil
}

// CustomerExists reports whether the customer is known.
func (s *Store) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	ok, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return false, s.classify(0, err)
	}
	return ok, nil
}

// AddEntry records a purchase entry. A duplicate pair is an invariant violation.
func (s *Store) AddEntry(ctx context.Context, customerID, couponID int64) error {
	return s.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		return tx.AddEntry(ctx, customerID, couponID)
	})
}

// RemoveEntriesForCoupon deletes every ledger entry of the coupon and returns
// how many were removed.
func (s *Store) RemoveEntriesForCoupon(ctx context.Context, couponID int64) (int, error) {
	var removed int
	err := s.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		removed, err = tx.RemoveEntriesForCoupon(ctx, couponID)
		return err
	})
	return removed, err
}

// classify passes domain errors through and reports anything else as the
// store being unavailable.
func (s *Store) classify(couponID int64, err error) error {
	switch model.CodeOf(err) {
	case model.ErrCodeInternalError:
		s.logger.Error().Err(err).Int64("coupon_id", couponID).Msg("store operation failed")
		return model.WrapDomainError(model.ErrCodeStoreUnavailable, "store unavailable", err)
	case model.ErrCodeInvariantViolation:
		s.logger.Error().Err(err).Int64("coupon_id", couponID).Msg("inventory invariant violated")
	}
	return err
}

func notFound(couponID int64) error {
	return model.NewDomainError(model.ErrCodeNotFound, fmt.Sprintf("coupon %d not found", couponID))
}
