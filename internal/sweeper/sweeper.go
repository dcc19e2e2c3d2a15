// Package sweeper removes expired coupons together with their purchase
// entries, either on a fixed schedule or on demand.
package sweeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"

	"github.com/rs/zerolog"
)

// Inventory is the subset of the coupon store the sweeper needs.
type Inventory interface {
	ListExpired(ctx context.Context, asOf model.Date) ([]int64, error)
	WithCoupon(ctx context.Context, couponID int64, fn func(ctx context.Context, tx repository.Tx) error) error
}

// Sweeper deletes coupons whose end date is before a given day.
type Sweeper struct {
	store  Inventory
	logger zerolog.Logger
}

// New creates a Sweeper over store.
func New(store Inventory, logger zerolog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("coupon store required")
	}
	return &Sweeper{
		store:  store,
		logger: logger.With().Str("component", "sweeper").Logger(),
	}, nil
}

// Sweep removes every coupon with an end date before asOf and returns how many
// were removed. Candidates that disappear or stop being expired before their
// turn are skipped. The first other failure stops the sweep and is returned
// together with the count removed so far.
func (s *Sweeper) Sweep(ctx context.Context, asOf model.Date) (int, error) {
	return s.sweep(ctx, asOf, nil)
}

func (s *Sweeper) sweep(ctx context.Context, asOf model.Date, onCandidate func(couponID int64)) (int, error) {
	ids, err := s.store.ListExpired(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("list expired coupons: %w", err)
	}

	s.logger.Debug().Int("candidates", len(ids)).Str("as_of", asOf.String()).Msg("expired coupons found")

	removed := 0
	for _, id := range ids {
		if onCandidate != nil {
			onCandidate(id)
		}
		ok, err := s.remove(ctx, id, asOf)
		if err != nil {
			if model.CodeOf(err) == model.ErrCodeNotFound {
				s.logger.Debug().Int64("coupon_id", id).Msg("expired coupon already gone")
				continue
			}
			return removed, fmt.Errorf("remove coupon %d: %w", id, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *Sweeper) remove(ctx context.Context, couponID int64, asOf model.Date) (bool, error) {
	var (
		removed bool
		entries int
		endDate model.Date
	)
	err := s.store.WithCoupon(ctx, couponID, func(ctx context.Context, tx repository.Tx) error {
		coupon, err := tx.GetForUpdate(ctx, couponID)
		if err != nil {
			return err
		}
		if coupon == nil || !coupon.ExpiredOn(asOf) {
			return nil
		}
		endDate = coupon.EndDate

		if entries, err = tx.RemoveEntriesForCoupon(ctx, couponID); err != nil {
			return err
		}
		if removed, err = tx.Delete(ctx, couponID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.logger.Info().
			Int64("coupon_id", couponID).
			Str("end_date", endDate.String()).
			Int("entries_removed", entries).
			Msg("expired coupon removed")
	}
	return removed, nil
}
