package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// store is what both backends provide.
type store interface {
	CouponRepository
	AccountRepository
}

var today = model.NewDate(2025, time.June, 15)

func newCoupon(companyID int64, title string, category model.Category, amount int, price string, end model.Date) *model.Coupon {
	return &model.Coupon{
		CompanyID:   companyID,
		Category:    category,
		Title:       title,
		Description: title + " description",
		StartDate:   model.NewDate(2025, time.January, 1),
		EndDate:     end,
		Amount:      amount,
		Price:       decimal.RequireFromString(price),
		Image:       "image.png",
	}
}

func seedAccounts(t *testing.T, s store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.UpsertCompany(ctx, &model.Company{ID: 1, Name: "Acme", Email: "acme@example.com"}))
	require.NoError(t, s.UpsertCompany(ctx, &model.Company{ID: 2, Name: "Globex", Email: "globex@example.com"}))
	require.NoError(t, s.UpsertCustomer(ctx, &model.Customer{ID: 10, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}))
	require.NoError(t, s.UpsertCustomer(ctx, &model.Customer{ID: 11, FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"}))
}

func mustCreate(t *testing.T, s store, c *model.Coupon) *model.Coupon {
	t.Helper()
	created, err := s.Create(context.Background(), c)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	return created
}

func purchase(t *testing.T, s store, customerID, couponID int64) {
	t.Helper()
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.UpdateStock(ctx, couponID, -1)
	require.NoError(t, err)
	require.NoError(t, tx.AddEntry(ctx, customerID, couponID))
	require.NoError(t, tx.Commit(ctx))
}

func ids(coupons []model.Coupon) []int64 {
	out := make([]int64, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, c.ID)
	}
	return out
}

// runContract exercises the behaviour every CouponRepository must share.
func runContract(t *testing.T, newStore func(t *testing.T) store) {
	t.Run("Create and GetByID round trip", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()

		in := newCoupon(1, "Pizza night", model.CategoryRestaurant, 5, "12.50", today.AddDays(30))
		created := mustCreate(t, s, in)

		got, err := s.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, in.CompanyID, got.CompanyID)
		assert.Equal(t, in.Category, got.Category)
		assert.Equal(t, in.Title, got.Title)
		assert.Equal(t, in.Description, got.Description)
		assert.Equal(t, in.StartDate, got.StartDate)
		assert.Equal(t, in.EndDate, got.EndDate)
		assert.Equal(t, in.Amount, got.Amount)
		assert.True(t, in.Price.Equal(got.Price), "price %s != %s", in.Price, got.Price)
		assert.Equal(t, in.Image, got.Image)

		missing, err := s.GetByID(ctx, created.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Create enforces unique title per company", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()

		mustCreate(t, s, newCoupon(1, "Spa day", model.CategoryHealthy, 1, "50", today))

		_, err := s.Create(ctx, newCoupon(1, "Spa day", model.CategoryHealthy, 1, "50", today))
		assert.ErrorIs(t, err, model.ErrTitleTaken)

		mustCreate(t, s, newCoupon(2, "Spa day", model.CategoryHealthy, 1, "50", today))
	})

	t.Run("Create and Update reject values the store cannot hold exactly", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()

		tests := []struct {
			name   string
			mutate func(c *model.Coupon)
		}{
			{"three decimal price", func(c *model.Coupon) { c.Price = decimal.RequireFromString("9.999") }},
			{"price at the limit", func(c *model.Coupon) { c.Price = decimal.RequireFromString("10000000000") }},
			{"amount above int32", func(c *model.Coupon) { c.Amount = model.MaxAmount + 1 }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := newCoupon(1, "Limits "+tt.name, model.CategorySport, 1, "10", today)
				tt.mutate(c)
				_, err := s.Create(ctx, c)
				assert.Equal(t, model.ErrCodeValidation, model.CodeOf(err))
			})
		}

		existing := mustCreate(t, s, newCoupon(1, "Exact price", model.CategorySport, 1, "9.90", today))
		got, err := s.GetByID(ctx, existing.ID)
		require.NoError(t, err)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("9.90")), "price %s", got.Price)

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		changed := existing.Clone()
		changed.Price = decimal.RequireFromString("9.999")
		err = tx.Update(ctx, changed)
		assert.Equal(t, model.ErrCodeValidation, model.CodeOf(err))
		require.NoError(t, tx.Rollback(ctx))

		got, err = s.GetByID(ctx, existing.ID)
		require.NoError(t, err)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("9.90")))
	})

	t.Run("Create rejects unknown company", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)

		_, err := s.Create(context.Background(), newCoupon(99, "Orphan", model.CategorySport, 1, "1", today))
		assert.ErrorIs(t, err, model.ErrCompanyNotFound)
	})

	t.Run("UpdateStock refuses to go negative", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()
		c := mustCreate(t, s, newCoupon(1, "Last one", model.CategorySport, 1, "9.99", today))

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		updated, err := tx.UpdateStock(ctx, c.ID, -1)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.Amount)

		_, err = tx.UpdateStock(ctx, c.ID, -1)
		assert.ErrorIs(t, err, model.ErrStockViolation)
		require.NoError(t, tx.Commit(ctx))

		got, err := s.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Amount)
	})

	t.Run("UpdateStock on missing coupon", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		_, err = tx.UpdateStock(ctx, 4242, -1)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Rollback discards staged writes", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()
		c := mustCreate(t, s, newCoupon(1, "Museum", model.CategoryEducation, 3, "15", today))

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx.UpdateStock(ctx, c.ID, -1)
		require.NoError(t, err)
		require.NoError(t, tx.AddEntry(ctx, 10, c.ID))
		require.NoError(t, tx.Rollback(ctx))

		got, err := s.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Amount)

		has, err := s.HasEntry(ctx, 10, c.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("AddEntry is unique per customer and coupon", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()
		c := mustCreate(t, s, newCoupon(1, "Cinema", model.CategoryRestaurant, 5, "8", today))

		purchase(t, s, 10, c.ID)

		has, err := s.HasEntry(ctx, 10, c.ID)
		require.NoError(t, err)
		assert.True(t, has)

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		inTx, err := tx.HasEntry(ctx, 10, c.ID)
		require.NoError(t, err)
		assert.True(t, inTx)
		err = tx.AddEntry(ctx, 10, c.ID)
		assert.ErrorIs(t, err, model.ErrDuplicateEntry)
		require.NoError(t, tx.Rollback(ctx))
	})

	t.Run("AddEntry rejects unknown customer", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()
		c := mustCreate(t, s, newCoupon(1, "Ghost", model.CategorySport, 5, "8", today))

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		err = tx.AddEntry(ctx, 777, c.ID)
		assert.ErrorIs(t, err, model.ErrCustomerNotFound)
		require.NoError(t, tx.Rollback(ctx))
	})

	t.Run("CustomerExists", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()

		ok, err := s.CustomerExists(ctx, 10)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.CustomerExists(ctx, 12345)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete cascades ledger entries", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()
		c := mustCreate(t, s, newCoupon(1, "Ski trip", model.CategoryVacation, 5, "300", today))
		purchase(t, s, 10, c.ID)
		purchase(t, s, 11, c.ID)

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		removed, err := tx.RemoveEntriesForCoupon(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		deleted, err := tx.Delete(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		require.NoError(t, tx.Commit(ctx))

		got, err := s.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		for _, customerID := range []int64{10, 11} {
			has, err := s.HasEntry(ctx, customerID, c.ID)
			require.NoError(t, err)
			assert.False(t, has)
		}

		tx, err = s.BeginTx(ctx)
		require.NoError(t, err)
		deleted, err = tx.Delete(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
		require.NoError(t, tx.Rollback(ctx))
	})

	t.Run("Update enforces title uniqueness", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()
		first := mustCreate(t, s, newCoupon(1, "First", model.CategorySport, 5, "10", today))
		mustCreate(t, s, newCoupon(1, "Second", model.CategorySport, 5, "10", today))

		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		changed := first.Clone()
		changed.Title = "Second"
		err = tx.Update(ctx, changed)
		assert.ErrorIs(t, err, model.ErrTitleTaken)
		require.NoError(t, tx.Rollback(ctx))

		tx, err = s.BeginTx(ctx)
		require.NoError(t, err)
		changed.Title = "First, renamed"
		changed.Amount = 42
		require.NoError(t, tx.Update(ctx, changed))
		require.NoError(t, tx.Commit(ctx))

		got, err := s.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "First, renamed", got.Title)
		assert.Equal(t, 42, got.Amount)
	})

	t.Run("List applies filters", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()

		cheapSport := mustCreate(t, s, newCoupon(1, "Cheap sport", model.CategorySport, 5, "10", today.AddDays(10)))
		priceySport := mustCreate(t, s, newCoupon(1, "Pricey sport", model.CategorySport, 5, "100", today.AddDays(10)))
		soldOut := mustCreate(t, s, newCoupon(1, "Sold out", model.CategoryRestaurant, 0, "10", today.AddDays(10)))
		expired := mustCreate(t, s, newCoupon(2, "Expired", model.CategoryRestaurant, 5, "10", today.AddDays(-1)))
		lastDay := mustCreate(t, s, newCoupon(2, "Last day", model.CategoryClothing, 5, "20", today))
		purchase(t, s, 10, priceySport.ID)
		purchase(t, s, 10, lastDay.ID)

		sport := model.CategorySport
		hundred := decimal.NewFromInt(100)

		tests := []struct {
			name   string
			filter model.CouponFilter
			want   []int64
		}{
			{"all", model.CouponFilter{}, []int64{cheapSport.ID, priceySport.ID, soldOut.ID, expired.ID, lastDay.ID}},
			{"by company", model.CouponFilter{CompanyID: 2}, []int64{expired.ID, lastDay.ID}},
			{"by category", model.CouponFilter{Category: &sport}, []int64{cheapSport.ID, priceySport.ID}},
			{"max price is exclusive", model.CouponFilter{MaxPrice: &hundred}, []int64{cheapSport.ID, soldOut.ID, expired.ID, lastDay.ID}},
			{"available", model.CouponFilter{AvailableOn: &today}, []int64{cheapSport.ID, priceySport.ID, lastDay.ID}},
			{"by customer", model.CouponFilter{CustomerID: 10}, []int64{priceySport.ID, lastDay.ID}},
			{"customer and category", model.CouponFilter{CustomerID: 10, Category: &sport}, []int64{priceySport.ID}},
			{"unknown customer", model.CouponFilter{CustomerID: 11}, []int64{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.List(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	})

	t.Run("ListExpired is strict", func(t *testing.T) {
		s := newStore(t)
		seedAccounts(t, s)
		ctx := context.Background()

		old := mustCreate(t, s, newCoupon(1, "Old", model.CategorySport, 5, "10", today.AddDays(-10)))
		yesterday := mustCreate(t, s, newCoupon(1, "Yesterday", model.CategorySport, 5, "10", today.AddDays(-1)))
		mustCreate(t, s, newCoupon(1, "Today", model.CategorySport, 5, "10", today))
		mustCreate(t, s, newCoupon(1, "Tomorrow", model.CategorySport, 5, "10", today.AddDays(1)))

		got, err := s.ListExpired(ctx, today)
		require.NoError(t, err)
		assert.Equal(t, []int64{old.ID, yesterday.ID}, got)
	})
}

func TestErrorsAreClassified(t *testing.T) {
	assert.True(t, errors.Is(model.ErrStockViolation, model.ErrInvariantViolation))
	assert.True(t, errors.Is(model.ErrDuplicateEntry, model.ErrInvariantViolation))
	assert.True(t, errors.Is(model.ErrTitleTaken, model.NewDomainError(model.ErrCodeConflict, "")))
}
