package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCoupon() Coupon {
	return Coupon{
		CompanyID:   1,
		Category:    CategoryRestaurant,
		Title:       "Two for one",
		Description: "Dinner for two",
		StartDate:   NewDate(2025, time.January, 1),
		EndDate:     NewDate(2025, time.December, 31),
		Amount:      10,
		Price:       decimal.RequireFromString("19.90"),
		Image:       "dinner.png",
	}
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("purchase failed: %w", NewDomainError(ErrCodeNotFound, "coupon 7 not found"))

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, errors.Is(wrapped, ErrCouponNotFound))
	assert.False(t, errors.Is(wrapped, ErrOutOfStock))
	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))
}

func TestDomainError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDomainError(ErrCodeStoreUnavailable, "store unavailable", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, "store unavailable: connection refused", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, ErrCodeInternalError, CodeOf(errors.New("boom")))
	assert.Equal(t, ErrCodeExpired, CodeOf(ErrExpired))
}

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyPurchased, http.StatusConflict},
		{ErrCodeOutOfStock, http.StatusConflict},
		{ErrCodeExpired, http.StatusConflict},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInvariantViolation, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, MetadataFor(tt.code).HTTPStatus)
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" vacation ")
	require.NoError(t, err)
	assert.Equal(t, CategoryVacation, c)

	_, err = ParseCategory("GAMBLING")
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", d.String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.True(t, d.Equal(NewDate(2025, time.March, 14)))

	loc := time.FixedZone("UTC+10", 10*60*60)
	late := time.Date(2025, time.March, 14, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-03-14", DateOf(late).String())

	_, err = ParseDate("14/03/2025")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Day Date `json:"day"`
	}

	data, err := json.Marshal(payload{Day: NewDate(2024, time.February, 29)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-02-29"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2026-10-17"}`), &p))
	assert.Equal(t, NewDate(2026, time.October, 17), p.Day)

	assert.Error(t, json.Unmarshal([]byte(`{"day":20261017}`), &p))
}

func TestValidateCoupon(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Coupon)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Coupon) {},
		},
		{
			name:    "blank title",
			mutate:  func(c *Coupon) { c.Title = "   " },
			wantErr: "title is required",
		},
		{
			name:    "negative amount",
			mutate:  func(c *Coupon) { c.Amount = -1 },
			wantErr: "amount must be at least 0",
		},
		{
			name:    "negative price",
			mutate:  func(c *Coupon) { c.Price = decimal.NewFromInt(-1) },
			wantErr: "price must be at least 0",
		},
		{
			name:    "price with three decimals",
			mutate:  func(c *Coupon) { c.Price = decimal.RequireFromString("9.999") },
			wantErr: "price must have at most 2 decimal places",
		},
		{
			name:   "trailing zeros are fine",
			mutate: func(c *Coupon) { c.Price = decimal.RequireFromString("9.900") },
		},
		{
			name:    "price too large",
			mutate:  func(c *Coupon) { c.Price = decimal.RequireFromString("10000000000") },
			wantErr: "price must be less than 10000000000",
		},
		{
			name:    "amount overflows",
			mutate:  func(c *Coupon) { c.Amount = MaxAmount + 1 },
			wantErr: "amount must be at most 2147483647",
		},
		{
			name:    "end before start",
			mutate:  func(c *Coupon) { c.EndDate = c.StartDate.AddDays(-1) },
			wantErr: "endDate must not be before startDate",
		},
		{
			name:    "unknown category",
			mutate:  func(c *Coupon) { c.Category = "CASINO" },
			wantErr: "category must be a known category",
		},
		{
			name:    "missing company",
			mutate:  func(c *Coupon) { c.CompanyID = 0 },
			wantErr: "companyId must be greater than 0",
		},
		{
			name:    "zero end date",
			mutate:  func(c *Coupon) { c.EndDate = Date{} },
			wantErr: "endDate is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon()
			tt.mutate(&c)

			err := ValidateCoupon(&c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCouponFilter_Matches(t *testing.T) {
	c := validCoupon()
	c.CompanyID = 3
	today := NewDate(2025, time.June, 1)
	sport := CategorySport
	cheap := decimal.NewFromInt(10)
	exact := decimal.RequireFromString("19.90")

	assert.True(t, CouponFilter{}.Matches(&c))
	assert.True(t, CouponFilter{CompanyID: 3, AvailableOn: &today}.Matches(&c))
	assert.False(t, CouponFilter{CompanyID: 4}.Matches(&c))
	assert.False(t, CouponFilter{Category: &sport}.Matches(&c))
	assert.False(t, CouponFilter{MaxPrice: &cheap}.Matches(&c))
	assert.False(t, CouponFilter{MaxPrice: &exact}.Matches(&c), "max price is exclusive")

	c.Amount = 0
	assert.False(t, CouponFilter{AvailableOn: &today}.Matches(&c))
}

func TestCoupon_ExpiredOn(t *testing.T) {
	c := validCoupon()
	assert.False(t, c.ExpiredOn(c.EndDate), "last day is still valid")
	assert.True(t, c.ExpiredOn(c.EndDate.AddDays(1)))
}

func TestCheckStorageLimits(t *testing.T) {
	c := validCoupon()
	assert.NoError(t, CheckStorageLimits(&c))

	c.Price = decimal.RequireFromString("0.005")
	err := CheckStorageLimits(&c)
	assert.ErrorIs(t, err, ErrValidation)

	c = validCoupon()
	c.Price = decimal.RequireFromString("9999999999.99")
	assert.NoError(t, CheckStorageLimits(&c))

	c.Amount = MaxAmount + 1
	assert.Equal(t, ErrCodeValidation, CodeOf(CheckStorageLimits(&c)))
}
