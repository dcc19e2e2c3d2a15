package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Category is the fixed classification of a coupon.
type Category string

const (
	CategorySport       Category = "SPORT"
	CategoryElectricity Category = "ELECTRICITY"
	CategoryRestaurant  Category = "RESTAURANT"
	CategoryVacation    Category = "VACATION"
	CategoryHealthy     Category = "HEALTHY"
	CategoryClothing    Category = "CLOTHING"
	CategoryEducation   Category = "EDUCATION"
)

// Categories lists every known category in declaration order.
var Categories = []Category{
	CategorySport,
	CategoryElectricity,
	CategoryRestaurant,
	CategoryVacation,
	CategoryHealthy,
	CategoryClothing,
	CategoryEducation,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", WrapDomainError(ErrCodeValidation, fmt.Sprintf("unknown category %q", s), nil)
	}
	return c, nil
}

// Storage limits of a coupon: prices are NUMERIC(12,2) and amounts INTEGER.
const (
	PriceScale = 2
	MaxAmount  = math.MaxInt32
)

// PriceLimit is the exclusive upper bound of a storable price.
var PriceLimit = decimal.New(1, 10)

// CheckStorageLimits rejects coupons whose price or amount the durable store
// could not hold exactly.
func CheckStorageLimits(c *Coupon) error {
	switch {
	case !c.Price.Equal(c.Price.Truncate(PriceScale)):
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("price must have at most %d decimal places", PriceScale))
	case c.Price.GreaterThanOrEqual(PriceLimit):
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("price must be less than %s", PriceLimit))
	case c.Amount > MaxAmount:
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("amount must be at most %d", MaxAmount))
	}
	return nil
}

// Coupon is a purchasable offer with finite stock.
type Coupon struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"companyId" validate:"gt=0"`
	Category    Category        `json:"category" validate:"required,category"`
	Title       string          `json:"title" validate:"notblank,max=255"`
	Description string          `json:"description" validate:"notblank"`
	StartDate   Date            `json:"startDate"`
	EndDate     Date            `json:"endDate"`
	Amount      int             `json:"amount" validate:"gte=0,lte=2147483647"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image" validate:"notblank"`
}

// Clone returns an independent copy of c.
func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// ExpiredOn reports whether the coupon's last valid day is before day.
func (c *Coupon) ExpiredOn(day Date) bool {
	return c.EndDate.Before(day)
}

// AvailableOn reports whether the coupon can be purchased on day.
func (c *Coupon) AvailableOn(day Date) bool {
	return c.Amount > 0 && !c.ExpiredOn(day)
}

// Company is the owner reference of a coupon.
type Company struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Customer is the purchaser reference of a ledger entry.
type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// PurchaseEntry records that a customer holds one unit of a coupon.
type PurchaseEntry struct {
	CustomerID int64 `json:"customerId"`
	CouponID   int64 `json:"couponId"`
}

// ListQuery narrows a catalog listing. Nil fields are not applied.
type ListQuery struct {
	Category *Category
	MaxPrice *decimal.Decimal
}

// CouponFilter is the repository-level selection predicate.
type CouponFilter struct {
	CompanyID   int64
	CustomerID  int64
	Category    *Category
	MaxPrice    *decimal.Decimal // strictly less than
	AvailableOn *Date            // amount > 0 and endDate >= day
}

// Matches reports whether c satisfies every set field of f except CustomerID,
// which needs ledger data.
func (f CouponFilter) Matches(c *Coupon) bool {
	if f.CompanyID != 0 && c.CompanyID != f.CompanyID {
		return false
	}
	if f.Category != nil && c.Category != *f.Category {
		return false
	}
	if f.MaxPrice != nil && !c.Price.LessThan(*f.MaxPrice) {
		return false
	}
	if f.AvailableOn != nil && !c.AvailableOn(*f.AvailableOn) {
		return false
	}
	return true
}

// PurchaseRequest is the body of a purchase call.
type PurchaseRequest struct {
	CouponID int64 `json:"couponId" validate:"gt=0"`
}

// SweepResult reports the outcome of an expiration sweep.
type SweepResult struct {
	AsOf    Date `json:"asOf"`
	Removed int  `json:"removed"`
}
