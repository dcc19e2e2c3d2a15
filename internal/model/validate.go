package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(couponStructLevel, Coupon{})
	return v
}

func couponStructLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(Coupon)
	if c.StartDate.IsZero() {
		sl.ReportError(c.StartDate, "startDate", "StartDate", "required", "")
	}
	if c.EndDate.IsZero() {
		sl.ReportError(c.EndDate, "endDate", "EndDate", "required", "")
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		sl.ReportError(c.EndDate, "endDate", "EndDate", "gtefield", "startDate")
	}
	if c.Price.IsNegative() {
		sl.ReportError(c.Price, "price", "Price", "gte", "0")
	}
	if !c.Price.Equal(c.Price.Truncate(PriceScale)) {
		sl.ReportError(c.Price, "price", "Price", "decimals", fmt.Sprint(PriceScale))
	}
	if c.Price.GreaterThanOrEqual(PriceLimit) {
		sl.ReportError(c.Price, "price", "Price", "lt", PriceLimit.String())
	}
}

// ValidateStruct checks v against its validate tags and returns a
// VALIDATION_ERROR DomainError describing every failing field.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// ValidateCoupon enforces the coupon field rules used on every write.
func ValidateCoupon(c *Coupon) error {
	if c == nil {
		return NewDomainError(ErrCodeValidation, "coupon is required")
	}
	return ValidateStruct(c)
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return WrapDomainError(ErrCodeValidation, "validation failed", err)
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fe.Field()+" "+validationMessage(fe))
	}
	sort.Strings(msgs)
	return NewDomainError(ErrCodeValidation, "validation failed: "+strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "decimals":
		return fmt.Sprintf("must have at most %s decimal places", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	case "category":
		return "must be a known category"
	}
	return "is invalid"
}
