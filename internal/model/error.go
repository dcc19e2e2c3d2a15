package model

import (
	"errors"
	"net/http"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Code classifies a failure surfaced by the inventory core.
type Code string

// Standard error codes for API responses
const (
	ErrCodeNotFound           Code = "NOT_FOUND"
	ErrCodeAlreadyPurchased   Code = "ALREADY_PURCHASED"
	ErrCodeOutOfStock         Code = "OUT_OF_STOCK"
	ErrCodeExpired            Code = "EXPIRED"
	ErrCodeInvariantViolation Code = "INVARIANT_VIOLATION"
	ErrCodeStoreUnavailable   Code = "STORE_UNAVAILABLE"
	ErrCodeValidation         Code = "VALIDATION_ERROR"
	ErrCodeConflict           Code = "CONFLICT"
	ErrCodeCancelled          Code = "REQUEST_CANCELLED"
	ErrCodeUnauthorised       Code = "UNAUTHORIZED"
	ErrCodeInternalError      Code = "INTERNAL_ERROR"
)

// Metadata describes how a code is surfaced at the HTTP boundary.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
}

var codeMetadata = map[Code]Metadata{
	ErrCodeNotFound:           {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	ErrCodeAlreadyPurchased:   {HTTPStatus: http.StatusConflict, PublicMessage: "coupon already purchased by this customer"},
	ErrCodeOutOfStock:         {HTTPStatus: http.StatusConflict, PublicMessage: "coupon is out of stock"},
	ErrCodeExpired:            {HTTPStatus: http.StatusConflict, PublicMessage: "coupon has expired"},
	ErrCodeInvariantViolation: {HTTPStatus: http.StatusInternalServerError, PublicMessage: "inventory inconsistency detected"},
	ErrCodeStoreUnavailable:   {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "store temporarily unavailable"},
	ErrCodeValidation:         {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed"},
	ErrCodeConflict:           {HTTPStatus: http.StatusConflict, PublicMessage: "resource conflict"},
	ErrCodeCancelled:          {HTTPStatus: http.StatusRequestTimeout, Retryable: true, PublicMessage: "request cancelled"},
	ErrCodeUnauthorised:       {HTTPStatus: http.StatusUnauthorized, PublicMessage: "unauthorised"},
	ErrCodeInternalError:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
}

// MetadataFor returns the HTTP metadata for a code, defaulting to internal error.
func MetadataFor(code Code) Metadata {
	if md, ok := codeMetadata[code]; ok {
		return md
	}
	return codeMetadata[ErrCodeInternalError]
}

// DomainError is a classified business failure.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError carrying the same code, so errors.Is(err, ErrNotFound)
// holds for every not-found failure regardless of its message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code Code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError classifies cause under code.
func WrapDomainError(code Code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// CodeOf returns the code of the first DomainError in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// Common domain errors
var (
	ErrNotFound           = NewDomainError(ErrCodeNotFound, "not found")
	ErrCouponNotFound     = NewDomainError(ErrCodeNotFound, "coupon not found")
	ErrCustomerNotFound   = NewDomainError(ErrCodeNotFound, "customer not found")
	ErrCompanyNotFound    = NewDomainError(ErrCodeNotFound, "company not found")
	ErrAlreadyPurchased   = NewDomainError(ErrCodeAlreadyPurchased, "customer already purchased this coupon")
	ErrOutOfStock         = NewDomainError(ErrCodeOutOfStock, "coupon is out of stock")
	ErrExpired            = NewDomainError(ErrCodeExpired, "coupon has expired")
	ErrInvariantViolation = NewDomainError(ErrCodeInvariantViolation, "inventory invariant violated")
	ErrStockViolation     = NewDomainError(ErrCodeInvariantViolation, "stock would become negative")
	ErrDuplicateEntry     = NewDomainError(ErrCodeInvariantViolation, "purchase entry already exists")
	ErrStoreUnavailable   = NewDomainError(ErrCodeStoreUnavailable, "store unavailable")
	ErrValidation         = NewDomainError(ErrCodeValidation, "validation failed")
	ErrCancelled          = NewDomainError(ErrCodeCancelled, "request cancelled")
	ErrTitleTaken         = NewDomainError(ErrCodeConflict, "company already has a coupon with this title")
	ErrNotOwner           = NewDomainError(ErrCodeNotFound, "coupon does not belong to this company")
)
