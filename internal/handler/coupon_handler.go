package handler

import (
	"net/http"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/service"

	"github.com/rs/zerolog"
)

// CouponHandler handles catalog and company coupon requests.
type CouponHandler struct {
	catalog service.CatalogService
	coupons service.CouponService
	logger  zerolog.Logger
}

// NewCouponHandler creates a new coupon handler.
func NewCouponHandler(catalog service.CatalogService, coupons service.CouponService, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		catalog: catalog,
		coupons: coupons,
		logger:  logger.With().Str("handler", "coupon").Logger(),
	}
}

// ListAvailable handles GET /api/coupons.
func (h *CouponHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	coupons, err := h.catalog.ListAvailable(r.Context(), q)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(coupons))
}

// Get handles GET /api/coupons/{couponID}.
func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	couponID, err := pathID(r, "couponID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	coupon, err := h.catalog.Get(r.Context(), couponID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

// ListByCompany handles GET /api/companies/{companyID}/coupons.
func (h *CouponHandler) ListByCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	q, err := listQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	coupons, err := h.catalog.ListByCompany(r.Context(), companyID, q)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(coupons))
}

// ListByCustomer handles GET /api/customers/{customerID}/coupons.
func (h *CouponHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	q, err := listQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	coupons, err := h.catalog.ListByCustomer(r.Context(), customerID, q)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(coupons))
}

// Add handles POST /api/companies/{companyID}/coupons.
func (h *CouponHandler) Add(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var coupon model.Coupon
	if err := decodeBody(r, &coupon); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	created, err := h.coupons.Add(r.Context(), companyID, &coupon)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/companies/{companyID}/coupons/{couponID}.
func (h *CouponHandler) Update(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	couponID, err := pathID(r, "couponID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var coupon model.Coupon
	if err := decodeBody(r, &coupon); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if coupon.ID != 0 && coupon.ID != couponID {
		writeError(w, r, validationError("body id %d does not match path id %d", coupon.ID, couponID), h.logger)
		return
	}
	coupon.ID = couponID

	updated, err := h.coupons.Update(r.Context(), companyID, &coupon)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/companies/{companyID}/coupons/{couponID}.
func (h *CouponHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	couponID, err := pathID(r, "couponID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.coupons.Delete(r.Context(), companyID, couponID); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(coupons []model.Coupon) []model.Coupon {
	if coupons == nil {
		return []model.Coupon{}
	}
	return coupons
}
