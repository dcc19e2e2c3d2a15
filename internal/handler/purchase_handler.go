package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/service"

	"github.com/rs/zerolog"
)

// PurchaseHandler handles customer purchases.
type PurchaseHandler struct {
	purchases service.PurchaseService
	logger    zerolog.Logger
}

// NewPurchaseHandler creates a new purchase handler.
func NewPurchaseHandler(purchases service.PurchaseService, logger zerolog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		purchases: purchases,
		logger:    logger.With().Str("handler", "purchase").Logger(),
	}
}

// Purchase handles POST /api/customers/{customerID}/purchases.
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.PurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := model.ValidateStruct(&req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	coupon, err := h.purchases.Purchase(r.Context(), customerID, req.CouponID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

// SweepRunner triggers an expiration sweep on demand.
type SweepRunner interface {
	RunNow(ctx context.Context) (int, error)
}

// AdminHandler handles administrative maintenance requests.
type AdminHandler struct {
	sweeps SweepRunner
	now    func() time.Time
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(sweeps SweepRunner, now func() time.Time, logger zerolog.Logger) *AdminHandler {
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{
		sweeps: sweeps,
		now:    now,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// RunSweep handles POST /api/admin/sweeps.
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	asOf := model.DateOf(h.now())
	removed, err := h.sweeps.RunNow(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.logger.Info().Int("removed", removed).Msg("on-demand expiration sweep finished")
	writeJSON(w, http.StatusOK, model.SweepResult{AsOf: asOf, Removed: removed})
}
