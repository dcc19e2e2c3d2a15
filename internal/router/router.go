package router

import (
	"net/http"

	"github.com/vitaly-zn/coupons-project-back-end/internal/handler"
	"github.com/vitaly-zn/coupons-project-back-end/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Coupons   *handler.CouponHandler
	Purchases *handler.PurchaseHandler
	Admin     *handler.AdminHandler
}

// Options configure authentication and metrics exposure.
type Options struct {
	APIKey   string
	AdminKey string
	Gatherer prometheus.Gatherer
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(opts.APIKey, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/coupons", h.Coupons.ListAvailable)
		r.Get("/coupons/{couponID}", h.Coupons.Get)

		r.Route("/companies/{companyID}/coupons", func(r chi.Router) {
			r.Get("/", h.Coupons.ListByCompany)
			r.Post("/", h.Coupons.Add)
			r.Put("/{couponID}", h.Coupons.Update)
			r.Delete("/{couponID}", h.Coupons.Delete)
		})

		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Get("/coupons", h.Coupons.ListByCustomer)
			r.Post("/purchases", h.Purchases.Purchase)
		})

		if h.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminKeyAuth(opts.AdminKey, logger))
				r.Post("/sweeps", h.Admin.RunSweep)
			})
		}
	})

	return r
}
