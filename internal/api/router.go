/**
 * @description
 * This file sets up the HTTP router for the bills-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/paynest/bills-service/internal/domain"
)

// BillsRoutes creates and returns a new router for the bills service.
func BillsRoutes(h *BillsHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/bills", func(r chi.Router) {
			// Purchases
			r.Post("/airtime/purchase", h.AirtimePurchaseHandler)
			r.Post("/data/purchase", h.DataPurchaseHandler)
			r.Post("/tv/purchase", h.CablePurchaseHandler)
			r.Post("/electricity/purchase", h.ElectricityPurchaseHandler)
			r.Post("/internet/purchase", h.InternetPurchaseHandler)
			r.Post("/betting/purchase", h.BettingPurchaseHandler)

			// Plan catalogs
			r.Get("/data/plans", h.PlansHandler(domain.ServiceData))
			r.Get("/tv/plans", h.PlansHandler(domain.ServiceTV))
			r.Get("/internet/plans", h.PlansHandler(domain.ServiceInternet))

			// Customer pre-validation
			r.Post("/electricity/validate", h.ElectricityValidateHandler)
			r.Post("/tv/validate", h.CableValidateHandler)

			// Status polling and the airtime retry path
			r.Post("/{service}/status", h.StatusHandler)
			r.Post("/airtime/retry", h.AirtimeRetryHandler)
			r.Post("/airtime/retried-trail", h.AirtimeTrailHandler)
			r.Get("/airtime/purchases", h.AirtimePurchasesHandler)

			// Local ledger
			r.Get("/transactions", h.TransactionsHandler)
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/me", h.WalletHandler)
			r.With(RequireAdmin).Post("/fund", h.WalletFundHandler)
		})
	})

	return r
}
