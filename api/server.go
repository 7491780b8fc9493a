/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/wallets/*       Wallet management and statements
  /api/transactions/*  Ledger entry lifecycle
  /api/sponsorships/*  Sponsorship fund management
  /api/plans/*         Benefit plan catalog
  /api/enrollments/*   HMO enrollment lifecycle
  /api/claims/*        Claim submission and adjudication workflow

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Wallet routes
		r.Route("/wallets", func(r chi.Router) {
			r.Post("/", h.CreateWallet)
			r.Get("/{id}", h.GetWallet)
			r.Get("/{id}/transactions", h.GetWalletTransactions)
			r.Post("/{id}/deposit", h.Deposit)
			r.Post("/{id}/withdraw", h.Withdraw)
			r.Post("/{id}/freeze", h.FreezeWallet)
			r.Post("/{id}/close", h.CloseWallet)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.InitiateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Post("/{id}/complete", h.CompleteTransaction)
			r.Post("/{id}/fail", h.FailTransaction)
			r.Post("/{id}/cancel", h.CancelTransaction)
			r.Post("/{id}/reverse", h.ReverseTransaction)
		})

		// Sponsorship routes
		r.Route("/sponsorships", func(r chi.Router) {
			r.Post("/", h.CreateSponsorship)
			r.Get("/", h.ListSponsorships)
			r.Get("/{id}", h.GetSponsorship)
			r.Post("/{id}/activate", h.ActivateSponsorship)
			r.Post("/{id}/utilize", h.Utilize)
			r.Post("/{id}/pause", h.PauseSponsorship)
			r.Post("/{id}/resume", h.ResumeSponsorship)
			r.Post("/{id}/terminate", h.TerminateSponsorship)
			r.Post("/{id}/renew", h.RenewSponsorship)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.CreatePlan)
			r.Get("/", h.ListPlans)
			r.Get("/{id}", h.GetPlan)
		})

		// Enrollment routes
		r.Route("/enrollments", func(r chi.Router) {
			r.Post("/", h.Enroll)
			r.Get("/{id}", h.GetEnrollment)
			r.Post("/{id}/activate", h.ActivateEnrollment)
			r.Post("/{id}/suspend", h.SuspendEnrollment)
			r.Post("/{id}/resume", h.ResumeEnrollment)
			r.Post("/{id}/cancel", h.CancelEnrollment)
			r.Post("/{id}/renew", h.RenewEnrollment)
		})

		// Claim routes
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.SubmitClaim)
			r.Get("/", h.ListClaims)
			r.Get("/{id}", h.GetClaim)
			r.Post("/{id}/review", h.ReviewClaim)
			r.Post("/{id}/approve", h.ApproveClaim)
			r.Post("/{id}/reject", h.RejectClaim)
			r.Post("/{id}/appeal", h.AppealClaim)
			r.Post("/{id}/cancel", h.CancelClaim)
			r.Post("/{id}/pay", h.PayClaim)
		})
	})

	return r
}
