/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Verifier:   JWT from Authorization header or cookie (under /api)
  6. RequireActor: claims sub/role into leave.Actor (under /api)

ROUTE GROUPS:
  /healthz               Liveness, no auth
  /api/companies/*       Company policy, calendar, employees, batch ops
  /api/employees/*       Ledger, requests, preview
  /api/requests/*        Read, approve, reject

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification and actor extraction
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions tunes NewRouter. Zero values are usable.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, ja *jwtauth.JWTAuth, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(jwtauth.Verifier(ja))
		r.Use(RequireActor)

		// Company routes
		r.Route("/companies/{companyID}", func(r chi.Router) {
			r.Get("/", h.GetCompany)
			r.Put("/", h.SaveCompany)
			r.Get("/overrides", h.ListOverrides)
			r.Put("/overrides/{date}", h.PutOverride)
			r.Delete("/overrides/{date}", h.DeleteOverride)
			r.Get("/chargeable", h.Chargeable)
			r.Post("/employees", h.RegisterEmployee)
			r.Post("/backfill", h.Backfill)
			r.Post("/accrual", h.RunAccrual)
		})

		// Employee routes
		r.Route("/employees/{employeeID}", func(r chi.Router) {
			r.Get("/ledger", h.GetLedger)
			r.Post("/requests", h.CreateRequest)
			r.Post("/preview", h.Preview)
		})

		// Request approval routes
		r.Route("/requests/{requestID}", func(r chi.Router) {
			r.Get("/", h.GetRequest)
			r.Post("/approve", h.ApproveRequest)
			r.Post("/reject", h.RejectRequest)
		})
	})

	return r
}
