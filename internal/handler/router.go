package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/octa-payouts/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса выплат.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimw.Recoverer)
	if len(h.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(custommiddleware.GzipMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/auth/profile", h.Profile)
			r.Get("/balance", h.Balance)

			r.Post("/kyc", h.SubmitKYC)
			r.Get("/kyc", h.GetKYC)

			r.Post("/withdrawals", h.Withdraw)
			r.Get("/withdrawals", h.GetWithdrawals)

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireStaff)

				r.Get("/users/pending", h.PendingUsers)
				r.Get("/users/approved", h.ApprovedUsers)
				r.Post("/users/approve", h.ApproveUser)
				r.Post("/users/reject", h.RejectUser)
				r.Post("/users/{id}/credit", h.CreditUser)

				r.Get("/withdrawals/pending", h.PendingWithdrawals)
				r.Post("/withdrawals/{id}/process", h.ProcessWithdrawal)
				r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
			})
		})
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.documents != nil && h.documentsPrefix != "" {
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.documentAccess)

			r.Method(http.MethodGet, h.documentsPrefix+"/*", h.documents)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Error: "NotFound", Message: "route not found"})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "BadRequest", Message: "method not allowed"})
	})

	return r
}
