/*
server.go - HTTP server setup and routing

PURPOSE:
  Wires the chi router, middleware stack, and route table for the
  expense tracker API.

MIDDLEWARE:
  - RequestID, RealIP, Recoverer from chi
  - CORS (origins from config)
  - Structured request logging via zerolog

SEE ALSO:
  - handlers.go: Route handlers
  - scheduler.go: Background auto-lock sweeper
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter builds the HTTP router with all routes registered.
func NewRouter(h *Handler, log zerolog.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/participants", func(r chi.Router) {
			r.Get("/", h.ListParticipants)
			r.Post("/", h.PutParticipant)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/active", h.ListActiveTemplates)
			r.Route("/{templateID}", func(r chi.Router) {
				r.Get("/", h.GetTemplate)
				r.Put("/", h.UpdateTemplate)
				r.Delete("/", h.DeleteTemplate)
				r.Put("/active", h.SetTemplateActive)
			})
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.ListPurchases)
			r.Post("/", h.CreatePurchase)
			r.Route("/{purchaseID}", func(r chi.Router) {
				r.Get("/", h.GetPurchase)
				r.Put("/total", h.EditTotal)
				r.Post("/lock", h.LockPurchase)
				r.Post("/unlock", h.UnlockPurchase)
				r.Post("/resolve", h.ResolvePurchase)
				r.Post("/auto-settle", h.AutoSettleBuyer)

				r.Route("/ledger", func(r chi.Router) {
					r.Get("/", h.GetLedger)
					r.Put("/", h.SetManualShares)
					r.Post("/template", h.BuildFromTemplate)
					r.Post("/equalize", h.RedistributeEqually)
					r.Route("/members/{participantID}", func(r chi.Router) {
						r.Put("/", h.UpdateMemberShares)
						r.Delete("/", h.RemoveParticipant)
					})
				})

				r.Route("/distributions/{distributionID}", func(r chi.Router) {
					r.Put("/paid", h.SetPaid)
					r.Put("/amount", h.OverrideAmount)
					r.Delete("/amount", h.ClearOverride)
				})
			})
		})
	})

	return r
}

// requestLogger logs one line per request with method, path, status,
// and latency.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
