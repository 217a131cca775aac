package main

import (
	"net/http"
	"time"

	"ms-camp-tickets/internal/auth"
	"ms-camp-tickets/internal/comments/comment_api"
	"ms-camp-tickets/internal/logger"
	handlers "ms-camp-tickets/internal/payment/handler"
	"ms-camp-tickets/internal/tickets/ticket_api"
	"ms-camp-tickets/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type routes struct {
	webhook  *handlers.WebhookHandler
	tickets  *ticket_api.Handler
	comments *comment_api.Handler
	// staff routes are mounted only with a verifier
	verifier *oidc.IDTokenVerifier
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func newRouter(rt routes, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	rt.webhook.RegisterRoutes(r)
	log.Info("ROUTER", "Stripe webhook registered at /webhooks/stripe/tickets")

	// --- Protected Routes ---
	if rt.verifier == nil {
		log.Warn("AUTH", "OIDC_ISSUER not set, staff API disabled")
		return r
	}
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(rt.verifier, log))
		rt.tickets.RegisterRoutes(r)
		rt.comments.RegisterRoutes(r)
		log.Info("ROUTER", "Staff routes registered under /api")
	})
	return r
}
