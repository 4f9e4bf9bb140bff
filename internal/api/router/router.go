package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/spa-booking-wizard/internal/audit"
	"github.com/wolfman30/spa-booking-wizard/internal/auth"
	"github.com/wolfman30/spa-booking-wizard/internal/bookings"
	httpmiddleware "github.com/wolfman30/spa-booking-wizard/internal/http/middleware"
	"github.com/wolfman30/spa-booking-wizard/internal/wizard"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	AuthHandler        *auth.Handler
	Authenticator      httpmiddleware.SessionAuthenticator
	WizardHandler      *wizard.Handler
	BookingsHandler    *bookings.Handler
	AuditHandler       *audit.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// HealthChecks are run by /health; any failure turns it into a 503.
	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.AuthHandler != nil {
			public.With(
				httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
				middleware.AllowContentType("application/json"),
			).Post("/auth/sign-in", cfg.AuthHandler.SignIn)
		}
	})

	if cfg.Authenticator == nil {
		return r
	}

	// Signed-in routes
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.RequireSession(cfg.Authenticator))
		private.Use(middleware.AllowContentType("application/json"))

		if cfg.AuthHandler != nil {
			private.Post("/auth/sign-out", cfg.AuthHandler.SignOut)
			private.Get("/auth/me", cfg.AuthHandler.Me)
		}
		if cfg.WizardHandler != nil {
			private.Mount("/wizard/sessions", cfg.WizardHandler.Routes())
		}
		if cfg.BookingsHandler != nil {
			private.Mount("/bookings", cfg.BookingsHandler.Routes())
		}
		if cfg.AuditHandler != nil {
			private.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireRole(auth.RoleAdmin))
				admin.Get("/wizard-sessions/{sessionID}/audit", cfg.AuditHandler.ListForSession)
			})
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = err.Error()
				continue
			}
			resp[name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
