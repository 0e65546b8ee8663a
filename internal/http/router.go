package http

import (
	"net/http"

	"github.com/fjod/go_cart/shop-api/internal/config"
	"github.com/fjod/go_cart/shop-api/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Deps struct {
	Config   config.Config
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
	Carts    CartService
	Orders   OrderLister
	Sessions SessionVerifier
	Webhooks WebhookProcessor
}

// NewRouter wires every route. The payment webhook sits outside the
// session group so its body reaches the handler untouched.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}

	cartHandler := NewCartHandler(d.Carts, m, cfg.RequestTimeout, d.Log)
	userHandler := NewUserHandler(d.Carts, d.Sessions, cfg.AppEnv == "production", cfg.RequestTimeout, d.Log)
	ordersHandler := NewOrdersHandler(d.Orders, cfg.RequestTimeout, d.Log)
	webhookHandler := NewWebhookHandler(d.Webhooks, m, cfg.MaxRequestBodyBytes, d.Log)
	limiter := newUserRateLimiter(cfg.CartRateLimit, cfg.CartRateBurst)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(m.Instrument)
	r.Use(newCORSPolicy(cfg.CORSAllowedOrigins, cfg.CORSAllowedPatterns).handler)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API is Working"))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Post("/stripe", webhookHandler.Handle)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.RequestSize(cfg.MaxRequestBodyBytes))
		r.Use(requireSession(d.Sessions))
		r.Use(limiter.handler)

		r.Route("/user", func(r chi.Router) {
			r.Get("/is-auth", userHandler.IsAuth)
			r.Post("/logout", userHandler.Logout)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/update", cartHandler.Update)
		})
		r.Route("/order", func(r chi.Router) {
			r.Get("/user", ordersHandler.ListOrders)
		})
	})

	return otelhttp.NewHandler(r, "shop-api")
}
