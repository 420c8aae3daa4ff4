package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/coinbot-dev/coinbot/internal/api/httpx"
	"github.com/coinbot-dev/coinbot/internal/auth"
	"github.com/coinbot-dev/coinbot/internal/config"
	"github.com/coinbot-dev/coinbot/internal/metrics"
	"github.com/coinbot-dev/coinbot/internal/middleware"
	"github.com/coinbot-dev/coinbot/internal/repository"
)

// StatusSource is what the router needs to know about the running bot.
type StatusSource interface {
	Ready() bool
	BotName() string
	GuildCount() int
	Latency() time.Duration
}

// NewRouter builds the ops HTTP surface: health probes for uptime
// monitoring, Prometheus metrics, and a JWT-guarded admin snapshot
// download. Login is disabled unless an admin password hash is configured.
func NewRouter(cfg config.Config, store repository.Ledger, status StatusSource, tm *auth.TokenManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RateLimit(100), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	health := func(w http.ResponseWriter, req *http.Request) {
		if !status.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Starting..."))
			return
		}
		_, _ = w.Write([]byte("OK"))
	}
	r.Get("/", health)
	r.Get("/health", health)
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) { _, _ = w.Write([]byte("pong")) })
	// always 200, for dumb uptime monitors
	r.Get("/uptime", func(w http.ResponseWriter, req *http.Request) { _, _ = w.Write([]byte("OK")) })

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		if !status.Ready() {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "starting",
				"message": "Bot is connecting to Discord...",
			})
			return
		}
		users, err := store.UserCount(req.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "storage_fault", err.Error(), nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":      "online",
			"bot_name":    status.BotName(),
			"guilds":      status.GuildCount(),
			"latency_ms":  float64(status.Latency().Microseconds()) / 1000,
			"users_in_db": users,
		})
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
			if cfg.AdminPasswordHash == "" {
				httpx.WriteError(w, http.StatusNotImplemented, "login_disabled", "ops login is not configured", nil)
				return
			}
			var body struct {
				Password string `json:"password"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Password == "" {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "password required", nil)
				return
			}
			if auth.VerifyPassword(body.Password, cfg.AdminPasswordHash) != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
				return
			}
			tok, exp, err := tm.Generate("admin")
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"access_token": tok,
				"expires_in":   int(time.Until(exp).Seconds()),
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Bearer(tm))
			r.Get("/admin/snapshot", func(w http.ResponseWriter, req *http.Request) {
				snap, err := store.Snapshot(req.Context())
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "storage_fault", err.Error(), nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, snap)
			})
		})
	})

	return r
}
