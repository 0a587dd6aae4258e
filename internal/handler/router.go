/*
Package handler provides the HTTP handlers and routing setup for the Parley server.

This file defines the main Router, applying middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers
(REST API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"parley/internal/pkg/limiter"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"
)

const (
	// UpgradeRate and UpgradeBurst budget WebSocket upgrades per IP.
	UpgradeRate  = 0.2
	UpgradeBurst = 5

	// NoticeRate and NoticeBurst budget operational notice posts per IP.
	NoticeRate  = 0.1
	NoticeBurst = 3
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	upgradeLimiter := limiter.NewIPRateLimiter(rate.Limit(UpgradeRate), UpgradeBurst)
	noticeLimiter := limiter.NewIPRateLimiter(rate.Limit(NoticeRate), NoticeBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "Parley",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/rooms", HandleListRooms(deps))
		api.Get("/rooms/{room}/history", HandleRoomHistory(deps))

		rateLimitedNoticeHandler := noticeLimiter.Middleware(HandlePostNotice(deps))
		api.Post("/rooms/{room}/notices", rateLimitedNoticeHandler.ServeHTTP)
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, upgradeLimiter, deps))

	return r
}
