/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for
rate limiting, upgrading the HTTP connection to WebSocket, and starting the
client's read and write loops. Sessions are not created here: a connection
joins a room by sending a JOIN event once upgraded.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"parley/internal/app/gateway"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/limiter"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/randx"
	"parley/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.New(errs.ErrRateLimitExceeded))
			return
		}

		connectionID, err := randx.ConnectionID()
		if err != nil {
			logx.Error(err, "Failed to mint connection ID")
			resp.RespondError(w, r, errs.New(errs.ErrUnknown))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := gateway.NewClient(deps.Hub, conn, connectionID, deps.Config)

		go client.WritePump()

		logx.Info("WebSocket connection established", "connection_id", connectionID)

		client.ReadPump()
	}
}
