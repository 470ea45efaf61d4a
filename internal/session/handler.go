package session

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bitmex-tools/feedrelay/internal/registry"
)

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	reg      *registry.Registry
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the client-facing WebSocket handler.
func NewHandler(reg *registry.Registry, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reg:    reg,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs the session until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := newSession(conn, h.reg, h.cfg, h.logger)
	h.logger.Info("session opened", "client", s.ID(), "remote", r.RemoteAddr)
	s.run(r.Context())
}
