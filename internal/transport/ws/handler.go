package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/typerace-go/internal/model"
)

// Config holds websocket connection tuning
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
}

// DefaultConfig returns the standard connection configuration. The ping
// interval must be shorter than the read timeout so pongs keep idle
// connections alive.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
	}
}

// Handler upgrades HTTP requests to websocket connections and starts their
// pumps. Each connection gets a fresh ID; clients are anonymous until they
// create or join a room.
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	config     Config
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a websocket handler
func NewHandler(hub *Hub, dispatcher Dispatcher, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		config:     config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			// Cross-origin is handled by the CORS middleware upstream
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "ws_handler")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(model.ConnectionID(uuid.NewString()), h.hub, conn, h.dispatcher, h.config, h.logger)
	h.hub.Register(client)

	h.logger.Info("websocket connection established",
		slog.String("connection_id", string(client.ID)),
		slog.String("remote_addr", r.RemoteAddr),
	)

	go client.writePump()
	go client.readPump()
}
