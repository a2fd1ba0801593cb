// Package ws exposes the live event stream over a WebSocket endpoint.
//
// The handler trusts the identity middleware: role and country come from the
// request context, never from the client. Each accepted socket becomes one
// registered connection; the write pump drains the connection's event channel
// and the read pump exists only to notice the peer going away.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mssola/useragent"

	"citeline/internal/notify"
	"citeline/pkg/requestcontext"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second

	// pingInterval must beat pongTimeout or healthy peers get dropped.
	pingInterval = 50 * time.Second

	maxInboundBytes = 512
)

// Handler upgrades authenticated requests and bridges them to the broadcaster.
type Handler struct {
	broadcaster *notify.Broadcaster
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func NewHandler(broadcaster *notify.Broadcaster, opts ...Option) *Handler {
	h := &Handler{
		broadcaster: broadcaster,
		logger:      slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and pumps events until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}

	ua := useragent.New(r.Header.Get("User-Agent"))
	agent, _ := ua.Browser()

	conn := notify.NewConnection(userID, requestcontext.Role(ctx), requestcontext.Country(ctx), agent)
	h.broadcaster.Register(conn)

	h.logger.InfoContext(ctx, "live connection opened",
		"user_id", userID.String(),
		"role", string(conn.Role),
		"agent", agent,
	)

	go h.readPump(socket, conn)
	h.writePump(socket, conn)

	h.broadcaster.Deregister(conn)
	_ = socket.Close()

	h.logger.InfoContext(ctx, "live connection closed", "user_id", userID.String())
}

// writePump drains the connection's event channel onto the socket and keeps
// the peer alive with pings. Returns when the channel closes (deregistration
// or pruning) or a write fails.
func (h *Handler) writePump(socket *websocket.Conn, conn *notify.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-conn.Events():
			if !ok {
				_ = socket.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "too slow"))
				return
			}
			_ = socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is server-to-client only. Its
// job is pong handling and noticing the close handshake, at which point it
// deregisters so the write pump unblocks.
func (h *Handler) readPump(socket *websocket.Conn, conn *notify.Connection) {
	defer h.broadcaster.Deregister(conn)

	socket.SetReadLimit(maxInboundBytes)
	_ = socket.SetReadDeadline(time.Now().Add(pongTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := socket.ReadMessage(); err != nil {
			return
		}
	}
}
