// Package ws carries progress broadcasts over websocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"freight/internal/core/application/broadcast"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderClientType = "X-Client-Type"
)

// Hub is the broadcaster surface a connection needs.
type Hub interface {
	Connect(identity broadcast.Identity) (*broadcast.Session, error)
	HandleEvent(ctx context.Context, s *broadcast.Session, event broadcast.ClientEvent) error
	NotifyError(s *broadcast.Session, message string)
	Disconnect(s *broadcast.Session)
}

// Config tunes connection keepalive.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	pongWait := 60 * time.Second
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     pongWait * 9 / 10,
		MaxMessageSize: 4096,
	}
}

// Handler upgrades HTTP requests to websocket sessions on the hub.
type Handler struct {
	hub      Hub
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(hub Hub, cfg Config, logger *zap.Logger) *Handler {
	return &Handler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Callers are authenticated by identity headers, not by origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Named("ws"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := broadcast.Identity{
		UserID:     r.Header.Get(HeaderUserID),
		Role:       r.Header.Get(HeaderUserRole),
		ClientType: r.Header.Get(HeaderClientType),
	}
	if err := identity.Validate(); err != nil {
		writeUnauthorized(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Debug("upgrade websocket", zap.Error(err))
		return
	}

	session, err := h.hub.Connect(identity)
	if err != nil {
		h.logger.Warn("register session", zap.Error(err))
		_ = conn.Close()
		return
	}

	c := &connection{
		conn:    conn,
		session: session,
		hub:     h.hub,
		cfg:     h.cfg,
		logger:  h.logger.With(zap.Stringer("sessionId", session.ID()), zap.String("userId", identity.UserID)),
	}
	go c.writeLoop()
	c.readLoop(r.Context())
}

func writeUnauthorized(w http.ResponseWriter, cause error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusUnauthorized,
		"message": "missing caller identity: " + cause.Error(),
	})
}

// connection owns one socket. readLoop is the only reader and writeLoop the
// only writer.
type connection struct {
	conn    *websocket.Conn
	session *broadcast.Session
	hub     Hub
	cfg     Config
	logger  *zap.Logger
}

// readLoop decodes client frames until the socket fails, then disconnects
// the session, which in turn stops writeLoop.
func (c *connection) readLoop(ctx context.Context) {
	defer c.hub.Disconnect(c.session)

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read websocket", zap.Error(err))
			}
			return
		}

		event, err := broadcast.DecodeClientEvent(frame)
		if err != nil {
			c.hub.NotifyError(c.session, err.Error())
			continue
		}

		if err = c.hub.HandleEvent(ctx, c.session, event); err != nil {
			if errors.Is(err, broadcast.ErrSessionClosed) {
				return
			}
			c.logger.Debug("handle client event", zap.String("type", event.EventType()), zap.Error(err))
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.session.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return

		case msg := <-c.session.Outbound():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.session.MarkUnhealthy()
				c.logger.Warn("write websocket", zap.String("type", msg.MessageType()), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.session.MarkUnhealthy()
				c.logger.Debug("ping websocket", zap.Error(err))
				return
			}
		}
	}
}
