package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/SARVESHVARADKAR123/marketchat/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Sender turns an authenticated send_message into a persisted, delivered message.
type Sender interface {
	Send(ctx context.Context, from *Session, env protocol.Envelope)
}

// Presence tracks which instance hosts a session. Optional.
type Presence interface {
	Register(ctx context.Context, userID, sessionID string) error
	Unregister(ctx context.Context, userID, sessionID string) error
	Refresh(ctx context.Context, userID, sessionID string) error
}

// Authenticator checks the credential presented in an auth envelope. Optional;
// without one the identity in the envelope is trusted.
type Authenticator interface {
	Authenticate(userID, token string) error
}

type Handler struct {
	registry *Registry
	sender   Sender
	presence Presence
	auth     Authenticator
}

type Option func(*Handler)

func WithPresence(p Presence) Option {
	return func(h *Handler) { h.presence = p }
}

func WithAuthenticator(a Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

func NewHandler(registry *Registry, sender Sender, opts ...Option) *Handler {
	h := &Handler{
		registry: registry,
		sender:   sender,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogger(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade error", zap.Error(err))
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.readLoop(conn)
}

// connection is the per-connection state owned by its read loop.
type connection struct {
	conn    *websocket.Conn
	session *Session
}

// reply writes directly before admission (the read loop is then the only
// writer) and through the session queue afterwards.
func (c *connection) reply(env protocol.Envelope) {
	if env.Type == protocol.TypeError {
		observability.RejectedEnvelopesTotal.WithLabelValues(env.Code).Inc()
	}
	if c.session != nil {
		c.session.SendEnvelope(env)
		return
	}
	payload, err := protocol.Encode(env)
	if err != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Handler) readLoop(conn *websocket.Conn) {
	c := &connection{conn: conn}
	defer h.cleanup(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				observability.Log.Warn("read loop error", zap.Error(err))
			}
			return
		}
		if c.session != nil && c.session.IsClosed() {
			return
		}
		h.handleFrame(c, data)
	}
}

func (h *Handler) handleFrame(c *connection, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		c.reply(protocol.Error(protocol.CodeProtocol, err.Error(), ""))
		return
	}

	switch env.Type {
	case protocol.TypeAuth:
		h.handleAuth(c, env)
	case protocol.TypeSendMessage:
		if c.session == nil {
			c.reply(protocol.Error(protocol.CodeProtocol, "not authenticated", env.ClientMsgID))
			return
		}
		h.sender.Send(context.Background(), c.session, env)
	default:
		c.reply(protocol.Error(protocol.CodeProtocol, "unexpected envelope type "+string(env.Type), env.ClientMsgID))
	}
}

func (h *Handler) handleAuth(c *connection, env protocol.Envelope) {
	if c.session != nil {
		c.reply(protocol.Error(protocol.CodeProtocol, "already authenticated", ""))
		return
	}
	if h.auth != nil {
		if err := h.auth.Authenticate(env.UserID, env.Token); err != nil {
			c.reply(protocol.Error(protocol.CodeUnauthorized, err.Error(), ""))
			return
		}
	}

	ctx := context.Background()
	log := observability.GetLogger(ctx)

	s := h.registry.Admit(env.UserID, c.conn, protocol.AuthSuccess(env.UserID))
	c.session = s
	s.Start()

	if h.presence != nil {
		if err := h.presence.Register(ctx, s.UserID, s.ID); err != nil {
			log.Error("presence: fail to register", zap.String("user_id", s.UserID), zap.Error(err))
		}
		StartHeartbeat(h.presence, s.UserID, s.ID, s.Done())
	}

	observability.WebSocketConnectionsActive.Inc()
	log.Info("connected", zap.String("user_id", s.UserID), zap.String("session_id", s.ID))
}

func (h *Handler) cleanup(c *connection) {
	s := c.session
	if s == nil {
		c.conn.Close()
		return
	}

	// Removal is immediate; a message addressed to this user from now on
	// only finds the remaining sessions.
	h.registry.Remove(s)
	s.Close()

	ctx := context.Background()
	log := observability.GetLogger(ctx)
	if h.presence != nil {
		if err := h.presence.Unregister(ctx, s.UserID, s.ID); err != nil {
			log.Error("presence: fail to unregister", zap.String("user_id", s.UserID), zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	observability.WebSocketConnectionsActive.Dec()
	log.Info("disconnected", zap.String("user_id", s.UserID), zap.String("session_id", s.ID))
}
