package websocket

import (
	"sync/atomic"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/SARVESHVARADKAR123/marketchat/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	SendQueueSize  = 128
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Session is one authenticated connection. It is bound to UserID for its
// whole lifetime; all writes after admission go through SendQueue so that a
// single goroutine owns the connection's write side.
type Session struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	Conn      *websocket.Conn
	SendQueue chan []byte
	done      chan struct{}
	closed    atomic.Int32
}

func NewSession(id, userID string, conn *websocket.Conn, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = SendQueueSize
	}
	return &Session{
		ID:          id,
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		Conn:        conn,
		SendQueue:   make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
}

func (s *Session) Start() {
	go s.writeLoop()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) IsClosed() bool {
	return s.closed.Load() == 1
}

// TrySend queues msg without blocking. A full queue means the peer cannot
// keep up; the session is closed and the push counts as a failed delivery.
func (s *Session) TrySend(msg []byte) bool {
	if s.closed.Load() == 1 {
		return false
	}
	select {
	case s.SendQueue <- msg:
		return true
	default:
		observability.Log.Warn("session: backpressure overflow, dropping connection",
			zap.String("user_id", s.UserID), zap.String("session_id", s.ID))
		s.CloseWithReason(websocket.CloseTryAgainLater, "backpressure overflow")
		return false
	}
}

func (s *Session) SendEnvelope(env protocol.Envelope) bool {
	payload, err := protocol.Encode(env)
	if err != nil {
		observability.Log.Error("session: failed to encode envelope", zap.Error(err))
		return false
	}
	return s.TrySend(payload)
}

func (s *Session) Close() {
	s.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

func (s *Session) CloseWithReason(code int, reason string) {
	if !s.closed.CompareAndSwap(0, 1) {
		return
	}

	observability.Log.Debug("session: closing",
		zap.String("user_id", s.UserID), zap.String("session_id", s.ID),
		zap.Int("code", code), zap.String("reason", reason))
	close(s.done)

	if s.Conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = s.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.Conn.Close()
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case msg := <-s.SendQueue:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				observability.Log.Debug("session: write error",
					zap.String("user_id", s.UserID), zap.String("session_id", s.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				observability.Log.Debug("session: ping error",
					zap.String("user_id", s.UserID), zap.String("session_id", s.ID), zap.Error(err))
				return
			}
		case <-s.done:
			return
		}
	}
}
