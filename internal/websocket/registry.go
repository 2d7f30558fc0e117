package websocket

import (
	"sync"

	"github.com/SARVESHVARADKAR123/marketchat/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Registry maps a user to every live session they own. Readers always get a
// snapshot taken under the lock, never a map that is being mutated.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]*Session
	queueSize int
}

func NewRegistry(queueSize int) *Registry {
	return &Registry{
		sessions:  make(map[string]map[string]*Session),
		queueSize: queueSize,
	}
}

// Admit registers a new session for userID. A user may hold any number of
// concurrent sessions; none is replaced. The greeting is queued before the
// session becomes visible to fan-out, so it is always the first frame sent.
func (r *Registry) Admit(userID string, conn *websocket.Conn, greeting protocol.Envelope) *Session {
	s := NewSession(uuid.NewString(), userID, conn, r.queueSize)
	s.SendEnvelope(greeting)
	r.Add(s)
	return s
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[s.UserID] == nil {
		r.sessions[s.UserID] = make(map[string]*Session)
	}
	r.sessions[s.UserID][s.ID] = s
}

// Remove is idempotent.
func (r *Registry) Remove(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessions, ok := r.sessions[s.UserID]; ok {
		if current, ok := sessions[s.ID]; ok && current == s {
			delete(sessions, s.ID)
			if len(sessions) == 0 {
				delete(r.sessions, s.UserID)
			}
		}
	}
}

// SessionsFor returns the live sessions of userID. An empty result is normal:
// the user is offline and will read the message from history.
func (r *Registry) SessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions[userID]))
	for _, s := range r.sessions[userID] {
		result = append(result, s)
	}
	return result
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sessions := range r.sessions {
		n += len(sessions)
	}
	return n
}

func (r *Registry) CloseAll() {
	r.mu.RLock()
	var all []*Session
	for _, sessions := range r.sessions {
		for _, s := range sessions {
			all = append(all, s)
		}
	}
	r.mu.RUnlock()

	// Close outside the lock: closing unblocks read loops that call Remove.
	for _, s := range all {
		s.Close()
	}
}
