package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
)

// SessionContext identifies the authenticated client behind a connection.
type SessionContext struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	RequestID string
}

// SessionState is the single-writer per-session state. Only the session's own
// event loop touches it, so no lock is needed on the fields themselves.
type SessionState struct {
	seq     int64
	turnSeq int64

	turn                  *domain.Turn
	pendingPrompt         string
	pendingConfirmationID uuid.UUID
}

func (s *SessionState) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *SessionState) nextTurnSeq() int64 {
	s.turnSeq++
	return s.turnSeq
}

func (s *SessionState) resetTurn(t *domain.Turn) {
	s.turn = t
	s.turnSeq = 0
}

func (s *SessionState) clearPending() {
	s.pendingPrompt = ""
	s.pendingConfirmationID = uuid.Nil
}

// Registry maps live session ids to their state. Each session owns its own
// single-writer state; the registry lock only guards the map.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*SessionState
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*SessionState)}
}

// Get returns the state for the session, creating it on first use.
func (r *Registry) Get(sessionID uuid.UUID) *SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[sessionID]
	if !ok {
		state = &SessionState{}
		r.sessions[sessionID] = state
	}
	return state
}

// Drop removes a session's state when its connection closes.
func (r *Registry) Drop(sessionID uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
