package repositories

import (
	"sync"

	"github.com/ametov/paraphrase-bot/internal/models"
)

// SessionRepo holds the ephemeral per-user conversation state. It lives in
// memory only; the ledger is authoritative, and a missing entry reads back
// as an idle session.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[int64]models.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[int64]models.Session)}
}

func (r *SessionRepo) GetSession(userId int64) models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[userId]; ok {
		return session
	}
	return models.NewSession(userId)
}

func (r *SessionRepo) SaveSession(session models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.UserId] = session
}

func (r *SessionRepo) ClearSession(userId int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userId)
}
