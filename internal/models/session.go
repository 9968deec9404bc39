package models

type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateAwaitingCount  SessionState = "awaiting_count"
	StateAwaitingAction SessionState = "awaiting_action"
)

// Session is the ephemeral conversational context for one user. It is a
// derived view over the ledger, never authoritative; a missing session is
// equivalent to an idle one.
type Session struct {
	UserId            int64
	State             SessionState
	LastSelectedCount int
	PendingText       string
}

func NewSession(userId int64) Session {
	return Session{UserId: userId, State: StateIdle}
}
