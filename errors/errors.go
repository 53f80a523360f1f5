package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Collaborator taxonomy. Every transport or session failure the core
	// reacts to is classified against one of these.
	ErrTimeout          = fmt.Errorf("session timeout")
	ErrSessionClosed    = fmt.Errorf("session closed")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrTransport        = fmt.Errorf("transport failure")
	ErrInviteFailed     = fmt.Errorf("invite failed")
	ErrNoRoute          = fmt.Errorf("no route to identity")
	ErrNotFound         = fmt.Errorf("not found")
	ErrUnauthorized     = fmt.Errorf("unauthorized")

	ErrInvalidIdentity   = fmt.Errorf("invalid identity")
	ErrNotConnected      = fmt.Errorf("not connected")
	ErrNoActiveSession   = fmt.Errorf("no active session")
	ErrInvalidSessionKey = fmt.Errorf("invalid session key")
	ErrInvalidConfig     = fmt.Errorf("invalid configuration")
)

// SessionError is a mid-session fault reported by the collaborator.
// Terminal errors end the session loop, the others are advisory.
type SessionError struct {
	Reason   string
	Terminal bool
}

func (e *SessionError) Error() string {
	return e.Reason
}

// IsTerminal reports whether err must stop the session loop.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrConnectionClosed) || stderrors.Is(err, ErrWorkerPanic) {
		return true
	}
	var sessionErr *SessionError
	if stderrors.As(err, &sessionErr) {
		return sessionErr.Terminal
	}
	return false
}
