// Package domain contains core concepts of the session overlay.
// This file defines Message, the unit exchanged inside a session.
// Messages are immutable once received.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an application payload received from a session.
type Message struct {
	ID         uuid.UUID
	Session    SessionID
	Source     Identity
	Payload    []byte
	ReceivedAt time.Time
}

func (m Message) Text() string {
	return string(m.Payload)
}
