// Package projection builds local views from observed notifications.
// Handles roster reconciliation and message timelines.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"sync"
	"time"

	"session-lab/domain"
	"session-lab/domain/event"

	"github.com/samber/lo"
)

// Entry is one line of conversation, sent or received.
type Entry struct {
	Session  domain.SessionID
	Author   domain.Identity
	Text     string
	Outgoing bool
	At       time.Time
}

// Timeline holds a simple local timeline
type Timeline struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) Consume(_ context.Context, n event.Notification) error {
	var entry Entry
	switch evt := n.(type) {
	case event.MessageReceived:
		entry = Entry{Session: evt.Session, Author: evt.Source, Text: evt.Text, At: evt.At}
	case event.MessageSent:
		entry = Entry{Session: evt.Session, Author: evt.Author, Text: evt.Text, Outgoing: true, At: evt.At}
	default:
		return nil
	}
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return nil
}

// Entries returns a copy of the timeline, optionally restricted to one session.
func (t *Timeline) Entries(session domain.SessionID) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Filter(t.entries, func(e Entry, _ int) bool {
		return session == "" || e.Session == session
	})
}

func (t *Timeline) Texts() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Map(t.entries, func(e Entry, _ int) string {
		return e.Text
	})
}
