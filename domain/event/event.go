// Package event defines the notifications the orchestrator streams to its sink.
// Every notification renders to exactly one line of text.
package event

import (
	"fmt"
	"strings"
	"time"

	"session-lab/domain"

	"github.com/samber/lo"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

type Notification interface {
	Line() string
	OccurredAt() time.Time
}

type LogLine struct {
	Level Level
	Text  string
	At    time.Time
}

func Info(format string, args ...any) LogLine {
	return LogLine{Level: LevelInfo, Text: fmt.Sprintf(format, args...), At: time.Now().UTC()}
}

func Warn(format string, args ...any) LogLine {
	return LogLine{Level: LevelWarn, Text: fmt.Sprintf(format, args...), At: time.Now().UTC()}
}

func Error(format string, args ...any) LogLine {
	return LogLine{Level: LevelError, Text: fmt.Sprintf(format, args...), At: time.Now().UTC()}
}

func (l LogLine) Line() string          { return l.Text }
func (l LogLine) OccurredAt() time.Time { return l.At }

type RoleChanged struct {
	From domain.Role
	To   domain.Role
	At   time.Time
}

func (r RoleChanged) Line() string {
	return fmt.Sprintf("Role: %s -> %s", r.From, r.To)
}
func (r RoleChanged) OccurredAt() time.Time { return r.At }

type MessageReceived struct {
	Session domain.SessionID
	Source  domain.Identity
	Text    string
	At      time.Time
}

func (m MessageReceived) Line() string          { return m.Text }
func (m MessageReceived) OccurredAt() time.Time { return m.At }

type MessageSent struct {
	Session domain.SessionID
	Author  domain.Identity
	Text    string
	At      time.Time
}

func (m MessageSent) Line() string          { return m.Text }
func (m MessageSent) OccurredAt() time.Time { return m.At }

type ParticipantJoined struct {
	Session     domain.SessionID
	Participant domain.Identity
	At          time.Time
}

func (p ParticipantJoined) Line() string {
	return fmt.Sprintf("** %s joined the group **", p.Participant)
}
func (p ParticipantJoined) OccurredAt() time.Time { return p.At }

type ParticipantLeft struct {
	Session     domain.SessionID
	Participant domain.Identity
	At          time.Time
}

func (p ParticipantLeft) Line() string {
	return fmt.Sprintf("** %s left the group **", p.Participant)
}
func (p ParticipantLeft) OccurredAt() time.Time { return p.At }

// RosterChanged carries the full membership after a reconcile that changed it.
// Members is empty once the session is gone.
type RosterChanged struct {
	Session domain.SessionID
	Members []domain.Identity
	At      time.Time
}

func (r RosterChanged) Line() string {
	if len(r.Members) == 0 {
		return "Participants: (none)"
	}
	names := lo.Map(r.Members, func(id domain.Identity, _ int) string { return id.String() })
	return "Participants: " + strings.Join(names, ", ")
}
func (r RosterChanged) OccurredAt() time.Time { return r.At }
