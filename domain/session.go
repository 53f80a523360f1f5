// Package domain contains core concepts of the session overlay.
// This file defines sessions, their configuration and the connection handle.
package domain

// ConnID identifies a transport connection to the rendezvous server.
type ConnID uint64

// SessionID is assigned by the server when a session is created.
type SessionID string

type SessionKind int

const (
	PointToPoint SessionKind = iota
	Group
)

func (k SessionKind) String() string {
	switch k {
	case PointToPoint:
		return "point-to-point"
	case Group:
		return "group"
	default:
		return "unknown"
	}
}

// SessionConfig is built once per session creation call.
type SessionConfig struct {
	Kind              SessionKind
	SecureGroupKeying bool
}

func GroupConfig(secure bool) SessionConfig {
	return SessionConfig{Kind: Group, SecureGroupKeying: secure}
}

func PointToPointConfig(secure bool) SessionConfig {
	return SessionConfig{Kind: PointToPoint, SecureGroupKeying: secure}
}
