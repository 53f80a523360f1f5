// Package relay is a WebSocket rendezvous overlay: a server that routes
// frames between subscribed identities and groups them into sessions, and
// a client implementing the transport and session contracts on top of it.
package relay

import (
	"fmt"

	apperrors "session-lab/errors"
)

type FrameType string

const (
	// Requests, answered by FrameAck or FrameError carrying the same ReqID.
	FrameSubscribe FrameType = "subscribe"
	FrameCreate    FrameType = "create"
	FrameInvite    FrameType = "invite"
	FramePublish   FrameType = "publish"
	FrameRoster    FrameType = "roster"
	FrameLeave     FrameType = "leave"

	FrameAck   FrameType = "ack"
	FrameError FrameType = "error"

	// Server pushes.
	FrameSession FrameType = "session"
	FrameMessage FrameType = "message"
	FrameClosed  FrameType = "closed"
	FrameNotice  FrameType = "notice"
)

const (
	CodeUnauthorized  = "unauthorized"
	CodeNotFound      = "not_found"
	CodeSessionClosed = "session_closed"
	CodeForbidden     = "forbidden"
	CodeBadRequest    = "bad_request"
)

// Frame is the single JSON envelope exchanged on the socket.
type Frame struct {
	Type     FrameType `json:"type"`
	ReqID    uint64    `json:"req_id,omitempty"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Session  string    `json:"session,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	Key      []byte    `json:"key,omitempty"`
	MsgID    string    `json:"msg_id,omitempty"`
	ReplyTo  string    `json:"reply_to,omitempty"`
	Payload  []byte    `json:"payload,omitempty"`
	Members  []string  `json:"members,omitempty"`
	Token    string    `json:"token,omitempty"`
	Code     string    `json:"code,omitempty"`
	Error    string    `json:"error,omitempty"`
	Terminal bool      `json:"terminal,omitempty"`
}

func ack(req Frame) Frame {
	return Frame{Type: FrameAck, ReqID: req.ReqID, Session: req.Session}
}

func reject(req Frame, code, format string, args ...any) Frame {
	return Frame{Type: FrameError, ReqID: req.ReqID, Session: req.Session, Code: code, Error: fmt.Sprintf(format, args...)}
}

// frameError maps an error frame onto the collaborator error taxonomy.
func frameError(f Frame) error {
	var kind error
	switch f.Code {
	case CodeUnauthorized, CodeForbidden:
		kind = apperrors.ErrUnauthorized
	case CodeNotFound:
		kind = apperrors.ErrNotFound
	case CodeSessionClosed:
		kind = apperrors.ErrSessionClosed
	default:
		kind = apperrors.ErrTransport
	}
	return fmt.Errorf("%w: %s", kind, f.Error)
}
