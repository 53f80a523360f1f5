package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/google/uuid"
)

const (
	incomingBuffer = 16
	leaveTimeout   = 3 * time.Second
)

// Endpoint is one subscribed identity on a relay connection.
type Endpoint struct {
	log      *slog.Logger
	conn     *conn
	identity domain.Identity
	sealer   *Sealer

	mu       sync.Mutex
	sessions map[domain.SessionID]*Session
	incoming chan *Session
}

func newEndpoint(log *slog.Logger, c *conn, identity domain.Identity, secret string) *Endpoint {
	return &Endpoint{
		log:      log,
		conn:     c,
		identity: identity,
		sealer:   NewSealer(secret),
		sessions: make(map[domain.SessionID]*Session),
		incoming: make(chan *Session, incomingBuffer),
	}
}

func (e *Endpoint) Identity() domain.Identity {
	return e.identity
}

// CreateSession opens a session towards target. A point-to-point target
// must have a route; a group target is the channel name.
func (e *Endpoint) CreateSession(ctx context.Context, target domain.Identity, cfg domain.SessionConfig) (contract.Session, error) {
	if cfg.Kind == domain.PointToPoint && !e.conn.hasRoute(target) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNoRoute, target)
	}

	var (
		key     *SessionKey
		wrapped []byte
		err     error
	)
	if cfg.SecureGroupKeying {
		if key, err = NewSessionKey(); err != nil {
			return nil, err
		}
		if wrapped, err = e.sealer.WrapKey(key); err != nil {
			return nil, err
		}
	}

	id := domain.SessionID(uuid.NewString())
	s := newSession(e, id, cfg, key)
	e.register(s)

	_, err = e.conn.request(ctx, Frame{
		Type:    FrameCreate,
		Session: string(id),
		To:      target.String(),
		Kind:    cfg.Kind.String(),
		Secure:  cfg.SecureGroupKeying,
		Key:     wrapped,
	})
	if err != nil {
		e.forget(id)
		return nil, err
	}
	e.log.Debug("Session created", "session", id, "target", target.String(), "kind", cfg.Kind.String())
	return s, nil
}

func (e *Endpoint) ListenForSession(ctx context.Context) (contract.Session, error) {
	select {
	case s := <-e.incoming:
		return s, nil
	case <-e.conn.closed:
		return nil, apperrors.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Endpoint) register(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[s.id] = s
}

func (e *Endpoint) forget(id domain.SessionID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

func (e *Endpoint) lookup(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[domain.SessionID(id)]
	return s, ok
}

// dispatch runs on the connection's read goroutine and must not block.
func (e *Endpoint) dispatch(f Frame) {
	switch f.Type {
	case FrameSession:
		e.accept(f)
	case FrameMessage:
		if s, ok := e.lookup(f.Session); ok {
			s.deliver(f)
		}
	case FrameClosed:
		if s, ok := e.lookup(f.Session); ok {
			e.forget(s.id)
			s.markClosed(apperrors.ErrSessionClosed)
		}
	case FrameNotice:
		if s, ok := e.lookup(f.Session); ok {
			s.notify(&apperrors.SessionError{Reason: f.Error, Terminal: f.Terminal})
		}
	default:
		e.log.Debug("Ignoring push", "type", f.Type)
	}
}

func (e *Endpoint) accept(f Frame) {
	id := domain.SessionID(f.Session)
	cfg := domain.PointToPointConfig(f.Secure)
	if f.Kind == domain.Group.String() {
		cfg = domain.GroupConfig(f.Secure)
	}

	var key *SessionKey
	if f.Secure {
		k, err := e.sealer.UnwrapKey(f.Key)
		if err != nil {
			e.log.Warn("Rejecting session with unreadable key", "session", id, "from", f.From, "error", err)
			go e.leave(id)
			return
		}
		key = k
	}

	s := newSession(e, id, cfg, key)
	e.register(s)
	select {
	case e.incoming <- s:
		e.log.Debug("Inbound session queued", "session", id, "from", f.From)
	default:
		e.log.Warn("Too many pending sessions, declining", "session", id, "from", f.From)
		e.forget(id)
		go e.leave(id)
	}
}

func (e *Endpoint) leave(id domain.SessionID) {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if _, err := e.conn.request(ctx, Frame{Type: FrameLeave, Session: string(id)}); err != nil {
		e.log.Debug("Leave failed", "session", id, "error", err)
	}
}

func (e *Endpoint) connectionLost() {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[domain.SessionID]*Session)
	e.mu.Unlock()

	for _, s := range sessions {
		s.markClosed(apperrors.ErrConnectionClosed)
	}
}
