package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/google/uuid"
)

const (
	inboundBuffer = 256
	noticeBuffer  = 16
)

// Session is the client view of one relay session. Publish, Reply, Invite
// and Roster are safe for concurrent use; Receive expects one consumer.
type Session struct {
	endpoint *Endpoint
	id       domain.SessionID
	cfg      domain.SessionConfig
	key      *SessionKey

	inbound chan domain.Message
	notices chan error

	done     chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	reason   error
	left     atomic.Bool
}

func newSession(e *Endpoint, id domain.SessionID, cfg domain.SessionConfig, key *SessionKey) *Session {
	return &Session{
		endpoint: e,
		id:       id,
		cfg:      cfg,
		key:      key,
		inbound:  make(chan domain.Message, inboundBuffer),
		notices:  make(chan error, noticeBuffer),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() domain.SessionID {
	return s.id
}

func (s *Session) Config() domain.SessionConfig {
	return s.cfg
}

func (s *Session) Publish(ctx context.Context, payload []byte) error {
	return s.send(ctx, Frame{Type: FramePublish}, payload)
}

// Reply sends payload to the author of orig only.
func (s *Session) Reply(ctx context.Context, orig domain.Message, payload []byte) error {
	return s.send(ctx, Frame{Type: FramePublish, To: orig.Source.String(), ReplyTo: orig.ID.String()}, payload)
}

func (s *Session) send(ctx context.Context, f Frame, payload []byte) error {
	if err := s.closedErr(); err != nil {
		return err
	}
	if s.key != nil {
		sealed, err := s.key.Seal(payload)
		if err != nil {
			return err
		}
		payload = sealed
	}
	f.Session = string(s.id)
	f.MsgID = uuid.NewString()
	f.Payload = payload
	_, err := s.endpoint.conn.request(ctx, f)
	return s.observe(err)
}

// Receive returns queued messages first, then waits up to timeout for a
// message, a notice or the end of the session.
func (s *Session) Receive(ctx context.Context, timeout time.Duration) (domain.Message, error) {
	select {
	case m := <-s.inbound:
		return m, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-s.inbound:
		return m, nil
	case err := <-s.notices:
		return domain.Message{}, err
	case <-s.done:
		select {
		case m := <-s.inbound:
			return m, nil
		default:
		}
		return domain.Message{}, s.closedErr()
	case <-timer.C:
		return domain.Message{}, apperrors.ErrTimeout
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

func (s *Session) Invite(ctx context.Context, identity domain.Identity) error {
	if s.cfg.Kind != domain.Group {
		return fmt.Errorf("%w: %s is not a group session", apperrors.ErrInviteFailed, s.id)
	}
	if err := s.closedErr(); err != nil {
		return err
	}
	if !s.endpoint.conn.hasRoute(identity) {
		return fmt.Errorf("%w: %s", apperrors.ErrNoRoute, identity)
	}
	_, err := s.endpoint.conn.request(ctx, Frame{Type: FrameInvite, Session: string(s.id), To: identity.String()})
	return s.observe(err)
}

func (s *Session) Roster(ctx context.Context) ([]domain.Identity, error) {
	if err := s.closedErr(); err != nil {
		return nil, err
	}
	res, err := s.endpoint.conn.request(ctx, Frame{Type: FrameRoster, Session: string(s.id)})
	if err != nil {
		return nil, s.observe(err)
	}
	members := make([]domain.Identity, 0, len(res.Members))
	for _, m := range res.Members {
		id, err := domain.ParseIdentity(m)
		if err != nil {
			s.endpoint.log.Warn("Skipping malformed roster entry", "session", s.id, "entry", m)
			continue
		}
		members = append(members, id)
	}
	return members, nil
}

// Close leaves the session. It is idempotent and does not contact the
// relay when the session already ended.
func (s *Session) Close(ctx context.Context) error {
	if !s.left.CompareAndSwap(false, true) {
		return nil
	}
	alreadyEnded := s.closedErr() != nil
	s.endpoint.forget(s.id)
	s.markClosed(apperrors.ErrSessionClosed)
	if alreadyEnded {
		return nil
	}

	_, err := s.endpoint.conn.request(ctx, Frame{Type: FrameLeave, Session: string(s.id)})
	if err != nil && !errors.Is(err, apperrors.ErrSessionClosed) && !errors.Is(err, apperrors.ErrConnectionClosed) {
		return err
	}
	return nil
}

// deliver runs on the connection's read goroutine.
func (s *Session) deliver(f Frame) {
	payload := f.Payload
	if s.key != nil {
		plain, err := s.key.Open(payload)
		if err != nil {
			s.notify(&apperrors.SessionError{Reason: fmt.Sprintf("cannot decrypt message from %s", f.From)})
			return
		}
		payload = plain
	}
	source, err := domain.ParseIdentity(f.From)
	if err != nil {
		s.endpoint.log.Warn("Dropping message with malformed source", "session", s.id, "from", f.From)
		return
	}
	msgID, err := uuid.Parse(f.MsgID)
	if err != nil {
		msgID = uuid.New()
	}

	msg := domain.Message{
		ID:         msgID,
		Session:    s.id,
		Source:     source,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	select {
	case s.inbound <- msg:
	default:
		s.endpoint.log.Warn("Inbound buffer full, dropping message", "session", s.id, "from", f.From)
	}
}

func (s *Session) notify(err error) {
	select {
	case s.notices <- err:
	default:
	}
}

func (s *Session) markClosed(reason error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Session) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// observe records that the relay no longer knows the session.
func (s *Session) observe(err error) error {
	if errors.Is(err, apperrors.ErrSessionClosed) {
		s.markClosed(apperrors.ErrSessionClosed)
	}
	return err
}
