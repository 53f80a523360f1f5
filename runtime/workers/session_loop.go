package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	"session-lab/domain/event"
	apperrors "session-lab/errors"
	"session-lab/projection"
)

const (
	DefaultPollTimeout  = 2 * time.Second
	defaultCloseTimeout = 3 * time.Second
)

// SessionLoop drives one active session until it ends or ctx is canceled.
// It is the only consumer of Receive on its session and the only owner of
// its roster.
type SessionLoop struct {
	log          *slog.Logger
	session      contract.Session
	role         domain.Role
	self         domain.Identity
	roster       *projection.Roster
	sink         contract.EventSink
	pollTimeout  time.Duration
	closeTimeout time.Duration
	autoReply    bool
}

func NewSessionLoop(
	log *slog.Logger,
	session contract.Session,
	role domain.Role,
	self domain.Identity,
	sink contract.EventSink,
	pollTimeout time.Duration,
	autoReply bool,
) *SessionLoop {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &SessionLoop{
		log:          log,
		session:      session,
		role:         role,
		self:         self,
		roster:       projection.NewRoster(),
		sink:         sink,
		pollTimeout:  pollTimeout,
		closeTimeout: defaultCloseTimeout,
		autoReply:    autoReply,
	}
}

// Run returns nil when the peer closed the session, ctx.Err() when canceled,
// and the failure otherwise. The session is closed on every path unless
// the collaborator already did it.
func (l *SessionLoop) Run(ctx context.Context) (err error) {
	closedByPeer := false
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Session loop panicked", "session", l.session.ID(), "panic", r)
			err = fmt.Errorf("%w: %v", apperrors.ErrWorkerPanic, r)
		}
		if !closedByPeer {
			l.closeSession(ctx)
		}
		l.clearRoster(ctx)
	}()

	l.log.Debug("Session loop started", "session", l.session.ID(), "role", l.role.String())
	if closed := l.refreshParticipants(ctx); closed {
		closedByPeer = true
		l.emit(ctx, event.Info("Session closed"))
		return nil
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, recvErr := l.session.Receive(ctx, l.pollTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case recvErr == nil:
			l.dispatch(ctx, msg)
		case errors.Is(recvErr, apperrors.ErrTimeout):
			// Membership can change with no traffic.
		case errors.Is(recvErr, apperrors.ErrSessionClosed):
			closedByPeer = true
			l.emit(ctx, event.Info("Session closed"))
			return nil
		case apperrors.IsTerminal(recvErr):
			l.emit(ctx, event.Error("Session failure: %v", recvErr))
			return recvErr
		default:
			l.emit(ctx, event.Warn("Session event: %v", recvErr))
		}

		if closed := l.refreshParticipants(ctx); closed {
			closedByPeer = true
			l.emit(ctx, event.Info("Session closed"))
			return nil
		}
	}
}

func (l *SessionLoop) dispatch(ctx context.Context, msg domain.Message) {
	l.emit(ctx, event.MessageReceived{
		Session: l.session.ID(),
		Source:  msg.Source,
		Text:    msg.Text(),
		At:      msg.ReceivedAt,
	})
	if !l.autoReply {
		return
	}

	reply := domain.OddEven(msg.Text())
	if err := l.session.Reply(ctx, msg, []byte(reply)); err != nil {
		if ctx.Err() == nil {
			l.emit(ctx, event.Warn("Failed to reply to %s: %v", msg.Source, err))
		}
		return
	}
	l.emit(ctx, event.MessageSent{
		Session: l.session.ID(),
		Author:  l.self,
		Text:    reply,
		At:      time.Now().UTC(),
	})
}

// refreshParticipants reports whether the roster query found the session gone.
func (l *SessionLoop) refreshParticipants(ctx context.Context) bool {
	members, err := l.session.Roster(ctx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, apperrors.ErrSessionClosed):
			return true
		default:
			l.emit(ctx, event.Warn("Participants refresh failed: %v", err))
		}
		return false
	}

	delta := l.roster.Reconcile(members)
	if delta.Empty() {
		return false
	}
	now := time.Now().UTC()
	for _, id := range delta.Joined {
		if id == l.self {
			continue
		}
		l.emit(ctx, event.ParticipantJoined{Session: l.session.ID(), Participant: id, At: now})
	}
	for _, id := range delta.Left {
		if id == l.self {
			continue
		}
		l.emit(ctx, event.ParticipantLeft{Session: l.session.ID(), Participant: id, At: now})
	}
	l.emit(ctx, event.RosterChanged{Session: l.session.ID(), Members: l.roster.Members(), At: now})
	return false
}

func (l *SessionLoop) clearRoster(ctx context.Context) {
	if len(l.roster.Members()) == 0 {
		return
	}
	l.roster.Reset()
	l.emit(context.WithoutCancel(ctx), event.RosterChanged{Session: l.session.ID(), At: time.Now().UTC()})
}

func (l *SessionLoop) closeSession(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.closeTimeout)
	defer cancel()
	if err := l.session.Close(closeCtx); err != nil && !errors.Is(err, apperrors.ErrSessionClosed) {
		l.log.Warn("Failed to close session", "session", l.session.ID(), "error", err)
	}
}

func (l *SessionLoop) emit(ctx context.Context, n event.Notification) {
	emit(ctx, l.log, l.sink, n)
}

func emit(ctx context.Context, log *slog.Logger, sink contract.EventSink, n event.Notification) {
	if sink == nil {
		return
	}
	if err := sink.Consume(context.WithoutCancel(ctx), n); err != nil {
		log.Warn("Sink rejected notification", "line", n.Line(), "error", err)
	}
}
