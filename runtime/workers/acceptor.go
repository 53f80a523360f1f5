package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"session-lab/contract"
	"session-lab/domain/event"
	apperrors "session-lab/errors"
)

// Acceptor waits for a peer to open a session with the local endpoint.
// Timeouts are expected and simply re-arm the wait; other advisory
// errors are reported once and retried after a short pause.
type Acceptor struct {
	log        *slog.Logger
	endpoint   contract.Endpoint
	sink       contract.EventSink
	retryDelay time.Duration
}

func NewAcceptor(log *slog.Logger, endpoint contract.Endpoint, sink contract.EventSink) *Acceptor {
	return &Acceptor{
		log:        log,
		endpoint:   endpoint,
		sink:       sink,
		retryDelay: waitTimeBeforeRestart,
	}
}

// Accept blocks until a session is delivered, ctx ends, or the connection dies.
func (a *Acceptor) Accept(ctx context.Context) (contract.Session, error) {
	for {
		session, err := a.endpoint.ListenForSession(ctx)
		if err == nil {
			a.log.Debug("Inbound session accepted", "session", session.ID())
			return session, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch {
		case errors.Is(err, apperrors.ErrTimeout):
			continue
		case apperrors.IsTerminal(err):
			a.log.Debug("Listener stopped", "error", err)
			return nil, err
		default:
			emit(ctx, a.log, a.sink, event.Warn("Listen failed, retrying: %v", err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.retryDelay):
		}
	}
}
