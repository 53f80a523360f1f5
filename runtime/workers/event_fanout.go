package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"session-lab/contract"
	"session-lab/domain/event"
)

var ErrFanoutStopped = errors.New("event fanout stopped")

// EventFanout broadcasts notifications to several in-process sinks.
//
// Producers hand notifications over through Consume; a single Run loop
// delivers them to every sink in arrival order, so a slow console or a
// blocked disk never stalls the orchestrator. Delivery is best effort: a
// sink that fails or exceeds sinkTimeout is logged and skipped.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.Notification
	sinks       []contract.EventSink
	sinkTimeout time.Duration
	stopped     chan struct{}
	stopOnce    sync.Once
}

func NewEventFanout(log *slog.Logger, buffer int, sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      make(chan event.Notification, buffer),
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
		stopped:     make(chan struct{}),
	}
}

// Consume implements contract.EventSink. It blocks while the buffer is full.
func (w *EventFanout) Consume(ctx context.Context, n event.Notification) error {
	select {
	case w.events <- n:
		return nil
	default:
	}
	select {
	case w.events <- n:
		return nil
	case <-w.stopped:
		return ErrFanoutStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case n := <-w.events:
			w.Fanout(ctx, n)
		case <-ctx.Done():
			w.stopOnce.Do(func() { close(w.stopped) })
			w.drain()
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one notification to each sink in turn.
func (w *EventFanout) Fanout(ctx context.Context, n event.Notification) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.sinkTimeout)
		if err := sink.Consume(sinkCtx, n); err != nil {
			w.log.Warn("Sink failed", "sink", fmt.Sprintf("%T", sink), "line", n.Line(), "error", err)
		}
		cancel()
	}
}

// drain flushes what producers queued before shutdown.
func (w *EventFanout) drain() {
	for {
		select {
		case n := <-w.events:
			w.Fanout(context.Background(), n)
		default:
			return
		}
	}
}
