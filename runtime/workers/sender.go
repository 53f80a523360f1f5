package workers

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	"session-lab/domain/event"
)

// OddEvenSender publishes random numbers on a point-to-point session and
// waits for the peer's odd/even verdict after each one.
type OddEvenSender struct {
	log          *slog.Logger
	session      contract.Session
	sink         contract.EventSink
	iterations   int
	low, high    int
	replyTimeout time.Duration
	pause        time.Duration
	next         func(low, high int) int
}

type SenderStats struct {
	Sent       int
	Replies    int
	Mismatches int
}

func NewOddEvenSender(
	log *slog.Logger,
	session contract.Session,
	sink contract.EventSink,
	iterations, low, high int,
	replyTimeout, pause time.Duration,
) *OddEvenSender {
	return &OddEvenSender{
		log:          log,
		session:      session,
		sink:         sink,
		iterations:   iterations,
		low:          low,
		high:         high,
		replyTimeout: replyTimeout,
		pause:        pause,
		next: func(low, high int) int {
			return low + rand.IntN(high-low+1)
		},
	}
}

func (s *OddEvenSender) Run(ctx context.Context) error {
	_, err := s.Send(ctx)
	return err
}

// Send runs every iteration and returns what was observed. A failed publish
// or a missing reply is reported and the next iteration proceeds.
func (s *OddEvenSender) Send(ctx context.Context) (SenderStats, error) {
	var stats SenderStats
	for i := 1; i <= s.iterations; i++ {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		n := s.next(s.low, s.high)
		text := strconv.Itoa(n)
		if err := s.session.Publish(ctx, []byte(text)); err != nil {
			emit(ctx, s.log, s.sink, event.Warn("!! Error sending message %d/%d: %v", i, s.iterations, err))
			continue
		}
		stats.Sent++
		emit(ctx, s.log, s.sink, event.Info(">> Sent    : %d (%d/%d)", n, i, s.iterations))

		reply, err := s.session.Receive(ctx, s.replyTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			emit(ctx, s.log, s.sink, event.Warn("!! No reply for message %d/%d: %v", i, s.iterations, err))
			continue
		}
		stats.Replies++
		emit(ctx, s.log, s.sink, event.Info("<< Received: %s (%d/%d)", reply.Text(), i, s.iterations))
		if want := domain.OddEven(text); reply.Text() != want {
			stats.Mismatches++
			s.log.Warn("Unexpected verdict", "sent", n, "got", reply.Text(), "want", want)
		}

		if i < s.iterations {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}
	return stats, nil
}
