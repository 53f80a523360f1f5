package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"session-lab/domain/event"
	"session-lab/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_DeliversInOrderToEverySink(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	first := &recordingSink{}
	second := &recordingSink{}
	fanout := NewEventFanout(log, 8, time.Second, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fanout.Run(ctx) }()

	// When notifications are queued
	req.NoError(fanout.Consume(ctx, event.Info("one")))
	req.NoError(fanout.Consume(ctx, event.Info("two")))

	// Then each sink sees them in order
	req.Eventually(func() bool { return len(second.lines()) == 2 }, time.Second, 5*time.Millisecond)
	req.Equal([]string{"one", "two"}, first.lines())
	req.Equal([]string{"one", "two"}, second.lines())

	cancel()
	req.NoError(<-done)
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	slow := mocks.NewMockEventSink(ctrl)
	fast := &recordingSink{}
	fanout := NewEventFanout(log, 1, 20*time.Millisecond, slow, fast)

	// Given a sink that never returns before its deadline
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ event.Notification) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		Times(1)

	// When a notification is fanned out
	fanout.Fanout(context.Background(), event.Info("hello"))

	// Then the next sink still receives it
	req.Equal([]string{"hello"}, fast.lines())
}

func TestEventFanout_ConsumeAfterStop(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sink := &recordingSink{}
	fanout := NewEventFanout(log, 1, time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.NoError(fanout.Run(ctx))

	// Given the buffer is full and nobody drains it
	req.NoError(fanout.Consume(context.Background(), event.Info("queued")))

	// Then producers are released instead of blocking
	err := fanout.Consume(context.Background(), event.Info("late"))
	req.ErrorIs(err, ErrFanoutStopped)
}
