package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"session-lab/domain"
	apperrors "session-lab/errors"
	"session-lab/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestOddEvenSender_Send(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)
	sink := &recordingSink{}

	numbers := []int{10, 7, 3}
	sender := NewOddEvenSender(slog.Default(), session, sink, len(numbers), 1, 100, time.Second, 0)
	sender.next = func(int, int) int {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	// Given a peer answering the first two numbers, then staying silent
	gomock.InOrder(
		session.EXPECT().Publish(gomock.Any(), []byte("10")).Return(nil),
		session.EXPECT().Receive(gomock.Any(), time.Second).Return(domain.Message{Payload: []byte("even")}, nil),
		session.EXPECT().Publish(gomock.Any(), []byte("7")).Return(nil),
		session.EXPECT().Receive(gomock.Any(), time.Second).Return(domain.Message{Payload: []byte("even")}, nil),
		session.EXPECT().Publish(gomock.Any(), []byte("3")).Return(nil),
		session.EXPECT().Receive(gomock.Any(), time.Second).Return(domain.Message{}, apperrors.ErrTimeout),
	)

	stats, err := sender.Send(context.Background())

	req.NoError(err)
	req.Equal(SenderStats{Sent: 3, Replies: 2, Mismatches: 1}, stats)
	lines := sink.lines()
	req.Equal(">> Sent    : 10 (1/3)", lines[0])
	req.Equal("<< Received: even (1/3)", lines[1])
	req.Contains(lines[len(lines)-1], "!! No reply for message 3/3")
}

func TestOddEvenSender_PublishFailureSkipsReceive(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)

	sender := NewOddEvenSender(slog.Default(), session, nil, 1, 5, 5, time.Second, 0)
	session.EXPECT().Publish(gomock.Any(), []byte("5")).Return(apperrors.ErrNoRoute)
	session.EXPECT().Receive(gomock.Any(), gomock.Any()).Times(0)

	stats, err := sender.Send(context.Background())

	req.NoError(err)
	req.Zero(stats.Sent)
}
