package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"session-lab/domain"
	"session-lab/domain/event"
	"session-lab/mocks"
	"session-lab/repositories"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = domain.MustParseIdentity("org/alice/v1")
	bob   = domain.MustParseIdentity("org/bob/v1")
)

func TestLines_PassesRenderedLine(t *testing.T) {
	var got []string
	sink := Lines(func(line string) { got = append(got, line) })

	require.NoError(t, sink.Consume(context.Background(), event.ParticipantJoined{Participant: bob}))

	require.Equal(t, []string{"** org/bob/v1 joined the group **"}, got)
}

func TestConsole_OneLinePerNotification(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	console := NewConsole(&out, true)

	req.NoError(console.Consume(context.Background(), event.Error("Connection failed: %v", "boom")))
	req.NoError(console.Consume(context.Background(), event.ParticipantLeft{Participant: bob}))
	req.NoError(console.Consume(context.Background(), event.MessageReceived{Text: "even"}))

	// Colour codes aside, each notification is exactly its line
	req.Equal("Connection failed: boom\n** org/bob/v1 left the group **\neven\n", color.ClearCode(out.String()))
}

func TestConsole_Plain(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(&out, false)

	require.NoError(t, console.Consume(context.Background(), event.RoleChanged{From: domain.RoleListening, To: domain.RoleModerator}))

	require.Equal(t, "Role: listening -> moderator\n", out.String())
}

func TestDiskSink_StoresMessages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	sink := NewDiskSink(repository, slog.Default())
	at := time.Now().UTC()

	// Given a received then a sent message
	gomock.InOrder(
		repository.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(m repositories.DiskMessage) error {
			req.Equal(domain.SessionID("s1"), m.Session)
			req.Equal("org/alice/v1", m.Author)
			req.Equal("10", m.Content)
			req.False(m.Outgoing)
			req.Equal(at, m.At)
			return nil
		}),
		repository.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(m repositories.DiskMessage) error {
			req.Equal("org/bob/v1", m.Author)
			req.Equal("even", m.Content)
			req.True(m.Outgoing)
			return nil
		}),
	)

	// When both reach the sink
	req.NoError(sink.Consume(context.Background(), event.MessageReceived{Session: "s1", Source: alice, Text: "10", At: at}))
	req.NoError(sink.Consume(context.Background(), event.MessageSent{Session: "s1", Author: bob, Text: "even", At: at}))

	// Then other notifications never touch the repository
	req.NoError(sink.Consume(context.Background(), event.Info("Left the group.")))
}

func TestDiskSink_PropagatesStorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	sink := NewDiskSink(repository, slog.Default())
	boom := errors.New("disk full")

	repository.EXPECT().StoreMessage(gomock.Any()).Return(boom)

	err := sink.Consume(context.Background(), event.MessageReceived{Session: "s1", Source: alice, Text: "10"})
	require.ErrorIs(t, err, boom)
}
