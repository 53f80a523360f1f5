package projection

import (
	"context"
	"testing"
	"time"

	"session-lab/domain"
	"session-lab/domain/event"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Consume_Messages(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	evt1 := event.MessageReceived{
		Session: "s1",
		Source:  alice,
		Text:    "Hello Bob",
		At:      time.Now(),
	}
	evt2 := event.MessageSent{
		Session: "s1",
		Author:  bob,
		Text:    "Hi Alice",
		At:      time.Now().Add(time.Second),
	}

	req.NoError(timeline.Consume(ctx, evt1))
	req.NoError(timeline.Consume(ctx, evt2))

	entries := timeline.Entries("")
	req.Len(entries, 2)
	req.Equal(alice, entries[0].Author)
	req.False(entries[0].Outgoing)
	req.Equal(bob, entries[1].Author)
	req.True(entries[1].Outgoing)
}

func TestTimeline_IgnoresNonMessageNotifications(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	req.NoError(timeline.Consume(context.Background(), event.Info("Connected")))
	req.NoError(timeline.Consume(context.Background(), event.RoleChanged{From: domain.RoleDisconnected, To: domain.RoleListening}))

	req.Empty(timeline.Texts())
}

func TestTimeline_Entries_FilterBySession(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	req.NoError(timeline.Consume(ctx, event.MessageReceived{Session: "s1", Source: alice, Text: "one"}))
	req.NoError(timeline.Consume(ctx, event.MessageReceived{Session: "s2", Source: alice, Text: "two"}))

	entries := timeline.Entries("s2")
	req.Len(entries, 1)
	req.Equal("two", entries[0].Text)
}
