package sink

import (
	"context"
	"log/slog"

	"session-lab/domain/event"
	"session-lab/repositories"

	"github.com/google/uuid"
)

// DiskSink records every message sent or received into the history
// repository. Other notifications are ignored.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, n event.Notification) error {
	switch evt := n.(type) {
	case event.MessageReceived:
		return d.repository.StoreMessage(repositories.DiskMessage{
			ID:      uuid.New(),
			Session: evt.Session,
			Author:  evt.Source.String(),
			Content: evt.Text,
			At:      evt.At,
		})
	case event.MessageSent:
		return d.repository.StoreMessage(repositories.DiskMessage{
			ID:       uuid.New(),
			Session:  evt.Session,
			Author:   evt.Author.String(),
			Content:  evt.Text,
			Outgoing: true,
			At:       evt.At,
		})
	default:
		d.log.Debug("Not a message, skipping history", "line", n.Line())
		return nil
	}
}
