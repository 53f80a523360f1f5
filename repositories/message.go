//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"session-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(session domain.SessionID, cursor *string) ([]DiskMessage, *string, error)
	Sessions() ([]domain.SessionID, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is one line of session history, sent or received.
type DiskMessage struct {
	ID       uuid.UUID
	Session  domain.SessionID
	Author   string
	Content  string
	Outgoing bool
	At       time.Time
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{session}:{timestamp_padded}:{uuid}" so a
// prefix scan returns a session's messages ordered by time, and two
// messages stamped with the same nanosecond never collide.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	key := fmt.Sprintf("%s%s:%019d:%s",
		messagePrefix,
		message.Session,
		message.At.UnixNano(),
		message.ID,
	)
	value, err := fromDiskMessage(message)
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(value)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages walks a session's history from the newest message backwards.
// The returned cursor resumes the walk after the last message returned.
func (m MessageRepository) GetMessages(session domain.SessionID, cursor *string) ([]DiskMessage, *string, error) {
	var byteMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("%s%s:", messagePrefix, session)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Highest possible timestamp, then walk back
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			byteMessages = append(byteMessages, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	diskMessages := make([]DiskMessage, 0, len(byteMessages))
	for _, b := range byteMessages {
		message, err := DecodeMessage(b)
		if err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	return diskMessages, &lastKey, nil
}

// Sessions lists every session that has history, in key order.
func (m MessageRepository) Sessions() ([]domain.SessionID, error) {
	var sessions []domain.SessionID
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), messagePrefix)
			id, _, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			sessions = append(sessions, domain.SessionID(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(sessions), nil
}

// DecodeMessage reads a value written by StoreMessage.
func DecodeMessage(b []byte) (DiskMessage, error) {
	var value structpb.Struct
	if err := proto.Unmarshal(b, &value); err != nil {
		return DiskMessage{}, err
	}
	return toDiskMessage(&value)
}

func fromDiskMessage(message DiskMessage) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":       message.ID.String(),
		"session":  string(message.Session),
		"author":   message.Author,
		"content":  message.Content,
		"outgoing": message.Outgoing,
		"at":       message.At.UTC().Format(time.RFC3339Nano),
	})
}

func toDiskMessage(value *structpb.Struct) (DiskMessage, error) {
	fields := value.GetFields()
	parsedID, err := uuid.Parse(fields["id"].GetStringValue())
	if err != nil {
		return DiskMessage{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue())
	if err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:       parsedID,
		Session:  domain.SessionID(fields["session"].GetStringValue()),
		Author:   fields["author"].GetStringValue(),
		Content:  fields["content"].GetStringValue(),
		Outgoing: fields["outgoing"].GetBoolValue(),
		At:       at.UTC(),
	}, nil
}
