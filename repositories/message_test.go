package repositories

import (
	"log/slog"
	"testing"
	"time"

	"session-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func conversation(session domain.SessionID, at time.Time) []DiskMessage {
	return []DiskMessage{
		{uuid.New(), session, "org/bob/v1", "10", true, at},
		{uuid.New(), session, "org/alice/v1", "even", false, at.Add(1 * time.Minute)},
		{uuid.New(), session, "org/bob/v1", "7", true, at.Add(2 * time.Minute)},
	}
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	session := domain.SessionID(uuid.NewString())
	diskMessages := conversation(session, time.Now().UTC())

	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// Then messages come back newest first
	fetched, cursor, err := repository.GetMessages(session, nil)
	req.NoError(err)
	req.NotNil(cursor)
	req.Equal([]DiskMessage{diskMessages[2], diskMessages[1], diskMessages[0]}, fetched)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openDB(t), slog.Default(), &limit)
	session := domain.SessionID(uuid.NewString())
	diskMessages := conversation(session, time.Now().UTC())
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// When the first page is read
	page, cursor, err := repository.GetMessages(session, nil)
	req.NoError(err)
	req.Len(page, limit)

	// Then the cursor resumes with the oldest message
	rest, _, err := repository.GetMessages(session, cursor)
	req.NoError(err)
	req.Equal([]DiskMessage{diskMessages[0]}, rest)
}

func Test_Messages_Are_Scoped_By_Session(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	first := domain.SessionID(uuid.NewString())
	second := domain.SessionID(uuid.NewString())
	at := time.Now().UTC()

	req.NoError(repository.StoreMessage(DiskMessage{Session: first, Author: "org/bob/v1", Content: "hello", At: at}))
	req.NoError(repository.StoreMessage(DiskMessage{Session: second, Author: "org/bob/v1", Content: "bye", At: at}))

	fetched, _, err := repository.GetMessages(first, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("hello", fetched[0].Content)
	req.NotEqual(uuid.Nil, fetched[0].ID)

	sessions, err := repository.Sessions()
	req.NoError(err)
	req.ElementsMatch([]domain.SessionID{first, second}, sessions)
}
