package main

import (
	"bytes"
	"testing"
	"time"

	"session-lab/domain"
	"session-lab/mocks"
	"session-lab/repositories"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDump_PagesUntilEmptyInChronologicalOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	session := domain.SessionID("0123456789")
	at := time.Now().UTC()
	newest := repositories.DiskMessage{Session: session, Author: "org/alice/v1", Content: "even", At: at.Add(time.Second)}
	oldest := repositories.DiskMessage{Session: session, Author: "org/bob/v1", Content: "10", Outgoing: true, At: at}

	// Given a session stored as two pages, newest first
	repository.EXPECT().Sessions().Return([]domain.SessionID{session}, nil)
	gomock.InOrder(
		repository.EXPECT().GetMessages(session, nil).Return([]repositories.DiskMessage{newest}, lo.ToPtr("k1"), nil),
		repository.EXPECT().GetMessages(session, lo.ToPtr("k1")).Return([]repositories.DiskMessage{oldest}, lo.ToPtr("k2"), nil),
		repository.EXPECT().GetMessages(session, lo.ToPtr("k2")).Return(nil, lo.ToPtr(""), nil),
	)

	// When the history is dumped
	var out bytes.Buffer
	req.NoError(dump(&out, repository))

	// Then the oldest line comes first
	text := out.String()
	req.Contains(text, "01234567")
	req.Less(bytes.Index(out.Bytes(), []byte("SENT")), bytes.Index(out.Bytes(), []byte("RECEIVED")))
	req.Contains(text, "org/alice/v1")
}
