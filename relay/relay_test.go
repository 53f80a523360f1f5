package relay

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/stretchr/testify/require"
)

const receiveWait = 2 * time.Second

type harness struct {
	t      *testing.T
	ctx    context.Context
	server *httptest.Server
	client *Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	srv := httptest.NewServer(NewServer(slog.Default(), testSecret, NewRegistry()).Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &harness{t: t, ctx: ctx, server: srv, client: NewClient(slog.Default())}
}

// join opens a dedicated connection for identity and subscribes it.
func (h *harness) join(identity domain.Identity) (contract.Endpoint, domain.ConnID) {
	h.t.Helper()
	conn, err := h.client.Connect(h.ctx, h.server.URL)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = h.client.Disconnect(conn) })
	endpoint, err := h.client.Subscribe(h.ctx, identity, testSecret, conn)
	require.NoError(h.t, err)
	return endpoint, conn
}

func (h *harness) accept(e contract.Endpoint) contract.Session {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, receiveWait)
	defer cancel()
	s, err := e.ListenForSession(ctx)
	require.NoError(h.t, err)
	return s
}

func TestRelay_PointToPointExchange(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	aliceEndpoint, aliceConn := h.join(alice)
	bobEndpoint, _ := h.join(bob)
	req.NoError(h.client.SetRoute(h.ctx, bob, aliceConn))

	// Given a secure point-to-point session from alice to bob
	aliceSession, err := aliceEndpoint.CreateSession(h.ctx, bob, domain.PointToPointConfig(true))
	req.NoError(err)
	bobSession := h.accept(bobEndpoint)
	req.Equal(aliceSession.ID(), bobSession.ID())
	req.Equal(domain.PointToPoint, bobSession.Config().Kind)
	req.True(bobSession.Config().SecureGroupKeying)

	// When alice publishes a number and bob replies to it
	req.NoError(aliceSession.Publish(h.ctx, []byte("10")))
	msg, err := bobSession.Receive(h.ctx, receiveWait)
	req.NoError(err)
	req.Equal("10", msg.Text())
	req.Equal(alice, msg.Source)
	req.NoError(bobSession.Reply(h.ctx, msg, []byte(domain.OddEven(msg.Text()))))

	// Then alice gets the answer
	reply, err := aliceSession.Receive(h.ctx, receiveWait)
	req.NoError(err)
	req.Equal("even", reply.Text())
	req.Equal(bob, reply.Source)
}

func TestRelay_PointToPointNeedsRoute(t *testing.T) {
	h := newHarness(t)
	aliceEndpoint, _ := h.join(alice)
	h.join(bob)

	_, err := aliceEndpoint.CreateSession(h.ctx, bob, domain.PointToPointConfig(false))

	require.ErrorIs(t, err, apperrors.ErrNoRoute)
}

func TestRelay_PointToPointUnknownPeer(t *testing.T) {
	h := newHarness(t)
	aliceEndpoint, aliceConn := h.join(alice)
	require.NoError(t, h.client.SetRoute(h.ctx, bob, aliceConn))

	_, err := aliceEndpoint.CreateSession(h.ctx, bob, domain.PointToPointConfig(false))

	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRelay_SubscribeWithWrongSecret(t *testing.T) {
	h := newHarness(t)
	conn, err := h.client.Connect(h.ctx, h.server.URL)
	require.NoError(t, err)
	defer func() { _ = h.client.Disconnect(conn) }()

	_, err = h.client.Subscribe(h.ctx, alice, "another-shared-secret-of-32-chars", conn)

	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRelay_GroupLifecycle(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	aliceEndpoint, aliceConn := h.join(alice)
	bobEndpoint, _ := h.join(bob)
	carolEndpoint, _ := h.join(carol)
	req.NoError(h.client.SetRoute(h.ctx, bob, aliceConn))
	req.NoError(h.client.SetRoute(h.ctx, carol, aliceConn))

	// Given alice moderates a group with bob and carol
	group, err := aliceEndpoint.CreateSession(h.ctx, channel, domain.GroupConfig(true))
	req.NoError(err)
	req.NoError(group.Invite(h.ctx, bob))
	req.NoError(group.Invite(h.ctx, carol))
	bobSession := h.accept(bobEndpoint)
	carolSession := h.accept(carolEndpoint)

	roster, err := group.Roster(h.ctx)
	req.NoError(err)
	req.ElementsMatch([]domain.Identity{alice, bob, carol}, roster)

	// When bob talks, everyone else hears it
	req.NoError(bobSession.Publish(h.ctx, []byte("hello")))
	for _, s := range []contract.Session{group, carolSession} {
		msg, err := s.Receive(h.ctx, receiveWait)
		req.NoError(err)
		req.Equal("hello", msg.Text())
	}

	// When bob leaves, the group stays open
	req.NoError(bobSession.Close(h.ctx))
	roster, err = carolSession.Roster(h.ctx)
	req.NoError(err)
	req.ElementsMatch([]domain.Identity{alice, carol}, roster)

	// When carol leaves too, alice is alone and the group closes
	req.NoError(carolSession.Close(h.ctx))
	_, err = group.Receive(h.ctx, receiveWait)
	req.ErrorIs(err, apperrors.ErrSessionClosed)
	_, err = group.Roster(h.ctx)
	req.ErrorIs(err, apperrors.ErrSessionClosed)
}

func TestRelay_InviteNeedsRoute(t *testing.T) {
	h := newHarness(t)
	aliceEndpoint, _ := h.join(alice)
	h.join(bob)
	group, err := aliceEndpoint.CreateSession(h.ctx, channel, domain.GroupConfig(false))
	require.NoError(t, err)

	err = group.Invite(h.ctx, bob)

	require.ErrorIs(t, err, apperrors.ErrNoRoute)
}

func TestRelay_DisconnectNotifiesGroup(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	aliceEndpoint, aliceConn := h.join(alice)
	bobEndpoint, _ := h.join(bob)
	carolEndpoint, carolConn := h.join(carol)
	req.NoError(h.client.SetRoute(h.ctx, bob, aliceConn))
	req.NoError(h.client.SetRoute(h.ctx, carol, aliceConn))
	group, err := aliceEndpoint.CreateSession(h.ctx, channel, domain.GroupConfig(false))
	req.NoError(err)
	req.NoError(group.Invite(h.ctx, bob))
	req.NoError(group.Invite(h.ctx, carol))
	bobSession := h.accept(bobEndpoint)
	h.accept(carolEndpoint)

	// When carol's connection drops
	req.NoError(h.client.Disconnect(carolConn))

	// Then the others get a non-terminal notice and the group goes on
	_, err = bobSession.Receive(h.ctx, receiveWait)
	req.ErrorContains(err, "org/carol/v1 disconnected")
	req.False(apperrors.IsTerminal(err))
	req.NoError(group.Publish(h.ctx, []byte("still here")))
	msg, err := bobSession.Receive(h.ctx, receiveWait)
	req.NoError(err)
	req.Equal("still here", msg.Text())
}

func TestRelay_ConnectionLossClosesSessions(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	aliceEndpoint, aliceConn := h.join(alice)
	bobEndpoint, _ := h.join(bob)
	req.NoError(h.client.SetRoute(h.ctx, bob, aliceConn))
	session, err := aliceEndpoint.CreateSession(h.ctx, bob, domain.PointToPointConfig(false))
	req.NoError(err)
	h.accept(bobEndpoint)

	// When alice's own connection goes away
	req.NoError(h.client.Disconnect(aliceConn))

	// Then her session and listener report a dead connection
	_, err = session.Receive(h.ctx, receiveWait)
	req.ErrorIs(err, apperrors.ErrConnectionClosed)
	req.True(apperrors.IsTerminal(err))
	_, err = aliceEndpoint.ListenForSession(h.ctx)
	req.ErrorIs(err, apperrors.ErrConnectionClosed)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{addr: "http://localhost:46357", want: "ws://localhost:46357/ws"},
		{addr: "https://relay.example.com", want: "wss://relay.example.com/ws"},
		{addr: "localhost:46357", want: "ws://localhost:46357/ws"},
		{addr: "ws://127.0.0.1:9000/custom", want: "ws://127.0.0.1:9000/custom"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := WebSocketURL(tt.addr)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := WebSocketURL("ftp://localhost")
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
