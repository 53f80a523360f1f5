package e2e

import (
	"context"
	"testing"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	"session-lab/relay"
	"session-lab/runtime"
	"session-lab/runtime/workers"
	"session-lab/sink"

	"github.com/stretchr/testify/suite"
)

type testPointToPointSuite struct {
	BaseSuite
}

func TestPointToPointSuite(t *testing.T) {
	suite.Run(t, &testPointToPointSuite{})
}

func (s *testPointToPointSuite) TestReceiverAnswersParity() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()

	receiver := s.NewPeer("Receiver", "org/receiver/v1", true)
	sender := domain.MustParseIdentity("org/sender/v1")
	lifecycle := runtime.NewConnectionLifecycle(s.log, relay.NewClient(s.log))
	defer func() { _ = lifecycle.Disconnect() }()

	var session contract.Session
	s.Run("Step 1: Receiver listens, sender opens a session", func() {
		s.Require().NoError(receiver.Orchestrator.Connect(ctx, receiver.Identity))
		s.WaitRole(receiver, domain.RoleListening)

		endpoint, err := lifecycle.Connect(ctx, s.Config.RelayAddr, sender, s.Config.SharedSecret)
		s.Require().NoError(err)
		s.Require().NoError(lifecycle.SetRoute(ctx, receiver.Identity))
		session, err = endpoint.CreateSession(ctx, receiver.Identity, domain.PointToPointConfig(true))
		s.Require().NoError(err)
		s.WaitRole(receiver, domain.RoleParticipant)
	})

	s.Run("Step 2: 10 is even", func() {
		s.Step("Sending 10")
		s.Require().NoError(session.Publish(ctx, []byte("10")))
		reply, err := session.Receive(ctx, s.Config.Timeout)
		s.Require().NoError(err)
		s.Require().Equal("even", reply.Text())
		s.Require().Equal(receiver.Identity, reply.Source)
		s.WaitLine(receiver, "10")
	})

	s.Run("Step 3: Random numbers all get the right verdict", func() {
		var lines []string
		odd := workers.NewOddEvenSender(s.log, session, sink.Lines(func(l string) { lines = append(lines, l) }),
			3, 1, 100, s.Config.Timeout, 10*time.Millisecond)
		stats, err := odd.Send(ctx)
		s.Require().NoError(err)
		s.Require().Equal(3, stats.Sent)
		s.Require().Equal(3, stats.Replies)
		s.Require().Zero(stats.Mismatches)
		s.Require().Len(lines, 6)
	})

	s.Run("Step 4: Closing the session sends the receiver back to listening", func() {
		s.Require().NoError(session.Close(ctx))
		s.WaitRole(receiver, domain.RoleListening)
		s.WaitLine(receiver, "Session ended. Listening for new invitations...")
	})
}
