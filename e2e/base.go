package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"session-lab/domain"
	"session-lab/relay"
	"session-lab/runtime"
	"session-lab/sink"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	log    *slog.Logger

	server *httptest.Server
	health *relay.Health
}

// SetupSuite loads the environment configuration and, unless a relay
// address is given, starts a relay inside the test process.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromLevel(slog.LevelWarn)

	if s.Config.RelayAddr != "" {
		return
	}
	s.server = httptest.NewServer(relay.NewServer(s.log, s.Config.SharedSecret, relay.NewRegistry()).Handler())
	s.Config.RelayAddr = s.server.URL

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.health = relay.NewHealth(s.log)
	go func() { _ = s.health.Serve(lis) }()
	s.Config.HealthAddr = lis.Addr().String()
}

func (s *BaseSuite) TearDownSuite() {
	if s.health != nil {
		s.health.Stop()
	}
	if s.server != nil {
		s.server.Close()
	}
}

// Step prints a colorized header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// RequireHealthy asks the relay's gRPC health service whether it serves.
func (s *BaseSuite) RequireHealthy() {
	if s.Config.HealthAddr == "" {
		s.T().Log("No health endpoint configured, skipping")
		return
	}
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC health at "+s.Config.HealthAddr)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: relay.HealthService})
	s.Require().NoError(err)
	s.Require().Equal(healthpb.HealthCheckResponse_SERVING, res.GetStatus())
}

// Peer is one orchestrator driven by a scenario, with every line it emits.
type Peer struct {
	Name         string
	Identity     domain.Identity
	Orchestrator *runtime.Orchestrator

	mu    sync.Mutex
	lines []string
	stop  context.CancelFunc
	done  chan struct{}
}

// NewPeer starts an orchestrator for identity against the suite's relay.
// It is stopped when the current test ends.
func (s *BaseSuite) NewPeer(name, identity string, autoReply bool) *Peer {
	p := &Peer{Name: name, Identity: domain.MustParseIdentity(identity), done: make(chan struct{})}
	p.Orchestrator = runtime.NewOrchestrator(s.log, relay.NewClient(s.log), sink.Lines(p.record), runtime.Settings{
		Server:            s.Config.RelayAddr,
		SharedSecret:      s.Config.SharedSecret,
		PollTimeout:       100 * time.Millisecond,
		RequestTimeout:    s.Config.Timeout,
		SecureGroupKeying: true,
		AutoReply:         autoReply,
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.stop = cancel
	go func() {
		defer close(p.done)
		_ = p.Orchestrator.Run(ctx)
	}()
	s.T().Cleanup(p.Stop)
	return p
}

func (p *Peer) Stop() {
	p.stop()
	<-p.done
}

func (p *Peer) record(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
}

func (p *Peer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func (p *Peer) Saw(line string) bool {
	for _, l := range p.Lines() {
		if l == line {
			return true
		}
	}
	return false
}

func (p *Peer) SawPrefix(prefix string) bool {
	for _, l := range p.Lines() {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

// WaitRole blocks until the peer reaches role.
func (s *BaseSuite) WaitRole(p *Peer, role domain.Role) {
	s.Require().Eventually(func() bool {
		return p.Orchestrator.Role() == role
	}, s.Config.Timeout, 10*time.Millisecond, "%s never became %s, lines: %v", p.Name, role, p.Lines())
}

// WaitLine blocks until the peer emitted line.
func (s *BaseSuite) WaitLine(p *Peer, line string) {
	s.Require().Eventually(func() bool {
		return p.Saw(line)
	}, s.Config.Timeout, 10*time.Millisecond, "%s never printed %q, lines: %v", p.Name, line, p.Lines())
}
