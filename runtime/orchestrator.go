// Package runtime owns the connection and the role state machine.
// It orchestrates sessions without containing business logic or domain rules.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	"session-lab/domain/event"
	apperrors "session-lab/errors"
	"session-lab/runtime/workers"

	"github.com/samber/lo"
)

const defaultRequestTimeout = 10 * time.Second

type Settings struct {
	Server            string
	SharedSecret      string
	PollTimeout       time.Duration
	RequestTimeout    time.Duration
	SecureGroupKeying bool
	// AutoReply answers every received message with its odd/even verdict.
	AutoReply bool
}

type command struct {
	run   func(runCtx context.Context) error
	reply chan error
}

type resultKind int

const (
	sessionAccepted resultKind = iota
	sessionEnded
)

type epochResult struct {
	epoch   uint64
	kind    resultKind
	session contract.Session
	err     error
}

// epoch is one acceptor or one session loop. Canceling it must unwind the
// goroutine, which closes done before reporting its result.
type epoch struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator is the role state machine. Run is its single owner
// goroutine: every transition happens there, user actions reach it as
// commands and epoch goroutines report back as results.
type Orchestrator struct {
	log       *slog.Logger
	settings  Settings
	lifecycle *ConnectionLifecycle
	sink      contract.EventSink
	commands  chan command
	results   chan epochResult

	// Owned by the Run goroutine.
	endpoint  contract.Endpoint
	current   *epoch
	nextEpoch uint64

	// Snapshot for readers on other goroutines, written only by Run.
	mu      sync.RWMutex
	role    domain.Role
	self    domain.Identity
	session contract.Session
}

func NewOrchestrator(log *slog.Logger, transport contract.Transport, sink contract.EventSink, settings Settings) *Orchestrator {
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = workers.DefaultPollTimeout
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = defaultRequestTimeout
	}
	o := &Orchestrator{
		log:       log,
		settings:  settings,
		lifecycle: NewConnectionLifecycle(log, transport),
		sink:      sink,
		commands:  make(chan command),
		results:   make(chan epochResult),
		role:      domain.RoleDisconnected,
	}
	o.lifecycle.OnRelease(o.releaseSession)
	return o
}

// Run processes commands and epoch results until ctx ends, then tears
// everything down.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.shutdown(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-o.commands:
			cmd.reply <- cmd.run(ctx)
		case res := <-o.results:
			o.handleResult(ctx, res)
		}
	}
}

func (o *Orchestrator) Role() domain.Role {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.role
}

func (o *Orchestrator) Identity() domain.Identity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.self
}

// ConnID reports the relay connection currently held, if any.
func (o *Orchestrator) ConnID() (domain.ConnID, bool) {
	return o.lifecycle.ConnID()
}

func (o *Orchestrator) SessionID() (domain.SessionID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.session == nil {
		return "", false
	}
	return o.session.ID(), true
}

// Connect subscribes identity on the rendezvous server and starts listening
// for invitations. Connecting again with the same identity is a no-op.
func (o *Orchestrator) Connect(ctx context.Context, identity domain.Identity) error {
	return o.do(ctx, func(runCtx context.Context) error {
		if o.Role() != domain.RoleDisconnected && o.Identity() == identity {
			return nil
		}
		// Subscribing another identity releases the old connection.
		if o.lifecycle.Connected() {
			if err := o.lifecycle.Disconnect(); err != nil {
				o.log.Warn("Failed to release previous connection", "error", err)
			}
			o.setIdentity(domain.Identity{})
			o.setRole(runCtx, domain.RoleDisconnected)
		}

		reqCtx, cancel := context.WithTimeout(ctx, o.settings.RequestTimeout)
		defer cancel()
		endpoint, err := o.lifecycle.Connect(reqCtx, o.settings.Server, identity, o.settings.SharedSecret)
		if err != nil {
			o.emit(runCtx, event.Error("Connection failed: %v", err))
			return err
		}
		o.endpoint = endpoint
		o.setIdentity(identity)
		o.emit(runCtx, event.Info("Connected to %s as %s", o.settings.Server, identity))
		o.listen(runCtx)
		return nil
	})
}

// RequestGroup creates a group session on channel as moderator and invites
// every invitee. It only acts while listening; an empty invitee list keeps
// listening. Invite failures are reported per invitee.
func (o *Orchestrator) RequestGroup(ctx context.Context, channel string, invitees []string) error {
	invitees = lo.Compact(lo.Map(invitees, func(s string, _ int) string { return strings.TrimSpace(s) }))

	return o.do(ctx, func(runCtx context.Context) error {
		if role := o.Role(); role != domain.RoleListening {
			o.emit(runCtx, event.Warn("Cannot create a group while %s", role))
			return nil
		}
		if strings.TrimSpace(channel) == "" {
			o.emit(runCtx, event.Warn("Group channel is required."))
			return nil
		}
		if len(invitees) == 0 {
			o.emit(runCtx, event.Info("Already listening for invitations. Provide invitees to create a group as moderator."))
			return nil
		}
		channelID, err := o.channelIdentity(channel)
		if err != nil {
			o.emit(runCtx, event.Error("Invalid group channel %q: %v", channel, err))
			return err
		}

		o.stopEpoch()

		createCtx, cancel := context.WithTimeout(ctx, o.settings.RequestTimeout)
		defer cancel()
		if o.settings.SecureGroupKeying {
			o.emit(runCtx, event.Info("Creating group session with secure keying..."))
		} else {
			o.emit(runCtx, event.Info("Creating group session..."))
		}
		session, err := o.endpoint.CreateSession(createCtx, channelID, domain.GroupConfig(o.settings.SecureGroupKeying))
		if err != nil {
			o.emit(runCtx, event.Error("Failed to create group: %v", err))
			o.startAcceptor(runCtx)
			return fmt.Errorf("create group %s: %w", channelID, err)
		}
		o.emit(runCtx, event.Info("Group session created (ID: %s)", session.ID()))

		for _, invitee := range invitees {
			if err := o.invite(ctx, session, invitee); err != nil {
				o.emit(runCtx, event.Warn("Failed to invite %s: %v", invitee, err))
				continue
			}
			o.emit(runCtx, event.Info("Invited %s", invitee))
		}

		o.emit(runCtx, event.Info("You are the moderator. Waiting for messages..."))
		o.startSession(runCtx, session, domain.RoleModerator)
		return nil
	})
}

// Leave closes the current session and goes back to listening.
func (o *Orchestrator) Leave(ctx context.Context) error {
	return o.do(ctx, func(runCtx context.Context) error {
		if !o.Role().InSession() {
			o.emit(runCtx, event.Warn("Not in a session."))
			return apperrors.ErrNoActiveSession
		}
		o.releaseSession()
		o.emit(runCtx, event.Info("Left the group."))
		o.listen(runCtx)
		return nil
	})
}

// Disconnect cancels everything in flight, closes any session and drops
// the connection. The orchestrator can connect again afterwards.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	return o.do(ctx, func(runCtx context.Context) error {
		if !o.lifecycle.Connected() {
			return nil
		}
		err := o.lifecycle.Disconnect()
		o.setIdentity(domain.Identity{})
		o.setRole(runCtx, domain.RoleDisconnected)
		if err != nil {
			o.emit(runCtx, event.Warn("Disconnected with error: %v", err))
			return err
		}
		o.emit(runCtx, event.Info("Disconnected."))
		return nil
	})
}

// Send publishes text on the current session. It runs on the caller's
// goroutine, concurrently with the session loop.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	o.mu.RLock()
	session, self := o.session, o.self
	o.mu.RUnlock()

	if session == nil {
		o.emit(ctx, event.Warn("Not in a session."))
		return apperrors.ErrNoActiveSession
	}
	if err := session.Publish(ctx, []byte(text)); err != nil {
		o.emit(ctx, event.Error("Send failed: %v", err))
		return err
	}
	o.emit(ctx, event.MessageSent{Session: session.ID(), Author: self, Text: text, At: time.Now().UTC()})
	return nil
}

func (o *Orchestrator) do(ctx context.Context, fn func(runCtx context.Context) error) error {
	cmd := command{run: fn, reply: make(chan error, 1)}
	select {
	case o.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) handleResult(runCtx context.Context, res epochResult) {
	if o.current == nil || o.current.id != res.epoch {
		if res.session != nil {
			closeQuietly(runCtx, o.log, res.session)
		}
		return
	}
	o.current = nil

	switch res.kind {
	case sessionAccepted:
		if res.err != nil {
			o.emit(runCtx, event.Error("Stopped listening: %v", res.err))
			if err := o.lifecycle.Disconnect(); err != nil {
				o.log.Warn("Failed to release connection", "error", err)
			}
			o.setIdentity(domain.Identity{})
			o.setRole(runCtx, domain.RoleDisconnected)
			return
		}
		o.emit(runCtx, event.Info("Joined group session (ID: %s)", res.session.ID()))
		o.startSession(runCtx, res.session, domain.RoleParticipant)
	case sessionEnded:
		o.setSession(nil)
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			o.log.Warn("Session loop ended with error", "error", res.err)
		}
		o.emit(runCtx, event.Info("Session ended. Listening for new invitations..."))
		o.listen(runCtx)
	}
}

// listen enters the listening role and arms the acceptor.
func (o *Orchestrator) listen(runCtx context.Context) {
	o.setRole(runCtx, domain.RoleListening)
	o.emit(runCtx, event.Info("Listening for group invitations..."))
	o.startAcceptor(runCtx)
}

func (o *Orchestrator) startAcceptor(runCtx context.Context) {
	ep, epCtx := o.newEpoch(runCtx)
	acceptor := workers.NewAcceptor(o.log, o.endpoint, o.sink)
	go func() {
		session, err := acceptor.Accept(epCtx)
		close(ep.done)
		o.deliver(runCtx, epochResult{epoch: ep.id, kind: sessionAccepted, session: session, err: err})
	}()
}

func (o *Orchestrator) startSession(runCtx context.Context, session contract.Session, role domain.Role) {
	o.setSession(session)
	o.setRole(runCtx, role)
	ep, epCtx := o.newEpoch(runCtx)
	loop := workers.NewSessionLoop(o.log, session, role, o.Identity(), o.sink, o.settings.PollTimeout, o.settings.AutoReply)
	go func() {
		err := loop.Run(epCtx)
		close(ep.done)
		o.deliver(runCtx, epochResult{epoch: ep.id, kind: sessionEnded, err: err})
	}()
}

func (o *Orchestrator) newEpoch(runCtx context.Context) (*epoch, context.Context) {
	o.nextEpoch++
	epCtx, cancel := context.WithCancel(runCtx)
	ep := &epoch{id: o.nextEpoch, cancel: cancel, done: make(chan struct{})}
	o.current = ep
	return ep, epCtx
}

// stopEpoch cancels the running acceptor or session loop and waits for it.
// A session loop closes its session on the way out.
func (o *Orchestrator) stopEpoch() {
	if o.current == nil {
		return
	}
	ep := o.current
	o.current = nil
	ep.cancel()
	<-ep.done
}

// releaseSession runs on the Run goroutine, either directly or through
// the lifecycle release hook.
func (o *Orchestrator) releaseSession() {
	o.stopEpoch()
	o.setSession(nil)
}

func (o *Orchestrator) deliver(runCtx context.Context, res epochResult) {
	select {
	case o.results <- res:
	case <-runCtx.Done():
		if res.session != nil {
			closeQuietly(runCtx, o.log, res.session)
		}
	}
}

func (o *Orchestrator) shutdown(ctx context.Context) {
	if err := o.lifecycle.Disconnect(); err != nil {
		o.log.Warn("Failed to release connection on shutdown", "error", err)
	}
	o.releaseSession()
	o.setIdentity(domain.Identity{})
	o.setRole(ctx, domain.RoleDisconnected)
}

func (o *Orchestrator) invite(ctx context.Context, session contract.Session, invitee string) error {
	id, err := domain.ParseIdentity(invitee)
	if err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(ctx, o.settings.RequestTimeout)
	defer cancel()
	if err := o.lifecycle.SetRoute(reqCtx, id); err != nil {
		return err
	}
	if err := session.Invite(reqCtx, id); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInviteFailed, err)
	}
	return nil
}

// channelIdentity accepts a full org/namespace/app name, or a bare channel
// name placed under the caller's own org and namespace.
func (o *Orchestrator) channelIdentity(channel string) (domain.Identity, error) {
	channel = strings.TrimSpace(channel)
	if strings.Contains(channel, "/") {
		return domain.ParseIdentity(channel)
	}
	self := o.Identity()
	return domain.NewIdentity(self.Org, self.Namespace, channel)
}

func (o *Orchestrator) setRole(ctx context.Context, role domain.Role) {
	o.mu.Lock()
	previous := o.role
	o.role = role
	o.mu.Unlock()
	if previous != role {
		o.log.Debug("Role changed", "from", previous.String(), "to", role.String())
		o.emit(ctx, event.RoleChanged{From: previous, To: role, At: time.Now().UTC()})
	}
}

func (o *Orchestrator) setIdentity(id domain.Identity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.self = id
}

func (o *Orchestrator) setSession(s contract.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session = s
}

func (o *Orchestrator) emit(ctx context.Context, n event.Notification) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Consume(context.WithoutCancel(ctx), n); err != nil {
		o.log.Warn("Sink rejected notification", "line", n.Line(), "error", err)
	}
}

func closeQuietly(ctx context.Context, log *slog.Logger, session contract.Session) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := session.Close(closeCtx); err != nil && !errors.Is(err, apperrors.ErrSessionClosed) {
		log.Warn("Failed to close stray session", "session", session.ID(), "error", err)
	}
}
