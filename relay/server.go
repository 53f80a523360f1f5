package relay

import (
	"errors"
	"log/slog"
	"net/http"

	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/gorilla/websocket"
)

const WebSocketPath = "/ws"

// Server routes frames between subscribed identities and owns every
// session's membership.
type Server struct {
	log      *slog.Logger
	secret   string
	registry *Registry
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, sharedSecret string, registry *Registry) *Server {
	return &Server{
		log:      log,
		secret:   sharedSecret,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	return mux
}

// Load implements workers.LoadReporter.
func (s *Server) Load() (peers, sessions int) {
	return s.registry.Load()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade WebSocket", "error", err)
		return
	}
	p := newPeer(s.log, conn)
	go p.writePump()
	go func() {
		p.readPump(s.handle)
		s.drop(p)
	}()
}

func (s *Server) handle(p *peer, f Frame) {
	if f.Type != FrameSubscribe && p.Identity().IsZero() {
		p.push(reject(f, CodeUnauthorized, "subscribe first"))
		return
	}

	switch f.Type {
	case FrameSubscribe:
		s.subscribe(p, f)
	case FrameCreate:
		s.create(p, f)
	case FrameInvite:
		s.invite(p, f)
	case FramePublish:
		s.publish(p, f)
	case FrameRoster:
		s.roster(p, f)
	case FrameLeave:
		s.leave(p, f)
	default:
		p.push(reject(f, CodeBadRequest, "unknown frame type %q", f.Type))
	}
}

func (s *Server) subscribe(p *peer, f Frame) {
	identity, err := VerifySubscribeToken(s.secret, f.Token)
	if err != nil {
		s.log.Warn("Subscription rejected", "from", f.From, "error", err)
		p.push(reject(f, CodeUnauthorized, "%v", err))
		return
	}
	if !p.Identity().IsZero() && p.Identity() != identity {
		p.push(reject(f, CodeForbidden, "connection already subscribed as %s", p.Identity()))
		return
	}
	p.setIdentity(identity)
	if previous := s.registry.Subscribe(identity, p); previous != nil && previous != p {
		s.log.Info("Identity taken over by a new connection", "identity", identity.String())
		previous.close()
	}
	s.log.Info("Peer subscribed", "identity", identity.String())
	p.push(ack(f))
}

func (s *Server) create(p *peer, f Frame) {
	creator := p.Identity()
	target, err := domain.ParseIdentity(f.To)
	if err != nil {
		p.push(reject(f, CodeBadRequest, "%v", err))
		return
	}

	kind := domain.Group
	if f.Kind == domain.PointToPoint.String() {
		kind = domain.PointToPoint
	}

	if kind == domain.Group {
		id, err := s.registry.CreateSession(domain.SessionID(f.Session), creator, kind, target, f.Secure, f.Key)
		if err != nil {
			p.push(reject(f, CodeBadRequest, "%v", err))
			return
		}
		s.log.Info("Group session created", "session", id, "channel", target.String(), "moderator", creator.String())
		res := ack(f)
		res.Session = string(id)
		p.push(res)
		return
	}

	remote, ok := s.registry.Peer(target)
	if !ok {
		p.push(reject(f, CodeNotFound, "%s is not connected", target))
		return
	}
	id, err := s.registry.CreateSession(domain.SessionID(f.Session), creator, kind, target, f.Secure, f.Key)
	if err != nil {
		p.push(reject(f, CodeBadRequest, "%v", err))
		return
	}
	if _, err := s.registry.Join(id, target); err != nil {
		p.push(reject(f, CodeSessionClosed, "%v", err))
		return
	}
	s.log.Info("Point-to-point session created", "session", id, "from", creator.String(), "to", target.String())
	res := ack(f)
	res.Session = string(id)
	p.push(res)
	remote.push(Frame{
		Type:    FrameSession,
		Session: string(id),
		Kind:    kind.String(),
		From:    creator.String(),
		To:      target.String(),
		Secure:  f.Secure,
		Key:     f.Key,
	})
}

func (s *Server) invite(p *peer, f Frame) {
	inviter := p.Identity()
	id := domain.SessionID(f.Session)
	state, ok := s.registry.Session(id)
	if !ok {
		p.push(reject(f, CodeSessionClosed, "session %s is closed", id))
		return
	}
	if state.kind != domain.Group || state.moderator != inviter {
		p.push(reject(f, CodeForbidden, "only the moderator can invite"))
		return
	}
	invitee, err := domain.ParseIdentity(f.To)
	if err != nil {
		p.push(reject(f, CodeBadRequest, "%v", err))
		return
	}
	remote, ok := s.registry.Peer(invitee)
	if !ok {
		p.push(reject(f, CodeNotFound, "%s is not connected", invitee))
		return
	}
	if _, err := s.registry.Join(id, invitee); err != nil {
		p.push(reject(f, CodeSessionClosed, "%v", err))
		return
	}
	s.log.Info("Participant invited", "session", id, "invitee", invitee.String())
	p.push(ack(f))
	remote.push(Frame{
		Type:    FrameSession,
		Session: string(id),
		Kind:    state.kind.String(),
		From:    inviter.String(),
		To:      state.channel.String(),
		Secure:  state.secure,
		Key:     state.key,
	})
}

// publish fans a message out to every other member, or to f.To only when
// the frame is a reply.
func (s *Server) publish(p *peer, f Frame) {
	sender := p.Identity()
	id := domain.SessionID(f.Session)
	members, ok := s.registry.Members(id)
	if !ok {
		p.push(reject(f, CodeSessionClosed, "session %s is closed", id))
		return
	}
	if !s.registry.IsMember(id, sender) {
		p.push(reject(f, CodeForbidden, "not a member of %s", id))
		return
	}

	out := Frame{
		Type:    FrameMessage,
		Session: f.Session,
		From:    sender.String(),
		MsgID:   f.MsgID,
		ReplyTo: f.ReplyTo,
		Payload: f.Payload,
	}
	for _, member := range members {
		if member == sender || (f.To != "" && member.String() != f.To) {
			continue
		}
		if remote, ok := s.registry.Peer(member); ok {
			remote.push(out)
		}
	}
	p.push(ack(f))
}

func (s *Server) roster(p *peer, f Frame) {
	id := domain.SessionID(f.Session)
	members, ok := s.registry.Members(id)
	if !ok {
		p.push(reject(f, CodeSessionClosed, "session %s is closed", id))
		return
	}
	res := ack(f)
	for _, m := range members {
		res.Members = append(res.Members, m.String())
	}
	p.push(res)
}

func (s *Server) leave(p *peer, f Frame) {
	id := domain.SessionID(f.Session)
	if err := s.depart(id, p.Identity(), ""); err != nil {
		p.push(reject(f, CodeSessionClosed, "%v", err))
		return
	}
	p.push(ack(f))
}

// depart removes identity from a session and notifies whoever remains.
// notice, when set, is delivered to the remaining members of a session
// that survives the departure.
func (s *Server) depart(id domain.SessionID, identity domain.Identity, notice string) error {
	remaining, closed, err := s.registry.Leave(id, identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionClosed) {
			return nil
		}
		return err
	}
	if closed {
		s.log.Info("Session closed", "session", id, "by", identity.String())
	}
	for _, member := range remaining {
		remote, ok := s.registry.Peer(member)
		if !ok {
			continue
		}
		switch {
		case closed:
			remote.push(Frame{Type: FrameClosed, Session: string(id), From: identity.String()})
		case notice != "":
			remote.push(Frame{Type: FrameNotice, Session: string(id), From: identity.String(), Error: notice})
		}
	}
	return nil
}

// drop runs once the peer's socket is gone.
func (s *Server) drop(p *peer) {
	identity := p.Identity()
	if identity.IsZero() {
		return
	}
	if !s.registry.Unsubscribe(identity, p) {
		return
	}
	for _, id := range s.registry.SessionsOf(identity) {
		if err := s.depart(id, identity, identity.String()+" disconnected"); err != nil {
			s.log.Warn("Failed to clean up session", "session", id, "error", err)
		}
	}
	s.log.Info("Peer disconnected", "identity", identity.String())
}
