package relay

import (
	"fmt"
	"sync"

	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Set map[domain.Identity]struct{}

type sessionState struct {
	id        domain.SessionID
	kind      domain.SessionKind
	channel   domain.Identity
	moderator domain.Identity
	secure    bool
	key       []byte
	members   Set
}

// Registry is the relay's directory: which identity is served by which
// peer connection, and which identities belong to which session.
type Registry struct {
	mu       sync.RWMutex
	peers    map[domain.Identity]*peer
	sessions map[domain.SessionID]*sessionState
}

func NewRegistry() *Registry {
	return &Registry{
		peers:    make(map[domain.Identity]*peer),
		sessions: make(map[domain.SessionID]*sessionState),
	}
}

// Subscribe binds identity to p and returns the peer it replaced, if any.
func (r *Registry) Subscribe(identity domain.Identity, p *peer) *peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.peers[identity]
	r.peers[identity] = p
	return previous
}

// Unsubscribe drops identity only if it is still served by p.
func (r *Registry) Unsubscribe(identity domain.Identity, p *peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.peers[identity]; ok && current == p {
		delete(r.peers, identity)
		return true
	}
	return false
}

func (r *Registry) Peer(identity domain.Identity) (*peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[identity]
	return p, ok
}

// CreateSession registers a new session whose only member is its creator.
// An empty id is replaced by a fresh one.
func (r *Registry) CreateSession(id domain.SessionID, creator domain.Identity, kind domain.SessionKind, channel domain.Identity, secure bool, key []byte) (domain.SessionID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}
	if _, taken := r.sessions[id]; taken {
		return "", fmt.Errorf("session %s already exists", id)
	}
	r.sessions[id] = &sessionState{
		id:        id,
		kind:      kind,
		channel:   channel,
		moderator: creator,
		secure:    secure,
		key:       key,
		members:   Set{creator: {}},
	}
	return id, nil
}

// Join adds identity to a live session.
func (r *Registry) Join(id domain.SessionID, identity domain.Identity) (sessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return sessionState{}, apperrors.ErrSessionClosed
	}
	s.members[identity] = struct{}{}
	return *s, nil
}

// Leave removes identity from a session. The session closes for everyone
// when its moderator or a point-to-point peer leaves, or when the moderator
// would be left alone. remaining lists who must be told.
func (r *Registry) Leave(id domain.SessionID, identity domain.Identity) (remaining []domain.Identity, closed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, true, apperrors.ErrSessionClosed
	}
	if _, member := s.members[identity]; !member {
		return nil, false, apperrors.ErrNotFound
	}
	delete(s.members, identity)
	remaining = lo.Keys(s.members)

	_, moderatorStays := s.members[s.moderator]
	closed = s.kind == domain.PointToPoint ||
		identity == s.moderator ||
		(moderatorStays && len(s.members) == 1) ||
		len(s.members) == 0
	if closed {
		delete(r.sessions, id)
	}
	return remaining, closed, nil
}

func (r *Registry) Session(id domain.SessionID) (sessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return sessionState{}, false
	}
	return *s, true
}

func (r *Registry) IsMember(id domain.SessionID, identity domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	_, member := s.members[identity]
	return member
}

func (r *Registry) Members(id domain.SessionID) ([]domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return lo.Keys(s.members), true
}

// SessionsOf lists the sessions identity currently belongs to.
func (r *Registry) SessionsOf(identity domain.Identity) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []domain.SessionID
	for id, s := range r.sessions {
		if _, ok := s.members[identity]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Load reports the number of subscribed identities and live sessions.
func (r *Registry) Load() (peers, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers), len(r.sessions)
}
