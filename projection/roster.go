package projection

import (
	"session-lab/domain"

	"github.com/samber/lo"
)

// RosterDelta is the symmetric difference between two roster snapshots.
// Neither slice is ordered.
type RosterDelta struct {
	Joined []domain.Identity
	Left   []domain.Identity
}

func (d RosterDelta) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0
}

// Roster keeps the last-known membership of one session.
// It is owned by a single session loop and is not safe for concurrent use.
type Roster struct {
	known map[domain.Identity]struct{}
}

func NewRoster() *Roster {
	return &Roster{known: make(map[domain.Identity]struct{})}
}

// Reconcile replaces the known membership with current and reports who
// joined and who left since the previous call.
func (r *Roster) Reconcile(current []domain.Identity) RosterDelta {
	next := make(map[domain.Identity]struct{}, len(current))
	for _, id := range current {
		next[id] = struct{}{}
	}

	previous := lo.Keys(r.known)
	snapshot := lo.Keys(next)

	joined, left := lo.Difference(snapshot, previous)
	r.known = next
	return RosterDelta{Joined: joined, Left: left}
}

func (r *Roster) Members() []domain.Identity {
	return lo.Keys(r.known)
}

func (r *Roster) Reset() {
	r.known = make(map[domain.Identity]struct{})
}
