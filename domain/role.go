package domain

// Role is the orchestrator's current mode. Exactly one is current at a time.
type Role int32

const (
	RoleDisconnected Role = iota
	RoleListening
	RoleModerator
	RoleParticipant
)

func (r Role) String() string {
	switch r {
	case RoleDisconnected:
		return "disconnected"
	case RoleListening:
		return "listening"
	case RoleModerator:
		return "moderator"
	case RoleParticipant:
		return "participant"
	default:
		return "unknown"
	}
}

// InSession is true for the roles that drive a session loop.
func (r Role) InSession() bool {
	return r == RoleModerator || r == RoleParticipant
}
