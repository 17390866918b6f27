package domain

import (
	"time"

	"github.com/artintel/identity/pkg/idx"
)

// Team-scoped roles.
const (
	TeamRoleAdmin  = "team_admin"
	TeamRoleMember = "team_member"
)

// Team is a collaboration group owned by its creator. Organization mirrors
// the creator's organization field and groups teams for billing.
type Team struct {
	ID           idx.ID
	Name         string
	Organization string
	CreatedBy    idx.ID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TeamMembership links a user to a team with a team-scoped role. A user
// holds at most one membership per team.
type TeamMembership struct {
	ID       idx.ID
	TeamID   idx.ID
	UserID   idx.ID
	Role     string
	JoinedAt time.Time
}

// Team activity actions recorded in the audit log.
const (
	ActivityTeamCreated       = "team_created"
	ActivityTeamUpdated       = "team_updated"
	ActivityMemberAdded       = "member_added"
	ActivityMemberRemoved     = "member_removed"
	ActivityMemberRoleChanged = "member_role_changed"
)

// TeamActivityEntry is one immutable audit record of a team mutation.
// ActorID is the user who performed the action; SubjectID, when set, is the
// member the action was about.
type TeamActivityEntry struct {
	ID        idx.ID
	TeamID    idx.ID
	ActorID   idx.ID
	SubjectID idx.ID
	Action    string
	Detail    string
	CreatedAt time.Time
}

// ValidTeamRole reports whether role is a recognized team-scoped role.
func ValidTeamRole(role string) bool {
	return role == TeamRoleAdmin || role == TeamRoleMember
}
