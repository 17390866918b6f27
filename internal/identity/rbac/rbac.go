// Package rbac maps global and team-scoped roles to permission sets and
// answers authorization checks for the service layer.
package rbac

import (
	"errors"
	"fmt"

	"github.com/artintel/identity/internal/identity/domain"
)

// Permission is a named capability a role may hold.
type Permission string

// Permission catalogue. Adding a permission here automatically grants it to
// the admin role.
const (
	// Model management.
	PermViewModels     Permission = "view_models"
	PermDeployModels   Permission = "deploy_models"
	PermFineTuneModels Permission = "fine_tune_models"

	// User management.
	PermViewUsers   Permission = "view_users"
	PermManageUsers Permission = "manage_users"
	PermManageRoles Permission = "manage_roles"

	// Team management.
	PermViewTeam     Permission = "view_team"
	PermManageTeam   Permission = "manage_team"
	PermCreateTeam   Permission = "create_team"
	PermDeleteTeam   Permission = "delete_team"
	PermInviteMember Permission = "invite_member"
	PermRemoveMember Permission = "remove_member"

	// Billing and usage.
	PermViewBilling   Permission = "view_billing"
	PermManageBilling Permission = "manage_billing"

	// API keys.
	PermManageAPIKeys Permission = "manage_api_keys"

	// Compliance and audit.
	PermViewAuditLogs    Permission = "view_audit_logs"
	PermManageCompliance Permission = "manage_compliance"

	// Team-scoped.
	PermTeamViewModels     Permission = "team_view_models"
	PermTeamDeployModels   Permission = "team_deploy_models"
	PermTeamManageAPIKeys  Permission = "team_manage_api_keys"
	PermTeamViewAnalytics  Permission = "team_view_analytics"
	PermTeamManageSettings Permission = "team_manage_settings"
)

var (
	ErrForbidden   = errors.New("rbac: permission denied")
	ErrInvalidRole = errors.New("rbac: invalid role")
)

// allPermissions enumerates the full catalogue. Keep in sync with the
// constants above.
var allPermissions = []Permission{
	PermViewModels, PermDeployModels, PermFineTuneModels,
	PermViewUsers, PermManageUsers, PermManageRoles,
	PermViewTeam, PermManageTeam, PermCreateTeam, PermDeleteTeam,
	PermInviteMember, PermRemoveMember,
	PermViewBilling, PermManageBilling,
	PermManageAPIKeys,
	PermViewAuditLogs, PermManageCompliance,
	PermTeamViewModels, PermTeamDeployModels, PermTeamManageAPIKeys,
	PermTeamViewAnalytics, PermTeamManageSettings,
}

type permSet map[Permission]struct{}

func setOf(perms ...Permission) permSet {
	s := make(permSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

var rolePermissions = map[string]permSet{
	// Admin holds every catalogued permission, including future additions.
	domain.RoleAdmin: setOf(allPermissions...),

	domain.RoleManager: setOf(
		PermViewModels, PermDeployModels,
		PermViewUsers, PermManageUsers,
		PermViewTeam, PermManageTeam, PermCreateTeam,
		PermInviteMember, PermRemoveMember,
		PermViewBilling, PermViewAuditLogs,
		PermTeamViewModels, PermTeamDeployModels, PermTeamManageAPIKeys,
		PermTeamViewAnalytics, PermTeamManageSettings,
	),

	domain.RoleDeveloper: setOf(
		PermViewModels, PermDeployModels, PermFineTuneModels,
		PermViewTeam, PermManageAPIKeys,
	),

	domain.RoleViewer: setOf(
		PermViewModels, PermViewTeam,
	),

	domain.RoleUser: setOf(
		PermViewModels, PermViewTeam, PermCreateTeam,
	),
}

var teamRolePermissions = map[string]permSet{
	domain.TeamRoleAdmin: setOf(
		PermTeamViewModels, PermTeamDeployModels, PermTeamManageAPIKeys,
		PermTeamViewAnalytics, PermTeamManageSettings,
	),
	domain.TeamRoleMember: setOf(
		PermTeamViewModels, PermTeamViewAnalytics,
	),
}

// Check returns nil when role holds perm, ErrInvalidRole for an unknown
// role, and ErrForbidden otherwise.
func Check(role string, perm Permission) error {
	perms, ok := rolePermissions[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if _, ok := perms[perm]; !ok {
		return fmt.Errorf("%w: %s required", ErrForbidden, perm)
	}
	return nil
}

// Has reports whether role holds perm; unknown roles hold nothing.
func Has(role string, perm Permission) bool {
	return Check(role, perm) == nil
}

// CheckTeam returns nil when the team-scoped role holds perm.
func CheckTeam(teamRole string, perm Permission) error {
	perms, ok := teamRolePermissions[teamRole]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, teamRole)
	}
	if _, ok := perms[perm]; !ok {
		return fmt.Errorf("%w: %s required", ErrForbidden, perm)
	}
	return nil
}

// Permissions returns the permission list for a global role, for
// introspection endpoints and tests. Unknown roles return nil.
func Permissions(role string) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(perms))
	for _, p := range allPermissions {
		if _, held := perms[p]; held {
			out = append(out, p)
		}
	}
	return out
}
