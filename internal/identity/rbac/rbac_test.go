package rbac

import (
	"testing"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminHoldsEveryPermission(t *testing.T) {
	for _, perm := range allPermissions {
		assert.NoError(t, Check(domain.RoleAdmin, perm), "admin should hold %s", perm)
	}
}

func TestEveryPermissionIsCatalogued(t *testing.T) {
	catalogued := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		catalogued[p] = struct{}{}
	}

	for role, perms := range rolePermissions {
		for p := range perms {
			_, ok := catalogued[p]
			require.True(t, ok, "role %s grants uncatalogued permission %s", role, p)
		}
	}
	for role, perms := range teamRolePermissions {
		for p := range perms {
			_, ok := catalogued[p]
			require.True(t, ok, "team role %s grants uncatalogued permission %s", role, p)
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		role string
		perm Permission
		want error
	}{
		{"manager can manage users", domain.RoleManager, PermManageUsers, nil},
		{"manager cannot manage roles", domain.RoleManager, PermManageRoles, ErrForbidden},
		{"manager cannot delete teams", domain.RoleManager, PermDeleteTeam, ErrForbidden},
		{"developer can fine-tune", domain.RoleDeveloper, PermFineTuneModels, nil},
		{"developer cannot view users", domain.RoleDeveloper, PermViewUsers, ErrForbidden},
		{"viewer can view models", domain.RoleViewer, PermViewModels, nil},
		{"viewer cannot create teams", domain.RoleViewer, PermCreateTeam, ErrForbidden},
		{"user can create teams", domain.RoleUser, PermCreateTeam, nil},
		{"user cannot manage team", domain.RoleUser, PermManageTeam, ErrForbidden},
		{"unknown role", "superuser", PermViewModels, ErrInvalidRole},
		{"empty role", "", PermViewModels, ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.role, tt.perm)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckTeam(t *testing.T) {
	assert.NoError(t, CheckTeam(domain.TeamRoleAdmin, PermTeamManageSettings))
	assert.NoError(t, CheckTeam(domain.TeamRoleMember, PermTeamViewAnalytics))
	assert.ErrorIs(t, CheckTeam(domain.TeamRoleMember, PermTeamManageSettings), ErrForbidden)
	assert.ErrorIs(t, CheckTeam("owner", PermTeamViewModels), ErrInvalidRole)
}

func TestPermissions(t *testing.T) {
	assert.Len(t, Permissions(domain.RoleAdmin), len(allPermissions))
	assert.ElementsMatch(t,
		[]Permission{PermViewModels, PermViewTeam},
		Permissions(domain.RoleViewer),
	)
	assert.Nil(t, Permissions("nope"))
}

func TestHas(t *testing.T) {
	assert.True(t, Has(domain.RoleAdmin, PermManageCompliance))
	assert.False(t, Has(domain.RoleUser, PermManageBilling))
	assert.False(t, Has("ghost", PermViewModels))
}
