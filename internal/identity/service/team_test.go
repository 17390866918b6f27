package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/rbac"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTeamRecordsFounderAndActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")

	team, err := env.teams.CreateTeam(ctx, owner, "  Platform  ", "Analytical Engines")
	require.NoError(t, err)
	assert.Equal(t, "Platform", team.Name)
	assert.Equal(t, "Analytical Engines", team.Organization)
	assert.Equal(t, owner.ID, team.CreatedBy)

	detail, err := env.teams.GetTeam(ctx, owner, team.ID.String())
	require.NoError(t, err)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, domain.TeamRoleAdmin, detail.Members[0].Role)
	assert.Equal(t, owner.ID, detail.Members[0].UserID)

	activity, err := env.teams.Activity(ctx, owner, team.ID.String(), 0)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, domain.ActivityTeamCreated, activity[0].Action)
	assert.Equal(t, owner.ID, activity[0].ActorID)
}

var errAuditDown = errors.New("audit log unavailable")

// faultyAuditStore delegates to a real store but hands transactions a
// broken activity log, for exercising rollback paths.
type faultyAuditStore struct {
	store.Store
}

func (s *faultyAuditStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&faultyAuditTx{storeTx: tx})
	})
}

// storeTx is an alias so the embedded field name does not collide with
// the Tx method promoted from store.Tx (via store.Store).
type storeTx = store.Tx

type faultyAuditTx struct {
	storeTx
}

func (t *faultyAuditTx) ActivityLog() store.ActivityLog {
	return brokenActivityLog{}
}

type brokenActivityLog struct{}

func (brokenActivityLog) AppendActivity(context.Context, domain.TeamActivityEntry) error {
	return errAuditDown
}

func (brokenActivityLog) ListTeamActivity(context.Context, string, int) ([]domain.TeamActivityEntry, error) {
	return nil, errAuditDown
}

func TestCreateTeamRollsBackWhenAuditFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	teams := &TeamService{Store: &faultyAuditStore{Store: env.store}}

	_, err := teams.CreateTeam(ctx, owner, "Platform", "")
	require.ErrorIs(t, err, errAuditDown)

	// The failed activity append rolled the whole transaction back:
	// neither the team nor the founding membership was committed.
	listed, err := env.store.Teams().ListTeamsForUser(ctx, owner.ID.String())
	require.NoError(t, err)
	assert.Empty(t, listed)

	db, err := sql.Open("sqlite", env.dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"teams", "team_members", "team_activity_logs"} {
		var count int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count))
		assert.Zero(t, count, table)
	}
}

func TestCreateTeamValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")

	_, err := env.teams.CreateTeam(ctx, owner, "   ", "")
	assert.ErrorIs(t, err, ErrTeamNameRequired)

	// Viewers lack create_team.
	viewer := registerVerified(t, env, "viewer@example.com")
	viewer.Role = domain.RoleViewer
	_, err = env.teams.CreateTeam(ctx, viewer, "Nope", "")
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestAddMemberFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	member := registerVerified(t, env, "member@example.com")

	team, err := env.teams.CreateTeam(ctx, owner, "Platform", "")
	require.NoError(t, err)
	teamID := team.ID.String()

	m, err := env.teams.AddMember(ctx, owner, teamID, member.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.TeamRoleMember, m.Role)

	_, err = env.teams.AddMember(ctx, owner, teamID, member.ID.String(), domain.TeamRoleMember)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = env.teams.AddMember(ctx, owner, teamID, member.ID.String(), "team_owner")
	assert.ErrorIs(t, err, ErrInvalidTeamRole)

	// Plain members cannot add others.
	outsider := registerVerified(t, env, "outsider@example.com")
	_, err = env.teams.AddMember(ctx, member, teamID, outsider.ID.String(), "")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	activity, err := env.teams.Activity(ctx, owner, teamID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityMemberAdded, activity[0].Action)
	assert.Equal(t, member.ID, activity[0].SubjectID)
}

func TestAddMemberRejectsDisabledUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	member := registerVerified(t, env, "member@example.com")
	require.NoError(t, env.store.Users().SetActive(ctx, member.ID.String(), false))

	team, err := env.teams.CreateTeam(ctx, owner, "Platform", "")
	require.NoError(t, err)

	_, err = env.teams.AddMember(ctx, owner, team.ID.String(), member.ID.String(), "")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestUpdateMemberRoleAndLastAdminGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	member := registerVerified(t, env, "member@example.com")

	team, err := env.teams.CreateTeam(ctx, owner, "Platform", "")
	require.NoError(t, err)
	teamID := team.ID.String()

	_, err = env.teams.AddMember(ctx, owner, teamID, member.ID.String(), "")
	require.NoError(t, err)

	// The founder is the only team admin; demoting them is refused.
	err = env.teams.UpdateMemberRole(ctx, owner, teamID, owner.ID.String(), domain.TeamRoleMember)
	assert.ErrorIs(t, err, ErrLastTeamAdmin)

	require.NoError(t, env.teams.UpdateMemberRole(ctx, owner, teamID, member.ID.String(), domain.TeamRoleAdmin))

	// With a second admin, the founder can step down.
	require.NoError(t, env.teams.UpdateMemberRole(ctx, owner, teamID, owner.ID.String(), domain.TeamRoleMember))

	activity, err := env.teams.Activity(ctx, member, teamID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityMemberRoleChanged, activity[0].Action)
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	member := registerVerified(t, env, "member@example.com")

	team, err := env.teams.CreateTeam(ctx, owner, "Platform", "")
	require.NoError(t, err)
	teamID := team.ID.String()

	_, err = env.teams.AddMember(ctx, owner, teamID, member.ID.String(), "")
	require.NoError(t, err)

	// Members can leave on their own.
	require.NoError(t, env.teams.RemoveMember(ctx, member, teamID, member.ID.String()))
	assert.ErrorIs(t, env.teams.RemoveMember(ctx, owner, teamID, member.ID.String()), ErrNotTeamMember)

	// The last team admin cannot leave.
	assert.ErrorIs(t, env.teams.RemoveMember(ctx, owner, teamID, owner.ID.String()), ErrLastTeamAdmin)
}

func TestTeamVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	outsider := registerVerified(t, env, "outsider@example.com")

	team, err := env.teams.CreateTeam(ctx, owner, "Platform", "")
	require.NoError(t, err)
	teamID := team.ID.String()

	_, err = env.teams.GetTeam(ctx, outsider, teamID)
	assert.ErrorIs(t, err, ErrNotTeamMember)
	_, err = env.teams.Activity(ctx, outsider, teamID, 0)
	assert.ErrorIs(t, err, ErrNotTeamMember)

	// Global admins see every team.
	admin, err := env.auth.RegisterAdmin(ctx, registerInput("root@example.com"), "test-admin-key")
	require.NoError(t, err)
	_, err = env.teams.GetTeam(ctx, admin, teamID)
	assert.NoError(t, err)

	_, err = env.teams.GetTeam(ctx, owner, "01JUNKJUNKJUNKJUNKJUNKJUNK")
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestUpdateTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	member := registerVerified(t, env, "member@example.com")

	team, err := env.teams.CreateTeam(ctx, owner, "Platform", "Old Org")
	require.NoError(t, err)
	teamID := team.ID.String()

	_, err = env.teams.AddMember(ctx, owner, teamID, member.ID.String(), "")
	require.NoError(t, err)

	// Plain members cannot rename the team.
	_, err = env.teams.UpdateTeam(ctx, member, teamID, "Hijacked", "")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	updated, err := env.teams.UpdateTeam(ctx, owner, teamID, "Core Platform", "New Org")
	require.NoError(t, err)
	assert.Equal(t, "Core Platform", updated.Name)
	assert.Equal(t, "New Org", updated.Organization)
}

func TestListTeams(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := registerVerified(t, env, "owner@example.com")
	other := registerVerified(t, env, "other@example.com")

	_, err := env.teams.CreateTeam(ctx, owner, "One", "")
	require.NoError(t, err)
	_, err = env.teams.CreateTeam(ctx, owner, "Two", "")
	require.NoError(t, err)

	mine, err := env.teams.ListTeams(ctx, owner.ID.String())
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := env.teams.ListTeams(ctx, other.ID.String())
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
