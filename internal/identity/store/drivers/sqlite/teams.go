package sqlite

import (
	"context"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/store"
)

type teamsRepo struct {
	db dbtx
}

const teamColumns = `id, name, organization, created_by, created_at, updated_at`

func scanTeam(row interface{ Scan(...any) error }) (domain.Team, error) {
	var t domain.Team
	err := row.Scan(&t.ID, &t.Name, &t.Organization, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *teamsRepo) GetTeamByID(ctx context.Context, id string) (domain.Team, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	t, err := scanTeam(row)
	return t, mapNotFound(err)
}

func (r *teamsRepo) CreateTeam(ctx context.Context, t domain.Team) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, organization, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Organization, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *teamsRepo) UpdateTeam(ctx context.Context, teamID, name, organization string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE teams SET name = ?, organization = ?, updated_at = ? WHERE id = ?`,
		name, organization, time.Now().UTC(), teamID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *teamsRepo) DeleteTeam(ctx context.Context, teamID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *teamsRepo) ListTeamsForUser(ctx context.Context, userID string) ([]domain.Team, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.organization, t.created_by, t.created_at, t.updated_at
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = ?
		ORDER BY t.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

type membershipsRepo struct {
	db dbtx
}

func (r *membershipsRepo) CreateMembership(ctx context.Context, m domain.TeamMembership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO team_members (id, team_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.TeamID, m.UserID, m.Role, m.JoinedAt,
	)
	return mapConstraint(err)
}

func (r *membershipsRepo) GetMembership(ctx context.Context, teamID, userID string) (domain.TeamMembership, error) {
	var m domain.TeamMembership
	err := r.db.QueryRowContext(ctx, `
		SELECT id, team_id, user_id, role, joined_at
		FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID,
	).Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt)
	return m, mapNotFound(err)
}

func (r *membershipsRepo) UpdateMembershipRole(ctx context.Context, teamID, userID, role string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`,
		role, teamID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *membershipsRepo) DeleteMembership(ctx context.Context, teamID, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *membershipsRepo) ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_id, user_id, role, joined_at
		FROM team_members WHERE team_id = ?
		ORDER BY joined_at ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.TeamMembership
	for rows.Next() {
		var m domain.TeamMembership
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *membershipsRepo) CountTeamAdmins(ctx context.Context, teamID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM team_members WHERE team_id = ? AND role = ?`,
		teamID, domain.TeamRoleAdmin,
	).Scan(&n)
	return n, err
}

type activityLogRepo struct {
	db dbtx
}

const defaultActivityLimit = 100

func (r *activityLogRepo) AppendActivity(ctx context.Context, e domain.TeamActivityEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO team_activity_logs (id, team_id, actor_id, subject_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TeamID, e.ActorID, e.SubjectID, e.Action, e.Detail, e.CreatedAt,
	)
	return err
}

func (r *activityLogRepo) ListTeamActivity(ctx context.Context, teamID string, limit int) ([]domain.TeamActivityEntry, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, team_id, actor_id, subject_id, action, detail, created_at
		FROM team_activity_logs WHERE team_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, teamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.TeamActivityEntry
	for rows.Next() {
		var e domain.TeamActivityEntry
		if err := rows.Scan(&e.ID, &e.TeamID, &e.ActorID, &e.SubjectID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
