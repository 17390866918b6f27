package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/rbac"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/idx"
	"github.com/artintel/identity/pkg/slogx"
)

// TeamService owns team lifecycle, membership and the audit trail. Every
// mutation appends its activity record in the same transaction, so the
// trail never disagrees with the data.
type TeamService struct {
	Store store.Store
}

// TeamDetail bundles a team with its member list.
type TeamDetail struct {
	Team    domain.Team
	Members []domain.TeamMembership
}

// CreateTeam creates a team with the creator as its founding team admin.
func (s *TeamService) CreateTeam(ctx context.Context, actor domain.User, name, organization string) (domain.Team, error) {
	log := slogx.FromContext(ctx)

	if err := rbac.Check(actor.Role, rbac.PermCreateTeam); err != nil {
		return domain.Team{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Team{}, ErrTeamNameRequired
	}

	now := time.Now().UTC()
	team := domain.Team{
		ID:           idx.New(),
		Name:         name,
		Organization: strings.TrimSpace(organization),
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	founder := domain.TeamMembership{
		ID:       idx.New(),
		TeamID:   team.ID,
		UserID:   actor.ID,
		Role:     domain.TeamRoleAdmin,
		JoinedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Teams().CreateTeam(ctx, team); err != nil {
			return err
		}
		if err := tx.Memberships().CreateMembership(ctx, founder); err != nil {
			return err
		}
		return tx.ActivityLog().AppendActivity(ctx, domain.TeamActivityEntry{
			ID:        idx.New(),
			TeamID:    team.ID,
			ActorID:   actor.ID,
			Action:    domain.ActivityTeamCreated,
			Detail:    name,
			CreatedAt: now,
		})
	})
	if err != nil {
		log.Error("failed to create team", slog.Any("error", err))
		return domain.Team{}, err
	}

	log.Info("team created",
		slog.String("team_id", team.ID.String()),
		slog.String("actor_id", actor.ID.String()),
	)
	return team, nil
}

// GetTeam returns a team with its members. Visible to team members and
// holders of manage_team.
func (s *TeamService) GetTeam(ctx context.Context, actor domain.User, teamID string) (TeamDetail, error) {
	team, err := s.Store.Teams().GetTeamByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TeamDetail{}, ErrTeamNotFound
		}
		return TeamDetail{}, err
	}

	if _, err := s.requireAccess(ctx, actor, teamID, rbac.PermManageTeam); err != nil {
		return TeamDetail{}, err
	}

	members, err := s.Store.Memberships().ListTeamMembers(ctx, teamID)
	if err != nil {
		return TeamDetail{}, err
	}
	return TeamDetail{Team: team, Members: members}, nil
}

// ListTeams returns the teams the actor belongs to.
func (s *TeamService) ListTeams(ctx context.Context, actorID string) ([]domain.Team, error) {
	return s.Store.Teams().ListTeamsForUser(ctx, actorID)
}

// UpdateTeam renames a team or changes its organization. Allowed for team
// admins and holders of manage_team.
func (s *TeamService) UpdateTeam(ctx context.Context, actor domain.User, teamID, name, organization string) (domain.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Team{}, ErrTeamNameRequired
	}

	if err := s.requireTeamAdmin(ctx, actor, teamID); err != nil {
		return domain.Team{}, err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Teams().UpdateTeam(ctx, teamID, name, strings.TrimSpace(organization)); err != nil {
			return err
		}
		return tx.ActivityLog().AppendActivity(ctx, domain.TeamActivityEntry{
			ID:        idx.New(),
			TeamID:    idx.ID(teamID),
			ActorID:   actor.ID,
			Action:    domain.ActivityTeamUpdated,
			Detail:    name,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Team{}, ErrTeamNotFound
		}
		return domain.Team{}, err
	}
	return s.Store.Teams().GetTeamByID(ctx, teamID)
}

// AddMember adds a user to a team. Allowed for team admins and holders of
// invite_member.
func (s *TeamService) AddMember(ctx context.Context, actor domain.User, teamID, userID, role string) (domain.TeamMembership, error) {
	log := slogx.FromContext(ctx)

	if role == "" {
		role = domain.TeamRoleMember
	}
	if !domain.ValidTeamRole(role) {
		return domain.TeamMembership{}, ErrInvalidTeamRole
	}

	if err := s.requireTeamAdminOr(ctx, actor, teamID, rbac.PermInviteMember); err != nil {
		return domain.TeamMembership{}, err
	}

	target, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TeamMembership{}, ErrUserNotFound
		}
		return domain.TeamMembership{}, err
	}
	if !target.IsActive {
		return domain.TeamMembership{}, ErrAccountDisabled
	}

	now := time.Now().UTC()
	membership := domain.TeamMembership{
		ID:       idx.New(),
		TeamID:   idx.ID(teamID),
		UserID:   target.ID,
		Role:     role,
		JoinedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Memberships().CreateMembership(ctx, membership); err != nil {
			return err
		}
		return tx.ActivityLog().AppendActivity(ctx, domain.TeamActivityEntry{
			ID:        idx.New(),
			TeamID:    idx.ID(teamID),
			ActorID:   actor.ID,
			SubjectID: target.ID,
			Action:    domain.ActivityMemberAdded,
			Detail:    role,
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.TeamMembership{}, ErrAlreadyMember
		}
		return domain.TeamMembership{}, err
	}

	log.Info("team member added",
		slog.String("team_id", teamID),
		slog.String("user_id", userID),
		slog.String("actor_id", actor.ID.String()),
	)
	return membership, nil
}

// UpdateMemberRole changes a member's team-scoped role. Demoting the last
// team admin is refused so the team never ends up unmanaged.
func (s *TeamService) UpdateMemberRole(ctx context.Context, actor domain.User, teamID, userID, role string) error {
	if !domain.ValidTeamRole(role) {
		return ErrInvalidTeamRole
	}
	if err := s.requireTeamAdmin(ctx, actor, teamID); err != nil {
		return err
	}

	current, err := s.Store.Memberships().GetMembership(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotTeamMember
		}
		return err
	}
	if current.Role == role {
		return nil
	}

	if current.Role == domain.TeamRoleAdmin {
		admins, err := s.Store.Memberships().CountTeamAdmins(ctx, teamID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastTeamAdmin
		}
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Memberships().UpdateMembershipRole(ctx, teamID, userID, role); err != nil {
			return err
		}
		return tx.ActivityLog().AppendActivity(ctx, domain.TeamActivityEntry{
			ID:        idx.New(),
			TeamID:    idx.ID(teamID),
			ActorID:   actor.ID,
			SubjectID: idx.ID(userID),
			Action:    domain.ActivityMemberRoleChanged,
			Detail:    current.Role + " -> " + role,
			CreatedAt: time.Now().UTC(),
		})
	})
}

// RemoveMember removes a user from a team. Members may remove themselves;
// otherwise the actor needs team admin or remove_member. The last team
// admin cannot be removed.
func (s *TeamService) RemoveMember(ctx context.Context, actor domain.User, teamID, userID string) error {
	log := slogx.FromContext(ctx)

	if actor.ID.String() != userID {
		if err := s.requireTeamAdminOr(ctx, actor, teamID, rbac.PermRemoveMember); err != nil {
			return err
		}
	}

	current, err := s.Store.Memberships().GetMembership(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotTeamMember
		}
		return err
	}
	if current.Role == domain.TeamRoleAdmin {
		admins, err := s.Store.Memberships().CountTeamAdmins(ctx, teamID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastTeamAdmin
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Memberships().DeleteMembership(ctx, teamID, userID); err != nil {
			return err
		}
		return tx.ActivityLog().AppendActivity(ctx, domain.TeamActivityEntry{
			ID:        idx.New(),
			TeamID:    idx.ID(teamID),
			ActorID:   actor.ID,
			SubjectID: idx.ID(userID),
			Action:    domain.ActivityMemberRemoved,
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	log.Info("team member removed",
		slog.String("team_id", teamID),
		slog.String("user_id", userID),
		slog.String("actor_id", actor.ID.String()),
	)
	return nil
}

// Activity returns a team's audit trail, newest first. Visible to team
// members and holders of view_audit_logs.
func (s *TeamService) Activity(ctx context.Context, actor domain.User, teamID string, limit int) ([]domain.TeamActivityEntry, error) {
	if _, err := s.Store.Teams().GetTeamByID(ctx, teamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if _, err := s.requireAccess(ctx, actor, teamID, rbac.PermViewAuditLogs); err != nil {
		return nil, err
	}
	return s.Store.ActivityLog().ListTeamActivity(ctx, teamID, limit)
}

// requireAccess admits team members and holders of the given global
// permission, returning the membership when one exists.
func (s *TeamService) requireAccess(ctx context.Context, actor domain.User, teamID string, perm rbac.Permission) (domain.TeamMembership, error) {
	m, err := s.Store.Memberships().GetMembership(ctx, teamID, actor.ID.String())
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.TeamMembership{}, err
	}
	if rbac.Has(actor.Role, perm) {
		return domain.TeamMembership{}, nil
	}
	return domain.TeamMembership{}, ErrNotTeamMember
}

// requireTeamAdmin admits team admins and holders of manage_team.
func (s *TeamService) requireTeamAdmin(ctx context.Context, actor domain.User, teamID string) error {
	return s.requireTeamAdminOr(ctx, actor, teamID, rbac.PermManageTeam)
}

func (s *TeamService) requireTeamAdminOr(ctx context.Context, actor domain.User, teamID string, perm rbac.Permission) error {
	m, err := s.Store.Memberships().GetMembership(ctx, teamID, actor.ID.String())
	if err == nil {
		if m.Role == domain.TeamRoleAdmin {
			return nil
		}
		// Member without team admin can still act through a global grant.
		if rbac.Has(actor.Role, perm) {
			return nil
		}
		return rbac.ErrForbidden
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if rbac.Has(actor.Role, perm) {
		return nil
	}
	return ErrNotTeamMember
}
