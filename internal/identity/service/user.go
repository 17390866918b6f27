package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/artintel/identity/internal/identity/domain"
	"github.com/artintel/identity/internal/identity/rbac"
	"github.com/artintel/identity/internal/identity/store"
	"github.com/artintel/identity/pkg/slogx"
)

// UserService owns profile access and user administration.
type UserService struct {
	Store store.Store
}

// Profile returns the user's own account.
func (s *UserService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile lets a user edit their own name and organization. Email,
// role and tier are not self-serviceable.
func (s *UserService) UpdateProfile(ctx context.Context, userID, firstName, lastName, organization string) (domain.User, error) {
	err := s.Store.Users().UpdateProfile(ctx, userID, firstName, lastName, organization)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ListUsers returns accounts matching the filter. Requires view_users.
func (s *UserService) ListUsers(ctx context.Context, actor domain.User, f store.UserFilter) ([]domain.User, error) {
	if err := rbac.Check(actor.Role, rbac.PermViewUsers); err != nil {
		return nil, err
	}
	return s.Store.Users().ListUsers(ctx, f)
}

// UpdateRole changes a user's global role. Requires manage_roles, which
// only admins hold.
func (s *UserService) UpdateRole(ctx context.Context, actor domain.User, targetID, newRole string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if err := rbac.Check(actor.Role, rbac.PermManageRoles); err != nil {
		return domain.User{}, err
	}
	if !domain.ValidRole(newRole) {
		return domain.User{}, ErrUnknownRole
	}

	if err := s.Store.Users().UpdateRole(ctx, targetID, newRole); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	log.Info("role updated",
		slog.String("actor_id", actor.ID.String()),
		slog.String("user_id", targetID),
		slog.String("role", newRole),
	)
	return s.Store.Users().GetUserByID(ctx, targetID)
}

// UpdateTier changes a user's subscription tier. Requires manage_billing.
func (s *UserService) UpdateTier(ctx context.Context, actor domain.User, targetID, newTier string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if err := rbac.Check(actor.Role, rbac.PermManageBilling); err != nil {
		return domain.User{}, err
	}
	if !domain.ValidTier(newTier) {
		return domain.User{}, ErrUnknownTier
	}

	if err := s.Store.Users().UpdateTier(ctx, targetID, newTier); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	log.Info("tier updated",
		slog.String("actor_id", actor.ID.String()),
		slog.String("user_id", targetID),
		slog.String("tier", newTier),
	)
	return s.Store.Users().GetUserByID(ctx, targetID)
}

// SetActive enables or disables an account. Requires manage_users.
func (s *UserService) SetActive(ctx context.Context, actor domain.User, targetID string, active bool) error {
	if err := rbac.Check(actor.Role, rbac.PermManageUsers); err != nil {
		return err
	}
	err := s.Store.Users().SetActive(ctx, targetID, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
