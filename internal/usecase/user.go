package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/repository"
)

// UserService exposes profile and administrative user operations.
type UserService struct {
	users       port.UserRepository
	assignments port.AssignmentRepository
	logger      *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users port.UserRepository, assignments port.AssignmentRepository) *UserService {
	return &UserService{users: users, assignments: assignments, logger: zap.NewNop()}
}

func (s *UserService) WithLogger(l *zap.Logger) *UserService {
	if l != nil {
		s.logger = l
	}
	return s
}

// Profile returns the public projection of the authenticated user.
// A user deactivated after the token was issued is treated as unauthenticated.
func (s *UserService) Profile(ctx context.Context, userID int64) (domain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicUser{}, ErrInvalidAccessToken
		}
		return domain.PublicUser{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active {
		return domain.PublicUser{}, ErrAccountDisabled
	}
	roles, err := s.assignments.ListActiveRoleNamesForUser(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("load roles: %w", err)
	}
	return domain.NewPublicUser(*user, roles), nil
}

// ListUsers returns every user with their active role names.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.UserWithRoles, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.UserWithRoles, 0, len(users))
	for _, u := range users {
		roles, err := s.assignments.ListActiveRoleNamesForUser(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("load roles for user %d: %w", u.ID, err)
		}
		if roles == nil {
			roles = []string{}
		}
		out = append(out, domain.UserWithRoles{User: u, Roles: roles})
	}
	return out, nil
}

// SetActive activates or deactivates an account. Deactivated users cannot log in.
func (s *UserService) SetActive(ctx context.Context, userID int64, active bool) (domain.PublicUser, error) {
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicUser{}, notFound("user", userID)
		}
		return domain.PublicUser{}, fmt.Errorf("set active: %w", err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("reload user: %w", err)
	}
	roles, err := s.assignments.ListActiveRoleNamesForUser(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("load roles: %w", err)
	}
	contextLogger(ctx, s.logger).Info("user active flag changed", zap.Int64("user_id", userID), zap.Bool("active", active))
	return domain.NewPublicUser(*user, roles), nil
}
