package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/repository"
)

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Description *string
	State       domain.RoleState
}

// RoleService manages roles and their assignments.
type RoleService struct {
	roles       port.RoleRepository
	assignments port.AssignmentRepository
	users       port.UserRepository

	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles port.RoleRepository, assignments port.AssignmentRepository, users port.UserRepository) *RoleService {
	return &RoleService{
		roles:       roles,
		assignments: assignments,
		users:       users,
		events:      nopPublisher{},
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *RoleService) WithLogger(l *zap.Logger) *RoleService {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *RoleService) WithEvents(p port.EventPublisher) *RoleService {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *RoleService) WithClock(clock func() time.Time) *RoleService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// CreateRole provisions a role. Names are compared case-sensitively.
func (s *RoleService) CreateRole(ctx context.Context, in CreateRoleInput) (domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Role{}, &ValidationError{Messages: []string{"name is required"}}
	}
	state := in.State
	if state == "" {
		state = domain.RoleStateActive
	}
	if !state.Valid() {
		return domain.Role{}, &ValidationError{Messages: []string{"state must be active or inactive"}}
	}

	if _, err := s.roles.GetByName(ctx, name); err == nil {
		return domain.Role{}, conflict("role %s already exists", name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Role{}, fmt.Errorf("lookup role: %w", err)
	}

	created, err := s.roles.Create(ctx, domain.Role{Name: name, Description: in.Description, State: state})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Role{}, conflict("role %s already exists", name)
		}
		return domain.Role{}, fmt.Errorf("create role: %w", err)
	}

	contextLogger(ctx, s.logger).Info("role created", zap.Int32("role_id", created.ID), zap.String("role", created.Name))
	return *created, nil
}

// ListRoles returns every role ordered by name with its active assignment count.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.RoleWithCount, error) {
	roles, err := s.roles.ListWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// GetRole returns a role with its active assignments.
func (s *RoleService) GetRole(ctx context.Context, id int32) (domain.RoleDetails, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return domain.RoleDetails{}, err
	}
	assignments, err := s.assignments.ListActiveForRole(ctx, id)
	if err != nil {
		return domain.RoleDetails{}, fmt.Errorf("list assignments: %w", err)
	}
	return domain.RoleDetails{Role: *role, Assignments: assignments}, nil
}

// UpdateRole applies a partial update. Renaming onto another role's name is a conflict.
func (s *RoleService) UpdateRole(ctx context.Context, id int32, patch domain.RoleUpdate) (domain.Role, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return domain.Role{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Role{}, &ValidationError{Messages: []string{"name must not be empty"}}
		}
		if name != role.Name {
			other, err := s.roles.GetByName(ctx, name)
			switch {
			case err == nil && other.ID != role.ID:
				return domain.Role{}, conflict("role %s already exists", name)
			case err != nil && !errors.Is(err, repository.ErrNotFound):
				return domain.Role{}, fmt.Errorf("lookup role: %w", err)
			}
			role.Name = name
		}
	}
	if patch.Description != nil {
		role.Description = patch.Description
	}
	if patch.State != nil {
		if !patch.State.Valid() {
			return domain.Role{}, &ValidationError{Messages: []string{"state must be active or inactive"}}
		}
		role.State = *patch.State
	}

	if err := s.roles.Update(ctx, *role); err != nil {
		return domain.Role{}, s.mapRoleWriteError(err, role)
	}
	return *role, nil
}

// DeleteRole removes a role that has no active assignments, together with its revoked history.
func (s *RoleService) DeleteRole(ctx context.Context, id int32) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.assignments.CountActiveForRole(ctx, id)
	if err != nil {
		return fmt.Errorf("count assignments: %w", err)
	}
	if active > 0 {
		return conflict("role %s has %d active assignment(s)", role.Name, active)
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict("role %s has active assignments", role.Name)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("role", id)
		}
		return fmt.Errorf("delete role: %w", err)
	}

	contextLogger(ctx, s.logger).Info("role deleted", zap.Int32("role_id", id), zap.String("role", role.Name))
	return nil
}

// ToggleRoleState flips a role between active and inactive.
func (s *RoleService) ToggleRoleState(ctx context.Context, id int32) (domain.Role, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return domain.Role{}, err
	}
	role.State = role.State.Toggled()
	if err := s.roles.Update(ctx, *role); err != nil {
		return domain.Role{}, s.mapRoleWriteError(err, role)
	}
	return *role, nil
}

// ListUsersForRole returns the active assignments of a role with their users.
func (s *RoleService) ListUsersForRole(ctx context.Context, id int32) ([]domain.AssignmentWithUser, error) {
	if _, err := s.findRole(ctx, id); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListActiveForRole(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// SetAssignment grants or revokes a role. Revocation keeps the row as inactive history.
func (s *RoleService) SetAssignment(ctx context.Context, roleID int32, userID int64, action domain.AssignmentAction) (domain.AssignmentOutcome, error) {
	ctx, span := tracer.Start(ctx, "RoleService.SetAssignment")
	defer span.End()

	if !action.Valid() {
		return domain.AssignmentOutcome{}, &ValidationError{Messages: []string{"action must be assign or revoke"}}
	}

	role, err := s.findRole(ctx, roleID)
	if err != nil {
		return domain.AssignmentOutcome{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.AssignmentOutcome{}, notFound("user", userID)
		}
		return domain.AssignmentOutcome{}, fmt.Errorf("lookup user: %w", err)
	}

	existing, err := s.assignments.FindActive(ctx, userID, roleID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.AssignmentOutcome{}, fmt.Errorf("lookup assignment: %w", err)
	}

	log := contextLogger(ctx, s.logger).With(zap.Int32("role_id", roleID), zap.Int64("user_id", userID))
	now := s.now()

	if action == domain.AssignmentActionAssign {
		if existing != nil {
			return domain.AssignmentOutcome{}, conflict("user already has this role")
		}
		created, err := s.assignments.Create(ctx, userID, roleID, now)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.AssignmentOutcome{}, conflict("user already has this role")
			}
			return domain.AssignmentOutcome{}, fmt.Errorf("create assignment: %w", err)
		}
		log.Info("role assigned", zap.Int64("assignment_id", created.ID))
		if err := s.events.PublishRoleAssigned(ctx, domain.RoleAssignedEvent{
			EventID:      uuid.NewString(),
			AssignmentID: created.ID,
			UserID:       userID,
			RoleID:       roleID,
			RoleName:     role.Name,
			AssignedAt:   created.GrantedAt,
		}); err != nil {
			log.Warn("publish role assigned event", zap.Error(err))
		}
		return domain.AssignmentOutcome{Action: action, Assignment: *created, Role: *role, User: user.Summary()}, nil
	}

	if existing == nil {
		return domain.AssignmentOutcome{}, &NotFoundError{
			Entity: "assignment",
			Reason: "user does not have this role actively assigned",
		}
	}
	if err := s.assignments.Deactivate(ctx, existing.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.AssignmentOutcome{}, &NotFoundError{
				Entity: "assignment",
				Reason: "user does not have this role actively assigned",
			}
		}
		return domain.AssignmentOutcome{}, fmt.Errorf("revoke assignment: %w", err)
	}
	revoked := *existing
	revoked.State = domain.AssignmentStateInactive
	revoked.RevokedAt = &now

	log.Info("role revoked", zap.Int64("assignment_id", revoked.ID))
	if err := s.events.PublishRoleRevoked(ctx, domain.RoleRevokedEvent{
		EventID:      uuid.NewString(),
		AssignmentID: revoked.ID,
		UserID:       userID,
		RoleID:       roleID,
		RoleName:     role.Name,
		RevokedAt:    now,
	}); err != nil {
		log.Warn("publish role revoked event", zap.Error(err))
	}
	return domain.AssignmentOutcome{Action: action, Assignment: revoked, Role: *role, User: user.Summary()}, nil
}

func (s *RoleService) findRole(ctx context.Context, id int32) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("role", id)
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}
	return role, nil
}

func (s *RoleService) mapRoleWriteError(err error, role *domain.Role) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("role", role.ID)
	case errors.Is(err, repository.ErrConflict):
		return conflict("role %s already exists", role.Name)
	default:
		return fmt.Errorf("update role: %w", err)
	}
}
