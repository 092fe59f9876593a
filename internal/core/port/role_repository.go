package port

import (
	"context"
	"time"

	"github.com/Andiquis/xQor3/internal/core/domain"
)

// RoleRepository handles role CRUD.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) (*domain.Role, error)
	GetByID(ctx context.Context, id int32) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	ListWithCounts(ctx context.Context) ([]domain.RoleWithCount, error)
	Update(ctx context.Context, role domain.Role) error
	// Delete removes a role and its revoked assignment history atomically. An active
	// assignment aborts it with repository.ErrConflict and leaves the history intact.
	Delete(ctx context.Context, id int32) error
}

// AssignmentRepository persists role grants and their revocation history.
type AssignmentRepository interface {
	FindActive(ctx context.Context, userID int64, roleID int32) (*domain.RoleAssignment, error)
	Create(ctx context.Context, userID int64, roleID int32, at time.Time) (*domain.RoleAssignment, error)
	Deactivate(ctx context.Context, id int64, at time.Time) error
	CountActiveForRole(ctx context.Context, roleID int32) (int, error)
	ListActiveForRole(ctx context.Context, roleID int32) ([]domain.AssignmentWithUser, error)
	ListActiveRoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
}
