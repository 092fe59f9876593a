package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/repository"
)

// AssignmentRepository persists user-role grants. At most one active row per (user, role)
// is guaranteed by the role_assignments_active_uniq partial index.
type AssignmentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAssignmentRepository constructs a PostgreSQL-backed assignment repository.
func NewAssignmentRepository(exec pgExecutor) *AssignmentRepository {
	return &AssignmentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindActive returns the active assignment for the pair, or repository.ErrNotFound.
func (r *AssignmentRepository) FindActive(ctx context.Context, userID int64, roleID int32) (*domain.RoleAssignment, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "role_id", "state", "granted_at", "revoked_at").
		From("auth.role_assignments").
		Where(squirrel.Eq{"user_id": userID, "role_id": roleID, "state": string(domain.AssignmentStateActive)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select assignment sql: %w", err)
	}

	assignment, err := scanAssignment(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	return assignment, nil
}

// Create inserts a new active assignment. A concurrent grant for the same pair surfaces as repository.ErrConflict.
func (r *AssignmentRepository) Create(ctx context.Context, userID int64, roleID int32, at time.Time) (*domain.RoleAssignment, error) {
	stmt, args, err := r.builder.Insert("auth.role_assignments").
		Columns("user_id", "role_id", "state", "granted_at").
		Values(userID, roleID, string(domain.AssignmentStateActive), at).
		Suffix("RETURNING id, user_id, role_id, state, granted_at, revoked_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert assignment sql: %w", err)
	}

	assignment, err := scanAssignment(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", repository.MapConstraintError(err))
	}
	return assignment, nil
}

// Deactivate moves an active assignment to inactive and stamps the revocation time.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id int64, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.role_assignments").
		Set("state", string(domain.AssignmentStateInactive)).
		Set("revoked_at", at).
		Where(squirrel.Eq{"id": id, "state": string(domain.AssignmentStateActive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate assignment sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountActiveForRole counts the active assignments of a role.
func (r *AssignmentRepository) CountActiveForRole(ctx context.Context, roleID int32) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("auth.role_assignments").
		Where(squirrel.Eq{"role_id": roleID, "state": string(domain.AssignmentStateActive)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count assignments sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return int(count), nil
}

// ListActiveForRole returns active assignments of a role with their users, newest first.
func (r *AssignmentRepository) ListActiveForRole(ctx context.Context, roleID int32) ([]domain.AssignmentWithUser, error) {
	stmt, args, err := r.builder.
		Select(
			"a.id", "a.user_id", "a.role_id", "a.state", "a.granted_at", "a.revoked_at",
			"u.name", "u.email", "u.active", "u.created_at",
		).
		From("auth.role_assignments AS a").
		Join("auth.users AS u ON u.id = a.user_id").
		Where(squirrel.Eq{"a.role_id": roleID, "a.state": string(domain.AssignmentStateActive)}).
		OrderBy("a.granted_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list role users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role users: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AssignmentWithUser, 0)
	for rows.Next() {
		var (
			item      domain.AssignmentWithUser
			state     string
			revokedAt sql.NullTime
		)
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.RoleID, &state, &item.GrantedAt, &revokedAt,
			&item.User.Name, &item.User.Email, &item.User.Active, &item.User.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan role user: %w", err)
		}
		item.State = domain.AssignmentState(state)
		item.RevokedAt = timePtr(revokedAt)
		item.User.ID = item.UserID
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role users: %w", err)
	}
	return result, nil
}

// DeleteInactiveForRole purges the revocation history of a role. RoleRepository.Delete
// runs it inside the role delete transaction.
func (r *AssignmentRepository) DeleteInactiveForRole(ctx context.Context, roleID int32) error {
	stmt, args, err := r.builder.Delete("auth.role_assignments").
		Where(squirrel.Eq{"role_id": roleID, "state": string(domain.AssignmentStateInactive)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete assignments sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	return nil
}

// ListActiveRoleNamesForUser returns the names of active roles actively assigned to the user.
func (r *AssignmentRepository) ListActiveRoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	stmt, args, err := r.builder.
		Select("r.name").
		From("auth.role_assignments AS a").
		Join("auth.roles AS r ON r.id = a.role_id").
		Where(squirrel.Eq{
			"a.user_id": userID,
			"a.state":   string(domain.AssignmentStateActive),
			"r.state":   string(domain.RoleStateActive),
		}).
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list user roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}
	return names, nil
}

func scanAssignment(row rowScanner) (*domain.RoleAssignment, error) {
	var (
		assignment domain.RoleAssignment
		state      string
		revokedAt  sql.NullTime
	)
	if err := row.Scan(&assignment.ID, &assignment.UserID, &assignment.RoleID, &state, &assignment.GrantedAt, &revokedAt); err != nil {
		return nil, err
	}
	assignment.State = domain.AssignmentState(state)
	assignment.RevokedAt = timePtr(revokedAt)
	return &assignment, nil
}

var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
