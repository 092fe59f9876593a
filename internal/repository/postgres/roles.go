package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/core/port"
	"github.com/Andiquis/xQor3/internal/repository"
)

// RoleRepository implements role persistence operations.
type RoleRepository struct {
	db      txStarter
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	repo := &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if db, ok := exec.(txStarter); ok {
		repo.db = db
	}
	return repo
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *RoleRepository) WithTx(tx pgx.Tx) *RoleRepository {
	if tx == nil {
		return r
	}
	return &RoleRepository{
		db:      tx,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new role and returns it with its generated identifier.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) (*domain.Role, error) {
	state := role.State
	if state == "" {
		state = domain.RoleStateActive
	}
	stmt, args, err := r.builder.Insert("auth.roles").
		Columns("name", "description", "state").
		Values(role.Name, optionalString(role.Description), string(state)).
		Suffix("RETURNING id, name, description, state, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert role sql: %w", err)
	}

	created, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", repository.MapConstraintError(err))
	}
	return created, nil
}

// GetByID fetches a role by identifier.
func (r *RoleRepository) GetByID(ctx context.Context, id int32) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByName fetches a role by its exact name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"name": name})
}

func (r *RoleRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Role, error) {
	stmt, args, err := r.builder.
		Select("id", "name", "description", "state", "created_at").
		From("auth.roles").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}

	role, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return role, nil
}

// ListWithCounts returns all roles ordered by name with their active assignment counts.
func (r *RoleRepository) ListWithCounts(ctx context.Context) ([]domain.RoleWithCount, error) {
	stmt, args, err := r.builder.
		Select("r.id", "r.name", "r.description", "r.state", "r.created_at", "COUNT(a.id)").
		From("auth.roles AS r").
		LeftJoin("auth.role_assignments AS a ON a.role_id = r.id AND a.state = 'active'").
		GroupBy("r.id").
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.RoleWithCount, 0)
	for rows.Next() {
		var (
			item        domain.RoleWithCount
			description sql.NullString
			state       string
			count       int64
		)
		if err := rows.Scan(&item.ID, &item.Name, &description, &state, &item.CreatedAt, &count); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		item.Description = stringPtr(description)
		item.State = domain.RoleState(state)
		item.ActiveAssignments = int(count)
		roles = append(roles, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// Update overwrites the mutable role columns.
func (r *RoleRepository) Update(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Update("auth.roles").
		Set("name", role.Name).
		Set("description", optionalString(role.Description)).
		Set("state", string(role.State)).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", repository.MapConstraintError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a role together with its revoked assignment history in a single
// transaction. An active assignment blocks the delete through the foreign key and
// rolls the purge back, surfacing as repository.ErrConflict.
func (r *RoleRepository) Delete(ctx context.Context, id int32) error {
	if r.db == nil {
		return errors.New("delete role: executor cannot begin a transaction")
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete role tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := NewAssignmentRepository(tx).DeleteInactiveForRole(ctx, id); err != nil {
		return err
	}
	if err := r.WithTx(tx).deleteRow(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete role tx: %w", err)
	}
	return nil
}

func (r *RoleRepository) deleteRow(ctx context.Context, id int32) error {
	stmt, args, err := r.builder.Delete("auth.roles").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", repository.MapConstraintError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanRole(row rowScanner) (*domain.Role, error) {
	var (
		role        domain.Role
		description sql.NullString
		state       string
	)
	if err := row.Scan(&role.ID, &role.Name, &description, &state, &role.CreatedAt); err != nil {
		return nil, err
	}
	role.Description = stringPtr(description)
	role.State = domain.RoleState(state)
	return &role, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
