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

var userColumns = []string{
	"id",
	"email",
	"name",
	"password_hash",
	"phone",
	"national_id",
	"active",
	"email_verified",
	"failed_login_attempts",
	"locked_until",
	"last_login_at",
	"created_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a user repository over any executor satisfying pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new active, unverified user and returns its identifier.
func (r *UserRepository) Create(ctx context.Context, user domain.NewUser) (int64, error) {
	stmt, args, err := r.builder.Insert("auth.users").
		Columns("email", "name", "password_hash", "phone", "national_id", "active", "email_verified", "failed_login_attempts").
		Values(user.Email, user.Name, user.PasswordHash, optionalString(user.Phone), optionalString(user.NationalID), true, false, 0).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert user sql: %w", err)
	}

	var id int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert user: %w", repository.MapConstraintError(err))
	}
	return id, nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// ExistsByNationalID reports whether any account already uses the national id.
func (r *UserRepository) ExistsByNationalID(ctx context.Context, nationalID string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("auth.users").
		Where(squirrel.Eq{"national_id": nationalID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build national id exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check national id: %w", err)
	}
	return exists, nil
}

// List returns every user ordered by creation.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetActive toggles the administrative activation flag.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	stmt, args, err := r.builder.Update("auth.users").
		Set("active", active).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set active sql: %w", err)
	}
	return r.execAffectingOne(ctx, "set user active", stmt, args)
}

// RegisterFailedLogin increments the failure counter in a single statement. A lock whose
// deadline is in the past is cleared and the counter restarts at one.
func (r *UserRepository) RegisterFailedLogin(ctx context.Context, id int64, now time.Time) (int, error) {
	stmt, args, err := r.builder.Update("auth.users").
		Set("failed_login_attempts", squirrel.Expr(
			"CASE WHEN locked_until IS NOT NULL AND locked_until <= ? THEN 1 ELSE failed_login_attempts + 1 END", now)).
		Set("locked_until", squirrel.Expr(
			"CASE WHEN locked_until IS NOT NULL AND locked_until <= ? THEN NULL ELSE locked_until END", now)).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_login_attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build register failed login sql: %w", err)
	}

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("register failed login: %w", err)
	}
	return attempts, nil
}

// LockUntil stores the lock deadline.
func (r *UserRepository) LockUntil(ctx context.Context, id int64, until time.Time) error {
	stmt, args, err := r.builder.Update("auth.users").
		Set("locked_until", until).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock user sql: %w", err)
	}
	return r.execAffectingOne(ctx, "lock user", stmt, args)
}

// RecordSuccessfulLogin clears the failure counter and any lock and stamps the login time.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.users").
		Set("failed_login_attempts", 0).
		Set("locked_until", nil).
		Set("last_login_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}
	return r.execAffectingOne(ctx, "record successful login", stmt, args)
}

func (r *UserRepository) execAffectingOne(ctx context.Context, op, stmt string, args []any) error {
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user        domain.User
		phone       sql.NullString
		nationalID  sql.NullString
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&phone,
		&nationalID,
		&user.Active,
		&user.EmailVerified,
		&user.FailedLoginAttempts,
		&lockedUntil,
		&lastLogin,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Phone = stringPtr(phone)
	user.NationalID = stringPtr(nationalID)
	user.LockedUntil = timePtr(lockedUntil)
	user.LastLoginAt = timePtr(lastLogin)
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
