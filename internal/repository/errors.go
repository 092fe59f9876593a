package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness or referential constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ConstraintUserNationalID is the unique constraint on users.national_id.
const ConstraintUserNationalID = "users_national_id_key"

// ConstraintError is an ErrConflict raised by a named constraint.
type ConstraintError struct {
	Constraint string
}

func (e *ConstraintError) Error() string { return ErrConflict.Error() + ": " + e.Constraint }

func (e *ConstraintError) Unwrap() error { return ErrConflict }

// ConflictConstraint returns the constraint name behind a conflict, or "" when err carries none.
func ConflictConstraint(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// MapConstraintError converts PostgreSQL constraint violations into ErrConflict and leaves other errors untouched.
func MapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return &ConstraintError{Constraint: pgErr.ConstraintName}
		}
	}
	return err
}
