package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/repository"
)

var assignmentColumns = []string{"id", "user_id", "role_id", "state", "granted_at", "revoked_at"}

func TestAssignmentRepository_FindActiveNone(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	// squirrel.Eq renders keys in sorted order: role_id, state, user_id.
	mock.ExpectQuery(`SELECT .* FROM auth\.role_assignments WHERE role_id = \$1 AND state = \$2 AND user_id = \$3`).
		WithArgs(int32(2), "active", int64(9)).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.FindActive(context.Background(), 9, 2); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestAssignmentRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	at := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO auth\.role_assignments .* RETURNING`).
		WithArgs(int64(9), int32(2), "active", at).
		WillReturnRows(pgxmock.NewRows(assignmentColumns).AddRow(int64(11), int64(9), int32(2), "active", at, nil))

	assignment, err := repo.Create(context.Background(), 9, 2, at)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if assignment.ID != 11 || assignment.State != domain.AssignmentStateActive || assignment.RevokedAt != nil {
		t.Fatalf("unexpected assignment: %+v", assignment)
	}
	assertExpectations(t, mock)
}

func TestAssignmentRepository_CreateRaceConflict(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	mock.ExpectQuery(`INSERT INTO auth\.role_assignments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "role_assignments_active_uniq"})

	if _, err := repo.Create(context.Background(), 9, 2, time.Now()); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestAssignmentRepository_Deactivate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE auth\.role_assignments SET state = \$1, revoked_at = \$2 WHERE id = \$3 AND state = \$4`).
		WithArgs("inactive", at, int64(11), "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Deactivate(context.Background(), 11, at); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestAssignmentRepository_CountAndPurge(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM auth\.role_assignments WHERE role_id = \$1 AND state = \$2`).
		WithArgs(int32(4), "active").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(`DELETE FROM auth\.role_assignments WHERE role_id = \$1 AND state = \$2`).
		WithArgs(int32(4), "inactive").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	count, err := repo.CountActiveForRole(context.Background(), 4)
	if err != nil {
		t.Fatalf("CountActiveForRole returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero active assignments, got %d", count)
	}
	if err := repo.DeleteInactiveForRole(context.Background(), 4); err != nil {
		t.Fatalf("DeleteInactiveForRole returned error: %v", err)
	}
	assertExpectations(t, mock)
}

func TestAssignmentRepository_ListActiveForRole(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "role_id", "state", "granted_at", "revoked_at", "name", "email", "active", "created_at",
	}).AddRow(int64(11), int64(9), int32(2), "active", now, nil, "Alice Smith", "alice@x.io", true, now)
	mock.ExpectQuery(`SELECT .* FROM auth\.role_assignments AS a JOIN auth\.users AS u`).
		WithArgs(int32(2), "active").
		WillReturnRows(rows)

	items, err := repo.ListActiveForRole(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListActiveForRole returned error: %v", err)
	}
	if len(items) != 1 || items[0].User.ID != 9 || items[0].User.Email != "alice@x.io" {
		t.Fatalf("unexpected items: %+v", items)
	}
	assertExpectations(t, mock)
}

func TestAssignmentRepository_ListActiveRoleNamesForUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepository(mock)

	mock.ExpectQuery(`SELECT r\.name FROM auth\.role_assignments AS a JOIN auth\.roles AS r`).
		WithArgs("active", int64(9), "active").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("admin").AddRow("usuario"))

	names, err := repo.ListActiveRoleNamesForUser(context.Background(), 9)
	if err != nil {
		t.Fatalf("ListActiveRoleNamesForUser returned error: %v", err)
	}
	if len(names) != 2 || names[0] != "admin" || names[1] != "usuario" {
		t.Fatalf("unexpected role names: %v", names)
	}
	assertExpectations(t, mock)
}
