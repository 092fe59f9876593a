package domain

import "time"

// Role names with built-in meaning for route guards.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleUser       = "usuario"
)

// RoleState toggles whether a role participates in authorization.
type RoleState string

const (
	RoleStateActive   RoleState = "active"
	RoleStateInactive RoleState = "inactive"
)

// Valid reports whether the state is one of the known values.
func (s RoleState) Valid() bool {
	return s == RoleStateActive || s == RoleStateInactive
}

// Toggled returns the opposite state.
func (s RoleState) Toggled() RoleState {
	if s == RoleStateActive {
		return RoleStateInactive
	}
	return RoleStateActive
}

// Role is a named authorization group.
type Role struct {
	ID          int32
	Name        string
	Description *string
	State       RoleState
	CreatedAt   time.Time
}

// RoleWithCount decorates a role with the number of active assignments.
type RoleWithCount struct {
	Role
	ActiveAssignments int
}

// AssignmentState tracks the lifecycle of a single grant. The only legal transition is active -> inactive.
type AssignmentState string

const (
	AssignmentStateActive   AssignmentState = "active"
	AssignmentStateInactive AssignmentState = "inactive"
)

// RoleAssignment links a user with a role. Re-granting a revoked role creates a new row.
type RoleAssignment struct {
	ID        int64
	UserID    int64
	RoleID    int32
	State     AssignmentState
	GrantedAt time.Time
	RevokedAt *time.Time
}

// AssignmentWithUser is an active assignment with its user resolved.
type AssignmentWithUser struct {
	RoleAssignment
	User UserSummary
}

// RoleDetails is a role together with its active assignments.
type RoleDetails struct {
	Role
	Assignments []AssignmentWithUser
}

// AssignmentAction is the operation requested against a (role, user) pair.
type AssignmentAction string

const (
	AssignmentActionAssign AssignmentAction = "assign"
	AssignmentActionRevoke AssignmentAction = "revoke"
)

// Valid reports whether the action is supported.
func (a AssignmentAction) Valid() bool {
	return a == AssignmentActionAssign || a == AssignmentActionRevoke
}

// AssignmentOutcome reports the result of an assign or revoke.
type AssignmentOutcome struct {
	Action     AssignmentAction
	Assignment RoleAssignment
	Role       Role
	User       UserSummary
}

// RoleUpdate carries optional role changes. Nil fields are left untouched.
type RoleUpdate struct {
	Name        *string
	Description *string
	State       *RoleState
}
