package domain

import "time"

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       int64
	Email        string
	Name         string
	Roles        []string
	RegisteredAt time.Time
}

// RoleAssignedEvent represents the payload for auth.role.assigned messages.
type RoleAssignedEvent struct {
	EventID      string
	AssignmentID int64
	UserID       int64
	RoleID       int32
	RoleName     string
	AssignedAt   time.Time
}

// RoleRevokedEvent represents the payload for auth.role.revoked messages.
type RoleRevokedEvent struct {
	EventID      string
	AssignmentID int64
	UserID       int64
	RoleID       int32
	RoleName     string
	RevokedAt    time.Time
}

// AccountLockedEvent represents the payload for auth.user.locked messages.
type AccountLockedEvent struct {
	EventID        string
	UserID         int64
	FailedAttempts int
	LockedAt       time.Time
	LockedUntil    time.Time
}
