package domain

import (
	"math"
	"time"
)

// UserState is the derived login state of an account.
type UserState string

const (
	UserStateActive      UserState = "active"
	UserStateLocked      UserState = "locked"
	UserStateDeactivated UserState = "deactivated"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID                  int64
	Email               string
	Name                string
	PasswordHash        string
	Phone               *string
	NationalID          *string
	Active              bool
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
}

// StateAt derives the account state at the given instant. Deactivation wins over locks,
// and a lock whose deadline has passed no longer applies.
func (u User) StateAt(now time.Time) UserState {
	if !u.Active {
		return UserStateDeactivated
	}
	if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
		return UserStateLocked
	}
	return UserStateActive
}

// LockExpired reports whether the user carries a lock deadline that has already passed.
func (u User) LockExpired(now time.Time) bool {
	return u.LockedUntil != nil && !now.Before(*u.LockedUntil)
}

// MinutesUntilUnlock returns the remaining lock time rounded up to whole minutes.
func (u User) MinutesUntilUnlock(now time.Time) int {
	if u.LockedUntil == nil {
		return 0
	}
	remaining := u.LockedUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

// NewUser captures the fields required to persist a freshly registered account.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	Phone        *string
	NationalID   *string
}

// UserSummary is the compact user projection embedded in role views.
type UserSummary struct {
	ID        int64
	Name      string
	Email     string
	Active    bool
	CreatedAt time.Time
}

// Summary projects the user onto its compact summary.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Active: u.Active, CreatedAt: u.CreatedAt}
}

// UserWithRoles pairs a user with the names of their active roles.
type UserWithRoles struct {
	User  User
	Roles []string
}
