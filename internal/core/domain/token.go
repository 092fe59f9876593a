package domain

import "time"

// TokenTypeBearer is the token type reported to clients.
const TokenTypeBearer = "Bearer"

// IssuedToken is the response shape of a successful login or registration.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// AccessTokenClaims are the verified contents of a session token.
type AccessTokenClaims struct {
	UserID    int64
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasAnyRole reports whether the claims carry at least one of the given role names.
func (c AccessTokenClaims) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range c.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// PublicUser is the client-facing projection of a user.
type PublicUser struct {
	ID            int64
	Email         string
	Name          string
	Roles         []string
	EmailVerified bool
	Active        bool
}

// NewPublicUser projects a user and its active role names.
func NewPublicUser(u User, roles []string) PublicUser {
	if roles == nil {
		roles = []string{}
	}
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Roles:         roles,
		EmailVerified: u.EmailVerified,
		Active:        u.Active,
	}
}

// AuthResult bundles the issued token with the authenticated user.
type AuthResult struct {
	Token IssuedToken
	User  PublicUser
}
