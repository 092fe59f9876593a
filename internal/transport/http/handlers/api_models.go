package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/transport/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse = middleware.ErrorBody

// NewErrorResponse builds the envelope for the current request.
func NewErrorResponse(c *gin.Context, status int, message any) ErrorResponse {
	return middleware.NewErrorBody(c, status, message)
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest is the payload of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegistrationRequest is the payload of POST /auth/register.
type RegistrationRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"telefono,omitempty"`
	DNI       string `json:"dni,omitempty"`
}

// PublicUserResponse is the user projection embedded in auth responses.
// Ids are decimal strings so 64-bit values survive JSON clients.
type PublicUserResponse struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Nombre          string   `json:"nombre"`
	Roles           []string `json:"roles"`
	EmailVerificado bool     `json:"emailVerificado"`
	Activo          bool     `json:"activo"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresIn   int64              `json:"expires_in"`
	User        PublicUserResponse `json:"user"`
}

type ProfileResponse struct {
	User PublicUserResponse `json:"user"`
}

type UserListItem struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Nombre          string     `json:"nombre"`
	Roles           []string   `json:"roles"`
	EmailVerificado bool       `json:"emailVerificado"`
	Activo          bool       `json:"activo"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
}

type SetActiveRequest struct {
	Active *bool `json:"active"`
}

type RoleCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	State       string  `json:"state"`
}

type RoleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	State       *string `json:"state"`
}

// AssignRoleRequest grants or revokes a role; userId is a decimal string.
type AssignRoleRequest struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
}

type RoleResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	State             string    `json:"state"`
	CreatedAt         time.Time `json:"createdAt"`
	ActiveAssignments *int      `json:"activeAssignments,omitempty"`
}

type UserSummaryResponse struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	Email     string    `json:"email"`
	Activo    bool      `json:"activo"`
	CreatedAt time.Time `json:"createdAt"`
}

type AssignmentResponse struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	RoleID    string               `json:"roleId"`
	State     string               `json:"state"`
	GrantedAt time.Time            `json:"grantedAt"`
	RevokedAt *time.Time           `json:"revokedAt,omitempty"`
	User      *UserSummaryResponse `json:"user,omitempty"`
}

type RoleDetailsResponse struct {
	RoleResponse
	Assignments []AssignmentResponse `json:"assignments"`
}

type AssignmentOutcomeResponse struct {
	Message    string              `json:"message"`
	Action     string              `json:"action"`
	Assignment AssignmentResponse  `json:"assignment"`
	Role       RoleResponse        `json:"role"`
	User       UserSummaryResponse `json:"user"`
}

func formatID[T int32 | int64](id T) string {
	return strconv.FormatInt(int64(id), 10)
}

func toPublicUser(u domain.PublicUser) PublicUserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return PublicUserResponse{
		ID:              formatID(u.ID),
		Email:           u.Email,
		Nombre:          u.Name,
		Roles:           roles,
		EmailVerificado: u.EmailVerified,
		Activo:          u.Active,
	}
}

func toAuthResponse(res domain.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken: res.Token.AccessToken,
		TokenType:   res.Token.TokenType,
		ExpiresIn:   res.Token.ExpiresIn,
		User:        toPublicUser(res.User),
	}
}

func toRoleResponse(r domain.Role) RoleResponse {
	return RoleResponse{
		ID:          formatID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		State:       string(r.State),
		CreatedAt:   r.CreatedAt,
	}
}

func toAssignmentResponse(a domain.RoleAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:        formatID(a.ID),
		UserID:    formatID(a.UserID),
		RoleID:    formatID(a.RoleID),
		State:     string(a.State),
		GrantedAt: a.GrantedAt,
		RevokedAt: a.RevokedAt,
	}
}

func toUserSummaryResponse(u domain.UserSummary) UserSummaryResponse {
	return UserSummaryResponse{
		ID:        formatID(u.ID),
		Nombre:    u.Name,
		Email:     u.Email,
		Activo:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func toAssignmentsWithUsers(in []domain.AssignmentWithUser) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(in))
	for _, a := range in {
		resp := toAssignmentResponse(a.RoleAssignment)
		user := toUserSummaryResponse(a.User)
		resp.User = &user
		out = append(out, resp)
	}
	return out
}
