package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Andiquis/xQor3/internal/core/domain"
)

// UserManager is the administrative user surface.
type UserManager interface {
	ListUsers(ctx context.Context) ([]domain.UserWithRoles, error)
	SetActive(ctx context.Context, userID int64, active bool) (domain.PublicUser, error)
}

type UserHandler struct {
	users UserManager
}

func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers godoc
// @Summary List users with their active roles
// @Tags Users
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {array} UserListItem
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	out := make([]UserListItem, 0, len(users))
	for _, u := range users {
		roles := u.Roles
		if roles == nil {
			roles = []string{}
		}
		out = append(out, UserListItem{
			ID:              formatID(u.User.ID),
			Email:           u.User.Email,
			Nombre:          u.User.Name,
			Roles:           roles,
			EmailVerificado: u.User.EmailVerified,
			Activo:          u.User.Active,
			CreatedAt:       u.User.CreatedAt,
			LastLoginAt:     u.User.LastLoginAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// SetActive godoc
// @Summary Activate or deactivate a user
// @Tags Users
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User id"
// @Param request body SetActiveRequest true "Activation flag"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/active [patch]
func (h *UserHandler) SetActive(c *gin.Context) {
	userID, err := parseUserID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid payload")
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(c, validationMessages(err))
		return
	}

	user, err := h.users.SetActive(c.Request.Context(), userID, *req.Active)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{User: toPublicUser(user)})
}
