package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// RoleManager is the role and assignment surface used by RoleHandler.
type RoleManager interface {
	CreateRole(ctx context.Context, in usecase.CreateRoleInput) (domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.RoleWithCount, error)
	GetRole(ctx context.Context, id int32) (domain.RoleDetails, error)
	UpdateRole(ctx context.Context, id int32, patch domain.RoleUpdate) (domain.Role, error)
	DeleteRole(ctx context.Context, id int32) error
	ToggleRoleState(ctx context.Context, id int32) (domain.Role, error)
	ListUsersForRole(ctx context.Context, id int32) ([]domain.AssignmentWithUser, error)
	SetAssignment(ctx context.Context, roleID int32, userID int64, action domain.AssignmentAction) (domain.AssignmentOutcome, error)
}

type RoleHandler struct {
	roles RoleManager
}

func NewRoleHandler(roles RoleManager) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// CreateRole godoc
// @Summary Create a new role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body RoleCreateRequest true "Role create request"
// @Success 201 {object} RoleResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid role payload")
		return
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		respondValidation(c, validationMessages(err))
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), usecase.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		State:       domain.RoleState(req.State),
	})
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRoleResponse(role))
}

// ListRoles godoc
// @Summary List roles with active assignment counts
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {array} RoleResponse
// @Router /api/v1/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		resp := toRoleResponse(r.Role)
		count := r.ActiveAssignments
		resp.ActiveAssignments = &count
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

// GetRole godoc
// @Summary Role with its active assignments
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Success 200 {object} RoleDetailsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}
	details, err := h.roles.GetRole(c.Request.Context(), id)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	resp := RoleDetailsResponse{
		RoleResponse: toRoleResponse(details.Role),
		Assignments:  toAssignmentsWithUsers(details.Assignments),
	}
	count := len(resp.Assignments)
	resp.ActiveAssignments = &count
	c.JSON(http.StatusOK, resp)
}

// UpdateRole godoc
// @Summary Update a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Param request body RoleUpdateRequest true "Fields to change"
// @Success 200 {object} RoleResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles/{id} [patch]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}

	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid role payload")
		return
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		respondValidation(c, validationMessages(err))
		return
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), id, req.toPatch())
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoleResponse(role))
}

// DeleteRole godoc
// @Summary Delete a role without active assignments
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}
	if err := h.roles.DeleteRole(c.Request.Context(), id); err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("role %d deleted", id)})
}

// ToggleRoleState godoc
// @Summary Flip a role between active and inactive
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Success 200 {object} RoleResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/toggle-state [patch]
func (h *RoleHandler) ToggleRoleState(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}
	role, err := h.roles.ToggleRoleState(c.Request.Context(), id)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRoleResponse(role))
}

// ListUsersForRole godoc
// @Summary Active assignments of a role
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Success 200 {array} AssignmentResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/users [get]
func (h *RoleHandler) ListUsersForRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}
	assignments, err := h.roles.ListUsersForRole(c.Request.Context(), id)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAssignmentsWithUsers(assignments))
}

// AssignRole godoc
// @Summary Grant or revoke a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Param request body AssignRoleRequest true "Assignment request"
// @Success 200 {object} AssignmentOutcomeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles/{id}/assign [post]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	roleID, ok := roleIDParam(c)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid assignment payload")
		return
	}
	if err := req.Validate(); err != nil {
		respondValidation(c, validationMessages(err))
		return
	}
	userID, err := parseUserID(req.UserID)
	if err != nil {
		respondValidation(c, []string{"userId: " + err.Error()})
		return
	}

	action := domain.AssignmentAction(req.Action)
	outcome, err := h.roles.SetAssignment(c.Request.Context(), roleID, userID, action)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	message := "role assigned"
	if action == domain.AssignmentActionRevoke {
		message = "role revoked"
	}
	c.JSON(http.StatusOK, AssignmentOutcomeResponse{
		Message:    message,
		Action:     string(outcome.Action),
		Assignment: toAssignmentResponse(outcome.Assignment),
		Role:       toRoleResponse(outcome.Role),
		User:       toUserSummaryResponse(outcome.User),
	})
}

func roleIDParam(c *gin.Context) (int32, bool) {
	id, err := parseRoleID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return 0, false
	}
	return id, true
}
