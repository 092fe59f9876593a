package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/transport/http/middleware"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// Authenticator verifies credentials.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.AuthResult, error)
}

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, in usecase.RegistrationInput) (domain.AuthResult, error)
}

// ProfileReader loads the caller's public profile.
type ProfileReader interface {
	Profile(ctx context.Context, userID int64) (domain.PublicUser, error)
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth         Authenticator
	registration Registrar
	profiles     ProfileReader
	phoneRegion  string
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithPhoneRegion sets the region used for phone numbers without a country code.
func WithPhoneRegion(region string) AuthHandlerOption {
	return func(h *AuthHandler) {
		if region != "" {
			h.phoneRegion = region
		}
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth Authenticator, registration Registrar, profiles ProfileReader, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		auth:         auth,
		registration: registration,
		profiles:     profiles,
		phoneRegion:  DefaultPhoneRegion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// RegisterRoutes binds the public endpoints. Per-route middleware (rate limits) runs ahead of the handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, registerMiddlewares, loginMiddlewares []gin.HandlerFunc) {
	r.POST("/register", chain(registerMiddlewares, h.Register)...)
	r.POST("/login", chain(loginMiddlewares, h.Login)...)
}

// Register godoc
// @Summary Register a new user account
// @Description Creates an account, grants the default role and returns a session token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegistrationRequest true "Registration request payload"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid registration payload")
		return
	}
	req.normalize()
	if err := req.validateWithRegion(h.phoneRegion); err != nil {
		respondValidation(c, validationMessages(err))
		return
	}

	input, err := req.toInput(h.phoneRegion)
	if err != nil {
		respondValidation(c, []string{"telefono: " + err.Error()})
		return
	}

	result, err := h.registration.Register(c.Request.Context(), input)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAuthResponse(result))
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Returns a bearer token. Repeated failures lock the account.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid login payload")
		return
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		respondValidation(c, validationMessages(err))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuthResponse(result))
}

// Profile godoc
// @Summary Current user profile
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, http.StatusUnauthorized, "authentication required"))
		return
	}

	user, err := h.profiles.Profile(c.Request.Context(), userID)
	if err != nil {
		RespondWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{User: toPublicUser(user)})
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	out = append(out, middlewares...)
	return append(out, handler)
}
