package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/infra/logger"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	ParseAccessToken(token string) (*domain.AccessTokenClaims, error)
}

// RequireAuth validates the bearer token and stores its claims on the context.
func RequireAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			AbortWithError(c, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}

		claims, err := parser.ParseAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				AbortWithError(c, http.StatusUnauthorized, "access token expired")
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				AbortWithError(c, http.StatusUnauthorized, "invalid access token")
			default:
				logger.WithContext(c.Request.Context()).Error("token verification failed")
				AbortWithError(c, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		GetRequestContext(c).UserID = claims.UserID

		c.Next()
	}
}

// RequireRole allows the request when the token carries any of the given roles.
// It must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.HasAnyRole(roles...) {
			AbortWithError(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(c *gin.Context) (*domain.AccessTokenClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.AccessTokenClaims)
	return claims, ok && claims != nil
}

// GetAuthenticatedUserID returns the id of the authenticated caller.
func GetAuthenticatedUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
