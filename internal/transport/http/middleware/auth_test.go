package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/usecase"
)

type stubParser map[string]*domain.AccessTokenClaims

func (s stubParser) ParseAccessToken(token string) (*domain.AccessTokenClaims, error) {
	switch token {
	case "expired":
		return nil, usecase.ErrExpiredAccessToken
	}
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, usecase.ErrInvalidAccessToken
}

func newGuardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	parser := stubParser{
		"admin-token": {UserID: 7, Email: "a@example.com", Roles: []string{"admin"}},
		"user-token":  {UserID: 8, Email: "u@example.com", Roles: []string{"usuario"}},
	}
	r := gin.New()
	r.Use(EnrichContext())
	r.GET("/me", RequireAuth(parser), func(c *gin.Context) {
		id, _ := GetAuthenticatedUserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	r.GET("/admin", RequireAuth(parser), RequireRole("admin", "superadmin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuth(t *testing.T) {
	r := newGuardedRouter()

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing or malformed bearer token"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "missing or malformed bearer token"},
		{"empty token", "Bearer   ", http.StatusUnauthorized, "missing or malformed bearer token"},
		{"expired", "Bearer expired", http.StatusUnauthorized, "access token expired"},
		{"invalid", "Bearer forged", http.StatusUnauthorized, "invalid access token"},
		{"valid lower-case scheme", "bearer user-token", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(r, "/me", tc.header)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
			if tc.message == "" {
				return
			}
			var body ErrorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tc.message || body.StatusCode != tc.status || body.TraceID == "" {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newGuardedRouter()

	if rr := serve(r, "/admin", "Bearer admin-token"); rr.Code != http.StatusNoContent {
		t.Fatalf("admin should pass, got %d", rr.Code)
	}
	if rr := serve(r, "/admin", "Bearer user-token"); rr.Code != http.StatusForbidden {
		t.Fatalf("usuario should be forbidden, got %d", rr.Code)
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	if rr := serve(r, "/x", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
