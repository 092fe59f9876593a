package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/infra/config"
	"github.com/Andiquis/xQor3/internal/repository"
	"github.com/Andiquis/xQor3/internal/transport/http/middleware"
	httproutes "github.com/Andiquis/xQor3/internal/transport/http/routes"
	"github.com/Andiquis/xQor3/internal/usecase"
)

type staticRoles struct{}

func (staticRoles) Create(_ context.Context, role domain.Role) (*domain.Role, error) {
	role.ID = 10
	return &role, nil
}
func (staticRoles) GetByID(context.Context, int32) (*domain.Role, error) {
	return nil, repository.ErrNotFound
}
func (staticRoles) GetByName(context.Context, string) (*domain.Role, error) {
	return nil, repository.ErrNotFound
}
func (staticRoles) ListWithCounts(context.Context) ([]domain.RoleWithCount, error) {
	return []domain.RoleWithCount{{Role: domain.Role{ID: 1, Name: "admin", State: domain.RoleStateActive}}}, nil
}
func (staticRoles) Update(context.Context, domain.Role) error { return nil }
func (staticRoles) Delete(context.Context, int32) error      { return nil }

type dbStub struct{ err error }

func (d dbStub) Ping(context.Context) error { return d.err }

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App:  config.AppSettings{Env: "test"},
		CORS: config.CORSSettings{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

func newRouter(t *testing.T) (*gin.Engine, *usecase.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := usecase.NewTokenIssuer(config.JWTSettings{Secret: "routes-test-secret", ExpiresIn: "1h"})
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	policy := usecase.LockoutPolicy{MaxAttempts: 5, Duration: 15 * time.Minute}
	services := httproutes.ServiceSet{
		Auth:         usecase.NewAuthService(nil, nil, nil, tokens, policy),
		Registration: usecase.NewRegistrationService(nil, staticRoles{}, nil, nil, nil, tokens, usecase.RegistrationOptions{}),
		Users:        usecase.NewUserService(nil, nil),
		Roles:        usecase.NewRoleService(staticRoles{}, nil, nil),
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:   testConfig(),
		Logger:   zap.NewNop(),
		Services: services,
		Metrics:  metrics,
		Gatherer: reg,
		Database: dbStub{},
	})
	return r, tokens
}

func bearer(t *testing.T, tokens *usecase.TokenIssuer, roles ...string) string {
	t.Helper()
	tok, err := tokens.Issue(1, "caller@example.com", roles)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok.AccessToken
}

func serve(r http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: logger,
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestReadinessAndMetrics(t *testing.T) {
	r, _ := newRouter(t)

	if w := serve(r, http.MethodGet, "/readyz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "xqor3_http_requests_total") {
		t.Fatalf("expected http request counter in metrics output")
	}
}

func TestRouteGuards(t *testing.T) {
	r, tokens := newRouter(t)
	user := bearer(t, tokens, domain.RoleUser)
	admin := bearer(t, tokens, domain.RoleAdmin)
	super := bearer(t, tokens, domain.RoleSuperAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		want   int
	}{
		{"roles require token", http.MethodGet, "/api/v1/roles", "", "", http.StatusUnauthorized},
		{"roles readable by any user", http.MethodGet, "/api/v1/roles", user, "", http.StatusOK},
		{"garbage token", http.MethodGet, "/api/v1/roles", "Bearer nope", "", http.StatusUnauthorized},
		{"create role needs superadmin", http.MethodPost, "/api/v1/roles", admin, `{"name":"auditor"}`, http.StatusForbidden},
		{"superadmin creates role", http.MethodPost, "/api/v1/roles", super, `{"name":"auditor"}`, http.StatusCreated},
		{"delete role needs superadmin", http.MethodDelete, "/api/v1/roles/1", admin, "", http.StatusForbidden},
		{"toggle needs superadmin", http.MethodPatch, "/api/v1/roles/1/toggle-state", user, "", http.StatusForbidden},
		{"assign needs admin", http.MethodPost, "/api/v1/roles/1/assign", user, `{"userId":"2","action":"assign"}`, http.StatusForbidden},
		{"role users needs admin", http.MethodGet, "/api/v1/roles/1/users", user, "", http.StatusForbidden},
		{"list users needs admin", http.MethodGet, "/api/v1/users", user, "", http.StatusForbidden},
		{"activation needs superadmin", http.MethodPatch, "/api/v1/users/2/active", admin, `{"active":false}`, http.StatusForbidden},
		{"profile requires token", http.MethodGet, "/api/v1/auth/profile", "", "", http.StatusUnauthorized},
		{"login validates before service", http.MethodPost, "/api/v1/auth/login", "", `{"email":"bad"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, tc.method, tc.path, tc.auth, tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
