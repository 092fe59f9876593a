package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/usecase"
)

type stubAuth struct {
	email, password string
	result          domain.AuthResult
	err             error
}

func (s *stubAuth) Login(_ context.Context, email, password string) (domain.AuthResult, error) {
	s.email, s.password = email, password
	return s.result, s.err
}

type stubRegistrar struct {
	got    usecase.RegistrationInput
	calls  int
	result domain.AuthResult
	err    error
}

func (s *stubRegistrar) Register(_ context.Context, in usecase.RegistrationInput) (domain.AuthResult, error) {
	s.calls++
	s.got = in
	return s.result, s.err
}

type stubProfiles struct {
	gotID int64
	user  domain.PublicUser
	err   error
}

func (s *stubProfiles) Profile(_ context.Context, id int64) (domain.PublicUser, error) {
	s.gotID = id
	return s.user, s.err
}

func sampleResult() domain.AuthResult {
	return domain.AuthResult{
		Token: domain.IssuedToken{AccessToken: "tok", TokenType: domain.TokenTypeBearer, ExpiresIn: 86400},
		User: domain.PublicUser{
			ID:     9007199254740993,
			Email:  "alice@example.com",
			Name:   "Alice Smith",
			Roles:  []string{"usuario"},
			Active: true,
		},
	}
}

func authEngine(auth *stubAuth, reg *stubRegistrar, profiles *stubProfiles) http.Handler {
	r := newTestEngine()
	h := NewAuthHandler(auth, reg, profiles)
	h.RegisterRoutes(r.Group("/auth"), nil, nil)
	r.GET("/auth/profile", asUser(42), h.Profile)
	return r
}

const validRegistration = `{
	"email": "  Alice@Example.COM ",
	"password": "Str0ng!Passw0rd#2024",
	"firstName": "  Alice   María ",
	"lastName": "Smith",
	"telefono": "987654321",
	"dni": "12345678"
}`

func TestRegisterNormalizesPayload(t *testing.T) {
	reg := &stubRegistrar{result: sampleResult()}
	rec := doRequest(t, authEngine(&stubAuth{}, reg, &stubProfiles{}), http.MethodPost, "/auth/register", validRegistration)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "alice@example.com", reg.got.Email)
	assert.Equal(t, "Alice María", reg.got.FirstName)
	require.NotNil(t, reg.got.Phone)
	assert.Equal(t, "+51987654321", *reg.got.Phone)
	require.NotNil(t, reg.got.NationalID)
	assert.Equal(t, "12345678", *reg.got.NationalID)

	var body AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok", body.AccessToken)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.EqualValues(t, 86400, body.ExpiresIn)
	assert.Equal(t, "9007199254740993", body.User.ID)
	assert.Equal(t, "Alice Smith", body.User.Nombre)
	assert.True(t, body.User.Activo)
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"bad email", `{"email":"nope","password":"Str0ng!Passw0rd","firstName":"Al","lastName":"Sm"}`, "email"},
		{"weak password", `{"email":"a@b.co","password":"password","firstName":"Al","lastName":"Sm"}`, "password"},
		{"digits in name", `{"email":"a@b.co","password":"Str0ng!Passw0rd","firstName":"Al1","lastName":"Sm"}`, "firstName"},
		{"short last name", `{"email":"a@b.co","password":"Str0ng!Passw0rd","firstName":"Al","lastName":"S"}`, "lastName"},
		{"phone format", `{"email":"a@b.co","password":"Str0ng!Passw0rd","firstName":"Al","lastName":"Sm","telefono":"0123"}`, "telefono"},
		{"dni symbols", `{"email":"a@b.co","password":"Str0ng!Passw0rd","firstName":"Al","lastName":"Sm","dni":"12-34"}`, "dni"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &stubRegistrar{}
			rec := doRequest(t, authEngine(&stubAuth{}, reg, &stubProfiles{}), http.MethodPost, "/auth/register", tc.body)

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Zero(t, reg.calls)
			body := decodeError(t, rec)
			messages, ok := body.Message.([]any)
			require.True(t, ok, "expected message list, got %#v", body.Message)
			require.NotEmpty(t, messages)
			assert.Contains(t, messages[0], tc.field+":")
		})
	}
}

func TestRegisterMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"conflict", &usecase.ConflictError{Reason: "email already registered"}, http.StatusConflict},
		{"policy", &usecase.ValidationError{Messages: []string{"password is too weak"}}, http.StatusBadRequest},
		{"failed", usecase.ErrRegistrationFailed, http.StatusBadRequest},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &stubRegistrar{err: tc.err}
			rec := doRequest(t, authEngine(&stubAuth{}, reg, &stubProfiles{}), http.MethodPost, "/auth/register", validRegistration)
			require.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.status, body.StatusCode)
			assert.Equal(t, "/auth/register", body.Path)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Message)
			}
		})
	}
}

func TestLoginResponses(t *testing.T) {
	lock := time.Now().Add(15 * time.Minute)
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"success", nil, http.StatusOK, ""},
		{"bad credentials", usecase.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"locked", &usecase.AccountLockedError{Until: lock, MinutesRemaining: 15}, http.StatusUnauthorized, "account locked, try again in 15 minutes"},
		{"disabled", usecase.ErrAccountDisabled, http.StatusUnauthorized, "account is deactivated"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &stubAuth{result: sampleResult(), err: tc.err}
			rec := doRequest(t, authEngine(auth, &stubRegistrar{}, &stubProfiles{}), http.MethodPost, "/auth/login",
				`{"email":" ALICE@example.com","password":"whatever"}`)

			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "alice@example.com", auth.email)
			if tc.message != "" {
				assert.Equal(t, tc.message, decodeError(t, rec).Message)
			}
		})
	}
}

func TestLoginRequiresFields(t *testing.T) {
	auth := &stubAuth{}
	rec := doRequest(t, authEngine(auth, &stubRegistrar{}, &stubProfiles{}), http.MethodPost, "/auth/login", `{"email":"a@b.co"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, auth.email)

	rec = doRequest(t, authEngine(auth, &stubRegistrar{}, &stubProfiles{}), http.MethodPost, "/auth/login", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	profiles := &stubProfiles{user: sampleResult().User}
	rec := doRequest(t, authEngine(&stubAuth{}, &stubRegistrar{}, profiles), http.MethodGet, "/auth/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 42, profiles.gotID)

	var body ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"usuario"}, body.User.Roles)

	profiles.err = usecase.ErrAccountDisabled
	rec = doRequest(t, authEngine(&stubAuth{}, &stubRegistrar{}, profiles), http.MethodGet, "/auth/profile", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
