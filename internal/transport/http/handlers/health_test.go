package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	var dbErr error
	h := NewHealthHandler(
		WithReadinessCheck("database", func(context.Context) error { return dbErr }),
		WithReadinessCheck("redis", func(context.Context) error { return nil }),
	)
	r := newTestEngine()
	r.GET("/healthz", h.Status)
	r.GET("/readyz", h.Readiness)

	rec := doRequest(t, r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	dbErr = errors.New("connection refused")
	rec = doRequest(t, r, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "unavailable", body.Checks["database"])
	assert.Equal(t, "ok", body.Checks["redis"])
}
