package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/handler"
)

func TestHealth_AllServicesUp(t *testing.T) {
	h := handler.Health(newTestStore(), newTestCache())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	decodeData(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Services["database"])
	assert.Equal(t, "ok", body.Services["cache"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	st := newTestStore()
	st.pingErr = errors.New("connection refused")
	h := handler.Health(st, newTestCache())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "DEGRADED", body.Code)
	assert.Equal(t, "degraded", body.Details["database"])
	assert.Equal(t, "ok", body.Details["cache"])
}

func TestHealth_CacheDown(t *testing.T) {
	ca := newTestCache()
	ca.pingErr = errors.New("connection refused")
	h := handler.Health(newTestStore(), ca)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeError(t, rec).Details["cache"])
}
