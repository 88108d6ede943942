package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reportd/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMiddleware(enabled bool) *Middleware {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewMiddleware(config.Config{
		Auth: config.Auth{
			Enabled: enabled,
			Secret:  "test-secret",
			Issuer:  "reportd-test",
		},
	}, logger)
}

func invoke(t *testing.T, m *Middleware, right, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := m.Require(right)(func(c echo.Context) error {
		return c.String(http.StatusOK, UserFromContext(c))
	})
	require.NoError(t, handler(c))
	return rec
}

func TestRequirePassesWithRight(t *testing.T) {
	token, err := Sign([]byte("test-secret"), "reportd-test", "alice", []string{RightRunReports}, time.Minute)
	require.NoError(t, err)

	rec := invoke(t, testMiddleware(true), RightRunReports, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequireRejectsMissingToken(t *testing.T) {
	rec := invoke(t, testMiddleware(true), RightRunReports, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsWrongIssuer(t *testing.T) {
	token, err := Sign([]byte("test-secret"), "someone-else", "alice", []string{RightRunReports}, time.Minute)
	require.NoError(t, err)

	rec := invoke(t, testMiddleware(true), RightRunReports, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsExpiredToken(t *testing.T) {
	token, err := Sign([]byte("test-secret"), "reportd-test", "alice", []string{RightRunReports}, -time.Minute)
	require.NoError(t, err)

	rec := invoke(t, testMiddleware(true), RightRunReports, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRejectsMissingRight(t *testing.T) {
	token, err := Sign([]byte("test-secret"), "reportd-test", "alice", []string{RightRunReports}, time.Minute)
	require.NoError(t, err)

	rec := invoke(t, testMiddleware(true), RightManageDefinitions, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireDisabledPassesThrough(t *testing.T) {
	rec := invoke(t, testMiddleware(false), RightManageDefinitions, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}
