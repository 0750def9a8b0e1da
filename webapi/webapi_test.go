package webapi_test

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/amirasaad/crossledger/pkg/middleware"
	"github.com/amirasaad/crossledger/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	h := testutils.New(t)
	resp := h.Do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMissingOperatorIsUnauthorized(t *testing.T) {
	h := testutils.New(t)
	resp := h.Do(http.MethodGet, "/wallets", nil, middleware.OperatorHeader, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "Unauthorized", h.Problem(resp).Title)
}

func TestJWTOperator(t *testing.T) {
	h := testutils.New(t, testutils.WithJWT("s3cret"))
	token, err := middleware.IssueToken(h.App.Config.Auth.Jwt, "dana", time.Now())
	require.NoError(t, err)

	resp := h.Do(http.MethodPost, "/wallets",
		map[string]string{"name": "Alice", "kind": "client"},
		fiber.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = h.Do(http.MethodGet, "/wallets", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "header identity is ignored when JWT is on")
}

func TestRateLimit(t *testing.T) {
	h := testutils.New(t, testutils.WithRateLimit(2, time.Minute))
	for i := 0; i < 2; i++ {
		resp := h.Do(http.MethodGet, "/healthz", nil, "X-Forwarded-For", "10.0.0.1")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp := h.Do(http.MethodGet, "/healthz", nil, "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// other clients have their own budget
	resp = h.Do(http.MethodGet, "/healthz", nil, "X-Forwarded-For", "10.0.0.2, 172.16.0.1")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	h := testutils.New(t)
	h.CreateWallet("Alice", "client")

	resp := h.Do(http.MethodGet, "/metrics", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "crossledger_http_requests_total")
	assert.Contains(t, string(body), `route="/wallets"`)
}
