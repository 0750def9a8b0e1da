package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoOperator(c *fiber.Ctx) error { return c.SendString(Operator(c)) }

func TestProtected_Unauthorized(t *testing.T) {
	app := fiber.New()
	app.Use(Protected())
	app.Get("/", echoOperator)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtected_HeaderOperator(t *testing.T) {
	app := fiber.New()
	app.Use(Protected(&config.Jwt{}))
	app.Get("/", echoOperator)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OperatorHeader, " alice ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", string(body))
}

func TestProtected_JWT(t *testing.T) {
	cfg := &config.Jwt{Secret: "s3cret", Expiry: time.Hour}
	app := fiber.New()
	app.Use(Protected(cfg))
	app.Get("/", echoOperator)

	token, err := IssueToken(cfg, "bob", time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "bob", string(body))

	// the header is ignored once JWT is on
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OperatorHeader, "mallory")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProtected_ExpiredJWT(t *testing.T) {
	cfg := &config.Jwt{Secret: "s3cret", Expiry: time.Minute}
	app := fiber.New()
	app.Use(Protected(cfg))
	app.Get("/", echoOperator)

	token, err := IssueToken(cfg, "bob", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJwtError_Malformed(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		return jwtError(c, errors.New("Missing or malformed JWT"))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestJwtError_Invalid(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		return jwtError(c, errors.New("any other error"))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, _ := app.Test(req)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, err := IssueToken(&config.Jwt{}, "bob", time.Now())
	assert.Error(t, err)
}
