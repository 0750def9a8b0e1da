// Package testutils builds an in-memory API for handler tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	eventbusimpl "github.com/amirasaad/crossledger/infra/eventbus"
	"github.com/amirasaad/crossledger/infra/repository/memory"
	"github.com/amirasaad/crossledger/pkg/app"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/middleware"
	"github.com/amirasaad/crossledger/webapi"
	"github.com/amirasaad/crossledger/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stretchr/testify/require"
)

// TeamWallet is the default team wallet of the test configuration.
const TeamWallet = "Team"

// Operator is sent as X-Operator on every request unless overridden.
const Operator = "tester"

// Harness is a running API over a fresh memory store.
type Harness struct {
	t     *testing.T
	App   *app.App
	Fiber *fiber.App
	Store *memory.Store
	Bus   *eventbusimpl.MemoryEventBus
}

// Option adjusts the test configuration before the app is built.
type Option func(*config.App)

// WithRateLimit enables the limiter.
func WithRateLimit(max int, window time.Duration) Option {
	return func(cfg *config.App) {
		cfg.RateLimit = &config.RateLimit{MaxRequests: max, Window: window}
	}
}

// WithJWT enables token authentication with secret.
func WithJWT(secret string) Option {
	return func(cfg *config.App) {
		cfg.Auth.Jwt = &config.Jwt{Secret: secret, Expiry: time.Hour}
	}
}

// New builds the API with rate limiting and JWT disabled.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	log.SetOutput(io.Discard)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.App{
		Env:       "test",
		Auth:      &config.Auth{Jwt: &config.Jwt{}},
		RateLimit: &config.RateLimit{},
		Ledger: &config.Ledger{
			TeamWallet:      TeamWallet,
			DefaultCurrency: "USDT",
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := memory.NewStore()
	bus := eventbusimpl.NewWithMemory(logger)
	a := app.New(config.Deps{
		Uow:      memory.NewUoW(store),
		EventBus: bus,
		Logger:   logger,
		Config:   cfg,
	}, nil)
	return &Harness{t: t, App: a, Fiber: webapi.SetupApp(a), Store: store, Bus: bus}
}

// Do sends a request with the default operator and returns the response.
// A nil body sends no payload; other values are encoded as JSON.
func (h *Harness) Do(method, path string, body any, headers ...string) *http.Response {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(h.t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	req.Header.Set(middleware.OperatorHeader, Operator)
	for i := 0; i+1 < len(headers); i += 2 {
		if headers[i+1] == "" {
			req.Header.Del(headers[i])
			continue
		}
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.Fiber.Test(req, -1)
	require.NoError(h.t, err)
	return resp
}

// Decode reads a success envelope and decodes its data into out.
func (h *Harness) Decode(resp *http.Response, out any) common.Response {
	h.t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var env struct {
		Status  int             `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && len(env.Data) > 0 {
		require.NoError(h.t, json.Unmarshal(env.Data, out))
	}
	return common.Response{Status: env.Status, Message: env.Message}
}

// Problem decodes a problem+json body.
func (h *Harness) Problem(resp *http.Response) common.ProblemDetails {
	h.t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var pd common.ProblemDetails
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}

// CreateWallet registers a wallet over HTTP and fails the test unless it succeeds.
func (h *Harness) CreateWallet(name, kind string) {
	h.t.Helper()
	resp := h.Do(http.MethodPost, "/wallets", map[string]string{"name": name, "kind": kind})
	require.Equal(h.t, fiber.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()
}
