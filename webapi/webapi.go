// Package webapi serves the ledger over HTTP. It is organized into
// sub-packages per resource:
// - wallet: wallet registry and balances
// - transaction: ledger rows, reversals and corrections
// - cross: hedge crosses and settlement
package webapi

import (
	"errors"
	"strings"
	"time"

	_ "github.com/amirasaad/crossledger/docs" // register swagger docs
	"github.com/amirasaad/crossledger/pkg/app"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/middleware"
	"github.com/amirasaad/crossledger/webapi/common"
	crossweb "github.com/amirasaad/crossledger/webapi/cross"
	transactionweb "github.com/amirasaad/crossledger/webapi/transaction"
	walletweb "github.com/amirasaad/crossledger/webapi/wallet"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	cfg := a.Config

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})
	fiberApp.Get("/swagger/*", swagger.New(swagger.Config{
		TryItOutEnabled:      true,
		PersistAuthorization: true,
	}))
	fiberApp.Get("/metrics", adaptor.HTTPHandler(a.Metrics.Handler()))

	if cfg.RateLimit != nil && cfg.RateLimit.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.MaxRequests,
			Expiration: cfg.RateLimit.Window,
			// Uses X-Forwarded-For when behind a proxy, then X-Real-IP.
			KeyGenerator: func(c *fiber.Ctx) string {
				if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
					if i := strings.Index(forwardedFor, ","); i != -1 {
						return strings.TrimSpace(forwardedFor[:i])
					}
					return strings.TrimSpace(forwardedFor)
				}
				if realIP := c.Get("X-Real-IP"); realIP != "" {
					return realIP
				}
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(observe(a))

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Crossledger API is running! 🚀")
	})
	fiberApp.Get("/healthz", func(c *fiber.Ctx) error {
		return common.SuccessResponseJSON(c, fiber.StatusOK, "ok", nil)
	})

	var jwtCfg *config.Jwt
	if cfg.Auth != nil {
		jwtCfg = cfg.Auth.Jwt
	}
	auth := middleware.Protected(jwtCfg)

	walletweb.Routes(fiberApp, a.WalletService, a.Calculator, auth)
	transactionweb.Routes(fiberApp, a.Writer, a.Calculator, auth)
	crossweb.Routes(fiberApp, a.CrossManager, auth)
	return fiberApp
}

// observe records request counts and latency by route template.
func observe(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = common.ErrorToStatusCode(err)
		}
		a.Metrics.ObserveRequest(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
