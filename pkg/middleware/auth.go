// Package middleware identifies the operator behind each request.
package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/crossledger/pkg/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// OperatorHeader names the operator when JWT is disabled.
	OperatorHeader = "X-Operator"

	operatorKey = "operator"
	tokenKey    = "user"
)

// Protected requires an operator identity on every request. With a JWT
// secret the identity is the token's sub claim; without one the
// X-Operator header is trusted.
func Protected(cfg ...*config.Jwt) fiber.Handler {
	if len(cfg) == 0 || cfg[0] == nil || cfg[0].Secret == "" {
		return headerOperator
	}
	return jwtware.New(jwtware.Config{
		SigningKey:     jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg[0].Secret)},
		ContextKey:     tokenKey,
		ErrorHandler:   jwtError,
		SuccessHandler: tokenOperator,
	})
}

func headerOperator(c *fiber.Ctx) error {
	op := strings.TrimSpace(c.Get(OperatorHeader))
	if op == "" {
		return problem(c, fiber.StatusUnauthorized, "Unauthorized", "missing "+OperatorHeader+" header")
	}
	c.Locals(operatorKey, op)
	return c.Next()
}

func tokenOperator(c *fiber.Ctx) error {
	token, ok := c.Locals(tokenKey).(*jwt.Token)
	if !ok {
		return problem(c, fiber.StatusUnauthorized, "Unauthorized", "missing token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return problem(c, fiber.StatusUnauthorized, "Unauthorized", "token has no subject")
	}
	c.Locals(operatorKey, sub)
	return c.Next()
}

func jwtError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) || err.Error() == "Missing or malformed JWT" {
		return problem(c, fiber.StatusBadRequest, "Missing or malformed JWT", err.Error())
	}
	return problem(c, fiber.StatusUnauthorized, "Invalid or expired JWT", err.Error())
}

func problem(c *fiber.Ctx, status int, title, detail string) error {
	return c.Status(status).JSON(fiber.Map{
		"type":     "about:blank",
		"title":    title,
		"status":   status,
		"detail":   detail,
		"instance": c.OriginalURL(),
	}, "application/problem+json")
}

// Operator returns the identity Protected stored on c, or "".
func Operator(c *fiber.Ctx) string {
	op, _ := c.Locals(operatorKey).(string)
	return op
}

// IssueToken signs an operator token with the configured secret and expiry.
func IssueToken(cfg *config.Jwt, operator string, now time.Time) (string, error) {
	if cfg == nil || cfg.Secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	claims := jwt.RegisteredClaims{
		Subject:   operator,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
