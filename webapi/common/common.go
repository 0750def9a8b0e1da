// Package common holds the response envelope, error mapping and request
// binding shared by the webapi route packages.
package common

import (
	"errors"
	"strconv"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// RetryAfterSeconds is sent with 503 responses.
const RetryAfterSeconds = 1

var validate = validator.New(validator.WithRequiredStructEnabled())

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ProblemDetailsJSON writes err as application/problem+json. The status is
// derived from err unless an int is passed in extra; a string in extra
// replaces the detail. Blocking references of a *domain.ReferenceError are
// listed under errors.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, extra ...any) error {
	status := ErrorToStatusCode(err)
	pd := ProblemDetails{Type: "about:blank", Title: title}
	if err != nil {
		pd.Detail = err.Error()
	}
	for _, e := range extra {
		switch v := e.(type) {
		case int:
			status = v
		case string:
			pd.Detail = v
		}
	}
	pd.Status = status

	var refErr *domain.ReferenceError
	switch {
	case errors.As(err, &refErr):
		pd.Errors = refErr.Blocking
	case errors.Is(err, domain.ErrConcurrentModification):
		pd.Title = "Concurrent modification"
	case status == fiber.StatusServiceUnavailable:
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds))
	}
	pd.Instance = c.OriginalURL()
	return c.Status(status).JSON(pd, "application/problem+json")
}

// LogFailure logs a failed service call: rejections at warn, storage and
// concurrency failures at error.
func LogFailure(format string, err error, args ...any) {
	args = append(args, err)
	if ledgersvc.IsBusinessError(err) {
		log.Warnf(format+": %v", args...)
		return
	}
	log.Errorf(format+": %v", args...)
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrSameClientBothLegs),
		errors.Is(err, domain.ErrInvalidLeg),
		errors.Is(err, domain.ErrInvalidBalance):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownWallet),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrHasOpenReferences),
		errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrImmutableTransaction),
		errors.Is(err, domain.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrConcurrentModification):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// Returns a pointer to the struct (populated), or writes an error response and returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

// QueryTime reads an optional RFC 3339 query parameter.
func QueryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

// QueryBool reads an optional boolean query parameter.
func QueryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be true or false")
	}
	return &b, nil
}
