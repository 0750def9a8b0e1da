// Package transaction serves the transaction writer: appends, reversals,
// corrections, pending settlement and purges.
package transaction

import (
	"context"
	"fmt"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/middleware"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/amirasaad/crossledger/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader carries the client request id. Retrying with the same
// key returns the row stored by the first successful attempt.
const IdempotencyKeyHeader = "Idempotency-Key"

// Routes registers the transaction endpoints behind auth.
//
// Routes:
//   - POST   /transactions                : Append a row.
//   - GET    /transactions/:id            : Fetch a row.
//   - POST   /transactions/:id/reverse    : Append the compensating correction.
//   - POST   /transactions/:id/correct    : Reverse and re-enter in one step.
//   - POST   /transactions/:id/complete   : Settle a pending row.
//   - POST   /transactions/:id/fail       : Fail a pending row.
//   - POST   /transactions/:id/cancel     : Cancel a pending row.
//   - DELETE /transactions/:id            : Purge a row that never counted.
func Routes(
	app fiber.Router,
	writer *ledgersvc.Writer,
	calc *ledgersvc.Calculator,
	auth fiber.Handler,
) {
	app.Post("/transactions", auth, Append(writer))
	app.Get("/transactions/:id", auth, Get(calc))
	app.Post("/transactions/:id/reverse", auth, Reverse(writer))
	app.Post("/transactions/:id/correct", auth, Correct(writer))
	app.Post("/transactions/:id/complete", auth, Settle(writer.Complete, "Transaction completed"))
	app.Post("/transactions/:id/fail", auth, Settle(writer.Fail, "Transaction failed"))
	app.Post("/transactions/:id/cancel", auth, Settle(writer.Cancel, "Transaction cancelled"))
	app.Delete("/transactions/:id", auth, Purge(writer))
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: transaction id must be a valid UUID", domain.ErrValidation)
	}
	return id, nil
}

// Append returns a Fiber handler that validates and appends one ledger row.
// @Summary Append a transaction
// @Description Appends a deposit, withdrawal, transfer or correction. Send Idempotency-Key to make retries safe.
// @Tags transactions
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client request id"
// @Param request body AppendRequest true "Transaction"
// @Success 201 {object} common.Response "Transaction appended"
// @Failure 400 {object} common.ProblemDetails "Invalid amount or self transfer"
// @Failure 409 {object} common.ProblemDetails "Idempotency key reused"
// @Failure 422 {object} common.ProblemDetails "Unknown wallet or currency mismatch"
// @Failure 503 {object} common.ProblemDetails "Storage unavailable, retry with the same key"
// @Router /transactions [post]
// @Security Bearer
func Append(writer *ledgersvc.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[AppendRequest](c)
		if input == nil {
			return err // error response already written
		}
		key := c.Get(IdempotencyKeyHeader)
		tx, err := writer.Append(c.UserContext(), input.Draft(middleware.Operator(c), key))
		if err != nil {
			common.LogFailure("Failed to append transaction", err)
			return common.ProblemDetailsJSON(c, "Failed to append transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transaction appended", ToDTO(tx))
	}
}

// Get returns a Fiber handler fetching one row.
// @Summary Fetch a transaction
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} common.Response "Transaction"
// @Failure 404 {object} common.ProblemDetails "Not found"
// @Router /transactions/{id} [get]
// @Security Bearer
func Get(calc *ledgersvc.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err)
		}
		tx, err := calc.Get(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction fetched", ToDTO(tx))
	}
}

// Reverse returns a Fiber handler appending the correction that undoes a completed row.
// @Summary Reverse a transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param Idempotency-Key header string false "Client request id"
// @Param request body ReverseRequest false "Note"
// @Success 201 {object} common.Response "Reversal appended"
// @Failure 409 {object} common.ProblemDetails "Already reversed or not completed"
// @Router /transactions/{id}/reverse [post]
// @Security Bearer
func Reverse(writer *ledgersvc.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err)
		}
		var input ReverseRequest
		if len(c.Body()) > 0 {
			in, err := common.BindAndValidate[ReverseRequest](c)
			if in == nil {
				return err
			}
			input = *in
		}
		rev, err := writer.Reverse(c.UserContext(), id, middleware.Operator(c), input.Note, c.Get(IdempotencyKeyHeader))
		if err != nil {
			common.LogFailure("Failed to reverse transaction %s", err, id)
			return common.ProblemDetailsJSON(c, "Failed to reverse transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Reversal appended", ToDTO(rev))
	}
}

// Correct returns a Fiber handler that reverses a row and appends its replacement atomically.
// @Summary Correct a transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param Idempotency-Key header string false "Client request id"
// @Param request body AppendRequest true "Corrected transaction"
// @Success 201 {object} common.Response "Correction appended"
// @Router /transactions/{id}/correct [post]
// @Security Bearer
func Correct(writer *ledgersvc.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err)
		}
		input, err := common.BindAndValidate[AppendRequest](c)
		if input == nil {
			return err
		}
		operator := middleware.Operator(c)
		rev, entry, err := writer.Correct(
			c.UserContext(),
			id,
			input.Draft(operator, ""),
			operator,
			c.Get(IdempotencyKeyHeader),
		)
		if err != nil {
			common.LogFailure("Failed to correct transaction %s", err, id)
			return common.ProblemDetailsJSON(c, "Failed to correct transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Correction appended", CorrectionDTO{
			Reversal: ToDTO(rev),
			Entry:    ToDTO(entry),
		})
	}
}

// Settle returns a Fiber handler moving a pending row to a final status.
// @Summary Settle a pending transaction
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} common.Response "Transaction settled"
// @Failure 409 {object} common.ProblemDetails "Row is not pending"
// @Router /transactions/{id}/complete [post]
// @Router /transactions/{id}/fail [post]
// @Router /transactions/{id}/cancel [post]
// @Security Bearer
func Settle(
	settle func(ctx context.Context, id uuid.UUID, operator string) (*ledger.Transaction, error),
	message string,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err)
		}
		tx, err := settle(c.UserContext(), id, middleware.Operator(c))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to settle transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message, ToDTO(tx))
	}
}

// Purge returns a Fiber handler deleting a row that never counted towards a balance.
// @Summary Purge a transaction
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} common.Response "Transaction purged"
// @Failure 409 {object} common.ProblemDetails "Completed or tied to a cross"
// @Router /transactions/{id} [delete]
// @Security Bearer
func Purge(writer *ledgersvc.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err)
		}
		if err := writer.Purge(c.UserContext(), id, middleware.Operator(c)); err != nil {
			return common.ProblemDetailsJSON(c, "Failed to purge transaction", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transaction purged", nil)
	}
}
