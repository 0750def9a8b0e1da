// Package cross serves the hedge cross lifecycle: open, suspend, resume,
// close with settlement, receipt and delete.
package cross

import (
	"context"
	"fmt"

	"github.com/amirasaad/crossledger/pkg/commands"
	"github.com/amirasaad/crossledger/pkg/domain"
	domaincross "github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/middleware"
	"github.com/amirasaad/crossledger/pkg/repository"
	crosssvc "github.com/amirasaad/crossledger/pkg/service/cross"
	"github.com/amirasaad/crossledger/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Routes registers the cross endpoints behind auth.
//
// Routes:
//   - POST   /crosses               : Open a cross with both legs.
//   - GET    /crosses               : List crosses (state, wallet, limit).
//   - GET    /crosses/:id           : Fetch a cross.
//   - POST   /crosses/:id/suspend   : Suspend an active cross.
//   - POST   /crosses/:id/resume    : Resume a suspended cross.
//   - POST   /crosses/:id/close     : Settle an active cross.
//   - GET    /crosses/:id/receipt   : Settlement receipt of a closed cross.
//   - DELETE /crosses/:id           : Delete a cross without live settlement rows.
func Routes(app fiber.Router, manager *crosssvc.Manager, auth fiber.Handler) {
	app.Post("/crosses", auth, Open(manager))
	app.Get("/crosses", auth, List(manager))
	app.Get("/crosses/:id", auth, Get(manager))
	app.Post("/crosses/:id/suspend", auth, Transition(manager.Suspend, "Cross suspended"))
	app.Post("/crosses/:id/resume", auth, Transition(manager.Resume, "Cross resumed"))
	app.Post("/crosses/:id/close", auth, Close(manager))
	app.Get("/crosses/:id/receipt", auth, Receipt(manager))
	app.Delete("/crosses/:id", auth, Delete(manager))
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: cross id must be a valid UUID", domain.ErrValidation)
	}
	return id, nil
}

// Open returns a Fiber handler that opens a cross.
// @Summary Open a cross
// @Description Opens a hedge cross with a long and a short leg on different clients and records two cross_open markers.
// @Tags crosses
// @Accept json
// @Produce json
// @Param request body OpenCrossRequest true "Cross"
// @Success 201 {object} common.Response "Cross opened"
// @Failure 400 {object} common.ProblemDetails "Invalid legs"
// @Failure 422 {object} common.ProblemDetails "Unknown wallet or currency mismatch"
// @Router /crosses [post]
// @Security Bearer
func Open(manager *crosssvc.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[OpenCrossRequest](c)
		if input == nil {
			return err // error response already written
		}
		cr, err := manager.Open(c.UserContext(), input.command(middleware.Operator(c)))
		if err != nil {
			common.LogFailure("Failed to open cross", err)
			return common.ProblemDetailsJSON(c, "Failed to open cross", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Cross opened", toCrossDTO(cr))
	}
}

// List returns a Fiber handler listing crosses, newest first.
// @Summary List crosses
// @Tags crosses
// @Produce json
// @Param state query string false "active, suspended or closed"
// @Param wallet query string false "Leg or team wallet"
// @Param limit query int false "Maximum crosses"
// @Success 200 {object} common.Response "Crosses"
// @Router /crosses [get]
// @Security Bearer
func List(manager *crosssvc.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := repository.CrossFilter{
			State:  domaincross.State(c.Query("state")),
			Wallet: c.Query("wallet"),
			Limit:  c.QueryInt("limit", 0),
		}
		if filter.State != "" && !filter.State.IsValid() {
			return common.ProblemDetailsJSON(c, "Invalid filter", domain.ErrValidation, "unknown state", fiber.StatusBadRequest)
		}
		crosses, err := manager.List(c.UserContext(), filter)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list crosses", err)
		}
		dtos := make([]CrossDTO, 0, len(crosses))
		for _, cr := range crosses {
			dtos = append(dtos, toCrossDTO(cr))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Crosses fetched", dtos)
	}
}

// Get returns a Fiber handler fetching one cross.
// @Summary Fetch a cross
// @Tags crosses
// @Produce json
// @Param id path string true "Cross ID"
// @Success 200 {object} common.Response "Cross"
// @Failure 404 {object} common.ProblemDetails "Not found"
// @Router /crosses/{id} [get]
// @Security Bearer
func Get(manager *crosssvc.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid cross ID", err)
		}
		cr, err := manager.Get(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch cross", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Cross fetched", toCrossDTO(cr))
	}
}

// Transition returns a Fiber handler for suspend and resume.
// @Summary Suspend or resume a cross
// @Tags crosses
// @Accept json
// @Produce json
// @Param id path string true "Cross ID"
// @Param request body TransitionRequest false "Note"
// @Success 200 {object} common.Response "Cross updated"
// @Failure 409 {object} common.ProblemDetails "Transition not allowed"
// @Router /crosses/{id}/suspend [post]
// @Router /crosses/{id}/resume [post]
// @Security Bearer
func Transition(
	move func(ctx context.Context, cmd commands.TransitionCross) (*domaincross.Cross, error),
	message string,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid cross ID", err)
		}
		var input TransitionRequest
		if len(c.Body()) > 0 {
			in, err := common.BindAndValidate[TransitionRequest](c)
			if in == nil {
				return err
			}
			input = *in
		}
		cr, err := move(c.UserContext(), commands.TransitionCross{
			CrossID:  id,
			Note:     input.Note,
			Operator: middleware.Operator(c),
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to change cross state", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message, toCrossDTO(cr))
	}
}

// Close returns a Fiber handler that settles a cross.
// @Summary Close a cross
// @Description Computes the settlement and appends one cross_close row per leg. Repeating the same close returns the stored receipt with replayed=true.
// @Tags crosses
// @Accept json
// @Produce json
// @Param id path string true "Cross ID"
// @Param request body CloseCrossRequest true "Final balances and winner"
// @Success 200 {object} common.Response "Cross closed"
// @Failure 400 {object} common.ProblemDetails "Invalid balance"
// @Failure 409 {object} common.ProblemDetails "Not active or concurrent modification"
// @Failure 503 {object} common.ProblemDetails "Storage unavailable, retry"
// @Router /crosses/{id}/close [post]
// @Security Bearer
func Close(manager *crosssvc.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid cross ID", err)
		}
		input, err := common.BindAndValidate[CloseCrossRequest](c)
		if input == nil {
			return err
		}
		receipt, err := manager.Close(c.UserContext(), commands.CloseCross{
			CrossID:           id,
			FinalBalanceLong:  input.FinalBalanceLong,
			FinalBalanceShort: input.FinalBalanceShort,
			Winner:            input.Winner,
			Fee:               input.Fee,
			Note:              input.Note,
			Operator:          middleware.Operator(c),
		})
		if err != nil {
			common.LogFailure("Failed to close cross %s", err, id)
			return common.ProblemDetailsJSON(c, "Failed to close cross", err)
		}
		message := "Cross closed"
		if receipt.Replayed {
			message = "Cross already closed"
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message, toReceiptDTO(receipt))
	}
}

// Receipt returns a Fiber handler with the settlement receipt of a closed cross.
// @Summary Settlement receipt
// @Tags crosses
// @Produce json
// @Param id path string true "Cross ID"
// @Success 200 {object} common.Response "Receipt"
// @Failure 409 {object} common.ProblemDetails "Cross not closed"
// @Router /crosses/{id}/receipt [get]
// @Security Bearer
func Receipt(manager *crosssvc.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid cross ID", err)
		}
		receipt, err := manager.Receipt(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch receipt", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Receipt fetched", toReceiptDTO(receipt))
	}
}

// Delete returns a Fiber handler that deletes a cross.
// @Summary Delete a cross
// @Description Refused with 409 and the blocking settlement rows until they are reversed.
// @Tags crosses
// @Produce json
// @Param id path string true "Cross ID"
// @Success 200 {object} common.Response "Cross deleted"
// @Failure 409 {object} common.ProblemDetails "Still referenced"
// @Router /crosses/{id} [delete]
// @Security Bearer
func Delete(manager *crosssvc.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid cross ID", err)
		}
		if err := manager.Delete(c.UserContext(), id, middleware.Operator(c)); err != nil {
			common.LogFailure("Failed to delete cross %s", err, id)
			return common.ProblemDetailsJSON(c, "Failed to delete cross", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Cross deleted", nil)
	}
}
