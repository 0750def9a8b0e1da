// Package wallet serves the wallet registry and the derived balances.
package wallet

import (
	"errors"
	"strings"

	"github.com/amirasaad/crossledger/pkg/commands"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	domainwallet "github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/middleware"
	"github.com/amirasaad/crossledger/pkg/repository"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	walletsvc "github.com/amirasaad/crossledger/pkg/service/wallet"
	"github.com/amirasaad/crossledger/webapi/common"
	"github.com/amirasaad/crossledger/webapi/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Routes registers the wallet and balance endpoints behind auth.
//
// Routes:
//   - POST   /wallets                       : Register a wallet.
//   - GET    /wallets                       : List wallets (kind, active filters).
//   - GET    /wallets/:name                 : Fetch one wallet.
//   - POST   /wallets/:name/deactivate      : Soft-deactivate.
//   - POST   /wallets/:name/reactivate      : Reactivate.
//   - DELETE /wallets/:name                 : Hard delete, refused while referenced.
//   - GET    /wallets/:name/balance         : Derived balance.
//   - GET    /wallets/:name/transactions    : Ledger rows naming the wallet.
//   - GET    /balances                      : Balance sheet.
func Routes(
	app fiber.Router,
	walletSvc *walletsvc.Service,
	calc *ledgersvc.Calculator,
	auth fiber.Handler,
) {
	app.Post("/wallets", auth, CreateWallet(walletSvc))
	app.Get("/wallets", auth, ListWallets(walletSvc))
	app.Get("/wallets/:name", auth, GetWallet(walletSvc))
	app.Post("/wallets/:name/deactivate", auth, SetActive(walletSvc, false))
	app.Post("/wallets/:name/reactivate", auth, SetActive(walletSvc, true))
	app.Delete("/wallets/:name", auth, DeleteWallet(walletSvc))
	app.Get("/wallets/:name/balance", auth, GetBalance(calc))
	app.Get("/wallets/:name/transactions", auth, ListTransactions(calc))
	app.Get("/balances", auth, ListBalances(calc))
}

// CreateWallet returns a Fiber handler that registers a new wallet.
// @Summary Register a wallet
// @Description Creates a named wallet. Names are unique and System is reserved.
// @Tags wallets
// @Accept json
// @Produce json
// @Param request body CreateWalletRequest true "Wallet details"
// @Success 201 {object} common.Response "Wallet created"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 409 {object} common.ProblemDetails "Name already taken"
// @Router /wallets [post]
// @Security Bearer
func CreateWallet(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[CreateWalletRequest](c)
		if input == nil {
			return err // error response already written
		}
		w, err := walletSvc.Create(c.UserContext(), commands.CreateWallet{
			Name:     input.Name,
			Owner:    input.Owner,
			Kind:     input.Kind,
			Currency: input.Currency,
			Note:     input.Note,
			Operator: middleware.Operator(c),
		})
		if err != nil {
			common.LogFailure("Failed to create wallet", err)
			return common.ProblemDetailsJSON(c, "Failed to create wallet", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Wallet created", toWalletDTO(w))
	}
}

// ListWallets returns a Fiber handler listing wallets ordered by name.
// @Summary List wallets
// @Tags wallets
// @Produce json
// @Param kind query string false "team, collaborator or client"
// @Param active query bool false "Only active or only inactive wallets"
// @Success 200 {object} common.Response "Wallets"
// @Router /wallets [get]
// @Security Bearer
func ListWallets(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := walletFilter(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid filter", err)
		}
		wallets, err := walletSvc.List(c.UserContext(), filter)
		if err != nil {
			log.Errorf("Failed to list wallets: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to list wallets", err)
		}
		dtos := make([]WalletDTO, 0, len(wallets))
		for _, w := range wallets {
			dtos = append(dtos, toWalletDTO(w))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Wallets fetched", dtos)
	}
}

// GetWallet returns a Fiber handler fetching one wallet by name.
// @Summary Fetch a wallet
// @Tags wallets
// @Produce json
// @Param name path string true "Wallet name"
// @Success 200 {object} common.Response "Wallet"
// @Failure 404 {object} common.ProblemDetails "Not found"
// @Router /wallets/{name} [get]
// @Security Bearer
func GetWallet(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		w, err := walletSvc.Get(c.UserContext(), c.Params("name"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to fetch wallet", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Wallet fetched", toWalletDTO(w))
	}
}

// SetActive returns a Fiber handler that deactivates or reactivates a wallet.
// Repeating the current state is not an error.
// @Summary Deactivate or reactivate a wallet
// @Tags wallets
// @Produce json
// @Param name path string true "Wallet name"
// @Success 200 {object} common.Response "Wallet"
// @Failure 404 {object} common.ProblemDetails "Not found"
// @Router /wallets/{name}/deactivate [post]
// @Router /wallets/{name}/reactivate [post]
// @Security Bearer
func SetActive(walletSvc *walletsvc.Service, active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		change := walletSvc.Deactivate
		message := "Wallet deactivated"
		if active {
			change = walletSvc.Reactivate
			message = "Wallet reactivated"
		}
		w, err := change(c.UserContext(), c.Params("name"), middleware.Operator(c))
		if err != nil {
			common.LogFailure("Failed to change wallet status", err)
			return common.ProblemDetailsJSON(c, "Failed to change wallet status", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, message, toWalletDTO(w))
	}
}

// DeleteWallet returns a Fiber handler that hard-deletes an unreferenced wallet.
// @Summary Delete a wallet
// @Description Refused with 409 and the blocking references while any transaction or cross names the wallet.
// @Tags wallets
// @Produce json
// @Param name path string true "Wallet name"
// @Success 200 {object} common.Response "Wallet deleted"
// @Failure 409 {object} common.ProblemDetails "Still referenced"
// @Router /wallets/{name} [delete]
// @Security Bearer
func DeleteWallet(walletSvc *walletsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := walletSvc.Delete(c.UserContext(), name, middleware.Operator(c)); err != nil {
			common.LogFailure("Failed to delete wallet %s", err, name)
			return common.ProblemDetailsJSON(c, "Failed to delete wallet", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Wallet deleted", nil)
	}
}

// GetBalance returns a Fiber handler with the derived balance of one wallet.
// @Summary Wallet balance
// @Tags balances
// @Produce json
// @Param name path string true "Wallet name"
// @Success 200 {object} common.Response "Balance"
// @Failure 404 {object} common.ProblemDetails "Unknown wallet"
// @Router /wallets/{name}/balance [get]
// @Security Bearer
func GetBalance(calc *ledgersvc.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		b, err := calc.BalanceOf(c.UserContext(), name)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownWallet) {
				return common.ProblemDetailsJSON(c, "Unknown wallet", err, fiber.StatusNotFound)
			}
			return common.ProblemDetailsJSON(c, "Failed to compute balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance fetched", BalanceDTO{
			Wallet:   name,
			Active:   true,
			Balance:  b.StringAmount(),
			Currency: string(b.Currency()),
		})
	}
}

// ListTransactions returns a Fiber handler with the ledger rows naming a wallet.
// @Summary Wallet transactions
// @Tags transactions
// @Produce json
// @Param name path string true "Wallet name"
// @Param status query string false "pending, completed, failed or cancelled"
// @Param kind query string false "Transaction kind"
// @Param since query string false "RFC 3339 lower bound"
// @Param until query string false "RFC 3339 upper bound"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} common.Response "Transactions"
// @Router /wallets/{name}/transactions [get]
// @Security Bearer
func ListTransactions(calc *ledgersvc.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		since, err := common.QueryTime(c, "since")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid filter", err)
		}
		until, err := common.QueryTime(c, "until")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid filter", err)
		}
		filter := ledgersvc.TxFilter{
			Status: ledger.Status(c.Query("status")),
			Kind:   ledger.Kind(c.Query("kind")),
			Since:  since,
			Until:  until,
			Limit:  c.QueryInt("limit", 0),
		}
		if filter.Status != "" && !filter.Status.IsValid() {
			return common.ProblemDetailsJSON(c, "Invalid filter", domain.ErrValidation, "unknown status", fiber.StatusBadRequest)
		}
		if filter.Kind != "" && !filter.Kind.IsValid() {
			return common.ProblemDetailsJSON(c, "Invalid filter", domain.ErrValidation, "unknown kind", fiber.StatusBadRequest)
		}
		txs, err := calc.Transactions(c.UserContext(), c.Params("name"), filter)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", transaction.ToDTOs(txs))
	}
}

// ListBalances returns a Fiber handler with the balance sheet of every wallet.
// @Summary Balance sheet
// @Tags balances
// @Produce json
// @Param kind query string false "team, collaborator or client"
// @Param active query bool false "Only active or only inactive wallets"
// @Success 200 {object} common.Response "Balances"
// @Router /balances [get]
// @Security Bearer
func ListBalances(calc *ledgersvc.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := walletFilter(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid filter", err)
		}
		balances, err := calc.Balances(c.UserContext(), filter)
		if err != nil {
			log.Errorf("Failed to compute balances: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to compute balances", err)
		}
		dtos := make([]BalanceDTO, 0, len(balances))
		for _, b := range balances {
			dtos = append(dtos, toBalanceDTO(b))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balances fetched", dtos)
	}
}

func walletFilter(c *fiber.Ctx) (repository.WalletFilter, error) {
	var filter repository.WalletFilter
	if raw := c.Query("kind"); raw != "" {
		kind := domainwallet.Kind(strings.ToLower(raw))
		if !kind.IsValid() {
			return filter, fiber.NewError(fiber.StatusBadRequest, "unknown wallet kind "+raw)
		}
		filter.Kind = &kind
	}
	active, err := common.QueryBool(c, "active")
	if err != nil {
		return filter, err
	}
	filter.Active = active
	return filter, nil
}
