package app

import (
	"github.com/amirasaad/crossledger/infra/metrics"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/service/cross"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/amirasaad/crossledger/pkg/service/wallet"
)

// App wires the services over one set of dependencies.
type App struct {
	Deps    config.Deps
	Config  *config.App
	Metrics *metrics.Metrics

	WalletService *wallet.Service
	Writer        *ledgersvc.Writer
	Calculator    *ledgersvc.Calculator
	CrossManager  *cross.Manager
}

// New builds the services and subscribes the audit and metrics handlers.
// A nil m gets a fresh metrics registry.
func New(deps config.Deps, m *metrics.Metrics) *App {
	if m == nil {
		m = metrics.New()
	}
	if deps.Config == nil {
		deps.Config = &config.App{}
	}
	app := &App{
		Deps:    deps,
		Config:  deps.Config,
		Metrics: m,
	}
	app.setupEventBus()

	app.WalletService = wallet.New(deps)
	app.Writer = ledgersvc.NewWriter(deps)
	app.Calculator = ledgersvc.NewCalculator(deps)
	app.CrossManager = cross.NewManager(deps, app.Writer)
	return app
}
