package config

import (
	"log/slog"

	"github.com/amirasaad/crossledger/pkg/eventbus"
	"github.com/amirasaad/crossledger/pkg/repository"
)

// Deps holds all infrastructure dependencies for building the app and services.
type Deps struct {
	Uow      repository.UnitOfWork
	EventBus eventbus.Bus
	Logger   *slog.Logger
	Config   *App
}
