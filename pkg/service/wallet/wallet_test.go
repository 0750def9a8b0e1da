package wallet_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	eventbusimpl "github.com/amirasaad/crossledger/infra/eventbus"
	"github.com/amirasaad/crossledger/infra/repository/memory"
	"github.com/amirasaad/crossledger/pkg/commands"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	domainwallet "github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/amirasaad/crossledger/pkg/service/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*wallet.Service, *ledgersvc.Writer, *eventbusimpl.MemoryEventBus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbusimpl.NewWithMemory(logger)
	deps := config.Deps{
		Uow:      memory.NewUoW(memory.NewStore()),
		EventBus: bus,
		Logger:   logger,
		Config:   &config.App{Ledger: &config.Ledger{DefaultCurrency: "USDT"}},
	}
	return wallet.New(deps), ledgersvc.NewWriter(deps), bus
}

func create(t *testing.T, svc *wallet.Service, name, kind string) *domainwallet.Wallet {
	t.Helper()
	w, err := svc.Create(context.Background(), commands.CreateWallet{
		Name:     name,
		Kind:     kind,
		Operator: "tester",
	})
	require.NoError(t, err)
	return w
}

func TestCreate(t *testing.T) {
	svc, _, bus := newService(t)

	w, err := svc.Create(context.Background(), commands.CreateWallet{
		Name:     "  Alice ",
		Owner:    "Alice Rossi",
		Kind:     "Client",
		Note:     "referred by Bob",
		Operator: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", w.Name)
	assert.Equal(t, domainwallet.KindClient, w.Kind)
	assert.Equal(t, money.USDT, w.Currency)
	assert.True(t, w.Active)

	got, err := svc.Get(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Rossi", got.Owner)

	published := bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeWalletCreated.String(), published[0].Type())
}

func TestCreate_Rejections(t *testing.T) {
	svc, _, _ := newService(t)
	create(t, svc, "Alice", "client")

	tests := []struct {
		name    string
		cmd     commands.CreateWallet
		wantErr error
	}{
		{"duplicate", commands.CreateWallet{Name: "Alice", Kind: "client"}, domain.ErrDuplicateName},
		{"reserved", commands.CreateWallet{Name: "System", Kind: "team"}, domain.ErrDuplicateName},
		{"empty name", commands.CreateWallet{Name: "  ", Kind: "client"}, domain.ErrValidation},
		{"bad kind", commands.CreateWallet{Name: "Bob", Kind: "broker"}, domain.ErrValidation},
		{"bad currency", commands.CreateWallet{Name: "Bob", Kind: "client", Currency: "doge!"}, domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.cmd)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreate_NameOfDeactivatedWallet(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	create(t, svc, "Alice", "client")
	_, err := svc.Deactivate(ctx, "Alice", "tester")
	require.NoError(t, err)

	_, err = svc.Create(ctx, commands.CreateWallet{Name: "Alice", Kind: "client", Operator: "tester"})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	w, err := svc.Get(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, w.Active)
}

func TestList_OrderedAndFiltered(t *testing.T) {
	svc, _, _ := newService(t)
	create(t, svc, "Carol", "client")
	create(t, svc, "Team", "team")
	create(t, svc, "Alice", "client")
	_, err := svc.Deactivate(context.Background(), "Carol", "tester")
	require.NoError(t, err)

	all, err := svc.List(context.Background(), repository.WalletFilter{})
	require.NoError(t, err)
	var names []string
	for _, w := range all {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"Alice", "Carol", "Team"}, names)

	kind := domainwallet.KindClient
	active := true
	clients, err := svc.List(context.Background(), repository.WalletFilter{Kind: &kind, Active: &active})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Alice", clients[0].Name)
}

func TestDeactivateReactivate(t *testing.T) {
	svc, writer, bus := newService(t)
	ctx := context.Background()
	create(t, svc, "Alice", "client")

	w, err := svc.Deactivate(ctx, "Alice", "tester")
	require.NoError(t, err)
	assert.False(t, w.Active)

	// a second deactivate is a no-op
	_, err = svc.Deactivate(ctx, "Alice", "tester")
	require.NoError(t, err)

	_, err = writer.Append(ctx, ledger.Draft{
		Sender:    domainwallet.SystemName,
		Recipient: "Alice",
		Amount:    decimal.NewFromInt(1),
		Currency:  money.USDT,
		Kind:      ledger.KindDeposit,
	})
	assert.ErrorIs(t, err, domain.ErrUnknownWallet)

	w, err = svc.Reactivate(ctx, "Alice", "tester")
	require.NoError(t, err)
	assert.True(t, w.Active)

	var kinds []string
	for _, e := range bus.Published() {
		kinds = append(kinds, e.Type())
	}
	assert.Equal(t, []string{
		events.EventTypeWalletCreated.String(),
		events.EventTypeWalletDeactivated.String(),
		events.EventTypeWalletReactivated.String(),
	}, kinds)

	_, err = svc.Deactivate(ctx, "Ghost", "tester")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_GuardedByTransactions(t *testing.T) {
	svc, writer, _ := newService(t)
	ctx := context.Background()
	create(t, svc, "Alice", "client")
	tx, err := writer.Append(ctx, ledger.Draft{
		Sender:    domainwallet.SystemName,
		Recipient: "Alice",
		Amount:    decimal.NewFromInt(5),
		Currency:  money.USDT,
		Kind:      ledger.KindDeposit,
	})
	require.NoError(t, err)

	// soft deactivation is always allowed
	_, err = svc.Deactivate(ctx, "Alice", "tester")
	require.NoError(t, err)

	err = svc.Delete(ctx, "Alice", "tester")
	require.ErrorIs(t, err, domain.ErrHasOpenReferences)
	var refErr *domain.ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, []string{"transaction " + tx.ID.String()}, refErr.Blocking)

	_, err = svc.Get(ctx, "Alice")
	assert.NoError(t, err)
}

func TestDelete_Unreferenced(t *testing.T) {
	svc, _, bus := newService(t)
	ctx := context.Background()
	create(t, svc, "Alice", "client")

	require.NoError(t, svc.Delete(ctx, "Alice", "tester"))
	_, err := svc.Get(ctx, "Alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	published := bus.Published()
	assert.Equal(t, events.EventTypeWalletDeleted.String(), published[len(published)-1].Type())

	err = svc.Delete(ctx, "Alice", "tester")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
