package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceOf_UnknownWallet(t *testing.T) {
	f := newFixture(t)
	_, err := f.calc.BalanceOf(context.Background(), "Ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownWallet)
}

func TestBalanceOf_EmptyWalletIsZero(t *testing.T) {
	f := newFixture(t, "Alice")
	b, err := f.calc.BalanceOf(context.Background(), "Alice")
	require.NoError(t, err)
	assert.True(t, b.IsZero())
	assert.Equal(t, money.USDT, b.Currency())
	assert.Equal(t, "0.000000 USDT", b.String())
}

func TestBalanceOf_System(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	_, err := f.writer.Append(ctx, depositDraft("Alice", "70", ""))
	require.NoError(t, err)

	assert.Equal(t, "-70", f.balance(t, wallet.SystemName))
}

func TestBalanceOf_DeactivatedWalletKeepsBalance(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	_, err := f.writer.Append(ctx, depositDraft("Alice", "12.5", ""))
	require.NoError(t, err)

	repo, err := f.deps.Uow.WalletRepository()
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, "Alice", false, time.Now().UTC()))

	assert.Equal(t, "12.5", f.balance(t, "Alice"))
}

func TestBalances(t *testing.T) {
	f := newFixture(t, "Carol", "Alice", "Bob")
	ctx := context.Background()
	_, err := f.writer.Append(ctx, depositDraft("Alice", "100", ""))
	require.NoError(t, err)
	_, err = f.writer.Append(ctx, transferDraft("Alice", "Carol", "30"))
	require.NoError(t, err)
	pending := transferDraft("Alice", "Bob", "50")
	pending.Pending = true
	_, err = f.writer.Append(ctx, pending)
	require.NoError(t, err)

	sheet, err := f.calc.Balances(ctx, repository.WalletFilter{})
	require.NoError(t, err)
	require.Len(t, sheet, 3)

	got := map[string]string{}
	var names []string
	for _, b := range sheet {
		names = append(names, b.Wallet)
		got[b.Wallet] = b.Balance.Amount().String()
		assert.True(t, b.Active)
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names)
	assert.Equal(t, map[string]string{"Alice": "70", "Bob": "0", "Carol": "30"}, got)

	// the sheet agrees with the per wallet replay
	for _, b := range sheet {
		assert.Equal(t, f.balance(t, b.Wallet), b.Balance.Amount().String())
	}
}

func TestBalances_Filtered(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	ctx := context.Background()
	repo, err := f.deps.Uow.WalletRepository()
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, "Bob", false, time.Now().UTC()))

	active := true
	sheet, err := f.calc.Balances(ctx, repository.WalletFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, sheet, 1)
	assert.Equal(t, "Alice", sheet[0].Wallet)
}

func TestTransactions_Filters(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	ctx := context.Background()
	_, err := f.writer.Append(ctx, depositDraft("Alice", "100", ""))
	require.NoError(t, err)
	_, err = f.writer.Append(ctx, transferDraft("Alice", "Bob", "10"))
	require.NoError(t, err)
	_, err = f.writer.Append(ctx, transferDraft("Alice", "Bob", "20"))
	require.NoError(t, err)

	all, err := f.calc.Transactions(ctx, "Alice", ledgersvc.TxFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.KindDeposit, all[0].Kind)

	transfers, err := f.calc.Transactions(ctx, "Bob", ledgersvc.TxFilter{Kind: ledger.KindTransfer, Limit: 1})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "10", transfers[0].Amount.String())

	_, err = f.calc.Transactions(ctx, "Ghost", ledgersvc.TxFilter{})
	assert.ErrorIs(t, err, domain.ErrUnknownWallet)
}
