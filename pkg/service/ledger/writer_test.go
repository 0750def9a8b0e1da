package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	eventbusimpl "github.com/amirasaad/crossledger/infra/eventbus"
	"github.com/amirasaad/crossledger/infra/repository/memory"
	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/amirasaad/crossledger/pkg/repository"
	ledgersvc "github.com/amirasaad/crossledger/pkg/service/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *memory.Store
	bus    *eventbusimpl.MemoryEventBus
	writer *ledgersvc.Writer
	calc   *ledgersvc.Calculator
	deps   config.Deps
}

func newFixture(t *testing.T, wallets ...string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	bus := eventbusimpl.NewWithMemory(logger)
	deps := config.Deps{
		Uow:      memory.NewUoW(store),
		EventBus: bus,
		Logger:   logger,
	}
	f := &fixture{
		store:  store,
		bus:    bus,
		writer: ledgersvc.NewWriter(deps),
		calc:   ledgersvc.NewCalculator(deps),
		deps:   deps,
	}
	for _, name := range wallets {
		f.addWallet(t, name, money.USDT)
	}
	return f
}

func (f *fixture) addWallet(t *testing.T, name string, code money.Code) {
	t.Helper()
	w, err := wallet.New().WithName(name).WithKind(wallet.KindClient).WithCurrency(code).Build()
	require.NoError(t, err)
	repo, err := f.deps.Uow.WalletRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), w))
}

func (f *fixture) balance(t *testing.T, name string) string {
	t.Helper()
	b, err := f.calc.BalanceOf(context.Background(), name)
	require.NoError(t, err)
	return b.Amount().String()
}

func (f *fixture) count(t *testing.T, name string) int {
	t.Helper()
	rows, err := f.calc.Transactions(context.Background(), name, ledgersvc.TxFilter{})
	require.NoError(t, err)
	return len(rows)
}

func depositDraft(to, amount, key string) ledger.Draft {
	return ledger.Draft{
		Sender:         wallet.SystemName,
		Recipient:      to,
		Amount:         decimal.RequireFromString(amount),
		Currency:       money.USDT,
		Kind:           ledger.KindDeposit,
		Operator:       "tester",
		IdempotencyKey: key,
	}
}

func transferDraft(from, to, amount string) ledger.Draft {
	return ledger.Draft{
		Sender:    from,
		Recipient: to,
		Amount:    decimal.RequireFromString(amount),
		Currency:  money.USDT,
		Kind:      ledger.KindTransfer,
		Operator:  "tester",
	}
}

func TestAppend_DepositAndTransfer(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	ctx := context.Background()

	_, err := f.writer.Append(ctx, depositDraft("Alice", "100", ""))
	require.NoError(t, err)
	tx, err := f.writer.Append(ctx, transferDraft("Alice", "Bob", "40.25"))
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)

	assert.Equal(t, "59.75", f.balance(t, "Alice"))
	assert.Equal(t, "40.25", f.balance(t, "Bob"))

	published := f.bus.Published()
	require.Len(t, published, 2)
	appended, ok := published[1].(*events.TransactionAppended)
	require.True(t, ok)
	assert.Equal(t, tx.ID, appended.ID)
	assert.Equal(t, "40.250000", appended.Amount)
}

func TestAppend_Rejections(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	f.addWallet(t, "Euro", money.EUR)
	ctx := context.Background()

	tests := []struct {
		name    string
		draft   ledger.Draft
		wantErr error
	}{
		{"zero amount", depositDraft("Alice", "0", ""), domain.ErrInvalidAmount},
		{"negative amount", depositDraft("Alice", "-5", ""), domain.ErrInvalidAmount},
		{"too many decimals", depositDraft("Alice", "1.0000001", ""), domain.ErrInvalidAmount},
		{"self transfer", transferDraft("Alice", "Alice", "1"), domain.ErrSelfTransfer},
		{"unknown recipient", transferDraft("Alice", "Carol", "1"), domain.ErrUnknownWallet},
		{"currency mismatch", transferDraft("Alice", "Euro", "1"), domain.ErrCurrencyMismatch},
		{"unknown kind", ledger.Draft{
			Sender: "Alice", Recipient: "Bob", Amount: decimal.NewFromInt(1),
			Currency: money.USDT, Kind: "gift",
		}, domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.writer.Append(ctx, tc.draft)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Zero(t, f.count(t, "Alice"))
	assert.Empty(t, f.bus.Published())
}

func TestAppend_DeactivatedWallet(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	repo, err := f.deps.Uow.WalletRepository()
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, "Alice", false, time.Now().UTC()))

	_, err = f.writer.Append(ctx, depositDraft("Alice", "1", ""))
	assert.ErrorIs(t, err, domain.ErrUnknownWallet)
}

func TestAppend_CorrectionBetweenWalletsKeepsCurrency(t *testing.T) {
	f := newFixture(t, "Alice")
	f.addWallet(t, "Euro", money.EUR)
	ctx := context.Background()

	_, err := f.writer.Append(ctx, ledger.Draft{
		Sender:    "Alice",
		Recipient: "Euro",
		Amount:    decimal.NewFromInt(3),
		Currency:  money.EUR,
		Kind:      ledger.KindCorrection,
		Note:      "manual fix",
	})
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
	assert.Zero(t, f.count(t, "Alice"))
	assert.Zero(t, f.count(t, "Euro"))

	// System may still correct into a wallet in that wallet's currency
	_, err = f.writer.Append(ctx, ledger.Draft{
		Sender:    wallet.SystemName,
		Recipient: "Euro",
		Amount:    decimal.NewFromInt(3),
		Currency:  money.EUR,
		Kind:      ledger.KindCorrection,
		Note:      "manual fix",
	})
	require.NoError(t, err)
	assert.Equal(t, "3", f.balance(t, "Euro"))
}

func TestBalanceMatchesSignedSumOfCompletedRows(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	f.addWallet(t, "Euro", money.EUR)
	ctx := context.Background()

	drafts := []ledger.Draft{
		depositDraft("Alice", "100", ""),
		transferDraft("Alice", "Bob", "12.5"),
		{
			Sender: "Bob", Recipient: wallet.SystemName, Amount: decimal.RequireFromString("0.25"),
			Currency: money.USDT, Kind: ledger.KindCorrection, Note: "fee fix",
		},
		{
			Sender: wallet.SystemName, Recipient: "Euro", Amount: decimal.RequireFromString("7.10"),
			Currency: money.EUR, Kind: ledger.KindDeposit, Operator: "tester",
		},
		{
			Sender: "Alice", Recipient: "Euro", Amount: decimal.NewFromInt(1),
			Currency: money.EUR, Kind: ledger.KindCorrection, Note: "wrong book",
		},
	}
	for _, d := range drafts {
		_, _ = f.writer.Append(ctx, d)
	}

	sheet, err := f.calc.Balances(ctx, repository.WalletFilter{})
	require.NoError(t, err)
	byName := make(map[string]money.Money, len(sheet))
	for _, b := range sheet {
		byName[b.Wallet] = b.Balance
	}

	for _, name := range []string{"Alice", "Bob", "Euro"} {
		rows, err := f.calc.Transactions(ctx, name, ledgersvc.TxFilter{Status: ledger.StatusCompleted})
		require.NoError(t, err)
		sum := decimal.Zero
		for _, tx := range rows {
			sum = sum.Add(tx.Contribution(name))
		}
		got, err := f.calc.BalanceOf(ctx, name)
		require.NoError(t, err)
		assert.True(t, sum.Equal(got.Amount()), "%s: balance %s, rows sum %s", name, got.Amount(), sum)
		assert.True(t, sum.Equal(byName[name].Amount()), "%s: sheet %s, rows sum %s", name, byName[name].Amount(), sum)
	}
	assert.Equal(t, "87.5", f.balance(t, "Alice"))
	assert.Equal(t, "12.25", f.balance(t, "Bob"))
	assert.Equal(t, "7.1", f.balance(t, "Euro"))
}

func TestAppend_IdempotentReplay(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()

	first, err := f.writer.Append(ctx, depositDraft("Alice", "10", "dep-1"))
	require.NoError(t, err)
	second, err := f.writer.Append(ctx, depositDraft("Alice", "10.00", "dep-1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "10", f.balance(t, "Alice"))
	assert.Len(t, f.bus.Published(), 1)
}

func TestAppend_IdempotencyConflict(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()

	_, err := f.writer.Append(ctx, depositDraft("Alice", "10", "dep-1"))
	require.NoError(t, err)
	_, err = f.writer.Append(ctx, depositDraft("Alice", "11", "dep-1"))
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	assert.Equal(t, "10", f.balance(t, "Alice"))
}

func TestAppend_RetryAfterFault(t *testing.T) {
	for _, phase := range []memory.Phase{memory.BeforeCommit, memory.AfterCommit} {
		f := newFixture(t, "Alice")
		ctx := context.Background()
		f.store.InjectFault(phase, 1)

		_, err := f.writer.Append(ctx, depositDraft("Alice", "25", "retry-me"))
		require.ErrorIs(t, err, domain.ErrStorageUnavailable)
		assert.False(t, ledgersvc.IsBusinessError(err))

		tx, err := f.writer.Append(ctx, depositDraft("Alice", "25", "retry-me"))
		require.NoError(t, err)
		assert.Equal(t, "retry-me", tx.IdempotencyKey)
		assert.Equal(t, 1, f.count(t, "Alice"), "phase %d", phase)
		assert.Equal(t, "25", f.balance(t, "Alice"))
	}
}

func TestAppend_ConcurrentSameKey(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()

	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := f.writer.Append(ctx, depositDraft("Alice", "5", "same"))
			if assert.NoError(t, err) {
				ids <- tx.ID.String()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, f.count(t, "Alice"))
	assert.Equal(t, "5", f.balance(t, "Alice"))
}

func TestAppend_ConcurrentTransfersKeepTotals(t *testing.T) {
	f := newFixture(t, "Alice", "Bob")
	ctx := context.Background()
	_, err := f.writer.Append(ctx, depositDraft("Alice", "1000", ""))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "Alice", "Bob"
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := f.writer.Append(ctx, transferDraft(from, to, "1.5"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	alice, err := f.calc.BalanceOf(ctx, "Alice")
	require.NoError(t, err)
	bob, err := f.calc.BalanceOf(ctx, "Bob")
	require.NoError(t, err)
	total, err := alice.Add(bob)
	require.NoError(t, err)
	assert.Equal(t, "1000", total.Amount().String())
	// 25 transfers each way
	assert.Equal(t, "1000", alice.Amount().String())
}

func TestReverse(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	dep, err := f.writer.Append(ctx, depositDraft("Alice", "100", ""))
	require.NoError(t, err)

	rev, err := f.writer.Reverse(ctx, dep.ID, "tester", "", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.KindCorrection, rev.Kind)
	assert.Equal(t, "Alice", rev.Sender)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, dep.ID, *rev.ReversalOf)
	assert.Equal(t, "0", f.balance(t, "Alice"))

	again, err := f.writer.Reverse(ctx, dep.ID, "tester", "", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, rev.ID, again.ID)

	_, err = f.writer.Reverse(ctx, dep.ID, "tester", "", "rev-2")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestReverse_PendingRow(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	d := depositDraft("Alice", "100", "")
	d.Pending = true
	dep, err := f.writer.Append(ctx, d)
	require.NoError(t, err)

	_, err = f.writer.Reverse(ctx, dep.ID, "tester", "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCorrect(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	dep, err := f.writer.Append(ctx, depositDraft("Alice", "100", ""))
	require.NoError(t, err)

	fixed := depositDraft("Alice", "90", "")
	rev, entry, err := f.writer.Correct(ctx, dep.ID, fixed, "tester", "fix-1")
	require.NoError(t, err)
	assert.Equal(t, "90", f.balance(t, "Alice"))
	assert.Equal(t, "fix-1", rev.IdempotencyKey)
	assert.Equal(t, "fix-1:entry", entry.IdempotencyKey)

	rev2, entry2, err := f.writer.Correct(ctx, dep.ID, fixed, "tester", "fix-1")
	require.NoError(t, err)
	assert.Equal(t, rev.ID, rev2.ID)
	assert.Equal(t, entry.ID, entry2.ID)
	assert.Equal(t, 3, f.count(t, "Alice"))
}

func TestCorrect_RollsBackWhenEntryInvalid(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	dep, err := f.writer.Append(ctx, depositDraft("Alice", "100", ""))
	require.NoError(t, err)

	bad := transferDraft("Alice", "Nobody", "90")
	_, _, err = f.writer.Correct(ctx, dep.ID, bad, "tester", "")
	assert.ErrorIs(t, err, domain.ErrUnknownWallet)
	assert.Equal(t, "100", f.balance(t, "Alice"))
	assert.Equal(t, 1, f.count(t, "Alice"))
}

func TestSettle(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	d := depositDraft("Alice", "100", "")
	d.Pending = true
	dep, err := f.writer.Append(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "0", f.balance(t, "Alice"))

	done, err := f.writer.Complete(ctx, dep.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, done.Status)
	assert.Equal(t, "100", f.balance(t, "Alice"))

	_, err = f.writer.Fail(ctx, dep.ID, "tester")
	assert.ErrorIs(t, err, domain.ErrImmutableTransaction)
	err = f.writer.Purge(ctx, dep.ID, "tester")
	assert.ErrorIs(t, err, domain.ErrImmutableTransaction)
}

func TestSettle_FinalStatuses(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	d := depositDraft("Alice", "100", "")
	d.Pending = true
	dep, err := f.writer.Append(ctx, d)
	require.NoError(t, err)

	_, err = f.writer.Cancel(ctx, dep.ID, "tester")
	require.NoError(t, err)
	_, err = f.writer.Complete(ctx, dep.ID, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "0", f.balance(t, "Alice"))

	var changed int
	for _, e := range f.bus.Published() {
		if _, ok := e.(*events.TransactionStatusChanged); ok {
			changed++
		}
	}
	assert.Equal(t, 1, changed)
}

func TestPurge(t *testing.T) {
	f := newFixture(t, "Alice")
	ctx := context.Background()
	d := depositDraft("Alice", "100", "purge-me")
	d.Pending = true
	dep, err := f.writer.Append(ctx, d)
	require.NoError(t, err)
	_, err = f.writer.Fail(ctx, dep.ID, "tester")
	require.NoError(t, err)

	require.NoError(t, f.writer.Purge(ctx, dep.ID, "tester"))
	_, err = f.calc.Get(ctx, dep.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.count(t, "Alice"))
}
