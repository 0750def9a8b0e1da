// Package memory is an in-process store implementing the repository
// contracts. It backs memory:// databases and the service tests.
//
// A Store serializes units of work on one mutex. Do snapshots the state
// before running fn and restores it when fn fails, so a failed unit leaves
// nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
)

// Phase says where an injected fault fires.
type Phase int

const (
	// BeforeCommit rolls the unit back and reports the store as unavailable.
	BeforeCommit Phase = iota
	// AfterCommit keeps the unit's writes but still reports the store as
	// unavailable, the way a dropped connection hides a successful commit.
	AfterCommit
)

type fault struct {
	phase Phase
	count int
}

type state struct {
	wallets map[string]*wallet.Wallet
	txs     map[uuid.UUID]*ledger.Transaction
	keys    map[string]uuid.UUID
	crosses map[uuid.UUID]*cross.Cross
}

func newState() *state {
	return &state{
		wallets: make(map[string]*wallet.Wallet),
		txs:     make(map[uuid.UUID]*ledger.Transaction),
		keys:    make(map[string]uuid.UUID),
		crosses: make(map[uuid.UUID]*cross.Cross),
	}
}

func (s *state) clone() *state {
	c := &state{
		wallets: make(map[string]*wallet.Wallet, len(s.wallets)),
		txs:     make(map[uuid.UUID]*ledger.Transaction, len(s.txs)),
		keys:    make(map[string]uuid.UUID, len(s.keys)),
		crosses: make(map[uuid.UUID]*cross.Cross, len(s.crosses)),
	}
	for k, w := range s.wallets {
		c.wallets[k] = copyWallet(w)
	}
	for k, tx := range s.txs {
		c.txs[k] = copyTransaction(tx)
	}
	for k, id := range s.keys {
		c.keys[k] = id
	}
	for k, cr := range s.crosses {
		c.crosses[k] = copyCross(cr)
	}
	return c
}

// Store holds the whole dataset in memory.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults []fault
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// InjectFault makes the next count units of work fail at phase with
// domain.ErrStorageUnavailable.
func (s *Store) InjectFault(phase Phase, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{phase: phase, count: count})
}

// ClearFaults drops any pending injected faults.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// nextFault pops one pending fault. Callers hold mu.
func (s *Store) nextFault() (Phase, bool) {
	for len(s.faults) > 0 {
		f := &s.faults[0]
		if f.count <= 0 {
			s.faults = s.faults[1:]
			continue
		}
		f.count--
		phase := f.phase
		if f.count == 0 {
			s.faults = s.faults[1:]
		}
		return phase, true
	}
	return 0, false
}

// UoW is the memory implementation of repository.UnitOfWork.
type UoW struct {
	store *Store
	inTx  bool
}

// NewUoW returns a unit of work over store.
func NewUoW(store *Store) *UoW {
	return &UoW{store: store}
}

// Do implements repository.UnitOfWork.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	if u.inTx {
		return fn(u)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, faulted := s.nextFault()
	snapshot := s.st.clone()
	err := fn(&UoW{store: s, inTx: true})
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			err = fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, cerr)
		}
	}
	if err == nil && faulted && phase == BeforeCommit {
		err = fmt.Errorf("%w: injected fault before commit", domain.ErrStorageUnavailable)
	}
	if err != nil {
		s.st = snapshot
		return err
	}
	if faulted && phase == AfterCommit {
		return fmt.Errorf("%w: injected fault after commit", domain.ErrStorageUnavailable)
	}
	return nil
}

// run executes op on the live state, locking the store unless the caller
// is already inside Do.
func (u *UoW) run(ctx context.Context, op func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if u.inTx {
		return op(u.store.st)
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return op(u.store.st)
}

// WalletRepository implements repository.UnitOfWork.
func (u *UoW) WalletRepository() (repository.WalletRepository, error) {
	return &walletRepository{uow: u}, nil
}

// TransactionRepository implements repository.UnitOfWork.
func (u *UoW) TransactionRepository() (repository.TransactionRepository, error) {
	return &transactionRepository{uow: u}, nil
}

// CrossRepository implements repository.UnitOfWork.
func (u *UoW) CrossRepository() (repository.CrossRepository, error) {
	return &crossRepository{uow: u}, nil
}

var _ repository.UnitOfWork = (*UoW)(nil)

// --- Copies ---

func copyWallet(w *wallet.Wallet) *wallet.Wallet {
	c := *w
	return &c
}

func copyTransaction(tx *ledger.Transaction) *ledger.Transaction {
	c := *tx
	if tx.Fee != nil {
		fee := *tx.Fee
		c.Fee = &fee
	}
	if tx.CrossID != nil {
		id := *tx.CrossID
		c.CrossID = &id
	}
	if tx.ReversalOf != nil {
		id := *tx.ReversalOf
		c.ReversalOf = &id
	}
	return &c
}

func copyCross(cr *cross.Cross) *cross.Cross {
	c := *cr
	if cr.ClosedAt != nil {
		at := *cr.ClosedAt
		c.ClosedAt = &at
	}
	if cr.Settlement != nil {
		s := *cr.Settlement
		c.Settlement = &s
	}
	if cr.Bonuses != nil {
		c.Bonuses = make([]cross.Bonus, len(cr.Bonuses))
		for i, b := range cr.Bonuses {
			if b.UnlockDate != nil {
				at := *b.UnlockDate
				b.UnlockDate = &at
			}
			c.Bonuses[i] = b
		}
	}
	return &c
}

func sortTransactions(txs []*ledger.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID.String() < txs[j].ID.String()
	})
}
