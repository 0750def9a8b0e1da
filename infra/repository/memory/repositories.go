package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/amirasaad/crossledger/pkg/domain/ledger"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/google/uuid"
)

type walletRepository struct {
	uow *UoW
}

func (r *walletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	return r.uow.run(ctx, func(st *state) error {
		if _, ok := st.wallets[w.Name]; ok {
			return fmt.Errorf("%w: wallet %q", domain.ErrAlreadyExists, w.Name)
		}
		st.wallets[w.Name] = copyWallet(w)
		return nil
	})
}

func (r *walletRepository) Get(ctx context.Context, name string) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.uow.run(ctx, func(st *state) error {
		w, ok := st.wallets[name]
		if !ok {
			return fmt.Errorf("%w: wallet %q", domain.ErrNotFound, name)
		}
		out = copyWallet(w)
		return nil
	})
	return out, err
}

func (r *walletRepository) List(ctx context.Context, filter repository.WalletFilter) ([]*wallet.Wallet, error) {
	var out []*wallet.Wallet
	err := r.uow.run(ctx, func(st *state) error {
		for _, w := range st.wallets {
			if filter.Kind != nil && w.Kind != *filter.Kind {
				continue
			}
			if filter.Active != nil && w.Active != *filter.Active {
				continue
			}
			out = append(out, copyWallet(w))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *walletRepository) SetActive(ctx context.Context, name string, active bool, at time.Time) error {
	return r.uow.run(ctx, func(st *state) error {
		w, ok := st.wallets[name]
		if !ok {
			return fmt.Errorf("%w: wallet %q", domain.ErrNotFound, name)
		}
		w.Active = active
		w.UpdatedAt = at
		return nil
	})
}

func (r *walletRepository) Delete(ctx context.Context, name string) error {
	return r.uow.run(ctx, func(st *state) error {
		if _, ok := st.wallets[name]; !ok {
			return fmt.Errorf("%w: wallet %q", domain.ErrNotFound, name)
		}
		delete(st.wallets, name)
		return nil
	})
}

type transactionRepository struct {
	uow *UoW
}

func (r *transactionRepository) Append(ctx context.Context, tx *ledger.Transaction) error {
	return r.uow.run(ctx, func(st *state) error {
		if _, ok := st.txs[tx.ID]; ok {
			return fmt.Errorf("%w: transaction %s", domain.ErrAlreadyExists, tx.ID)
		}
		if tx.IdempotencyKey != "" {
			if _, ok := st.keys[tx.IdempotencyKey]; ok {
				return fmt.Errorf("%w: idempotency key %q", domain.ErrAlreadyExists, tx.IdempotencyKey)
			}
			st.keys[tx.IdempotencyKey] = tx.ID
		}
		st.txs[tx.ID] = copyTransaction(tx)
		return nil
	})
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.uow.run(ctx, func(st *state) error {
		tx, ok := st.txs[id]
		if !ok {
			return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
		}
		out = copyTransaction(tx)
		return nil
	})
	return out, err
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.uow.run(ctx, func(st *state) error {
		id, ok := st.keys[key]
		if !ok {
			return fmt.Errorf("%w: idempotency key %q", domain.ErrNotFound, key)
		}
		out = copyTransaction(st.txs[id])
		return nil
	})
	return out, err
}

func (r *transactionRepository) List(
	ctx context.Context,
	filter repository.TransactionFilter,
) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	err := r.uow.run(ctx, func(st *state) error {
		for _, tx := range st.txs {
			if matchTransaction(tx, filter) {
				out = append(out, copyTransaction(tx))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTransactions(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchTransaction(tx *ledger.Transaction, f repository.TransactionFilter) bool {
	switch {
	case f.Wallet != "" && !tx.Involves(f.Wallet):
		return false
	case f.CrossID != nil && (tx.CrossID == nil || *tx.CrossID != *f.CrossID):
		return false
	case f.Status != "" && tx.Status != f.Status:
		return false
	case f.Kind != "" && tx.Kind != f.Kind:
		return false
	case f.Since != nil && tx.CreatedAt.Before(*f.Since):
		return false
	case f.Until != nil && !tx.CreatedAt.Before(*f.Until):
		return false
	}
	return true
}

func (r *transactionRepository) ReferencingWallet(ctx context.Context, name string, limit int) ([]uuid.UUID, error) {
	txs, err := r.List(ctx, repository.TransactionFilter{Wallet: name, Limit: limit})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	return ids, nil
}

func (r *transactionRepository) IsReversed(ctx context.Context, id uuid.UUID) (bool, error) {
	var reversed bool
	err := r.uow.run(ctx, func(st *state) error {
		for _, tx := range st.txs {
			if tx.ReversalOf != nil && *tx.ReversalOf == id && tx.Status == ledger.StatusCompleted {
				reversed = true
				return nil
			}
		}
		return nil
	})
	return reversed, err
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to ledger.Status) error {
	return r.uow.run(ctx, func(st *state) error {
		tx, ok := st.txs[id]
		if !ok || tx.Status != from {
			return domain.ErrConcurrentModification
		}
		tx.Status = to
		return nil
	})
}

func (r *transactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.run(ctx, func(st *state) error {
		tx, ok := st.txs[id]
		if !ok {
			return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
		}
		if tx.IdempotencyKey != "" {
			delete(st.keys, tx.IdempotencyKey)
		}
		delete(st.txs, id)
		return nil
	})
}

type crossRepository struct {
	uow *UoW
}

func (r *crossRepository) Create(ctx context.Context, c *cross.Cross) error {
	return r.uow.run(ctx, func(st *state) error {
		if _, ok := st.crosses[c.ID]; ok {
			return fmt.Errorf("%w: cross %s", domain.ErrAlreadyExists, c.ID)
		}
		st.crosses[c.ID] = copyCross(c)
		return nil
	})
}

func (r *crossRepository) Get(ctx context.Context, id uuid.UUID) (*cross.Cross, error) {
	var out *cross.Cross
	err := r.uow.run(ctx, func(st *state) error {
		c, ok := st.crosses[id]
		if !ok {
			return fmt.Errorf("%w: cross %s", domain.ErrNotFound, id)
		}
		out = copyCross(c)
		return nil
	})
	return out, err
}

// GetForUpdate is Get; the store mutex already serializes units of work.
func (r *crossRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*cross.Cross, error) {
	return r.Get(ctx, id)
}

func (r *crossRepository) List(ctx context.Context, filter repository.CrossFilter) ([]*cross.Cross, error) {
	var out []*cross.Cross
	err := r.uow.run(ctx, func(st *state) error {
		for _, c := range st.crosses {
			if filter.State != "" && c.State != filter.State {
				continue
			}
			if filter.Wallet != "" && !c.ReferencesWallet(filter.Wallet) {
				continue
			}
			out = append(out, copyCross(c))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *crossRepository) Save(ctx context.Context, c *cross.Cross, from cross.State, expectedVersion int64) error {
	return r.uow.run(ctx, func(st *state) error {
		stored, ok := st.crosses[c.ID]
		if !ok || stored.State != from || stored.Version != expectedVersion {
			return domain.ErrConcurrentModification
		}
		next := copyCross(stored)
		next.State = c.State
		next.Version = c.Version
		next.Note = c.Note
		next.UpdatedAt = c.UpdatedAt
		if c.ClosedAt != nil {
			at := *c.ClosedAt
			next.ClosedAt = &at
		}
		if c.Settlement != nil {
			s := *c.Settlement
			next.Settlement = &s
		}
		st.crosses[c.ID] = next
		return nil
	})
}

func (r *crossRepository) ReferencingWallet(ctx context.Context, name string) ([]uuid.UUID, error) {
	all, err := r.List(ctx, repository.CrossFilter{Wallet: name})
	if err != nil {
		return nil, err
	}
	// oldest first, matching the gorm store
	sort.SliceStable(all, func(i, j int) bool { return all[i].OpenedAt.Before(all[j].OpenedAt) })
	ids := make([]uuid.UUID, 0, len(all))
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *crossRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.run(ctx, func(st *state) error {
		if _, ok := st.crosses[id]; !ok {
			return fmt.Errorf("%w: cross %s", domain.ErrNotFound, id)
		}
		delete(st.crosses, id)
		return nil
	})
}
