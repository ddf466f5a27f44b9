// internal/service/memstore_test.go
package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// memStore is an in-memory optimistic store used by the concurrency tests. Reads in a
// transaction see committed rows plus the transaction's own writes; Commit validates
// under a mutex that no row the transaction closed was closed by someone else and
// that every user keeps a single active balance, mirroring the guarantees a
// serializable Postgres transaction gives the engine.
type memStore struct {
	repository.DBExecutor // never called; satisfies the executor parameter

	mu           sync.Mutex
	balances     map[uuid.UUID]domain.Balance
	balanceOrder []uuid.UUID
	entries      map[uuid.UUID]domain.LedgerEntry
	entryOrder   []uuid.UUID
	transfers    map[uuid.UUID]domain.Transfer
	keys         map[string]uuid.UUID
	begins       int
	commits      int
}

func newMemStore() *memStore {
	return &memStore{
		balances:  make(map[uuid.UUID]domain.Balance),
		entries:   make(map[uuid.UUID]domain.LedgerEntry),
		transfers: make(map[uuid.UUID]domain.Transfer),
		keys:      make(map[string]uuid.UUID),
	}
}

type memTx struct {
	repository.DBExecutor

	store     *memStore
	done      bool
	closed    map[uuid.UUID]uuid.UUID // balance id -> close ledger id
	balances  []domain.Balance
	entries   []domain.LedgerEntry
	transfers []domain.Transfer
}

func (s *memStore) begin(ctx context.Context, _ db.DBTxBeginner) (db.TxController, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.begins++
	s.mu.Unlock()
	return &memTx{store: s, closed: make(map[uuid.UUID]uuid.UUID)}, nil
}

func memCommit(tx db.TxController) error { return tx.Commit() }

func memRollback(tx db.TxController) { _ = tx.Rollback() }

func (tx *memTx) Rollback() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	return nil
}

func (tx *memTx) Commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true

	for id := range tx.closed {
		if b, ok := s.balances[id]; ok && !b.IsActive() {
			return fmt.Errorf("memstore: balance %s closed by another transaction: %w", id, util.ErrConflict)
		}
	}
	for _, t := range tx.transfers {
		if t.IdempotencyKey != nil {
			if _, ok := s.keys[*t.IdempotencyKey]; ok {
				return fmt.Errorf("memstore: idempotency key %q: %w", *t.IdempotencyKey, util.ErrDuplicateEntry)
			}
		}
	}
	active := make(map[uuid.UUID]int)
	for _, id := range s.balanceOrder {
		b := s.balances[id]
		if _, closing := tx.closed[id]; b.IsActive() && !closing {
			active[b.UserID]++
		}
	}
	for _, b := range tx.balances {
		if _, closing := tx.closed[b.ID]; !closing {
			active[b.UserID]++
			if active[b.UserID] > 1 {
				return fmt.Errorf("memstore: second active balance for user %s: %w", b.UserID, util.ErrConflict)
			}
		}
	}

	for _, t := range tx.transfers {
		s.transfers[t.ID] = t
		if t.IdempotencyKey != nil {
			s.keys[*t.IdempotencyKey] = t.ID
		}
	}
	for _, e := range tx.entries {
		s.entries[e.ID] = e
		s.entryOrder = append(s.entryOrder, e.ID)
	}
	for _, b := range tx.balances {
		s.balances[b.ID] = b
		s.balanceOrder = append(s.balanceOrder, b.ID)
	}
	for id, closeLedgerID := range tx.closed {
		b := s.balances[id]
		b.CloseLedgerID = uuid.NullUUID{UUID: closeLedgerID, Valid: true}
		s.balances[id] = b
	}
	s.commits++
	return nil
}

func (s *memStore) txOf(q repository.DBExecutor) *memTx {
	if tx, ok := q.(*memTx); ok {
		return tx
	}
	return nil
}

func (s *memStore) activeLocked(tx *memTx, userID uuid.UUID) (*domain.Balance, error) {
	if tx != nil {
		for i := len(tx.balances) - 1; i >= 0; i-- {
			b := tx.balances[i]
			if _, closing := tx.closed[b.ID]; b.UserID == userID && !closing {
				return &b, nil
			}
		}
	}
	for _, id := range s.balanceOrder {
		b := s.balances[id]
		if b.UserID != userID || !b.IsActive() {
			continue
		}
		if tx != nil {
			if _, closing := tx.closed[id]; closing {
				continue
			}
		}
		return &b, nil
	}
	return nil, util.ErrNotFound
}

func (s *memStore) GetActiveBalance(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(s.txOf(q), userID)
}

func (s *memStore) GetActiveBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.GetActiveBalance(ctx, q, userID)
}

func (s *memStore) GetBalanceByOpenLedgerID(ctx context.Context, q repository.DBExecutor, ledgerID uuid.UUID) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.balanceOrder {
		if b := s.balances[id]; b.OpenLedgerID == ledgerID {
			return &b, nil
		}
	}
	return nil, util.ErrNotFound
}

func (s *memStore) CreateBalance(ctx context.Context, q repository.DBExecutor, balance *domain.Balance) error {
	tx := s.txOf(q)
	if tx == nil {
		return fmt.Errorf("memstore: create balance outside transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.balances = append(tx.balances, *balance)
	return nil
}

func (s *memStore) CloseBalance(ctx context.Context, q repository.DBExecutor, balanceID, closeLedgerID uuid.UUID) (repository.CloseResult, error) {
	tx := s.txOf(q)
	if tx == nil {
		return 0, fmt.Errorf("memstore: close balance outside transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := tx.closed[balanceID]; ok {
		return repository.CloseResultAlreadyClosed, nil
	}
	b, ok := s.balances[balanceID]
	if !ok || !b.IsActive() {
		return repository.CloseResultAlreadyClosed, nil
	}
	tx.closed[balanceID] = closeLedgerID
	return repository.CloseResultClosed, nil
}

func (s *memStore) ListBalanceChain(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chain []domain.Balance
	for _, id := range s.balanceOrder {
		if b := s.balances[id]; b.UserID == userID {
			chain = append(chain, b)
		}
	}
	return chain, nil
}

func (s *memStore) CountActiveBalances(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.balances {
		if b.UserID == userID && b.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.LedgerEntry) error {
	tx := s.txOf(q)
	if tx == nil {
		return fmt.Errorf("memstore: create entry outside transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.entries = append(tx.entries, *entry)
	return nil
}

func (s *memStore) ListEntriesByTransfer(ctx context.Context, q repository.DBExecutor, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []domain.LedgerEntry
	for _, id := range s.entryOrder {
		if e := s.entries[id]; e.TransferID == transferID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Amount.LessThan(entries[j].Amount) })
	return entries, nil
}

func (s *memStore) ListEntriesByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	all, err := s.ListAllEntriesByUser(ctx, q, userID)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	var page []domain.LedgerEntry
	for i := len(all) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, all[i])
	}
	return page, total, nil
}

func (s *memStore) ListAllEntriesByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []domain.LedgerEntry
	for _, id := range s.entryOrder {
		if e := s.entries[id]; e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *memStore) SumByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (decimal.Decimal, error) {
	entries, err := s.ListAllEntriesByUser(ctx, q, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.SumEntries(entries), nil
}

func (s *memStore) CreateTransfer(ctx context.Context, q repository.DBExecutor, transfer *domain.Transfer) error {
	tx := s.txOf(q)
	if tx == nil {
		return fmt.Errorf("memstore: create transfer outside transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if transfer.IdempotencyKey != nil {
		if _, ok := s.keys[*transfer.IdempotencyKey]; ok {
			return util.ErrDuplicateEntry
		}
	}
	tx.transfers = append(tx.transfers, *transfer)
	return nil
}

func (s *memStore) GetTransferByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &t, nil
}

func (s *memStore) GetTransferByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	if !ok {
		return nil, util.ErrNotFound
	}
	t := s.transfers[id]
	return &t, nil
}

// rowCounts returns the committed number of transfers, entries and balances.
func (s *memStore) rowCounts() (transfers, entries, balances int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers), len(s.entries), len(s.balances)
}

var (
	_ repository.BalanceRepository  = (*memStore)(nil)
	_ repository.LedgerRepository   = (*memStore)(nil)
	_ repository.TransferRepository = (*memStore)(nil)
)
