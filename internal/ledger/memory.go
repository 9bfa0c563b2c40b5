package ledger

import (
	"context" // Context for storage operations
	"sort"    // History ordering
	"sync"    // Mutex-guarded maps
	"time"    // Timestamps and bounded waits

	"ledger_system/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// MemoryStore is the in-memory Store implementation, used by tests and local
// runs without a database. It provides the same contract as GormStore: writes
// inside a scoped transaction are staged and commit atomically, concurrent
// transfers against one customer serialize on a per-customer lock, and a lock
// that cannot be acquired within the bounded wait aborts with ErrTxTimeout.
type MemoryStore struct {
	mu        sync.RWMutex                      // Guards all maps below
	customers map[string]domain.Customer        // Customer rows by id
	merchants map[string]domain.Merchant        // Merchant rows by id
	history   []domain.HistoryRecord            // Append-only history
	historyID map[string]struct{}               // History ids for duplicate detection
	metrics   map[string]domain.CustomerMetrics // Metric rows by customer id

	lockMu   sync.Mutex               // Guards rowLocks
	rowLocks map[string]chan struct{} // Per-customer binary semaphores

	txTimeout time.Duration // Bounded wait for scoped transactions
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]domain.Customer),
		merchants: make(map[string]domain.Merchant),
		historyID: make(map[string]struct{}),
		metrics:   make(map[string]domain.CustomerMetrics),
		rowLocks:  make(map[string]chan struct{}),
		txTimeout: DefaultTxTimeout,
	}
}

// SetTxTimeout overrides the bounded transaction wait (tests shorten it)
func (s *MemoryStore) SetTxTimeout(d time.Duration) { s.txTimeout = d }

// UpsertCustomer inserts or replaces a customer by primary key
func (s *MemoryStore) UpsertCustomer(ctx context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *customer
	now := time.Now()
	if existing, ok := s.customers[row.CustomerID]; ok {
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.customers[row.CustomerID] = row
	return nil
}

// UpsertMerchant inserts or replaces a merchant by primary key
func (s *MemoryStore) UpsertMerchant(ctx context.Context, merchant *domain.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *merchant
	now := time.Now()
	if existing, ok := s.merchants[row.MerchantID]; ok {
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.merchants[row.MerchantID] = row
	return nil
}

// GetCustomer fetches a customer by id
func (s *MemoryStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.customers[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// GetMerchant fetches a merchant by id
func (s *MemoryStore) GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.merchants[merchantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

// GetBalance returns the customer's balance
func (s *MemoryStore) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return customer.AccBalance, nil
}

// rowLock returns the binary semaphore serializing one customer's transfers
func (s *MemoryStore) rowLock(customerID string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.rowLocks[customerID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[customerID] = ch
	}
	return ch
}

// WithTransaction runs body under the customer's row lock with staged writes.
// The staged writes are applied atomically when body returns nil and discarded
// otherwise. Merchant credits are staged as deltas so transfers from disjoint
// customers to one merchant never lose updates.
func (s *MemoryStore) WithTransaction(ctx context.Context, customerID string, body func(Tx) error) error {
	lock := s.rowLock(customerID)
	select {
	case lock <- struct{}{}:
		defer func() { <-lock }()
	case <-time.After(s.txTimeout):
		return ErrTxTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	tx := &memTx{
		store:         s,
		balances:      make(map[string]decimal.Decimal),
		merchantDelta: make(map[string]decimal.Decimal),
	}
	if err := body(tx); err != nil {
		return err // Staged writes are discarded
	}

	// Commit
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, balance := range tx.balances {
		row := s.customers[id]
		row.AccBalance = balance
		row.UpdatedAt = now
		s.customers[id] = row
	}
	for id, delta := range tx.merchantDelta {
		row := s.merchants[id]
		row.AccBalance = row.AccBalance.Add(delta)
		row.UpdatedAt = now
		s.merchants[id] = row
	}
	for _, record := range tx.staged {
		s.appendLocked(record)
	}
	return nil
}

// appendLocked inserts a history record, ignoring duplicate ids. Caller holds mu.
func (s *MemoryStore) appendLocked(record domain.HistoryRecord) {
	if _, ok := s.historyID[record.HistoryID]; ok {
		return
	}
	s.historyID[record.HistoryID] = struct{}{}
	s.history = append(s.history, record)
}

// AppendHistory inserts a history record outside any transfer scope
func (s *MemoryStore) AppendHistory(ctx context.Context, record *domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(*record)
	return nil
}

// GetHistory returns history records, most recent first
func (s *MemoryStore) GetHistory(ctx context.Context, limit, offset int) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	records := make([]domain.HistoryRecord, len(s.history))
	copy(records, s.history)
	s.mu.RUnlock()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.After(records[j].Time)
	})
	if limit > 0 {
		if offset >= len(records) {
			return nil, nil
		}
		end := offset + limit
		if end > len(records) {
			end = len(records)
		}
		records = records[offset:end]
	}
	return records, nil
}

// CountHistory returns the total number of history records
func (s *MemoryStore) CountHistory(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.history)), nil
}

// ReadMetrics returns the customer's metrics row, or nil if absent
func (s *MemoryStore) ReadMetrics(ctx context.Context, customerID string) (*domain.CustomerMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.metrics[customerID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// WriteMetrics upserts a metrics row by customer id
func (s *MemoryStore) WriteMetrics(ctx context.Context, metrics *domain.CustomerMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *metrics
	row.UpdatedAt = time.Now()
	s.metrics[row.CustomerID] = row
	return nil
}

// IdleCustomers returns customers with no balance or profile activity for at
// least the given number of days
func (s *MemoryStore) IdleCustomers(ctx context.Context, days int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().AddDate(0, 0, -days)
	var ids []string
	for id, row := range s.customers {
		if row.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memTx stages writes for one scoped transaction
type memTx struct {
	store         *MemoryStore               // Backing store for reads
	balances      map[string]decimal.Decimal // Staged absolute customer balances
	merchantDelta map[string]decimal.Decimal // Staged merchant balance increments
	staged        []domain.HistoryRecord     // Staged history records
}

// CustomerBalance reads the customer's balance, preferring staged writes
func (t *memTx) CustomerBalance(customerID string) (decimal.Decimal, error) {
	if balance, ok := t.balances[customerID]; ok {
		return balance, nil
	}
	return t.store.GetBalance(context.Background(), customerID)
}

// SetCustomerBalance stages the customer's new balance
func (t *memTx) SetCustomerBalance(customerID string, balance decimal.Decimal) error {
	t.store.mu.RLock()
	_, ok := t.store.customers[customerID]
	t.store.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	t.balances[customerID] = balance
	return nil
}

// CreditMerchant stages a merchant balance increment
func (t *memTx) CreditMerchant(merchantID string, amount decimal.Decimal) error {
	t.store.mu.RLock()
	_, ok := t.store.merchants[merchantID]
	t.store.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	t.merchantDelta[merchantID] = t.merchantDelta[merchantID].Add(amount)
	return nil
}

// AppendHistory stages a history record
func (t *memTx) AppendHistory(record *domain.HistoryRecord) error {
	t.staged = append(t.staged, *record)
	return nil
}

// History returns the record with the given id, or nil if absent, including
// records staged in this transaction
func (t *memTx) History(historyID string) (*domain.HistoryRecord, error) {
	for _, record := range t.staged {
		if record.HistoryID == historyID {
			row := record
			return &row, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if _, ok := t.store.historyID[historyID]; ok {
		for _, record := range t.store.history {
			if record.HistoryID == historyID {
				row := record
				return &row, nil
			}
		}
	}
	return nil, nil
}
