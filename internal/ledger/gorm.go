package ledger

import (
	"context" // Context for storage operations
	"errors"  // Error inspection
	"time"    // Bounded transaction wait

	"ledger_system/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // Conflict and locking clauses
)

// DefaultTxTimeout bounds how long a transfer waits for its row locks before
// the attempt is aborted as retryable.
const DefaultTxTimeout = 5 * time.Second

// GormStore is the MySQL-backed Store implementation.
type GormStore struct {
	db        *gorm.DB      // Database handle, owned by the caller
	txTimeout time.Duration // Bounded wait for scoped transactions
}

// NewGormStore wraps an open GORM handle in a Store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, txTimeout: DefaultTxTimeout}
}

// UpsertCustomer inserts or replaces a customer by primary key
func (s *GormStore) UpsertCustomer(ctx context.Context, customer *domain.Customer) error {
	// Insert-or-update, mirroring ON CONFLICT ... DO UPDATE
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(customer).Error
}

// UpsertMerchant inserts or replaces a merchant by primary key
func (s *GormStore) UpsertMerchant(ctx context.Context, merchant *domain.Merchant) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(merchant).Error
}

// GetCustomer fetches a customer by id
func (s *GormStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := s.db.WithContext(ctx).First(&customer, "customer_id = ?", customerID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &customer, nil
}

// GetMerchant fetches a merchant by id
func (s *GormStore) GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	var merchant domain.Merchant
	if err := s.db.WithContext(ctx).First(&merchant, "merchant_id = ?", merchantID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &merchant, nil
}

// GetBalance returns the customer's balance
func (s *GormStore) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	customer, err := s.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return customer.AccBalance, nil
}

// WithTransaction runs body inside a database transaction. The customer row is
// locked FOR UPDATE on first read, so concurrent transfers against the same
// customer serialize while disjoint customers proceed on separate rows. The
// bounded wait is enforced through the context deadline.
func (s *GormStore) WithTransaction(ctx context.Context, customerID string, body func(Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return body(&gormTx{tx: tx})
	})
	// A deadline hit while waiting on the row lock is a retryable timeout
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return ErrTxTimeout
	}
	return err
}

// AppendHistory inserts a history record outside any transfer scope
func (s *GormStore) AppendHistory(ctx context.Context, record *domain.HistoryRecord) error {
	// Duplicate ids are a no-op, mirroring ON CONFLICT ... DO NOTHING
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

// GetHistory returns history records, most recent first
func (s *GormStore) GetHistory(ctx context.Context, limit, offset int) ([]domain.HistoryRecord, error) {
	var records []domain.HistoryRecord
	q := s.db.WithContext(ctx).Order("time desc")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountHistory returns the total number of history records
func (s *GormStore) CountHistory(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&domain.HistoryRecord{}).Count(&total).Error
	return total, err
}

// ReadMetrics returns the customer's metrics row, or nil if absent
func (s *GormStore) ReadMetrics(ctx context.Context, customerID string) (*domain.CustomerMetrics, error) {
	var metrics domain.CustomerMetrics
	err := s.db.WithContext(ctx).First(&metrics, "customer_id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

// WriteMetrics upserts a metrics row by customer id
func (s *GormStore) WriteMetrics(ctx context.Context, metrics *domain.CustomerMetrics) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(metrics).Error
}

// IdleCustomers returns customers with no balance or profile activity for at
// least the given number of days
func (s *GormStore) IdleCustomers(ctx context.Context, days int) ([]string, error) {
	var ids []string
	cutoff := time.Now().AddDate(0, 0, -days)
	err := s.db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("updated_at < ?", cutoff).
		Pluck("customer_id", &ids).Error
	return ids, err
}

// gormTx adapts a transaction-scoped GORM handle to the Tx contract
type gormTx struct {
	tx *gorm.DB // Transaction-scoped handle
}

// CustomerBalance reads the customer's balance under a FOR UPDATE row lock
func (t *gormTx) CustomerBalance(customerID string) (decimal.Decimal, error) {
	var customer domain.Customer
	err := t.tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&customer, "customer_id = ?", customerID).Error
	if err != nil {
		return decimal.Zero, mapNotFound(err)
	}
	return customer.AccBalance, nil
}

// SetCustomerBalance writes the customer's balance
func (t *gormTx) SetCustomerBalance(customerID string, balance decimal.Decimal) error {
	res := t.tx.Model(&domain.Customer{}).
		Where("customer_id = ?", customerID).
		Update("acc_balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreditMerchant increments the merchant's balance by amount
func (t *gormTx) CreditMerchant(merchantID string, amount decimal.Decimal) error {
	res := t.tx.Model(&domain.Merchant{}).
		Where("merchant_id = ?", merchantID).
		Update("acc_balance", gorm.Expr("acc_balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory inserts a history record within the transaction scope
func (t *gormTx) AppendHistory(record *domain.HistoryRecord) error {
	return t.tx.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

// History returns the record with the given id, or nil if absent
func (t *gormTx) History(historyID string) (*domain.HistoryRecord, error) {
	var record domain.HistoryRecord
	err := t.tx.First(&record, "history_id = ?", historyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// mapNotFound converts GORM's record-not-found into the store's sentinel
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
