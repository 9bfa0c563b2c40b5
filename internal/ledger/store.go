package ledger

import (
	"context" // Context for storage operations
	"errors"  // Sentinel errors

	"ledger_system/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// Sentinel errors returned by Store implementations
var (
	// ErrNotFound is returned when a referenced customer or merchant does not exist
	ErrNotFound = errors.New("ledger: not found")
	// ErrTxTimeout is returned when a scoped transaction cannot be acquired within the bounded wait
	ErrTxTimeout = errors.New("ledger: transaction acquisition timed out")
)

// Tx is the scoped execution context handed to a WithTransaction body.
// All writes performed through it are durable only if the body returns nil;
// any error discards every write made within the scope.
type Tx interface {
	// CustomerBalance reads the customer's balance inside the transaction scope
	CustomerBalance(customerID string) (decimal.Decimal, error)
	// SetCustomerBalance writes the customer's balance inside the transaction scope
	SetCustomerBalance(customerID string, balance decimal.Decimal) error
	// CreditMerchant increments the merchant's balance by amount
	CreditMerchant(merchantID string, amount decimal.Decimal) error
	// AppendHistory inserts a history record; a duplicate id is a no-op, never an error
	AppendHistory(record *domain.HistoryRecord) error
	// History returns the record with the given id, or nil if absent
	History(historyID string) (*domain.HistoryRecord, error)
}

// Store is the durable keyed state behind the transfer engine and the metrics
// aggregator: customer balances, merchant balances, append-only history and
// per-customer metric rows.
type Store interface {
	// UpsertCustomer inserts or replaces a customer by primary key (idempotent)
	UpsertCustomer(ctx context.Context, customer *domain.Customer) error
	// UpsertMerchant inserts or replaces a merchant by primary key (idempotent)
	UpsertMerchant(ctx context.Context, merchant *domain.Merchant) error
	// GetCustomer fetches a customer by id; ErrNotFound if unknown
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	// GetMerchant fetches a merchant by id; ErrNotFound if unknown
	GetMerchant(ctx context.Context, merchantID string) (*domain.Merchant, error)
	// GetBalance returns the customer's balance; ErrNotFound if unknown
	GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error)
	// WithTransaction runs body inside an exclusive scope over the customer's row.
	// Concurrent callers targeting the same customer serialize; disjoint customers
	// proceed independently. Writes commit only when body returns nil.
	WithTransaction(ctx context.Context, customerID string, body func(Tx) error) error
	// AppendHistory inserts a history record outside any transfer scope
	// (system-originated rows such as decay debits use the same id semantics)
	AppendHistory(ctx context.Context, record *domain.HistoryRecord) error
	// GetHistory returns history records, most recent first
	GetHistory(ctx context.Context, limit, offset int) ([]domain.HistoryRecord, error)
	// CountHistory returns the total number of history records
	CountHistory(ctx context.Context) (int64, error)
	// ReadMetrics returns the customer's metrics row, or nil if absent
	ReadMetrics(ctx context.Context, customerID string) (*domain.CustomerMetrics, error)
	// WriteMetrics upserts a metrics row by customer id
	WriteMetrics(ctx context.Context, metrics *domain.CustomerMetrics) error
	// IdleCustomers returns ids of customers with no balance or profile
	// activity for at least the given number of days (decay sweep input)
	IdleCustomers(ctx context.Context, days int) ([]string, error)
}
