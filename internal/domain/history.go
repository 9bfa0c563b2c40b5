package domain

import (
	"time"

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// HistoryRecord Model.
// One immutable row per transfer attempt, successful or rejected. The
// append-only history is the authoritative audit trail; balances are a
// materialized derivative of the non-rejected rows.
type HistoryRecord struct {
	HistoryID  string          `gorm:"primaryKey;size:36" json:"history_id"`         // UUID primary key, doubles as idempotency key
	CustomerID string          `gorm:"index;not null" json:"customer_id"`            // Foreign key to Customer
	MerchantID *string         `gorm:"index" json:"merchant_id"`                     // Foreign key to Merchant; nil for system credits/debits
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`    // Transfer amount
	Time       time.Time       `gorm:"index" json:"time"`                            // Time of the attempt
	IsRejected bool            `gorm:"not null;default:false" json:"is_rejected"`    // True when the attempt was rejected
	BOld       decimal.Decimal `gorm:"type:decimal(20,4);column:b_old" json:"b_old"` // Customer balance before
	BNew       decimal.Decimal `gorm:"type:decimal(20,4);column:b_new" json:"b_new"` // Customer balance after
}

// TableName overrides the default pluralization to match the original schema
func (HistoryRecord) TableName() string { return "history" }
