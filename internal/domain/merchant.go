package domain

import (
	"time"

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// Merchant Model
type Merchant struct {
	MerchantID  string          `gorm:"primaryKey" json:"merchant_id"`              // Primary key
	Category    string          `gorm:"default:General" json:"category"`            // Merchant category
	Description string          `gorm:"default:''" json:"description"`              // Free-form description
	AccBalance  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance"` // Account balance; merchants only receive
	CreatedAt   time.Time       `json:"created_at"`                                 // Timestamp of creation
	UpdatedAt   time.Time       `json:"updated_at"`                                 // Timestamp of last update
}
