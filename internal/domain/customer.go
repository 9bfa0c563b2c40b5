package domain

import (
	"time"

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// Customer Model
type Customer struct {
	CustomerID  string          `gorm:"primaryKey" json:"customer_id"`              // Primary key
	Age         int             `gorm:"default:18" json:"age"`                      // Customer age
	NameFull    string          `gorm:"not null" json:"name_full"`                  // Full name
	Profession  string          `gorm:"default:Unknown" json:"profession"`          // Profession
	Salary      decimal.Decimal `gorm:"type:decimal(20,4)" json:"salary"`           // Declared salary
	Level       int             `gorm:"default:1" json:"level"`                     // Salary level: 1 base, 2 higher, 3 highest
	AccBalance  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance"` // Account balance, never negative
	Description string          `gorm:"default:''" json:"description"`              // Free-form description
	Industry    string          `gorm:"default:General" json:"industry"`            // Industry
	Behavior    string          `gorm:"default:Moderate" json:"behavior"`           // Spending behavior class
	CreatedAt   time.Time       `json:"created_at"`                                 // Timestamp of creation
	UpdatedAt   time.Time       `json:"updated_at"`                                 // Timestamp of last update
}
