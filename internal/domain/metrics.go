package domain

import (
	"time"

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// CustomerMetrics Model.
// One row per customer, maintained incrementally by the metrics aggregator in
// lock-step with completed transfers, never by rescanning history.
type CustomerMetrics struct {
	CustomerID     string          `gorm:"primaryKey" json:"customer_id"`             // 1:1 with Customer
	AvgDailyBal    decimal.Decimal `gorm:"type:decimal(15,2)" json:"avg_daily_bal"`   // Smoothed balance average
	MaxBal         decimal.Decimal `gorm:"type:decimal(15,2)" json:"max_bal"`         // Highest balance observed
	MinBal         decimal.Decimal `gorm:"type:decimal(15,2)" json:"min_bal"`         // Lowest balance observed
	InactiveDays   int             `gorm:"default:0" json:"inactive_days"`            // Days without a transfer
	NumTrDay       int             `gorm:"default:0" json:"num_tr_day"`               // Transactions in the day window
	NumTrWeek      int             `gorm:"default:0" json:"num_tr_week"`              // Transactions in the week window
	AvgTrVal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"avg_tr_val"`      // Average transaction value
	TotalTrVal     decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_tr_val"`    // Running total transacted value
	Velocity       decimal.Decimal `gorm:"type:decimal(12,2)" json:"velocity"`        // TotalTrVal over the target velocity constant
	CashbackEarned decimal.Decimal `gorm:"type:decimal(12,2)" json:"cashback_earned"` // Cashback accrued to date
	DecayLossCnt   int             `gorm:"default:0" json:"decay_loss_cnt"`           // Times the decay sweep charged this customer
	IncentiveResp  decimal.Decimal `gorm:"type:decimal(5,4)" json:"incentive_resp"`   // Incentive responsiveness score in [0, 1]
	UpdatedAt      time.Time       `json:"updated_at"`                                // Timestamp of last update
}
