package incentive

import (
	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// PeriodDays is the idle period after which the decay sweep charges a balance
const PeriodDays = 7

// Policy constants
var (
	// BonusRate is the cashback fraction of every successful transfer
	BonusRate = decimal.RequireFromString("0.03")
	// DecayRate is the fraction of an idle balance charged per decay period
	DecayRate = decimal.RequireFromString("0.02")
	// TargetVelocity is the denominator of the spend-rate proxy
	TargetVelocity = decimal.RequireFromString("0.5")
	// RespStep is the per-transfer responsiveness nudge
	RespStep = decimal.RequireFromString("0.01")

	one = decimal.NewFromInt(1)
)

// Cashback returns the bonus earned on a transfer amount
func Cashback(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(BonusRate)
}

// Velocity returns the spend-rate proxy for a running total transacted value
func Velocity(totalTrVal decimal.Decimal) decimal.Decimal {
	return totalTrVal.Div(TargetVelocity)
}

// NudgeResponsiveness drifts the incentive-responsiveness score upward by one
// step, capped at 1.0. The score never decreases under successful transfers.
func NudgeResponsiveness(current decimal.Decimal) decimal.Decimal {
	next := current.Add(RespStep)
	if next.GreaterThan(one) {
		return one
	}
	return next
}

// DecayCharge returns the amount debited from an idle balance per period
func DecayCharge(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(DecayRate)
}
