package incentive

import (
	"context" // Context for storage operations
	"time"    // Timestamps

	"ledger_system/internal/domain" // Importing domain models
	"ledger_system/internal/ledger" // Ledger store

	"github.com/google/uuid"        // Collision-safe history ids
	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
	"github.com/sirupsen/logrus"    // Logging library
)

// Sweep debits idle balances to discourage hoarding. For every customer with
// no activity in the last PeriodDays it charges balance * DecayRate inside a
// scoped transaction and appends a history record with a nil merchant id, the
// decay sink. It is an extension point and is not wired into the transfer path.
type Sweep struct {
	store  ledger.Store // Ledger store, owned by the caller
	Period int          // Idle days before a balance decays; PeriodDays by default
}

// NewSweep creates a decay sweep over the given store.
func NewSweep(store ledger.Store) *Sweep {
	return &Sweep{store: store, Period: PeriodDays}
}

// Run performs one pass over all idle customers. Per-customer failures are
// logged and skipped so one bad row never stalls the sweep.
func (s *Sweep) Run(ctx context.Context) error {
	ids, err := s.store.IdleCustomers(ctx, s.Period)
	if err != nil {
		return err
	}
	for _, customerID := range ids {
		if err := s.decayOne(ctx, customerID); err != nil {
			// Log the error with context and continue
			logrus.WithFields(logrus.Fields{
				"customer_id": customerID,
				"error":       err.Error(),
			}).Error("Decay charge failed")
		}
	}
	return nil
}

// decayOne applies one decay charge to a single customer
func (s *Sweep) decayOne(ctx context.Context, customerID string) error {
	var charge decimal.Decimal
	err := s.store.WithTransaction(ctx, customerID, func(tx ledger.Tx) error {
		balance, err := tx.CustomerBalance(customerID)
		if err != nil {
			return err
		}
		charge = DecayCharge(balance)
		if charge.LessThanOrEqual(decimal.Zero) {
			return nil // Nothing to decay
		}
		bNew := balance.Sub(charge)
		if err := tx.SetCustomerBalance(customerID, bNew); err != nil {
			return err
		}
		// Nil merchant id marks the decay sink
		return tx.AppendHistory(&domain.HistoryRecord{
			HistoryID:  uuid.NewString(),
			CustomerID: customerID,
			MerchantID: nil,
			Amount:     charge,
			Time:       time.Now().UTC(),
			IsRejected: false,
			BOld:       balance,
			BNew:       bNew,
		})
	})
	if err != nil {
		return err
	}
	if charge.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	// Record the loss in the customer's metrics; metrics staleness here is
	// best-effort, the balance and history rows are already durable
	metrics, err := s.store.ReadMetrics(ctx, customerID)
	if err != nil {
		return err
	}
	if metrics == nil {
		metrics = &domain.CustomerMetrics{CustomerID: customerID}
	}
	metrics.DecayLossCnt++
	metrics.InactiveDays += s.Period
	if err := s.store.WriteMetrics(ctx, metrics); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"charge":      charge.String(),
	}).Info("Decay charge applied")
	return nil
}
