package engine

import (
	"context" // Context for storage operations
	"errors"  // Sentinel errors
	"fmt"     // Error wrapping
	"time"    // Timestamps

	"ledger_system/internal/domain" // Importing domain models
	"ledger_system/internal/ledger" // Ledger store

	"github.com/google/uuid"        // Collision-safe history ids
	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
	"github.com/sirupsen/logrus"    // Logging library
)

// Validation and abort errors returned by Transfer
var (
	// ErrInvalidAmount rejects non-positive transfer amounts before any storage access
	ErrInvalidAmount = errors.New("engine: amount must be positive")
	// ErrMissingParty rejects requests without a customer or merchant id
	ErrMissingParty = errors.New("engine: customer and merchant ids are required")
	// ErrAborted wraps storage-layer failures; the attempt left no partial state
	// and the caller may retry
	ErrAborted = errors.New("engine: transfer aborted")
)

// Outcome is the typed result of a transfer attempt.
type Outcome int

const (
	// Failed means no transfer was applied; the accompanying error explains why
	Failed Outcome = iota
	// Success means the transfer committed
	Success
	// InsufficientFunds means the balance check failed; the rejection is
	// recorded in history as a normal business outcome
	InsufficientFunds
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case InsufficientFunds:
		return "InsufficientFunds"
	default:
		return "Failed"
	}
}

// Recorder consumes completed transfers for background metrics aggregation.
// The engine never waits on it.
type Recorder interface {
	Record(customerID string, amount, newBalance decimal.Decimal)
}

// Request describes one transfer attempt.
type Request struct {
	CustomerID    string          // Paying customer
	MerchantID    string          // Receiving merchant
	Amount        decimal.Decimal // Transfer amount, must be positive
	TransactionID string          // Optional idempotency key; generated when empty
	Time          time.Time       // Optional timestamp override for synthetic loads
}

// Engine is the single authoritative path for moving value from a customer to
// a merchant. It owns no state of its own; all reads and writes go through the
// ledger store's scoped transactions.
type Engine struct {
	store    ledger.Store // Ledger store, owned by the caller
	recorder Recorder     // Post-commit metrics handoff; may be nil
}

// New creates a transfer engine over the given store. recorder may be nil when
// no metrics aggregation is wanted.
func New(store ledger.Store, recorder Recorder) *Engine {
	return &Engine{store: store, recorder: recorder}
}

// Transfer validates the request, applies the two-sided balance mutation and
// appends the history record as one atomic unit. Rejections for insufficient
// funds commit a rejected history record and return InsufficientFunds with a
// nil error. Replaying a request with a transaction id already in history
// returns the recorded outcome without re-applying anything.
func (e *Engine) Transfer(ctx context.Context, req Request) (Outcome, error) {
	// Validate before any storage access; no history record is produced
	if req.CustomerID == "" || req.MerchantID == "" {
		return Failed, ErrMissingParty
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return Failed, ErrInvalidAmount
	}
	// Verify the merchant exists up front so a bad merchant id surfaces as
	// NotFound rather than a mid-transaction abort
	if _, err := e.store.GetMerchant(ctx, req.MerchantID); err != nil {
		return Failed, err
	}

	trID := req.TransactionID
	if trID == "" {
		trID = uuid.NewString()
	}
	when := req.Time
	if when.IsZero() {
		when = time.Now().UTC()
	}

	var (
		outcome Outcome
		bNew    decimal.Decimal
		replay  bool
	)
	err := e.store.WithTransaction(ctx, req.CustomerID, func(tx ledger.Tx) error {
		// Idempotent replay: a known transaction id must not double-apply
		if req.TransactionID != "" {
			record, err := tx.History(trID)
			if err != nil {
				return err
			}
			if record != nil {
				replay = true
				if record.IsRejected {
					outcome = InsufficientFunds
				} else {
					outcome = Success
				}
				return nil
			}
		}

		balance, err := tx.CustomerBalance(req.CustomerID)
		if err != nil {
			return err
		}
		merchantID := req.MerchantID
		if balance.LessThan(req.Amount) {
			// Rejections are audit events, not discarded: commit a full
			// history record with an unchanged balance
			outcome = InsufficientFunds
			return tx.AppendHistory(&domain.HistoryRecord{
				HistoryID:  trID,
				CustomerID: req.CustomerID,
				MerchantID: &merchantID,
				Amount:     req.Amount,
				Time:       when,
				IsRejected: true,
				BOld:       balance,
				BNew:       balance,
			})
		}

		bNew = balance.Sub(req.Amount)
		if err := tx.SetCustomerBalance(req.CustomerID, bNew); err != nil {
			return err
		}
		if err := tx.CreditMerchant(req.MerchantID, req.Amount); err != nil {
			return err
		}
		if err := tx.AppendHistory(&domain.HistoryRecord{
			HistoryID:  trID,
			CustomerID: req.CustomerID,
			MerchantID: &merchantID,
			Amount:     req.Amount,
			Time:       when,
			IsRejected: false,
			BOld:       balance,
			BNew:       bNew,
		}); err != nil {
			return err
		}
		outcome = Success
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Failed, err
		}
		// Log the error with context
		logrus.WithFields(logrus.Fields{
			"customer_id": req.CustomerID,
			"merchant_id": req.MerchantID,
			"amount":      req.Amount.String(),
			"tr_id":       trID,
			"error":       err.Error(),
		}).Error("Transfer failed")
		return Failed, fmt.Errorf("%w: %v", ErrAborted, err)
	}

	if outcome == InsufficientFunds {
		logrus.WithFields(logrus.Fields{
			"customer_id": req.CustomerID,
			"merchant_id": req.MerchantID,
			"amount":      req.Amount.String(),
			"tr_id":       trID,
		}).Warn("Transfer rejected: insufficient funds")
		return InsufficientFunds, nil
	}

	// Log successful transfer
	logrus.WithFields(logrus.Fields{
		"customer_id": req.CustomerID,
		"merchant_id": req.MerchantID,
		"amount":      req.Amount.String(),
		"tr_id":       trID,
		"replayed":    replay,
		"timestamp":   when.Format(time.RFC3339),
	}).Info("Transfer transaction")

	// Fire-and-forget handoff: the transfer is durable regardless of whether
	// the metrics fold ever runs. Replays already folded once.
	if e.recorder != nil && !replay {
		e.recorder.Record(req.CustomerID, req.Amount, bNew)
	}
	return Success, nil
}
