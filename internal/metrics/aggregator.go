package metrics

import (
	"context" // Context for storage operations
	"sync"    // Flush/Close coordination

	"ledger_system/internal/domain"    // Importing domain models
	"ledger_system/internal/incentive" // Cashback and velocity policy
	"ledger_system/internal/ledger"    // Ledger store

	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
	"github.com/sirupsen/logrus"    // Logging library
)

// DefaultQueueSize bounds the event backlog before Record blocks
const DefaultQueueSize = 256

var two = decimal.NewFromInt(2)

// Event is one completed (non-rejected) transfer handed off after commit.
type Event struct {
	CustomerID string          // Paying customer
	Amount     decimal.Decimal // Transfer amount
	NewBalance decimal.Decimal // Customer balance after the transfer
}

// Aggregator folds completed transfers into per-customer running statistics
// without rescanning history. Events are consumed by a single worker
// goroutine, so metric read-modify-writes for any customer are serialized and
// running-average updates are never lost. Failures are logged and swallowed:
// metrics are a derived, eventually-consistent view and the next successful
// transfer for the customer self-heals a stale row.
type Aggregator struct {
	store     ledger.Store   // Ledger store, owned by the caller
	events    chan Event     // Buffered handoff queue
	pending   sync.WaitGroup // Tracks enqueued-but-unprocessed events
	done      chan struct{}  // Closed when the worker exits
	closeOnce sync.Once      // Guards channel close
}

// NewAggregator creates an aggregator and starts its worker. queueSize <= 0
// selects DefaultQueueSize.
func NewAggregator(store ledger.Store, queueSize int) *Aggregator {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	a := &Aggregator{
		store:  store,
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go a.loop()
	return a
}

// Record enqueues a completed transfer. It blocks only when the queue is full
// and never reports failure to the caller: the transfer is already durable.
func (a *Aggregator) Record(customerID string, amount, newBalance decimal.Decimal) {
	a.pending.Add(1)
	a.events <- Event{CustomerID: customerID, Amount: amount, NewBalance: newBalance}
}

// Flush blocks until every event enqueued so far has been processed. Test
// harnesses use it to make the fire-and-forget handoff deterministic.
func (a *Aggregator) Flush() {
	a.pending.Wait()
}

// Close drains the queue and stops the worker. No Record calls may follow.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() { close(a.events) })
	<-a.done
}

// loop is the single worker consuming the event queue
func (a *Aggregator) loop() {
	for ev := range a.events {
		a.apply(ev)
		a.pending.Done()
	}
	close(a.done)
}

// apply folds one event into the customer's metrics row
func (a *Aggregator) apply(ev Event) {
	ctx := context.Background()
	m, err := a.store.ReadMetrics(ctx, ev.CustomerID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"customer_id": ev.CustomerID,
			"error":       err.Error(),
		}).Error("Metrics read failed")
		return
	}
	if m == nil {
		// First transfer for this customer: lazily initialize the row
		m = &domain.CustomerMetrics{
			CustomerID:  ev.CustomerID,
			AvgDailyBal: ev.NewBalance,
			MaxBal:      ev.NewBalance,
			MinBal:      ev.NewBalance,
			TotalTrVal:  ev.Amount,
			Velocity:    incentive.Velocity(ev.Amount),
		}
	} else {
		// (old+new)/2 is exponential-style smoothing, not a true running
		// mean; kept as a known approximation
		m.AvgDailyBal = m.AvgDailyBal.Add(ev.NewBalance).Div(two)
		if ev.NewBalance.GreaterThan(m.MaxBal) {
			m.MaxBal = ev.NewBalance
		}
		if ev.NewBalance.LessThan(m.MinBal) {
			m.MinBal = ev.NewBalance
		}
		// Day/week counters are monotonic; window rollover is out of scope
		m.NumTrDay++
		m.NumTrWeek++
		m.TotalTrVal = m.TotalTrVal.Add(ev.Amount)
		m.AvgTrVal = m.TotalTrVal.Div(decimal.NewFromInt(int64(m.NumTrWeek)))
		m.Velocity = incentive.Velocity(m.TotalTrVal)
	}
	m.InactiveDays = 0
	m.CashbackEarned = m.CashbackEarned.Add(incentive.Cashback(ev.Amount))
	m.IncentiveResp = incentive.NudgeResponsiveness(m.IncentiveResp)

	if err := a.store.WriteMetrics(ctx, m); err != nil {
		// Swallowed at this boundary: the transfer stays valid, the row is
		// stale until the customer's next successful transfer
		logrus.WithFields(logrus.Fields{
			"customer_id": ev.CustomerID,
			"error":       err.Error(),
		}).Error("Metrics update failed")
	}
}
