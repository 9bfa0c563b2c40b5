package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger_system/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCustomer(id, balance string) *domain.Customer {
	return &domain.Customer{
		CustomerID: id,
		NameFull:   id,
		AccBalance: dec(balance),
	}
}

func TestUpsertCustomer_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "1000")))
	// Repeat call with the same key must not error
	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "1500")))

	balance, err := store.GetBalance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("1500")), "upsert replaces the row")
}

func TestUpsertCustomer_PreservesCreatedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "1000")))
	first, err := store.GetCustomer(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "2000")))
	second, err := store.GetCustomer(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestGetBalance_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetBalance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendHistory_DuplicateIDIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &domain.HistoryRecord{
		HistoryID:  "tr-1",
		CustomerID: "c1",
		Amount:     dec("100"),
		Time:       time.Now(),
	}
	require.NoError(t, store.AppendHistory(ctx, record))
	// Replaying the same id must not error and must not duplicate
	require.NoError(t, store.AppendHistory(ctx, record))

	total, err := store.CountHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestWithTransaction_CommitsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "1000")))
	require.NoError(t, store.UpsertMerchant(ctx, &domain.Merchant{MerchantID: "m1", AccBalance: dec("5000")}))

	err := store.WithTransaction(ctx, "c1", func(tx Tx) error {
		if err := tx.SetCustomerBalance("c1", dec("900")); err != nil {
			return err
		}
		if err := tx.CreditMerchant("m1", dec("100")); err != nil {
			return err
		}
		return tx.AppendHistory(&domain.HistoryRecord{HistoryID: "tr-1", CustomerID: "c1", Amount: dec("100")})
	})
	require.NoError(t, err)

	balance, err := store.GetBalance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("900")))

	merchant, err := store.GetMerchant(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, merchant.AccBalance.Equal(dec("5100")))

	total, err := store.CountHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "1000")))
	require.NoError(t, store.UpsertMerchant(ctx, &domain.Merchant{MerchantID: "m1", AccBalance: dec("5000")}))

	boom := errors.New("storage fault")
	err := store.WithTransaction(ctx, "c1", func(tx Tx) error {
		require.NoError(t, tx.SetCustomerBalance("c1", dec("900")))
		require.NoError(t, tx.CreditMerchant("m1", dec("100")))
		require.NoError(t, tx.AppendHistory(&domain.HistoryRecord{HistoryID: "tr-1", CustomerID: "c1", Amount: dec("100")}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing staged may be visible
	balance, err := store.GetBalance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("1000")))

	merchant, err := store.GetMerchant(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, merchant.AccBalance.Equal(dec("5000")))

	total, err := store.CountHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestWithTransaction_BoundedWait(t *testing.T) {
	store := NewMemoryStore()
	store.SetTxTimeout(50 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c1", "1000")))

	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = store.WithTransaction(ctx, "c1", func(Tx) error {
			close(held)
			<-hold
			return nil
		})
	}()
	<-held

	// Contending for the same customer must time out, not block forever
	err := store.WithTransaction(ctx, "c1", func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrTxTimeout)

	// A disjoint customer proceeds independently
	require.NoError(t, store.UpsertCustomer(ctx, newCustomer("c2", "500")))
	err = store.WithTransaction(ctx, "c2", func(Tx) error { return nil })
	assert.NoError(t, err)

	close(hold)
}

func TestGetHistory_MostRecentFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"tr-1", "tr-2", "tr-3"} {
		require.NoError(t, store.AppendHistory(ctx, &domain.HistoryRecord{
			HistoryID:  id,
			CustomerID: "c1",
			Amount:     dec("10"),
			Time:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := store.GetHistory(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "tr-3", records[0].HistoryID)
	assert.Equal(t, "tr-1", records[2].HistoryID)

	// Pagination
	page, err := store.GetHistory(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "tr-1", page[0].HistoryID)
}

func TestReadMetrics_AbsentIsNil(t *testing.T) {
	store := NewMemoryStore()

	metrics, err := store.ReadMetrics(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestWriteMetrics_Upserts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.WriteMetrics(ctx, &domain.CustomerMetrics{CustomerID: "c1", NumTrWeek: 1}))
	require.NoError(t, store.WriteMetrics(ctx, &domain.CustomerMetrics{CustomerID: "c1", NumTrWeek: 2}))

	metrics, err := store.ReadMetrics(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.Equal(t, 2, metrics.NumTrWeek)
}
