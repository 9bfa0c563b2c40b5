package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ledger_system/internal/config"
	"ledger_system/internal/domain"
	"ledger_system/internal/engine"
	"ledger_system/internal/ledger"
	"ledger_system/internal/middleware"
	"ledger_system/internal/utils"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newRouter wires the handlers over an in-memory store without redis
func newRouter(t *testing.T) (*gin.Engine, *ledger.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := ledger.NewMemoryStore()
	eng := engine.New(store, nil)

	r := gin.New()
	r.POST("/ledger/customers", UpsertCustomerHandler(store))
	r.POST("/ledger/merchants", UpsertMerchantHandler(store))
	r.POST("/ledger/transfer", TransferHandler(eng, nil))
	r.GET("/ledger/balance/:customer_id", GetBalanceHandler(store, nil))
	r.GET("/ledger/history", GetHistoryHandler(store, nil))
	r.GET("/ledger/metrics/:customer_id", GetMetricsHandler(store))
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, store *ledger.MemoryStore, balance string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.UpsertCustomer(ctx, &domain.Customer{CustomerID: "c1", NameFull: "Alice", AccBalance: dec(balance)}))
	require.NoError(t, store.UpsertMerchant(ctx, &domain.Merchant{MerchantID: "m1", Category: "Food", AccBalance: dec("5000")}))
}

func TestUpsertCustomerHandler_AppliesDefaults(t *testing.T) {
	r, store := newRouter(t)

	w := doJSON(t, r, http.MethodPost, "/ledger/customers", gin.H{
		"customer_id": "c1",
		"name_full":   "Alice",
	})
	require.Equal(t, http.StatusOK, w.Code)

	customer, err := store.GetCustomer(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 18, customer.Age)
	assert.Equal(t, "Unknown", customer.Profession)
	assert.Equal(t, 1, customer.Level)
	assert.Equal(t, "General", customer.Industry)
	assert.True(t, customer.AccBalance.IsZero())
}

func TestUpsertCustomerHandler_RequiresIdentity(t *testing.T) {
	r, _ := newRouter(t)

	w := doJSON(t, r, http.MethodPost, "/ledger/customers", gin.H{"name_full": "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/ledger/customers", gin.H{
		"customer_id": "c1",
		"name_full":   "Alice",
		"balance":     "-5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferHandler_Success(t *testing.T) {
	r, store := newRouter(t)
	seed(t, store, "1000")

	w := doJSON(t, r, http.MethodPost, "/ledger/transfer", gin.H{
		"customer_id": "c1",
		"merchant_id": "m1",
		"amount":      "100",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Success", resp.Outcome)

	balance, err := store.GetBalance(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("900")))
}

func TestTransferHandler_InsufficientFunds(t *testing.T) {
	r, store := newRouter(t)
	seed(t, store, "50")

	w := doJSON(t, r, http.MethodPost, "/ledger/transfer", gin.H{
		"customer_id": "c1",
		"merchant_id": "m1",
		"amount":      "100",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "InsufficientFunds", resp.Outcome)
}

func TestTransferHandler_Validation(t *testing.T) {
	r, store := newRouter(t)
	seed(t, store, "1000")

	// Non-positive amount
	w := doJSON(t, r, http.MethodPost, "/ledger/transfer", gin.H{
		"customer_id": "c1",
		"merchant_id": "m1",
		"amount":      "0",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown merchant
	w = doJSON(t, r, http.MethodPost, "/ledger/transfer", gin.H{
		"customer_id": "c1",
		"merchant_id": "ghost",
		"amount":      "10",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBalanceHandler(t *testing.T) {
	r, store := newRouter(t)
	seed(t, store, "1000")

	w := doJSON(t, r, http.MethodGet, "/ledger/balance/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1000", resp.Balance)

	w = doJSON(t, r, http.MethodGet, "/ledger/balance/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHistoryHandler_Paginates(t *testing.T) {
	r, store := newRouter(t)
	seed(t, store, "1000")

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/ledger/transfer", gin.H{
			"customer_id": "c1",
			"merchant_id": "m1",
			"amount":      "10",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/ledger/history?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Records    []domain.HistoryRecord `json:"records"`
		Total      int64                  `json:"total"`
		TotalPages int                    `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
}

func TestGetMetricsHandler_AbsentRow(t *testing.T) {
	r, _ := newRouter(t)

	w := doJSON(t, r, http.MethodGet, "/ledger/metrics/c1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{
		OperatorUser:     "ops",
		OperatorPassHash: string(hash),
		JWTSecret:        "test-secret",
	}

	r := gin.New()
	r.POST("/auth/token", TokenHandler(cfg))
	protected := r.Group("/ledger")
	protected.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	protected.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	// Wrong password is rejected
	w := doJSON(t, r, http.MethodPost, "/auth/token", gin.H{"username": "ops", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid credentials yield a token
	w = doJSON(t, r, http.MethodPost, "/auth/token", gin.H{"username": "ops", "password": "hunter2hunter2"})
	require.Equal(t, http.StatusOK, w.Code)
	var auth AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.Token)

	// Missing token is rejected
	req := httptest.NewRequest(http.MethodGet, "/ledger/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The issued token passes the middleware
	req = httptest.NewRequest(http.MethodGet, "/ledger/ping", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Sanity: the claims round-trip
	claims, err := utils.ParseJWT(auth.Token, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
}
