package api

import (
	"context"  // Context for Redis operations
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Time durations

	"ledger_system/internal/domain" // Importing domain models
	"ledger_system/internal/engine" // Transfer engine
	"ledger_system/internal/ledger" // Ledger store
	"ledger_system/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Fixed-point decimal for monetary fields
)

// CustomerRequest enumerates every customer profile field and its default
type CustomerRequest struct {
	CustomerID  string          `json:"customer_id" binding:"required"` // Primary key, required
	Age         *int            `json:"age"`                            // Defaults to 18
	NameFull    string          `json:"name_full" binding:"required"`   // Full name, required
	Profession  string          `json:"profession"`                     // Defaults to "Unknown"
	Salary      decimal.Decimal `json:"salary"`                         // Defaults to 0
	Level       *int            `json:"level"`                          // Defaults to 1
	AccBalance  decimal.Decimal `json:"balance"`                        // Defaults to 0
	Description string          `json:"description"`                    // Defaults to ""
	Industry    string          `json:"industry"`                       // Defaults to "General"
	Behavior    string          `json:"behavior"`                       // Defaults to "Moderate"
}

// UpsertCustomerHandler inserts or replaces a customer profile
func UpsertCustomerHandler(store ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CustomerRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Apply profile defaults
		customer := domain.Customer{
			CustomerID:  req.CustomerID,
			Age:         18,
			NameFull:    req.NameFull,
			Profession:  "Unknown",
			Salary:      req.Salary,
			Level:       1,
			AccBalance:  req.AccBalance,
			Description: req.Description,
			Industry:    "General",
			Behavior:    "Moderate",
		}
		if req.Age != nil {
			customer.Age = *req.Age
		}
		if req.Level != nil {
			customer.Level = *req.Level
		}
		if req.Profession != "" {
			customer.Profession = req.Profession
		}
		if req.Industry != "" {
			customer.Industry = req.Industry
		}
		if req.Behavior != "" {
			customer.Behavior = req.Behavior
		}
		// Balances never start negative
		if customer.AccBalance.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Balance must not be negative"})
			return
		}
		// Upsert is idempotent; repeat calls with the same key succeed
		if err := store.UpsertCustomer(c.Request.Context(), &customer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save customer"})
			return
		}
		// Return success response
		c.JSON(http.StatusOK, gin.H{"message": "Customer saved", "customer": customer})
	}
}

// MerchantRequest enumerates every merchant profile field and its default
type MerchantRequest struct {
	MerchantID  string          `json:"merchant_id" binding:"required"` // Primary key, required
	Category    string          `json:"category"`                       // Defaults to "General"
	Description string          `json:"description"`                    // Defaults to ""
	AccBalance  decimal.Decimal `json:"balance"`                        // Defaults to 0
}

// UpsertMerchantHandler inserts or replaces a merchant profile
func UpsertMerchantHandler(store ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MerchantRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Apply profile defaults
		merchant := domain.Merchant{
			MerchantID:  req.MerchantID,
			Category:    "General",
			Description: req.Description,
			AccBalance:  req.AccBalance,
		}
		if req.Category != "" {
			merchant.Category = req.Category
		}
		// Upsert is idempotent; repeat calls with the same key succeed
		if err := store.UpsertMerchant(c.Request.Context(), &merchant); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save merchant"})
			return
		}
		// Return success response
		c.JSON(http.StatusOK, gin.H{"message": "Merchant saved", "merchant": merchant})
	}
}

// TransferRequest represents a transfer request
type TransferRequest struct {
	CustomerID    string          `json:"customer_id" binding:"required"` // Paying customer
	MerchantID    string          `json:"merchant_id" binding:"required"` // Receiving merchant
	Amount        decimal.Decimal `json:"amount"`                         // Transfer amount, must be positive
	TransactionID string          `json:"tr_id"`                          // Optional idempotency key
}

// TransferHandler moves value from a customer to a merchant
func TransferHandler(eng *engine.Engine, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		outcome, err := eng.Transfer(c.Request.Context(), engine.Request{
			CustomerID:    req.CustomerID,
			MerchantID:    req.MerchantID,
			Amount:        req.Amount,
			TransactionID: req.TransactionID,
		})
		// Map the typed outcome onto the HTTP surface
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrMissingParty):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, ledger.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Customer or merchant not found"})
			default:
				// Aborted: retryable, no partial state
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Transfer failed", "outcome": outcome.String()})
			}
			return
		}
		if outcome == engine.InsufficientFunds {
			// A normal business outcome, recorded in history
			c.JSON(http.StatusUnprocessableEntity, gin.H{"outcome": outcome.String()})
			return
		}
		// Invalidate balance and history cache
		if rdb != nil {
			ctx := context.Background()                                 // Context for Redis operations
			_ = utils.DeleteCache(ctx, rdb, balanceKey(req.CustomerID)) // Invalidate customer balance cache
			// Invalidate paginated history cache (simple version: delete first 5 pages)
			for i := 1; i <= 5; i++ {
				// Delete cache entries
				_ = utils.DeleteCache(ctx, rdb, "history:page:"+strconv.Itoa(i)+":size:20")
			}
		}
		// Return success response
		c.JSON(http.StatusOK, gin.H{"outcome": outcome.String()})
	}
}

// balanceKey builds the redis cache key for a customer balance
func balanceKey(customerID string) string {
	return "balance:customer:" + customerID
}

// GetBalanceHandler returns the balance of one customer
func GetBalanceHandler(store ledger.Store, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.Param("customer_id") // Customer id from the path
		ctx := context.Background()          // Context for Redis operations
		var cached string
		// Try to get from cache
		if rdb != nil {
			found, err := utils.GetCache(ctx, rdb, balanceKey(customerID), &cached)
			if err == nil && found {
				// Return cached balance
				c.JSON(http.StatusOK, gin.H{"customer_id": customerID, "balance": cached, "cached": true})
				return
			}
		}
		// If not in cache, fetch from the store
		balance, err := store.GetBalance(c.Request.Context(), customerID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch balance"})
			return
		}
		if rdb != nil {
			_ = utils.SetCache(ctx, rdb, balanceKey(customerID), balance.String(), 60*time.Second) // Cache for 60 seconds
		}
		c.JSON(http.StatusOK, gin.H{"customer_id": customerID, "balance": balance.String(), "cached": false})
	}
}

// historyPage is the cached shape of one history page
type historyPage struct {
	Records    []domain.HistoryRecord `json:"records"`     // History records, most recent first
	Page       int                    `json:"page"`        // Current page
	PageSize   int                    `json:"page_size"`   // Page size
	Total      int64                  `json:"total"`       // Total records
	TotalPages int                    `json:"total_pages"` // Total pages
}

// GetHistoryHandler returns the transfer history, most recent first
func GetHistoryHandler(store ledger.Store, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			// Convert page to integer
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			// Convert page_size to integer
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		offset := (page - 1) * pageSize // Calculate offset
		// Redis cache key
		cacheKey := "history:page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		ctx := context.Background() // Context for Redis operations
		var cached historyPage
		// Try to get from cache
		if rdb != nil {
			found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
			if err == nil && found {
				c.JSON(http.StatusOK, gin.H{
					"records":     cached.Records,    // Cached records
					"page":        cached.Page,       // Current page
					"page_size":   cached.PageSize,   // Page size
					"total":       cached.Total,      // Total records
					"total_pages": cached.TotalPages, // Total pages
					"cached":      true,
				})
				return
			}
		}
		// Count total records for pagination
		total, err := store.CountHistory(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count history"})
			return
		}
		// Fetch the page, most recent first
		records, err := store.GetHistory(c.Request.Context(), pageSize, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
			return
		}
		// Calculate total pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := historyPage{
			Records:    records,    // History records
			Page:       page,       // Current page
			PageSize:   pageSize,   // Page size
			Total:      total,      // Total records
			TotalPages: totalPages, // Total pages
		}
		if rdb != nil {
			// Cache the result for 60 seconds
			_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		}
		c.JSON(http.StatusOK, gin.H{
			"records":     resp.Records,
			"page":        resp.Page,
			"page_size":   resp.PageSize,
			"total":       resp.Total,
			"total_pages": resp.TotalPages,
			"cached":      false,
		})
	}
}

// GetMetricsHandler returns the behavioral metrics row for one customer
func GetMetricsHandler(store ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := c.Param("customer_id") // Customer id from the path
		metrics, err := store.ReadMetrics(c.Request.Context(), customerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch metrics"})
			return
		}
		// Metrics rows are created lazily on the first transfer
		if metrics == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No metrics for customer"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"metrics": metrics})
	}
}
