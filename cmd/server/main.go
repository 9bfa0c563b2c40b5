package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging
	"time"    // Decay sweep ticker

	"ledger_system/internal/api"        // Custom package for API handlers
	"ledger_system/internal/config"     // Custom package for configuration
	"ledger_system/internal/engine"     // Transfer engine
	"ledger_system/internal/incentive"  // Incentive policy and decay sweep
	"ledger_system/internal/ledger"     // Ledger store
	"ledger_system/internal/metrics"    // Metrics aggregator
	"ledger_system/internal/middleware" // Custom package for middleware

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Wire the ledger: one explicitly owned store passed by reference,
	// the aggregator consuming completed transfers, the engine on top
	store := ledger.NewGormStore(db)
	aggregator := metrics.NewAggregator(store, cfg.MetricsQueueSize)
	defer aggregator.Close()
	eng := engine.New(store, aggregator)

	// Optional daily decay sweep over idle balances
	if cfg.DecaySweep {
		sweep := incentive.NewSweep(store)
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				if err := sweep.Run(context.Background()); err != nil {
					logrus.Errorf("decay sweep failed: %v", err)
				}
			}
		}()
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth route
	r.POST("/auth/token", api.TokenHandler(cfg)) // Operator token endpoint

	// Ledger routes (protected by JWT)
	ledgerGroup := r.Group("/ledger")
	ledgerGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	ledgerGroup.POST("/customers", api.UpsertCustomerHandler(store))                    // Customer upsert endpoint
	ledgerGroup.POST("/merchants", api.UpsertMerchantHandler(store))                    // Merchant upsert endpoint
	ledgerGroup.POST("/transfer", api.TransferHandler(eng, redisClient))                // Transfer endpoint
	ledgerGroup.GET("/balance/:customer_id", api.GetBalanceHandler(store, redisClient)) // Balance endpoint
	ledgerGroup.GET("/history", api.GetHistoryHandler(store, redisClient))              // History endpoint
	ledgerGroup.GET("/metrics/:customer_id", api.GetMetricsHandler(store))              // Metrics endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
