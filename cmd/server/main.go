package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/melodyhub/backend/docs"
	"github.com/melodyhub/backend/internal/config"
	"github.com/melodyhub/backend/internal/database"
	"github.com/melodyhub/backend/internal/handlers"
	"github.com/melodyhub/backend/internal/metrics"
	mW "github.com/melodyhub/backend/internal/middleware"
	"github.com/melodyhub/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Melody Wallet API
// @version 1.0
// @description Wallet ledger and VIP entitlement backend for the Melody streaming platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	walletCfg := config.LoadWalletConfig()
	paymentCfg := config.LoadPaymentConfig()

	// Initialize services
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	accountService := services.NewAccountService(db, redisClient, ledgerService, walletCfg)
	notifier := services.NewNotifier(redisClient)
	coordinator := services.NewCoordinatorService(db, accountService, ledgerService, notifier, walletCfg)
	rechargeService := services.NewRechargeRequestService(db, coordinator, walletCfg)
	withdrawService := services.NewWithdrawRequestService(db, coordinator, walletCfg)
	paymentInfoService := services.NewPaymentInfoService(redisClient, paymentCfg)

	if err := coordinator.EnsurePlatformAccounts(); err != nil {
		log.Fatalf("Failed to provision platform accounts: %v", err)
	}

	walletHandler := handlers.NewWalletHandler(accountService, coordinator, ledgerService, rechargeService, withdrawService, paymentInfoService, walletCfg)
	adminHandler := handlers.NewAdminHandler(coordinator, ledgerService, rechargeService, withdrawService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for payment method logos
	r.Handle("/static/payment-logos/*", http.StripPrefix("/static/payment-logos/",
		mW.StaticFileServer("./static/payment-logos")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Get("/wallet/vip/plans", walletHandler.ListPlans)
		r.Get("/wallet/payment-info", walletHandler.GetPaymentInfo)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/accounts", walletHandler.Register)
			r.Get("/accounts/balance", walletHandler.GetBalance)
			r.Get("/ledger", walletHandler.ListLedger)

			r.Post("/wallet/recharge-requests", walletHandler.CreateRechargeRequest)
			r.Get("/wallet/recharge-requests", walletHandler.ListRechargeRequests)
			r.Post("/wallet/withdraw-requests", walletHandler.CreateWithdrawRequest)
			r.Get("/wallet/withdraw-requests", walletHandler.ListWithdrawRequests)
			r.Post("/wallet/tip", walletHandler.Tip)
			r.Post("/wallet/vip/purchase", walletHandler.PurchaseVip)

			// Operator endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Get("/admin/recharge-requests", adminHandler.ListRechargeRequests)
				r.Put("/admin/recharge-requests/{id}", adminHandler.ProcessRechargeRequest)
				r.Get("/admin/withdraw-requests", adminHandler.ListWithdrawRequests)
				r.Put("/admin/withdraw-requests/{id}", adminHandler.ProcessWithdrawRequest)
				r.Post("/admin/adjustments", adminHandler.Adjust)
				r.Post("/admin/refunds", adminHandler.Refund)
				r.Get("/admin/ledger", adminHandler.ListLedger)
				r.Get("/admin/ledger/verify", adminHandler.VerifyLedger)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
