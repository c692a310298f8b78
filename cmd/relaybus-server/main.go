// Package main provides the RelayBus server executable with HTTP API and renewal worker.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coregx/relaybus"
	"github.com/coregx/relaybus/adapters/inmem"
	"github.com/coregx/relaybus/adapters/relica"
	"github.com/coregx/relaybus/cmd/relaybus-server/internal/api"
	"github.com/coregx/relaybus/cmd/relaybus-server/internal/config"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SimpleLogger implements relaybus.Logger for standard logging.
type SimpleLogger struct{}

func (l *SimpleLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}
func (l *SimpleLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}
func (l *SimpleLogger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}
func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
func (l *SimpleLogger) Info(message string) {
	log.Printf("[INFO] %s", message)
}

func main() {
	log.Println("🚀 Starting RelayBus Server v0.1.0...")

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("📝 Configuration loaded:")
	log.Printf("   Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("   Database: %s (%s:%d)", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port)
	log.Printf("   Renewal interval: %ds, threshold: %ds", cfg.RelayBus.RenewalIntervalSeconds, cfg.RelayBus.RenewalThresholdSeconds)
	log.Printf("   Lock duration: %ds", cfg.RelayBus.LockDurationSeconds)

	// Connect to database
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database: %v", closeErr)
		}
	}()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	// Create logger
	logger := &SimpleLogger{}

	// Create repositories using Relica adapters
	var repos *relica.Repositories
	if cfg.Database.Prefix != "" {
		repos = relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	} else {
		repos = relica.NewRepositories(db, cfg.Database.Driver)
	}
	log.Println("✅ Repositories initialized (Relica adapters)")

	// Create notification service
	var notificationService relaybus.NotificationService
	if cfg.RelayBus.EnableNotifications {
		notificationService = relaybus.NewLoggingNotificationService(logger)
	} else {
		notificationService = &relaybus.NoOpNotificationService{}
	}

	// In-memory broker backend. Swap for a real broker adapter in production.
	lockDuration := time.Duration(cfg.RelayBus.LockDurationSeconds) * time.Second
	broker := inmem.NewBroker(lockDuration)

	// Create SubscriptionRegistry service
	registry, err := relaybus.NewSubscriptionRegistry(
		relaybus.WithRegistryRepository(repos.Subscription),
		relaybus.WithRegistryLogger(logger),
		relaybus.WithRegistryNotifications(notificationService),
	)
	if err != nil {
		log.Fatalf("Failed to create subscription registry: %v", err)
	}
	log.Println("✅ SubscriptionRegistry service created")

	// Create TopicSubscriptionProvisioner service
	settings := relaybus.DefaultSubscriptionSettings()
	settings.LockDuration = lockDuration
	provisioner, err := relaybus.NewTopicSubscriptionProvisioner(
		relaybus.WithBrokerAdmin(broker),
		relaybus.WithProvisionerLogger(logger),
		relaybus.WithSubscriptionSettings(settings),
	)
	if err != nil {
		log.Fatalf("Failed to create provisioner: %v", err)
	}
	log.Println("✅ TopicSubscriptionProvisioner service created")

	// Create DeliveryLockTracker service
	tracker, err := relaybus.NewDeliveryLockTracker(
		relaybus.WithTrackerRepository(repos.DeliveryLock),
		relaybus.WithTrackerLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create lock tracker: %v", err)
	}
	log.Println("✅ DeliveryLockTracker service created")

	// Create DeadLetterMonitor service
	monitor, err := relaybus.NewDeadLetterMonitor(repos.DeadLetter, logger)
	if err != nil {
		log.Fatalf("Failed to create dead letter monitor: %v", err)
	}
	log.Println("✅ DeadLetterMonitor service created")

	// Create RenewalWorker
	worker, err := relaybus.NewRenewalWorker(
		relaybus.WithWorkerTracker(tracker),
		relaybus.WithWorkerRenewer(broker),
		relaybus.WithWorkerLogger(logger),
		relaybus.WithWorkerNotifications(notificationService),
		relaybus.WithRenewalThreshold(time.Duration(cfg.RelayBus.RenewalThresholdSeconds)*time.Second),
		relaybus.WithMaxConcurrentRenewals(cfg.RelayBus.MaxConcurrentRenewals),
		relaybus.WithRetentionPeriod(time.Duration(cfg.RelayBus.RetentionDays)*24*time.Hour),
		relaybus.WithWorkerDeadLetterMonitor(monitor),
		relaybus.WithDeadLetterThreshold(cfg.RelayBus.DeadLetterThreshold),
	)
	if err != nil {
		log.Fatalf("Failed to create renewal worker: %v", err)
	}
	log.Println("✅ RenewalWorker created")

	// Start worker in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Printf("🔄 Starting renewal worker (interval: %ds)...", cfg.RelayBus.RenewalIntervalSeconds)
		worker.Run(ctx, time.Duration(cfg.RelayBus.RenewalIntervalSeconds)*time.Second)
	}()

	// Create API handler
	handler := api.NewHandler(registry, provisioner, monitor, logger)

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/subscriptions", handler.HandleSubscriptions)
	mux.HandleFunc("/api/v1/subscriptions/", handler.HandleUnsubscribe) // Note trailing slash for :id
	mux.HandleFunc("/api/v1/deadletters", handler.HandleDeadLetters)
	mux.HandleFunc("/api/v1/deadletters/stats", handler.HandleDeadLetterStats)
	mux.HandleFunc("/api/v1/health", handler.HandleHealth)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("🌐 HTTP server listening on %s", addr)
		log.Println("📡 API Endpoints:")
		log.Println("   POST   /api/v1/subscriptions")
		log.Println("   GET    /api/v1/subscriptions")
		log.Println("   DELETE /api/v1/subscriptions/:id")
		log.Println("   GET    /api/v1/deadletters")
		log.Println("   GET    /api/v1/deadletters/stats")
		log.Println("   GET    /api/v1/health")
		log.Println()
		log.Println("✅ RelayBus Server is ready!")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	cancel() // Stop worker
	log.Println("✅ Server stopped gracefully")
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger relaybus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
