// Package relaybus provides a production-ready delivery-resilience layer for
// broker-backed integration middleware: subscription lifecycle management,
// persistent delivery-lock tracking with automatic renewal, retry with
// exponential backoff, and dead-letter monitoring.
//
// Works both as a library for embedding in your application AND as a standalone
// service with REST API.
//
// # Features
//
//   - At-Least-Once Delivery tracking via persistent delivery locks
//   - Automatic Lock Renewal keeps long-running deliveries locked until settled
//   - Crash Recovery rebuilds state from the durable store alone after restart
//   - Exponential Backoff with jitter: 1s → 2s → 4s ... (30s max)
//   - Idempotent Provisioning of broker topics and durable subscriptions
//   - Dead Letter Monitoring with per-interface statistics and alert thresholds
//   - Domain-Driven Design with rich domain models containing business logic
//   - Repository Pattern for clean data access abstraction
//   - Options Pattern for modern Go API design
//   - Pluggable architecture: bring your own Logger, Notification system, Broker
//   - Multi-Database Support: MySQL, PostgreSQL, SQLite via Relica adapters
//   - Embedded Migrations for easy database setup
//   - Cloud Native: 12-factor app, ENV config, health checks
//
// # Quick Start
//
// # Option 1: As Embedded Library
//
// Connect to the database and create the repositories:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/relaybus"
//	    "github.com/coregx/relaybus/adapters/relica"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	db, _ := sql.Open("mysql", "user:pass@tcp(localhost:3306)/relaybus?parseTime=true&clientFoundRows=true")
//	repos := relica.NewRepositories(db, "mysql")
//
// Register a subscription and provision its broker entities:
//
//	registry, _ := relaybus.NewSubscriptionRegistry(
//	    relaybus.WithRegistryRepository(repos.Subscription),
//	    relaybus.WithRegistryLogger(logger),
//	)
//	sub, _ := registry.Upsert(ctx, relaybus.UpsertRequest{
//	    AdapterInstanceID: "payment-processor-1",
//	    InterfaceName:     "OrderEvents",
//	    AdapterName:       "PaymentProcessor",
//	    FilterCriteria:    "region = 'eu'",
//	})
//
//	provisioner, _ := relaybus.NewTopicSubscriptionProvisioner(
//	    relaybus.WithBrokerAdmin(brokerAdmin),
//	    relaybus.WithProvisionerLogger(logger),
//	)
//	_ = provisioner.EnsureSubscription(ctx, sub.InterfaceName, sub.AdapterInstanceID, sub.FilterCriteria)
//
// Track delivery locks and keep them renewed in the background:
//
//	tracker, _ := relaybus.NewDeliveryLockTracker(
//	    relaybus.WithTrackerRepository(repos.DeliveryLock),
//	    relaybus.WithTrackerLogger(logger),
//	)
//
//	worker, _ := relaybus.NewRenewalWorker(
//	    relaybus.WithWorkerTracker(tracker),
//	    relaybus.WithWorkerRenewer(lockRenewer),
//	    relaybus.WithWorkerLogger(logger),
//	)
//	worker.Run(ctx, 30*time.Second)
//
// # Option 2: As Standalone Service
//
// Run the standalone RelayBus server and access the REST API at
// http://localhost:8080:
//
//	# Create subscription
//	curl -X POST http://localhost:8080/api/v1/subscriptions \
//	  -H "Content-Type: application/json" \
//	  -d '{"interfaceName":"OrderEvents","adapterName":"PaymentProcessor"}'
//
//	# Dead-letter statistics
//	curl http://localhost:8080/api/v1/deadletters/stats
//
//	# Health check
//	curl http://localhost:8080/api/v1/health
//
// # Architecture
//
// The library follows Clean Architecture and Domain-Driven Design principles:
//
//	┌─────────────────────────────────────┐
//	│         Application Layer           │
//	│  (SubscriptionRegistry,             │
//	│   Provisioner, LockTracker,         │
//	│   RenewalWorker, REST API)          │
//	└─────────────┬───────────────────────┘
//	              │
//	┌─────────────▼───────────────────────┐
//	│         Domain Layer                │
//	│  (Rich models with business logic)  │
//	└─────────────┬───────────────────────┘
//	              │
//	┌─────────────▼───────────────────────┐
//	│   Relica / Broker Adapters          │
//	│  (Production-ready implementations) │
//	└─────────────┬───────────────────────┘
//	              │
//	┌─────────────▼───────────────────────┐
//	│    Database (MySQL/PostgreSQL/      │
//	│       SQLite) + Message Broker      │
//	└─────────────────────────────────────┘
//
// Key principles:
//   - Domain models contain business logic (DeliveryLock.Renew, DeliveryLock.Transition, etc.)
//   - Repository Pattern abstracts database operations
//   - Dependency Inversion via interfaces (Logger, Notification, BrokerAdmin, LockRenewer)
//   - Options Pattern for service configuration
//   - The durable store is the single source of truth for recovery
//
// # Delivery Flow
//
//  1. SUBSCRIBE
//     SubscriptionRegistry.Upsert → persist (adapter, interface) mapping
//     → Provisioner.EnsureSubscription → broker topic + durable subscription
//
//  2. DELIVER
//     Broker hands message + lock to consumer
//     → DeliveryLockTracker.RecordLock persists the lock
//     → On success: UpdateStatus(Completed)
//     → On failure: UpdateStatus(Abandoned) for redelivery
//
//  3. RENEW (Background)
//     RenewalWorker → find locks nearing expiry
//     → renew at broker (token rotates) → persist new token + expiry
//     → locks the broker no longer holds are marked Expired
//
//  4. DEAD LETTERS
//     Exhausted messages land in the broker dead-letter path
//     → DeadLetterMonitor exposes counts, recency and per-interface stats
//
// # Database Schema
//
// The library requires 3 database tables (created via embedded migrations):
//
//	relaybus_subscription   - Adapter-to-interface subscription mappings
//	relaybus_delivery_lock  - Per-message delivery lock state
//	relaybus_dead_letter    - Dead-lettered message records (read-only here)
//
// Supports MySQL, PostgreSQL, and SQLite via Relica adapters. Each engine
// has its own migration set under MigrationsDir(driverName).
// Table prefix can be customized (default: "relaybus_").
//
// # Examples
//
// See the examples/ directory for complete working examples.
//
// For detailed documentation, see README.md and pkg.go.dev.
package relaybus
