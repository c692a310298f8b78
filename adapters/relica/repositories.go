package relica

import (
	"database/sql"

	"github.com/coregx/relaybus"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Subscription relaybus.SubscriptionRepository
	DeliveryLock relaybus.DeliveryLockRepository
	DeadLetter   relaybus.DeadLetterReader
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "relaybus_" but can be customized.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepository(db, driverName),
		DeliveryLock: NewDeliveryLockRepository(db, driverName),
		DeadLetter:   NewDeadLetterRepository(db, driverName),
	}
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepositoryWithPrefix(db, driverName, prefix),
		DeliveryLock: NewDeliveryLockRepositoryWithPrefix(db, driverName, prefix),
		DeadLetter:   NewDeadLetterRepositoryWithPrefix(db, driverName, prefix),
	}
}
