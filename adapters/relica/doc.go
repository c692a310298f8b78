// Package relica provides production-ready repository implementations for
// the relaybus delivery core using the Relica query builder.
//
// Supported databases: MySQL, PostgreSQL, SQLite (same driver set as the
// standalone server). Reads go through Relica; the conditional writes
// that serialize mutations per row (upsert on the unique key, renew and
// transition guarded on current status) use raw SQL, since they depend on
// compare-and-set semantics the Model API does not express.
//
// Example:
//
//	db, _ := sql.Open("mysql", dsn)
//	repos := relica.NewRepositories(db, "mysql")
//	tracker, _ := relaybus.NewDeliveryLockTracker(
//	    relaybus.WithTrackerRepository(repos.DeliveryLock),
//	    relaybus.WithTrackerLogger(logger),
//	)
package relica
