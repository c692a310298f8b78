package relaybus

import (
	"context"
	"time"

	"github.com/coregx/relaybus/model"
)

// SubscriptionRepository defines the persistence interface for the
// adapter-to-interface subscription registry.
//
// Implementations must be safe for concurrent use. Upsert must be atomic
// on the (adapter_instance_id, interface_name) unique key so that
// concurrent upserts for the same pair cannot create duplicate rows.
type SubscriptionRepository interface {
	// Load retrieves a subscription by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Subscription, error)

	// Upsert atomically inserts or updates the unique
	// (AdapterInstanceID, InterfaceName) row and returns the stored state.
	Upsert(ctx context.Context, m model.Subscription) (model.Subscription, error)

	// FindByKey retrieves the subscription for one adapter instance on one
	// interface. Returns ErrNoData if not found.
	FindByKey(ctx context.Context, adapterInstanceID, interfaceName string) (model.Subscription, error)

	// FindByInterface retrieves all enabled subscriptions for an interface.
	// Returns ErrNoData if none found.
	FindByInterface(ctx context.Context, interfaceName string) ([]model.Subscription, error)

	// FindByAdapter retrieves all enabled subscriptions for one adapter
	// instance. Returns ErrNoData if none found.
	FindByAdapter(ctx context.Context, adapterInstanceID string) ([]model.Subscription, error)

	// SetEnabled updates the enabled flag for a subscription.
	// Returns ErrNoData if the id does not exist.
	SetEnabled(ctx context.Context, id int64, enabled bool) error

	// Delete permanently removes a subscription.
	// Returns ErrNoData if the id does not exist.
	Delete(ctx context.Context, id int64) error
}

// DeliveryLockRepository defines the persistence interface for in-flight
// delivery lock bookkeeping.
//
// All mutations on one message_id must be serialized at the store level:
// Renew and Transition are conditional updates (compare-and-set on the
// current status) so concurrent renewal and status-transition calls
// cannot both win on the same row.
type DeliveryLockRepository interface {
	// FindByMessageID retrieves the lock row for a message.
	// Returns ErrNoData if not found.
	FindByMessageID(ctx context.Context, messageID string) (model.DeliveryLock, error)

	// Upsert atomically inserts or replaces the row keyed on MessageID,
	// resetting it to the given (Active) state. Safe to call repeatedly
	// for the same message on recovery or redelivery.
	Upsert(ctx context.Context, m model.DeliveryLock) (model.DeliveryLock, error)

	// Renew conditionally advances the lock: only rows that are currently
	// Active and whose stored expiry does not exceed newExpiresAt are
	// updated (token rotated, expiry advanced, renewal_count bumped).
	// Returns false if no row matched the condition.
	Renew(ctx context.Context, messageID, newToken string, newExpiresAt time.Time) (bool, error)

	// Transition conditionally moves an Active row to the given status,
	// recording reason and completion time for terminal states.
	// Returns false if the row was not Active.
	Transition(ctx context.Context, messageID string, status model.LockStatus, reason string) (bool, error)

	// FindNeedingRenewal retrieves Active rows whose expiry falls within
	// threshold of now, ordered by soonest expiry first.
	// Returns ErrNoData if none found.
	FindNeedingRenewal(ctx context.Context, threshold time.Duration) ([]model.DeliveryLock, error)

	// ExpireOverdue finds Active rows whose expiry has passed and marks
	// each Expired with the given reason as one atomic unit per row.
	// Only rows actually transitioned by this call are returned, so two
	// concurrent sweeps cannot both claim the same lock.
	ExpireOverdue(ctx context.Context, reason string) ([]model.DeliveryLock, error)

	// DeleteTerminalOlderThan bulk-deletes terminal rows whose completion
	// time is before cutoff. Returns the number of rows removed.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// DeadLetterReader defines the read-only interface over the broker's
// dead-letter holding area, consumed by the DeadLetterMonitor.
type DeadLetterReader interface {
	// ReadDeadLetterMessages retrieves dead-lettered messages, optionally
	// filtered by interface name (empty string = all interfaces).
	// Returns ErrNoData if none found.
	ReadDeadLetterMessages(ctx context.Context, interfaceName string) ([]model.DeadLetterMessage, error)
}
