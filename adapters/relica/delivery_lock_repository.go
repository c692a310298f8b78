package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relaybus"
	"github.com/coregx/relaybus/model"
	"github.com/coregx/relica"
)

// DeliveryLockRepository implements relaybus.DeliveryLockRepository using Relica.
//
// Renew and Transition are compare-and-set updates guarded on the current
// status, which serializes concurrent writers per message at the store.
type DeliveryLockRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	driverName  string
	tablePrefix string
}

// NewDeliveryLockRepository creates a new DeliveryLockRepository with default table prefix.
func NewDeliveryLockRepository(sqlDB *sql.DB, driverName string) *DeliveryLockRepository {
	return NewDeliveryLockRepositoryWithPrefix(sqlDB, driverName, "relaybus_")
}

// NewDeliveryLockRepositoryWithPrefix creates a new DeliveryLockRepository with custom table prefix.
func NewDeliveryLockRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeliveryLockRepository {
	return &DeliveryLockRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		driverName:  driverName,
		tablePrefix: prefix,
	}
}

func (r *DeliveryLockRepository) tableName() string {
	return r.tablePrefix + "delivery_lock"
}

// FindByMessageID retrieves the lock row for a message.
func (r *DeliveryLockRepository) FindByMessageID(ctx context.Context, messageID string) (model.DeliveryLock, error) {
	var lock model.DeliveryLock
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("message_id = ?", messageID).One(&lock)
	if errors.Is(err, sql.ErrNoRows) {
		return lock, relaybus.ErrNoData
	}
	if err != nil {
		return lock, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to load delivery lock", err)
	}
	return lock, nil
}

// Upsert atomically inserts or replaces the row keyed on message_id,
// resetting it to the given Active state. Recovery and redelivery call
// this repeatedly for the same message without creating duplicates.
func (r *DeliveryLockRepository) Upsert(ctx context.Context, m model.DeliveryLock) (model.DeliveryLock, error) {
	query := "INSERT INTO " + r.tableName() +
		" (message_id, lock_token, topic_name, subscription_name, interface_name, adapter_instance_id," +
		" lock_acquired_at, lock_expires_at, last_renewed_at, renewal_count, delivery_count," +
		" status, completion_reason, completed_at, created_at)" +
		" VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, 0, ?, ?, '', NULL, ?)" +
		upsertConflictClause(r.driverName,
			[]string{"message_id"},
			[]string{"lock_token", "topic_name", "subscription_name", "interface_name",
				"adapter_instance_id", "lock_acquired_at", "lock_expires_at", "last_renewed_at",
				"renewal_count", "delivery_count", "status", "completion_reason", "completed_at"})

	_, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query),
		m.MessageID, m.LockToken, m.TopicName, m.SubscriptionName, m.InterfaceName, m.AdapterInstanceID,
		m.LockAcquiredAt, m.LockExpiresAt, m.DeliveryCount, string(m.Status), m.CreatedAt)
	if err != nil {
		return m, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to upsert delivery lock", err)
	}

	return r.FindByMessageID(ctx, m.MessageID)
}

// Renew conditionally advances the lock. Only an Active row whose stored
// expiry does not exceed the new one is updated, so renewal can never
// move the deadline backwards or resurrect a terminated lock.
func (r *DeliveryLockRepository) Renew(ctx context.Context, messageID, newToken string, newExpiresAt time.Time) (bool, error) {
	query := "UPDATE " + r.tableName() +
		" SET lock_token = ?, lock_expires_at = ?, last_renewed_at = ?, renewal_count = renewal_count + 1" +
		" WHERE message_id = ? AND status = ? AND lock_expires_at <= ?"

	res, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query),
		newToken, newExpiresAt, time.Now(), messageID, string(model.LockStatusActive), newExpiresAt)
	if err != nil {
		return false, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to renew delivery lock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to renew delivery lock", err)
	}
	return affected > 0, nil
}

// Transition conditionally moves an Active row to the given status.
func (r *DeliveryLockRepository) Transition(ctx context.Context, messageID string, status model.LockStatus, reason string) (bool, error) {
	var (
		query string
		args  []interface{}
	)
	if status.IsTerminal() {
		query = "UPDATE " + r.tableName() +
			" SET status = ?, completion_reason = ?, completed_at = ?" +
			" WHERE message_id = ? AND status = ?"
		args = []interface{}{string(status), reason, time.Now(), messageID, string(model.LockStatusActive)}
	} else {
		query = "UPDATE " + r.tableName() +
			" SET status = ?, completion_reason = '', completed_at = NULL" +
			" WHERE message_id = ? AND status = ?"
		args = []interface{}{string(status), messageID, string(model.LockStatusActive)}
	}

	res, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query), args...)
	if err != nil {
		return false, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to transition delivery lock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to transition delivery lock", err)
	}
	return affected > 0, nil
}

// FindNeedingRenewal retrieves Active rows expiring within threshold of
// now, soonest expiry first.
func (r *DeliveryLockRepository) FindNeedingRenewal(ctx context.Context, threshold time.Duration) ([]model.DeliveryLock, error) {
	deadline := time.Now().Add(threshold)

	var locks []model.DeliveryLock
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("status = ?", string(model.LockStatusActive)).
		Where("lock_expires_at <= ?", deadline).
		OrderBy("lock_expires_at ASC").
		All(&locks)
	if err != nil {
		return nil, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to find locks needing renewal", err)
	}
	if len(locks) == 0 {
		return nil, relaybus.ErrNoData
	}
	return locks, nil
}

// ExpireOverdue marks Active rows with a lapsed expiry as Expired, one
// conditional update per row, and returns only the rows this call
// actually transitioned.
func (r *DeliveryLockRepository) ExpireOverdue(ctx context.Context, reason string) ([]model.DeliveryLock, error) {
	now := time.Now()

	var candidates []model.DeliveryLock
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("status = ?", string(model.LockStatusActive)).
		Where("lock_expires_at <= ?", now).
		OrderBy("lock_expires_at ASC").
		All(&candidates)
	if err != nil {
		return nil, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to find expired locks", err)
	}
	if len(candidates) == 0 {
		return nil, relaybus.ErrNoData
	}

	query := "UPDATE " + r.tableName() +
		" SET status = ?, completion_reason = ?, completed_at = ?" +
		" WHERE message_id = ? AND status = ?"

	expired := make([]model.DeliveryLock, 0, len(candidates))
	for i := range candidates {
		completedAt := time.Now()
		res, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query),
			string(model.LockStatusExpired), reason, completedAt,
			candidates[i].MessageID, string(model.LockStatusActive))
		if err != nil {
			return expired, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to expire delivery lock", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return expired, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to expire delivery lock", err)
		}
		if affected == 0 {
			// Raced with a renewal or terminal transition; that writer won.
			continue
		}

		lock := candidates[i]
		lock.Status = model.LockStatusExpired
		lock.CompletionReason = reason
		lock.CompletedAt = sql.NullTime{Time: completedAt, Valid: true}
		expired = append(expired, lock)
	}

	return expired, nil
}

// DeleteTerminalOlderThan bulk-deletes terminal rows completed before cutoff.
func (r *DeliveryLockRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := "DELETE FROM " + r.tableName() +
		" WHERE status IN (?, ?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?"

	res, err := r.sqlDB.ExecContext(ctx, rebind(r.driverName, query),
		string(model.LockStatusCompleted), string(model.LockStatusAbandoned),
		string(model.LockStatusDeadLettered), string(model.LockStatusExpired), cutoff)
	if err != nil {
		return 0, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to clean up delivery locks", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, relaybus.NewErrorWithCause(relaybus.ErrCodeDatabase, "failed to clean up delivery locks", err)
	}
	return int(affected), nil
}
