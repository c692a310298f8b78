package relaybus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/relaybus/model"
	"github.com/coregx/relaybus/retry"
)

// ExpiredLockReason is the completion reason recorded when a lock lapses
// before a terminal outcome was reported.
const ExpiredLockReason = "Lock expired"

// DeliveryLockTracker keeps durable bookkeeping for in-flight message
// locks so that after a process restart the locks can be identified,
// their expiry assessed, and renewal or reconciliation resumed from
// persisted state alone.
//
// Key operations:
//   - RecordLock: upsert the lock row when a delivery is observed
//   - RenewLock: advance expiry for an Active lock
//   - UpdateStatus: record the terminal outcome
//   - ListLocksNeedingRenewal / ListExpiredLocks: renewal sweep inputs
//   - CleanupOldLocks: retention-based removal of terminal rows
//
// Thread safety: Safe for concurrent use. Mutations on one message are
// serialized by the store's conditional-update semantics; the tracker
// itself holds no state between calls.
type DeliveryLockTracker struct {
	lockRepo DeliveryLockRepository
	policy   retry.Policy
	logger   Logger
}

// TrackerOption is a function that configures a DeliveryLockTracker.
type TrackerOption func(*DeliveryLockTracker) error

// NewDeliveryLockTracker creates a tracker with the provided options.
//
// Required options:
//   - WithTrackerRepository: delivery lock repository
//   - WithTrackerLogger: logger instance
//
// Optional options:
//   - WithTrackerRetryPolicy: retry policy for store calls
//     (default: retry.DefaultPolicy())
func NewDeliveryLockTracker(opts ...TrackerOption) (*DeliveryLockTracker, error) {
	t := &DeliveryLockTracker{
		policy: retry.DefaultPolicy(),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply tracker option", err)
		}
	}

	// Validate required dependencies
	if t.lockRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryLockRepository is required (use WithTrackerRepository)")
	}
	if t.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithTrackerLogger)")
	}

	return t, nil
}

// WithTrackerRepository sets the required repository dependency.
//
// This is a required option for NewDeliveryLockTracker.
func WithTrackerRepository(repo DeliveryLockRepository) TrackerOption {
	return func(t *DeliveryLockTracker) error {
		if repo == nil {
			return fmt.Errorf("repo cannot be nil")
		}
		t.lockRepo = repo
		return nil
	}
}

// WithTrackerLogger sets the logger instance.
//
// This is a required option for NewDeliveryLockTracker.
func WithTrackerLogger(logger Logger) TrackerOption {
	return func(t *DeliveryLockTracker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		t.logger = logger
		return nil
	}
}

// WithTrackerRetryPolicy sets a custom retry policy for store calls.
func WithTrackerRetryPolicy(policy retry.Policy) TrackerOption {
	return func(t *DeliveryLockTracker) error {
		t.policy = policy
		return nil
	}
}

// RecordLockRequest carries the broker-observed lock details for one
// message delivery.
type RecordLockRequest struct {
	MessageID         string    // Unique message identifier (required)
	LockToken         string    // Broker-issued lock token (required)
	TopicName         string    // Broker topic the message arrived on
	SubscriptionName  string    // Broker subscription holding the lock
	InterfaceName     string    // Logical interface
	AdapterInstanceID string    // Consuming adapter instance
	LockExpiresAt     time.Time // Broker lock deadline (required)
	DeliveryCount     int       // Broker redelivery counter
}

// RecordLock upserts the lock row for a message, keyed on MessageID.
//
// If a row already exists (recovery after restart, or broker redelivery)
// it is updated in place: new token, new expiry, status reset to Active,
// renewal counter reset. This makes the call safe to repeat for the same
// message; exactly one row per message ever exists.
func (t *DeliveryLockTracker) RecordLock(ctx context.Context, req RecordLockRequest) (*model.DeliveryLock, error) {
	if req.MessageID == "" {
		return nil, NewError(ErrCodeValidation, "message id is required")
	}
	if req.LockToken == "" {
		return nil, NewError(ErrCodeValidation, "lock token is required")
	}
	if req.LockExpiresAt.IsZero() {
		return nil, NewError(ErrCodeValidation, "lock expiry is required")
	}

	lock := model.NewDeliveryLock(
		req.MessageID, req.LockToken,
		req.TopicName, req.SubscriptionName,
		req.InterfaceName, req.AdapterInstanceID,
		req.LockExpiresAt, req.DeliveryCount,
	)

	var stored model.DeliveryLock
	err := t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		stored, err = t.lockRepo.Upsert(ctx, lock)
		return err
	}, t.shouldRetry)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to record delivery lock", err)
	}

	t.logger.Debugf("Lock recorded: message=%s, token=%s, expires=%v, delivery=%d",
		req.MessageID, req.LockToken, req.LockExpiresAt, req.DeliveryCount)

	return &stored, nil
}

// UpdateStatus transitions a lock to a terminal or Active status. For
// Completed, Abandoned and DeadLettered the completion time is recorded.
//
// Unknown messages are a logged no-op. A repeated transition to the same
// terminal state is an idempotent no-op; a transition to a different
// terminal state is rejected with a CONFLICT_ERROR and logged as an
// anomaly, since silent overwrite can mask duplicate-processing bugs.
func (t *DeliveryLockTracker) UpdateStatus(ctx context.Context, messageID string, status model.LockStatus, reason string) error {
	if messageID == "" {
		return NewError(ErrCodeValidation, "message id is required")
	}

	lock, err := t.findLock(ctx, messageID)
	if err != nil {
		if IsNoData(err) {
			t.logger.Warnf("UpdateStatus no-op, lock not found: message=%s, status=%s", messageID, status)
			return nil
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to load delivery lock", err)
	}

	if verr := lock.Transition(status, reason); verr != nil {
		if errors.Is(verr, model.ErrAlreadyTerminal) {
			t.logger.Debugf("UpdateStatus idempotent repeat: message=%s, status=%s", messageID, status)
			return nil
		}
		t.logger.Errorf("Anomalous lock transition rejected: message=%s, current=%s, requested=%s",
			messageID, lock.Status, status)
		return NewErrorWithCause(ErrCodeConflict,
			fmt.Sprintf("lock for message %s already %s", messageID, lock.Status), verr)
	}

	var applied bool
	err = t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		applied, err = t.lockRepo.Transition(ctx, messageID, status, reason)
		return err
	}, t.shouldRetry)
	if err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to update lock status", err)
	}
	if !applied {
		// A concurrent writer terminated the lock between our read and the
		// conditional update; the store's status guard kept it monotonic.
		// If that writer landed the same state we asked for, the outcome is
		// what the caller wanted and the repeat is an idempotent no-op.
		current, ferr := t.findLock(ctx, messageID)
		if ferr == nil && current.Status == status {
			t.logger.Debugf("UpdateStatus idempotent repeat: message=%s, status=%s", messageID, status)
			return nil
		}
		t.logger.Warnf("Lock transition lost race: message=%s, requested=%s", messageID, status)
		return NewError(ErrCodeConflict, fmt.Sprintf("lock for message %s was concurrently terminated", messageID))
	}

	t.logger.Infof("Lock status updated: message=%s, status=%s, reason=%q", messageID, status, reason)
	return nil
}

// RenewLock advances the lock expiry and rotates the token for an Active
// lock. Returns false (not an error) if the lock is not Active or the
// expiry would move backwards; the caller must stop renewing.
func (t *DeliveryLockTracker) RenewLock(ctx context.Context, messageID, newToken string, newExpiresAt time.Time) (bool, error) {
	if messageID == "" {
		return false, NewError(ErrCodeValidation, "message id is required")
	}
	if newToken == "" {
		return false, NewError(ErrCodeValidation, "lock token is required")
	}

	var renewed bool
	err := t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		renewed, err = t.lockRepo.Renew(ctx, messageID, newToken, newExpiresAt)
		return err
	}, t.shouldRetry)
	if err != nil {
		return false, NewErrorWithCause(ErrCodeDatabase, "failed to renew delivery lock", err)
	}

	if renewed {
		t.logger.Debugf("Lock renewed: message=%s, expires=%v", messageID, newExpiresAt)
	} else {
		t.logger.Debugf("Lock not renewable: message=%s", messageID)
	}

	return renewed, nil
}

// ListLocksNeedingRenewal returns all Active locks whose expiry falls
// within threshold of now, ordered by soonest expiry first so the most
// urgent renewals are attempted first under load.
func (t *DeliveryLockTracker) ListLocksNeedingRenewal(ctx context.Context, threshold time.Duration) ([]model.DeliveryLock, error) {
	if threshold <= 0 {
		return nil, NewError(ErrCodeValidation, "threshold must be > 0")
	}

	var locks []model.DeliveryLock
	err := t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		locks, err = t.lockRepo.FindNeedingRenewal(ctx, threshold)
		return err
	}, t.shouldRetry)
	if err != nil {
		if IsNoData(err) {
			return []model.DeliveryLock{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to list locks needing renewal", err)
	}

	return locks, nil
}

// ListExpiredLocks finds Active locks whose expiry has already passed and
// marks each Expired as a side effect of the read. Detection and
// transition are one atomic unit per lock, so a second immediate call
// does not return the same lock again and two concurrent sweeps cannot
// both claim one.
func (t *DeliveryLockTracker) ListExpiredLocks(ctx context.Context) ([]model.DeliveryLock, error) {
	var expired []model.DeliveryLock
	err := t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		batch, err := t.lockRepo.ExpireOverdue(ctx, ExpiredLockReason)
		// Accumulate across retry attempts: a failed attempt may already
		// have transitioned rows, and the self-cleaning sweep will never
		// return those rows again.
		expired = append(expired, batch...)
		return err
	}, t.shouldRetry)

	for i := range expired {
		t.logger.Warnf("Lock expired: message=%s, adapter=%s, was due %v",
			expired[i].MessageID, expired[i].AdapterInstanceID, expired[i].LockExpiresAt)
	}

	if err != nil {
		if IsNoData(err) {
			if expired == nil {
				expired = []model.DeliveryLock{}
			}
			return expired, nil
		}
		// Rows transitioned before the failure stay with the caller so
		// their expiry can still be notified.
		return expired, NewErrorWithCause(ErrCodeDatabase, "failed to reconcile expired locks", err)
	}

	return expired, nil
}

// CleanupOldLocks deletes terminal-state rows whose completion time is
// older than the retention period. Returns the number of rows removed.
func (t *DeliveryLockTracker) CleanupOldLocks(ctx context.Context, retentionPeriod time.Duration) (int, error) {
	if retentionPeriod <= 0 {
		return 0, NewError(ErrCodeValidation, "retention period must be > 0")
	}

	cutoff := time.Now().Add(-retentionPeriod)

	var removed int
	err := t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		removed, err = t.lockRepo.DeleteTerminalOlderThan(ctx, cutoff)
		return err
	}, t.shouldRetry)
	if err != nil {
		return 0, NewErrorWithCause(ErrCodeDatabase, "failed to clean up old locks", err)
	}

	if removed > 0 {
		t.logger.Infof("Cleaned up %d delivery locks older than %v", removed, retentionPeriod)
	}
	return removed, nil
}

// GetLock retrieves the lock row for a message.
// Returns ErrNoData-coded error if not found.
func (t *DeliveryLockTracker) GetLock(ctx context.Context, messageID string) (*model.DeliveryLock, error) {
	if messageID == "" {
		return nil, NewError(ErrCodeValidation, "message id is required")
	}

	lock, err := t.findLock(ctx, messageID)
	if err != nil {
		if IsNoData(err) {
			return nil, err
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load delivery lock", err)
	}
	return &lock, nil
}

func (t *DeliveryLockTracker) findLock(ctx context.Context, messageID string) (model.DeliveryLock, error) {
	var lock model.DeliveryLock
	err := t.policy.ExecuteWithPredicate(ctx, func(ctx context.Context) error {
		var err error
		lock, err = t.lockRepo.FindByMessageID(ctx, messageID)
		return err
	}, t.shouldRetry)
	return lock, err
}

// shouldRetry retries transient infrastructure failures only.
func (t *DeliveryLockTracker) shouldRetry(err error) bool {
	if IsNoData(err) {
		return false
	}
	return IsTransientCode(err) || retry.IsTransient(err)
}
