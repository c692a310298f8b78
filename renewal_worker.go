package relaybus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coregx/relaybus/model"
)

// RenewalWorker keeps in-flight delivery locks alive. It runs on a
// recurring timer independent of message-processing call paths: each tick
// it reads a snapshot of near-expiry locks from the store, dispatches
// bounded-concurrency renewals against the broker, reconciles locks that
// already lapsed, and applies retention cleanup.
//
// Decoupling renewal cadence from processing duration means a slow
// consumer cannot starve renewal of a different, fast-completing message.
// The worker owns no shared mutable collection; each sweep works from a
// fresh store snapshot and results are written back atomically per row.
//
// Thread safety: Safe for concurrent use. Each renewal within a sweep is
// an independent store+broker round trip.
type RenewalWorker struct {
	tracker       *DeliveryLockTracker
	renewer       LockRenewer
	logger        Logger
	notifications NotificationService
	monitor       *DeadLetterMonitor

	renewalThreshold    time.Duration
	retentionPeriod     time.Duration
	maxConcurrent       int
	deadLetterThreshold int
}

// Run starts the renewal loop and blocks until the context is canceled.
// A sweep already in progress when cancellation arrives finishes its
// current batch, so no lock is left Active with a half-applied renewal.
//
// Example:
//
//	ctx := context.Background()
//	go worker.Run(ctx, 5*time.Second) // Sweep every 5 seconds
func (w *RenewalWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Renewal worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Renewal worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one renewal pass: renew near-expiry locks, reconcile
// expired ones, clean up old terminal rows. Individual lock failures are
// logged and do not abort sibling operations in the same sweep.
func (w *RenewalWorker) Sweep(ctx context.Context) {
	renewed, failed := w.renewDueLocks(ctx)

	expired, err := w.tracker.ListExpiredLocks(ctx)
	if err != nil {
		w.logger.Errorf("Error reconciling expired locks: %v", err)
	}
	for i := range expired {
		if nerr := w.notifications.NotifyLockExpired(ctx, expired[i]); nerr != nil {
			w.logger.Warnf("Failed to send lock-expired notification: %v", nerr)
		}
	}

	cleaned := 0
	if w.retentionPeriod > 0 {
		cleaned, err = w.tracker.CleanupOldLocks(ctx, w.retentionPeriod)
		if err != nil {
			w.logger.Errorf("Error cleaning up old locks: %v", err)
		}
	}

	w.checkDeadLetterThreshold(ctx)

	if renewed > 0 || failed > 0 || len(expired) > 0 || cleaned > 0 {
		w.logger.Infof("Sweep finished: renewed=%d, failed=%d, expired=%d, cleaned=%d",
			renewed, failed, len(expired), cleaned)
	}
}

// checkDeadLetterThreshold fires the alerting hook when the dead-letter
// backlog has reached the configured threshold. Requires a monitor and a
// positive threshold; otherwise the check is skipped.
func (w *RenewalWorker) checkDeadLetterThreshold(ctx context.Context) {
	if w.monitor == nil || w.deadLetterThreshold <= 0 {
		return
	}
	if !w.monitor.IsThresholdExceeded(ctx, w.deadLetterThreshold, "") {
		return
	}
	count := w.monitor.Count(ctx, "")
	w.logger.Warnf("Dead-letter threshold reached: count=%d, threshold=%d", count, w.deadLetterThreshold)
	if err := w.notifications.NotifyDeadLetterThresholdExceeded(ctx, "", count, w.deadLetterThreshold); err != nil {
		w.logger.Warnf("Failed to send dead-letter threshold notification: %v", err)
	}
}

// renewDueLocks renews every Active lock within the renewal threshold,
// dispatching at most maxConcurrent renewals at a time. Returns the
// number of successful and failed renewals.
func (w *RenewalWorker) renewDueLocks(ctx context.Context) (int, int) {
	locks, err := w.tracker.ListLocksNeedingRenewal(ctx, w.renewalThreshold)
	if err != nil {
		w.logger.Errorf("Error listing locks needing renewal: %v", err)
		return 0, 0
	}
	if len(locks) == 0 {
		return 0, 0
	}

	// Write-backs survive shutdown: a renewal that reached the broker must
	// also reach the store, or the row keeps a stale expiry.
	writeCtx := context.WithoutCancel(ctx)

	var (
		mu       sync.Mutex
		renewed  int
		failed   int
		wg       sync.WaitGroup
		inflight = make(chan struct{}, w.maxConcurrent)
	)

	for i := range locks {
		lock := locks[i]
		wg.Add(1)
		inflight <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-inflight }()

			ok := w.renewOne(ctx, writeCtx, lock)

			mu.Lock()
			if ok {
				renewed++
			} else {
				failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return renewed, failed
}

// renewOne performs a single broker renewal plus store write-back.
func (w *RenewalWorker) renewOne(ctx, writeCtx context.Context, lock model.DeliveryLock) bool {
	newToken, newExpiresAt, err := w.renewer.RenewMessageLock(
		ctx, lock.TopicName, lock.SubscriptionName, lock.MessageID, lock.LockToken)
	if err != nil {
		if errors.Is(err, ErrLockLost) {
			w.logger.Warnf("Lock lost at broker, marking expired: message=%s", lock.MessageID)
			if uerr := w.tracker.UpdateStatus(writeCtx, lock.MessageID, model.LockStatusExpired, ExpiredLockReason); uerr != nil && !IsConflict(uerr) {
				w.logger.Errorf("Failed to mark lost lock expired: message=%s: %v", lock.MessageID, uerr)
			}
			return false
		}
		w.logger.Errorf("Broker renewal failed: message=%s: %v", lock.MessageID, err)
		return false
	}

	ok, err := w.tracker.RenewLock(writeCtx, lock.MessageID, newToken, newExpiresAt)
	if err != nil {
		w.logger.Errorf("Failed to persist renewal: message=%s: %v", lock.MessageID, err)
		return false
	}
	if !ok {
		// The lock was terminated between the snapshot and the write-back.
		w.logger.Debugf("Renewal skipped, lock no longer active: message=%s", lock.MessageID)
		return false
	}

	return true
}
