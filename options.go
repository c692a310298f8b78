package relaybus

import (
	"fmt"
	"time"
)

// Option is a function that configures a RenewalWorker.
// Used with the Options Pattern for flexible service construction.
//
// Example:
//
//	worker, err := relaybus.NewRenewalWorker(
//	    relaybus.WithWorkerTracker(tracker),
//	    relaybus.WithWorkerRenewer(renewer),
//	    relaybus.WithWorkerLogger(logger),
//	    relaybus.WithMaxConcurrentRenewals(16), // optional
//	)
type Option func(*RenewalWorker) error

// NewRenewalWorker creates a new renewal worker with the provided options.
//
// Required options:
//   - WithWorkerTracker: delivery lock tracker
//   - WithWorkerRenewer: broker lock renewal client
//   - WithWorkerLogger: logger instance
//
// Optional options:
//   - WithRenewalThreshold: how close to expiry a lock must be before it
//     is renewed (default: 1 minute)
//   - WithMaxConcurrentRenewals: renewal dispatch bound per sweep (default: 8)
//   - WithRetentionPeriod: terminal-row retention before cleanup
//     (default: 30 days; 0 disables cleanup)
//   - WithWorkerNotifications: notification hooks (default: no-op)
//   - WithWorkerDeadLetterMonitor + WithDeadLetterThreshold: dead-letter
//     backlog alerting per sweep (default: disabled)
func NewRenewalWorker(opts ...Option) (*RenewalWorker, error) {
	// Default configuration
	w := &RenewalWorker{
		renewalThreshold: 1 * time.Minute,
		retentionPeriod:  30 * 24 * time.Hour,
		maxConcurrent:    8,
		notifications:    &NoOpNotificationService{},
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply worker option", err)
		}
	}

	// Validate required dependencies
	if w.tracker == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryLockTracker is required (use WithWorkerTracker)")
	}
	if w.renewer == nil {
		return nil, NewError(ErrCodeConfiguration, "LockRenewer is required (use WithWorkerRenewer)")
	}
	if w.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithWorkerLogger)")
	}

	return w, nil
}

// WithWorkerTracker sets the required delivery lock tracker.
//
// This is a required option for NewRenewalWorker.
func WithWorkerTracker(tracker *DeliveryLockTracker) Option {
	return func(w *RenewalWorker) error {
		if tracker == nil {
			return fmt.Errorf("tracker cannot be nil")
		}
		w.tracker = tracker
		return nil
	}
}

// WithWorkerRenewer sets the required broker lock renewal client.
//
// This is a required option for NewRenewalWorker.
func WithWorkerRenewer(renewer LockRenewer) Option {
	return func(w *RenewalWorker) error {
		if renewer == nil {
			return fmt.Errorf("renewer cannot be nil")
		}
		w.renewer = renewer
		return nil
	}
}

// WithWorkerLogger sets the logger instance.
//
// This is a required option for NewRenewalWorker.
func WithWorkerLogger(logger Logger) Option {
	return func(w *RenewalWorker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		w.logger = logger
		return nil
	}
}

// WithRenewalThreshold sets how close to expiry a lock must be before the
// sweep renews it. Must be > 0 and comfortably larger than the sweep
// interval, or locks can lapse between ticks.
func WithRenewalThreshold(threshold time.Duration) Option {
	return func(w *RenewalWorker) error {
		if threshold <= 0 {
			return fmt.Errorf("renewal threshold must be > 0, got %v", threshold)
		}
		w.renewalThreshold = threshold
		return nil
	}
}

// WithMaxConcurrentRenewals bounds how many renewals one sweep dispatches
// at a time. Each renewal is an independent broker+store round trip, so
// moderate parallelism shortens the sweep without overwhelming either.
func WithMaxConcurrentRenewals(n int) Option {
	return func(w *RenewalWorker) error {
		if n <= 0 {
			return fmt.Errorf("max concurrent renewals must be > 0, got %d", n)
		}
		w.maxConcurrent = n
		return nil
	}
}

// WithRetentionPeriod sets how long terminal lock rows are retained before
// the sweep deletes them. Zero disables cleanup entirely.
func WithRetentionPeriod(period time.Duration) Option {
	return func(w *RenewalWorker) error {
		if period < 0 {
			return fmt.Errorf("retention period cannot be negative, got %v", period)
		}
		w.retentionPeriod = period
		return nil
	}
}

// WithWorkerNotifications sets an optional notification service invoked
// when locks expire. Use this to integrate with alerting systems.
func WithWorkerNotifications(service NotificationService) Option {
	return func(w *RenewalWorker) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		w.notifications = service
		return nil
	}
}

// WithWorkerDeadLetterMonitor sets an optional dead-letter monitor the
// sweep consults for backlog alerting. Has no effect unless a positive
// WithDeadLetterThreshold is also set.
func WithWorkerDeadLetterMonitor(monitor *DeadLetterMonitor) Option {
	return func(w *RenewalWorker) error {
		if monitor == nil {
			return fmt.Errorf("dead letter monitor cannot be nil")
		}
		w.monitor = monitor
		return nil
	}
}

// WithDeadLetterThreshold sets the dead-letter backlog size at which the
// sweep fires NotifyDeadLetterThresholdExceeded. Zero disables the check.
func WithDeadLetterThreshold(threshold int) Option {
	return func(w *RenewalWorker) error {
		if threshold < 0 {
			return fmt.Errorf("dead letter threshold cannot be negative, got %d", threshold)
		}
		w.deadLetterThreshold = threshold
		return nil
	}
}
