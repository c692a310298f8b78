package relaybus

import (
	"context"

	"github.com/coregx/relaybus/model"
)

// NotificationService defines an optional interface for surfacing
// delivery-core events (expired locks, dead-letter pressure, subscription
// lifecycle) to external systems.
//
// Implementations might send emails, Slack messages, or feed monitoring
// systems. Notification failures are logged by callers and never fail the
// triggering operation.
type NotificationService interface {
	// NotifyLockExpired is called when the renewal sweep finds a lock that
	// lapsed before a terminal outcome was recorded.
	NotifyLockExpired(ctx context.Context, lock model.DeliveryLock) error

	// NotifyDeadLetterThresholdExceeded is called when the dead-letter
	// count for an interface crosses the alerting threshold.
	NotifyDeadLetterThresholdExceeded(ctx context.Context, interfaceName string, count, threshold int) error

	// NotifySubscriptionProvisioned is called when a subscription is
	// created or re-enabled through the registry.
	NotifySubscriptionProvisioned(ctx context.Context, subscription model.Subscription) error

	// NotifySubscriptionRemoved is called when a subscription is deleted.
	NotifySubscriptionRemoved(ctx context.Context, subscription model.Subscription) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when notifications are not needed.
type NoOpNotificationService struct{}

// NotifyLockExpired does nothing.
func (n *NoOpNotificationService) NotifyLockExpired(_ context.Context, _ model.DeliveryLock) error {
	return nil
}

// NotifyDeadLetterThresholdExceeded does nothing.
func (n *NoOpNotificationService) NotifyDeadLetterThresholdExceeded(_ context.Context, _ string, _, _ int) error {
	return nil
}

// NotifySubscriptionProvisioned does nothing.
func (n *NoOpNotificationService) NotifySubscriptionProvisioned(_ context.Context, _ model.Subscription) error {
	return nil
}

// NotifySubscriptionRemoved does nothing.
func (n *NoOpNotificationService) NotifySubscriptionRemoved(_ context.Context, _ model.Subscription) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyLockExpired logs the expired lock.
func (n *LoggingNotificationService) NotifyLockExpired(_ context.Context, lock model.DeliveryLock) error {
	n.logger.Warnf("Lock expired: message=%s, interface=%s, adapter=%s, renewals=%d, delivery=%d",
		lock.MessageID, lock.InterfaceName, lock.AdapterInstanceID, lock.RenewalCount, lock.DeliveryCount)
	return nil
}

// NotifyDeadLetterThresholdExceeded logs the threshold breach.
func (n *LoggingNotificationService) NotifyDeadLetterThresholdExceeded(_ context.Context, interfaceName string, count, threshold int) error {
	n.logger.Warnf("Dead-letter threshold exceeded: interface=%s, count=%d, threshold=%d",
		interfaceName, count, threshold)
	return nil
}

// NotifySubscriptionProvisioned logs the new subscription.
func (n *LoggingNotificationService) NotifySubscriptionProvisioned(_ context.Context, subscription model.Subscription) error {
	n.logger.Infof("Subscription provisioned: id=%d, adapter=%s, interface=%s",
		subscription.ID, subscription.AdapterInstanceID, subscription.InterfaceName)
	return nil
}

// NotifySubscriptionRemoved logs the removal.
func (n *LoggingNotificationService) NotifySubscriptionRemoved(_ context.Context, subscription model.Subscription) error {
	n.logger.Infof("Subscription removed: id=%d, adapter=%s, interface=%s",
		subscription.ID, subscription.AdapterInstanceID, subscription.InterfaceName)
	return nil
}
