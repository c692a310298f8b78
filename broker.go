package relaybus

import (
	"context"
	"errors"
	"time"
)

// BrokerAdmin defines the broker administration interface consumed by the
// TopicSubscriptionProvisioner. Each call is idempotent or safely
// retriable; the broker owns topics, durable subscriptions, per-message
// lock tokens and dead-lettering internally.
type BrokerAdmin interface {
	// TopicExists reports whether the named topic exists.
	TopicExists(ctx context.Context, topicName string) (bool, error)

	// CreateTopic creates a topic. Returns ErrBrokerEntityExists if the
	// topic is already present.
	CreateTopic(ctx context.Context, topicName string) error

	// SubscriptionExists reports whether the named durable subscription
	// exists under the topic.
	SubscriptionExists(ctx context.Context, topicName, subscriptionName string) (bool, error)

	// CreateSubscription creates a durable subscription under the topic
	// with the given settings. Returns ErrBrokerEntityExists if the
	// subscription is already present.
	CreateSubscription(ctx context.Context, topicName, subscriptionName string, settings SubscriptionSettings) error

	// DeleteSubscription removes a durable subscription. Returns
	// ErrBrokerEntityNotFound if it does not exist.
	DeleteSubscription(ctx context.Context, topicName, subscriptionName string) error
}

// LockRenewer defines the broker-side lock renewal call used by the
// renewal sweep. Renewal rotates the lock token; the previous token
// becomes invalid once the call succeeds.
type LockRenewer interface {
	// RenewMessageLock extends the broker lock identified by lockToken and
	// returns the replacement token with its new expiry.
	// Returns ErrLockLost if the broker no longer holds a lock for the
	// message (expired, settled, or redelivered elsewhere).
	RenewMessageLock(ctx context.Context, topicName, subscriptionName, messageID, lockToken string) (newToken string, newExpiresAt time.Time, err error)
}

// SubscriptionSettings carries the durable-subscription parameters applied
// at provisioning time.
type SubscriptionSettings struct {
	// MessageTTL is the per-message time-to-live; expired messages are
	// dead-lettered by the broker.
	MessageTTL time.Duration

	// MaxDeliveryCount is the number of delivery attempts before the
	// broker dead-letters a message automatically.
	MaxDeliveryCount int

	// DeadLetterOnExpiry enables dead-lettering for TTL-expired messages.
	DeadLetterOnExpiry bool

	// LockDuration is how long a delivery lock is held before the broker
	// releases the message for redelivery. Long enough to cover typical
	// processing, short enough to bound recovery latency after a crash.
	LockDuration time.Duration

	// FilterCriteria is the opaque predicate applied by the broker to
	// route messages into this subscription. Never evaluated here.
	FilterCriteria string
}

// DefaultSubscriptionSettings returns the provisioning defaults:
// 24h message TTL, 10 delivery attempts, dead-letter on expiry,
// 5 minute lock duration.
func DefaultSubscriptionSettings() SubscriptionSettings {
	return SubscriptionSettings{
		MessageTTL:         24 * time.Hour,
		MaxDeliveryCount:   10,
		DeadLetterOnExpiry: true,
		LockDuration:       5 * time.Minute,
	}
}

// Broker sentinel errors returned by BrokerAdmin and LockRenewer
// implementations.
var (
	// ErrBrokerEntityExists is returned by create calls when the topic or
	// subscription already exists. The provisioner treats this as the
	// idempotent success case, not a failure.
	ErrBrokerEntityExists = errors.New("broker entity already exists")

	// ErrBrokerEntityNotFound is returned when the referenced topic or
	// subscription does not exist.
	ErrBrokerEntityNotFound = errors.New("broker entity not found")

	// ErrLockLost is returned by RenewMessageLock when the broker no
	// longer recognizes the lock token.
	ErrLockLost = errors.New("message lock no longer held")
)
