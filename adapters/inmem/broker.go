// Package inmem provides an in-memory broker backend implementing
// relaybus.BrokerAdmin and relaybus.LockRenewer. It is meant for tests,
// examples and the standalone server's default wiring; state does not
// survive a restart.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/coregx/relaybus"
	"github.com/google/uuid"
)

type subscriptionKey struct {
	topicName        string
	subscriptionName string
}

type messageLock struct {
	token     string
	expiresAt time.Time
}

// Broker is an in-memory relaybus.BrokerAdmin and relaybus.LockRenewer.
// All methods are safe for concurrent use.
type Broker struct {
	mu            sync.Mutex
	lockDuration  time.Duration
	topics        map[string]struct{}
	subscriptions map[subscriptionKey]relaybus.SubscriptionSettings
	locks         map[string]messageLock
}

// NewBroker creates an in-memory broker. lockDuration controls how long a
// granted or renewed lock stays valid; zero or negative falls back to the
// default subscription lock duration.
func NewBroker(lockDuration time.Duration) *Broker {
	if lockDuration <= 0 {
		lockDuration = relaybus.DefaultSubscriptionSettings().LockDuration
	}
	return &Broker{
		lockDuration:  lockDuration,
		topics:        make(map[string]struct{}),
		subscriptions: make(map[subscriptionKey]relaybus.SubscriptionSettings),
		locks:         make(map[string]messageLock),
	}
}

// TopicExists reports whether the named topic exists.
func (b *Broker) TopicExists(_ context.Context, topicName string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.topics[topicName]
	return ok, nil
}

// CreateTopic creates a topic.
func (b *Broker) CreateTopic(_ context.Context, topicName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topicName]; ok {
		return relaybus.ErrBrokerEntityExists
	}
	b.topics[topicName] = struct{}{}
	return nil
}

// SubscriptionExists reports whether the named subscription exists under
// the topic.
func (b *Broker) SubscriptionExists(_ context.Context, topicName, subscriptionName string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subscriptions[subscriptionKey{topicName, subscriptionName}]
	return ok, nil
}

// CreateSubscription creates a durable subscription under the topic.
func (b *Broker) CreateSubscription(_ context.Context, topicName, subscriptionName string, settings relaybus.SubscriptionSettings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topicName]; !ok {
		return relaybus.ErrBrokerEntityNotFound
	}
	key := subscriptionKey{topicName, subscriptionName}
	if _, ok := b.subscriptions[key]; ok {
		return relaybus.ErrBrokerEntityExists
	}
	b.subscriptions[key] = settings
	return nil
}

// DeleteSubscription removes a durable subscription.
func (b *Broker) DeleteSubscription(_ context.Context, topicName, subscriptionName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := subscriptionKey{topicName, subscriptionName}
	if _, ok := b.subscriptions[key]; !ok {
		return relaybus.ErrBrokerEntityNotFound
	}
	delete(b.subscriptions, key)
	return nil
}

// GrantLock registers a lock for a message and returns its token and
// expiry, simulating the broker handing a message to a consumer.
func (b *Broker) GrantLock(messageID string) (string, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	expiresAt := time.Now().Add(b.lockDuration)
	b.locks[messageID] = messageLock{token: token, expiresAt: expiresAt}
	return token, expiresAt
}

// ReleaseLock drops the lock for a message, simulating settlement or
// broker-side expiry. Subsequent renewals return ErrLockLost.
func (b *Broker) ReleaseLock(messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.locks, messageID)
}

// RenewMessageLock rotates the lock token and extends the expiry.
func (b *Broker) RenewMessageLock(_ context.Context, _, _, messageID, lockToken string) (string, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock, ok := b.locks[messageID]
	if !ok || lock.token != lockToken || !lock.expiresAt.After(time.Now()) {
		delete(b.locks, messageID)
		return "", time.Time{}, relaybus.ErrLockLost
	}

	newToken := uuid.NewString()
	newExpiresAt := time.Now().Add(b.lockDuration)
	b.locks[messageID] = messageLock{token: newToken, expiresAt: newExpiresAt}
	return newToken, newExpiresAt, nil
}
