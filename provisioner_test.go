package relaybus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvisioner(t *testing.T, admin BrokerAdmin, opts ...ProvisionerOption) *TopicSubscriptionProvisioner {
	t.Helper()
	base := []ProvisionerOption{
		WithBrokerAdmin(admin),
		WithProvisionerLogger(&NoopLogger{}),
		WithProvisionerRetryPolicy(fastPolicy()),
	}
	provisioner, err := NewTopicSubscriptionProvisioner(append(base, opts...)...)
	require.NoError(t, err)
	return provisioner
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "interface-orderevents", TopicName("OrderEvents"))
	assert.Equal(t, "interface-orderevents", TopicName("orderevents"), "naming is deterministic and case-insensitive")
}

func TestSubscriptionName(t *testing.T) {
	assert.Equal(t, "destination-payment-1", SubscriptionName("Payment-1"))
}

func TestNewTopicSubscriptionProvisioner_RequiresDependencies(t *testing.T) {
	_, err := NewTopicSubscriptionProvisioner()
	assert.Error(t, err)

	_, err = NewTopicSubscriptionProvisioner(WithBrokerAdmin(newFakeBrokerAdmin()))
	assert.Error(t, err, "logger is required")

	_, err = NewTopicSubscriptionProvisioner(
		WithBrokerAdmin(newFakeBrokerAdmin()),
		WithProvisionerLogger(&NoopLogger{}),
	)
	assert.NoError(t, err)
}

func TestWithSubscriptionSettings_Validation(t *testing.T) {
	admin := newFakeBrokerAdmin()

	_, err := NewTopicSubscriptionProvisioner(
		WithBrokerAdmin(admin),
		WithProvisionerLogger(&NoopLogger{}),
		WithSubscriptionSettings(SubscriptionSettings{LockDuration: 0, MaxDeliveryCount: 10}),
	)
	assert.Error(t, err, "zero lock duration rejected")

	_, err = NewTopicSubscriptionProvisioner(
		WithBrokerAdmin(admin),
		WithProvisionerLogger(&NoopLogger{}),
		WithSubscriptionSettings(SubscriptionSettings{LockDuration: time.Minute, MaxDeliveryCount: 0}),
	)
	assert.Error(t, err, "zero max delivery count rejected")
}

func TestProvisioner_EnsureTopic(t *testing.T) {
	ctx := context.Background()
	admin := newFakeBrokerAdmin()
	provisioner := newTestProvisioner(t, admin)

	require.NoError(t, provisioner.EnsureTopic(ctx, "OrderEvents"))
	assert.True(t, admin.topics["interface-orderevents"])
	assert.Equal(t, 1, admin.createTopicCalls)

	// Idempotent: second call creates nothing
	require.NoError(t, provisioner.EnsureTopic(ctx, "OrderEvents"))
	assert.Equal(t, 1, admin.createTopicCalls)

	t.Run("Empty interface name rejected", func(t *testing.T) {
		assert.Error(t, provisioner.EnsureTopic(ctx, ""))
	})
}

func TestProvisioner_EnsureSubscription(t *testing.T) {
	ctx := context.Background()
	admin := newFakeBrokerAdmin()
	settings := DefaultSubscriptionSettings()
	settings.LockDuration = 2 * time.Minute
	provisioner := newTestProvisioner(t, admin, WithSubscriptionSettings(settings))

	require.NoError(t, provisioner.EnsureSubscription(ctx, "OrderEvents", "payment-1", "region = 'eu'"))

	// Topic is created implicitly
	assert.True(t, admin.topics["interface-orderevents"])

	stored, ok := admin.subscriptions["interface-orderevents/destination-payment-1"]
	require.True(t, ok)
	assert.Equal(t, "region = 'eu'", stored.FilterCriteria)
	assert.Equal(t, 2*time.Minute, stored.LockDuration)
	assert.Equal(t, 10, stored.MaxDeliveryCount)

	// Idempotent repeat
	require.NoError(t, provisioner.EnsureSubscription(ctx, "OrderEvents", "payment-1", "region = 'eu'"))
	assert.Equal(t, 1, admin.createSubscriptionCalls)

	exists, err := provisioner.Exists(ctx, "OrderEvents", "payment-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProvisioner_EnsureSubscription_Validation(t *testing.T) {
	ctx := context.Background()
	provisioner := newTestProvisioner(t, newFakeBrokerAdmin())

	assert.Error(t, provisioner.EnsureSubscription(ctx, "", "payment-1", ""))
	assert.Error(t, provisioner.EnsureSubscription(ctx, "OrderEvents", "", ""))
}

func TestProvisioner_EnsureSubscription_RetriesTransient(t *testing.T) {
	ctx := context.Background()
	admin := newFakeBrokerAdmin()
	admin.transientFailures = 2
	provisioner := newTestProvisioner(t, admin)

	err := provisioner.EnsureSubscription(ctx, "OrderEvents", "payment-1", "")

	require.NoError(t, err, "transient broker failures within the retry budget must be absorbed")
	assert.True(t, admin.topics["interface-orderevents"])
}

func TestProvisioner_EnsureSubscription_GivesUpAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	admin := newFakeBrokerAdmin()
	admin.transientFailures = 10
	provisioner := newTestProvisioner(t, admin)

	err := provisioner.EnsureSubscription(ctx, "OrderEvents", "payment-1", "")

	require.Error(t, err)
	var relayErr *Error
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, ErrCodeBroker, relayErr.Code)
}

func TestProvisioner_DeleteSubscription(t *testing.T) {
	ctx := context.Background()
	admin := newFakeBrokerAdmin()
	provisioner := newTestProvisioner(t, admin)

	require.NoError(t, provisioner.EnsureSubscription(ctx, "OrderEvents", "payment-1", ""))
	require.NoError(t, provisioner.DeleteSubscription(ctx, "OrderEvents", "payment-1"))

	exists, err := provisioner.Exists(ctx, "OrderEvents", "payment-1")
	require.NoError(t, err)
	assert.False(t, exists)

	// Idempotent: deleting a missing subscription is a no-op
	assert.NoError(t, provisioner.DeleteSubscription(ctx, "OrderEvents", "payment-1"))

	// The topic survives subscription deletion
	assert.True(t, admin.topics["interface-orderevents"])
}

func TestDefaultSubscriptionSettings(t *testing.T) {
	settings := DefaultSubscriptionSettings()

	assert.Equal(t, 24*time.Hour, settings.MessageTTL)
	assert.Equal(t, 10, settings.MaxDeliveryCount)
	assert.True(t, settings.DeadLetterOnExpiry)
	assert.Equal(t, 5*time.Minute, settings.LockDuration)
	assert.Empty(t, settings.FilterCriteria)
}
