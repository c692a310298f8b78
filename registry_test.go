package relaybus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, repo SubscriptionRepository) *SubscriptionRegistry {
	t.Helper()
	registry, err := NewSubscriptionRegistry(
		WithRegistryRepository(repo),
		WithRegistryLogger(&NoopLogger{}),
	)
	require.NoError(t, err)
	return registry
}

func TestNewSubscriptionRegistry_RequiresDependencies(t *testing.T) {
	_, err := NewSubscriptionRegistry()
	assert.Error(t, err)

	_, err = NewSubscriptionRegistry(WithRegistryRepository(newFakeSubscriptionRepo()))
	assert.Error(t, err, "logger is required")

	_, err = NewSubscriptionRegistry(WithRegistryLogger(&NoopLogger{}))
	assert.Error(t, err, "repository is required")

	_, err = NewSubscriptionRegistry(
		WithRegistryRepository(newFakeSubscriptionRepo()),
		WithRegistryLogger(&NoopLogger{}),
	)
	assert.NoError(t, err)
}

func TestSubscriptionRegistry_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSubscriptionRepo()
	registry := newTestRegistry(t, repo)

	sub, err := registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "OrderEvents",
		AdapterName:       "PaymentProcessor",
		FilterCriteria:    "region = 'eu'",
	})

	require.NoError(t, err)
	assert.NotZero(t, sub.ID)
	assert.Equal(t, "payment-1", sub.AdapterInstanceID)
	assert.Equal(t, "OrderEvents", sub.InterfaceName)
	assert.Equal(t, "region = 'eu'", sub.FilterCriteria)
	assert.True(t, sub.Enabled)
}

func TestSubscriptionRegistry_Upsert_SamePairUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSubscriptionRepo()
	registry := newTestRegistry(t, repo)

	first, err := registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "OrderEvents",
		AdapterName:       "PaymentProcessor",
		FilterCriteria:    "region = 'eu'",
	})
	require.NoError(t, err)

	second, err := registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "OrderEvents",
		AdapterName:       "PaymentProcessor",
		FilterCriteria:    "region = 'us'",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "upsert must not create a duplicate row")
	assert.Equal(t, "region = 'us'", second.FilterCriteria)

	subs, err := registry.ListByInterface(ctx, "OrderEvents")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscriptionRegistry_Upsert_Validation(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, newFakeSubscriptionRepo())

	tests := []struct {
		name string
		req  UpsertRequest
	}{
		{"Missing adapter instance id", UpsertRequest{InterfaceName: "I", AdapterName: "A"}},
		{"Missing interface name", UpsertRequest{AdapterInstanceID: "a-1", AdapterName: "A"}},
		{"Missing adapter name", UpsertRequest{AdapterInstanceID: "a-1", InterfaceName: "I"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Upsert(ctx, tt.req)
			assert.Error(t, err)

			var relayErr *Error
			require.ErrorAs(t, err, &relayErr)
			assert.Equal(t, ErrCodeValidation, relayErr.Code)
		})
	}
}

func TestSubscriptionRegistry_Upsert_Notifies(t *testing.T) {
	ctx := context.Background()
	notifications := &captureNotifications{}

	registry, err := NewSubscriptionRegistry(
		WithRegistryRepository(newFakeSubscriptionRepo()),
		WithRegistryLogger(&NoopLogger{}),
		WithRegistryNotifications(notifications),
	)
	require.NoError(t, err)

	_, err = registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "OrderEvents",
		AdapterName:       "PaymentProcessor",
	})
	require.NoError(t, err)

	assert.Len(t, notifications.provisioned, 1)
	assert.Equal(t, "payment-1", notifications.provisioned[0].AdapterInstanceID)
}

func TestSubscriptionRegistry_ListByInterface(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSubscriptionRepo()
	registry := newTestRegistry(t, repo)

	for _, id := range []string{"payment-1", "invoice-1"} {
		_, err := registry.Upsert(ctx, UpsertRequest{
			AdapterInstanceID: id,
			InterfaceName:     "OrderEvents",
			AdapterName:       "Adapter",
		})
		require.NoError(t, err)
	}
	_, err := registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "ShipmentEvents",
		AdapterName:       "Adapter",
	})
	require.NoError(t, err)

	subs, err := registry.ListByInterface(ctx, "OrderEvents")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	t.Run("No matches returns empty slice", func(t *testing.T) {
		subs, err := registry.ListByInterface(ctx, "UnknownEvents")
		require.NoError(t, err)
		assert.Empty(t, subs)
		assert.NotNil(t, subs)
	})

	t.Run("Empty interface name rejected", func(t *testing.T) {
		_, err := registry.ListByInterface(ctx, "")
		assert.Error(t, err)
	})
}

func TestSubscriptionRegistry_ListByAdapter(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, newFakeSubscriptionRepo())

	for _, iface := range []string{"OrderEvents", "ShipmentEvents"} {
		_, err := registry.Upsert(ctx, UpsertRequest{
			AdapterInstanceID: "payment-1",
			InterfaceName:     iface,
			AdapterName:       "Adapter",
		})
		require.NoError(t, err)
	}

	subs, err := registry.ListByAdapter(ctx, "payment-1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubscriptionRegistry_SetEnabled(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, newFakeSubscriptionRepo())

	sub, err := registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "OrderEvents",
		AdapterName:       "Adapter",
	})
	require.NoError(t, err)

	// Disable hides from fan-out but keeps the row
	require.NoError(t, registry.SetEnabled(ctx, sub.ID, false))

	subs, err := registry.ListByInterface(ctx, "OrderEvents")
	require.NoError(t, err)
	assert.Empty(t, subs)

	stored, err := registry.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	// Re-enable restores delivery
	require.NoError(t, registry.SetEnabled(ctx, sub.ID, true))
	subs, err = registry.ListByInterface(ctx, "OrderEvents")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	t.Run("Unknown id is idempotent no-op", func(t *testing.T) {
		assert.NoError(t, registry.SetEnabled(ctx, 9999, false))
	})

	t.Run("Zero id rejected", func(t *testing.T) {
		assert.Error(t, registry.SetEnabled(ctx, 0, false))
	})
}

func TestSubscriptionRegistry_Delete(t *testing.T) {
	ctx := context.Background()
	notifications := &captureNotifications{}
	registry, err := NewSubscriptionRegistry(
		WithRegistryRepository(newFakeSubscriptionRepo()),
		WithRegistryLogger(&NoopLogger{}),
		WithRegistryNotifications(notifications),
	)
	require.NoError(t, err)

	sub, err := registry.Upsert(ctx, UpsertRequest{
		AdapterInstanceID: "payment-1",
		InterfaceName:     "OrderEvents",
		AdapterName:       "Adapter",
	})
	require.NoError(t, err)

	require.NoError(t, registry.Delete(ctx, sub.ID))

	_, err = registry.Get(ctx, sub.ID)
	assert.True(t, IsNoData(err))
	assert.Len(t, notifications.removed, 1)

	t.Run("Deleting again is idempotent no-op", func(t *testing.T) {
		assert.NoError(t, registry.Delete(ctx, sub.ID))
	})
}
