package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSubscription(t *testing.T) {
	beforeCreate := time.Now()
	sub := NewSubscription("payment-1", "OrderEvents", "PaymentProcessor", "region = 'eu'")

	assert.Equal(t, int64(0), sub.ID)
	assert.Equal(t, "payment-1", sub.AdapterInstanceID)
	assert.Equal(t, "OrderEvents", sub.InterfaceName)
	assert.Equal(t, "PaymentProcessor", sub.AdapterName)
	assert.Equal(t, "region = 'eu'", sub.FilterCriteria)
	assert.True(t, sub.Enabled)
	assert.WithinDuration(t, beforeCreate, sub.CreatedAt, 1*time.Second)
	assert.WithinDuration(t, beforeCreate, sub.UpdatedAt, 1*time.Second)
}

func TestNewSubscription_EmptyFilter(t *testing.T) {
	sub := NewSubscription("payment-1", "OrderEvents", "PaymentProcessor", "")
	assert.Empty(t, sub.FilterCriteria)
	assert.True(t, sub.Enabled)
}

func TestSubscription_DisableEnable(t *testing.T) {
	sub := NewSubscription("payment-1", "OrderEvents", "PaymentProcessor", "")
	createdAt := sub.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	sub.Disable()
	assert.False(t, sub.Enabled)
	assert.True(t, sub.UpdatedAt.After(createdAt))

	disabledAt := sub.UpdatedAt
	time.Sleep(10 * time.Millisecond)
	sub.Enable()
	assert.True(t, sub.Enabled)
	assert.True(t, sub.UpdatedAt.After(disabledAt))
}

func TestSubscription_TableName(t *testing.T) {
	sub := Subscription{}
	assert.Equal(t, "relaybus_subscription", sub.TableName())
}
