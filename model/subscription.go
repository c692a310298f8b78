// Package model contains the domain entities for the relaybus delivery core.
package model

import (
	"time"
)

const tablePrefix = "relaybus_"

// Subscription binds one adapter instance to one named interface with an
// optional broker-interpreted filter predicate.
//
// At most one subscription exists per (AdapterInstanceID, InterfaceName)
// pair; creation is an upsert keyed on that pair. Disabling a subscription
// toggles the Enabled flag rather than deleting the row, so re-enabling
// restores delivery without losing history. Deletion is a distinct,
// explicit operation.
type Subscription struct {
	ID                int64     `json:"id"`
	AdapterInstanceID string    `json:"adapterInstanceID" db:"adapter_instance_id"`
	InterfaceName     string    `json:"interfaceName" db:"interface_name"`
	AdapterName       string    `json:"adapterName" db:"adapter_name"`
	FilterCriteria    string    `json:"filterCriteria" db:"filter_criteria"` // Opaque predicate, broker-interpreted
	Enabled           bool      `json:"enabled" db:"enabled"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (m Subscription) TableName() string {
	return tablePrefix + "subscription"
}

// NewSubscription creates a new enabled subscription for an adapter
// instance on an interface.
//
// Parameters:
//   - adapterInstanceID: Stable identifier of the adapter endpoint
//   - interfaceName: Logical channel the adapter subscribes to
//   - adapterName: Human-readable adapter type name
//   - filterCriteria: Opaque filter predicate (may be empty)
func NewSubscription(adapterInstanceID, interfaceName, adapterName, filterCriteria string) Subscription {
	now := time.Now()
	return Subscription{
		ID:                0,
		AdapterInstanceID: adapterInstanceID,
		InterfaceName:     interfaceName,
		AdapterName:       adapterName,
		FilterCriteria:    filterCriteria,
		Enabled:           true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Disable toggles the subscription off without deleting it.
// Disabled subscriptions are excluded from routing fan-out.
func (m *Subscription) Disable() {
	m.Enabled = false
	m.UpdatedAt = time.Now()
}

// Enable toggles the subscription back on.
func (m *Subscription) Enable() {
	m.Enabled = true
	m.UpdatedAt = time.Now()
}
