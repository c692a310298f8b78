package model

import (
	"database/sql"
	"time"
)

// LockStatus represents the lifecycle state of a delivery lock.
type LockStatus string

const (
	// LockStatusActive indicates the message is currently being processed
	// and its broker lock is held.
	LockStatusActive LockStatus = "active"

	// LockStatusCompleted indicates processing finished and the message
	// was settled with the broker.
	LockStatusCompleted LockStatus = "completed"

	// LockStatusAbandoned indicates the lock was released for redelivery.
	LockStatusAbandoned LockStatus = "abandoned"

	// LockStatusDeadLettered indicates the message was moved to the
	// dead-letter holding area.
	LockStatusDeadLettered LockStatus = "dead_lettered"

	// LockStatusExpired indicates the lock lapsed before a terminal
	// outcome was recorded (typically a consumer crash).
	LockStatusExpired LockStatus = "expired"
)

// IsTerminal reports whether the status is a terminal state.
// Completed, Abandoned, DeadLettered and Expired are terminal; a lock
// never transitions out of a terminal state.
func (s LockStatus) IsTerminal() bool {
	switch s {
	case LockStatusCompleted, LockStatusAbandoned, LockStatusDeadLettered, LockStatusExpired:
		return true
	default:
		return false
	}
}

// DeliveryLock tracks one in-flight message delivery attempt so that a
// process restart can resume renewal or reconciliation from persisted
// state alone.
//
// DeliveryLock rows follow this lifecycle:
//  1. Created ACTIVE when a message lock is first observed
//  2. Renewed while processing continues (expiry advances, never recedes)
//  3. Transitions to exactly one terminal state:
//     COMPLETED | ABANDONED | DEAD_LETTERED | EXPIRED
//  4. Removed by a retention-based cleanup sweep once terminal
//
// Business logic methods:
//   - Renew: advance expiry under the active-only, monotonic-expiry rules
//   - Transition: move to a terminal or Active status with conflict guards
//   - NeedsRenewal/IsLockExpired: renewal sweep predicates
type DeliveryLock struct {
	ID                int64        `json:"id"`
	MessageID         string       `json:"messageID" db:"message_id"`
	LockToken         string       `json:"lockToken" db:"lock_token"` // Broker-issued, rotates on renewal
	TopicName         string       `json:"topicName" db:"topic_name"`
	SubscriptionName  string       `json:"subscriptionName" db:"subscription_name"`
	InterfaceName     string       `json:"interfaceName" db:"interface_name"`
	AdapterInstanceID string       `json:"adapterInstanceID" db:"adapter_instance_id"`
	LockAcquiredAt    time.Time    `json:"lockAcquiredAt" db:"lock_acquired_at"`
	LockExpiresAt     time.Time    `json:"lockExpiresAt" db:"lock_expires_at"`
	LastRenewedAt     sql.NullTime `json:"lastRenewedAt" db:"last_renewed_at"`
	RenewalCount      int          `json:"renewalCount" db:"renewal_count"`
	DeliveryCount     int          `json:"deliveryCount" db:"delivery_count"` // Broker redelivery counter
	Status            LockStatus   `json:"status" db:"status"`
	CompletionReason  string       `json:"completionReason" db:"completion_reason"`
	CompletedAt       sql.NullTime `json:"completedAt" db:"completed_at"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for DeliveryLock.
func (m DeliveryLock) TableName() string {
	return tablePrefix + "delivery_lock"
}

// NewDeliveryLock creates an Active lock record for a newly observed
// message delivery.
func NewDeliveryLock(
	messageID, lockToken, topicName, subscriptionName, interfaceName, adapterInstanceID string,
	lockExpiresAt time.Time,
	deliveryCount int,
) DeliveryLock {
	now := time.Now()
	return DeliveryLock{
		ID:                0,
		MessageID:         messageID,
		LockToken:         lockToken,
		TopicName:         topicName,
		SubscriptionName:  subscriptionName,
		InterfaceName:     interfaceName,
		AdapterInstanceID: adapterInstanceID,
		LockAcquiredAt:    now,
		LockExpiresAt:     lockExpiresAt,
		LastRenewedAt:     sql.NullTime{},
		RenewalCount:      0,
		DeliveryCount:     deliveryCount,
		Status:            LockStatusActive,
		CompletionReason:  "",
		CompletedAt:       sql.NullTime{},
		CreatedAt:         now,
	}
}

// Renew advances the lock expiry and rotates the broker token.
// Returns an error if the lock is not Active or the new expiry would
// move the deadline backwards (expiry is monotonic).
func (m *DeliveryLock) Renew(newToken string, newExpiresAt time.Time) error {
	if m.Status != LockStatusActive {
		return ErrLockNotActive
	}
	if newExpiresAt.Before(m.LockExpiresAt) {
		return ErrExpiryNotAdvanced
	}
	m.LockToken = newToken
	m.LockExpiresAt = newExpiresAt
	m.LastRenewedAt = sql.NullTime{Time: time.Now(), Valid: true}
	m.RenewalCount++
	return nil
}

// Transition moves the lock to the given status.
//
// Rules:
//   - Active → Active is allowed (redelivery reset)
//   - Active → terminal records CompletionReason and CompletedAt
//   - terminal → same terminal is an idempotent no-op (ErrAlreadyTerminal)
//   - terminal → anything else is rejected (ErrTerminalConflict)
func (m *DeliveryLock) Transition(status LockStatus, reason string) error {
	if m.Status.IsTerminal() {
		if m.Status == status {
			return ErrAlreadyTerminal
		}
		return ErrTerminalConflict
	}
	m.Status = status
	if status.IsTerminal() {
		m.CompletionReason = reason
		m.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	return nil
}

// NeedsRenewal reports whether the lock expiry falls within threshold of now.
// Only Active locks are ever renewed.
func (m *DeliveryLock) NeedsRenewal(threshold time.Duration) bool {
	if m.Status != LockStatusActive {
		return false
	}
	return !m.LockExpiresAt.After(time.Now().Add(threshold))
}

// IsLockExpired reports whether the lock deadline has already passed.
func (m *DeliveryLock) IsLockExpired() bool {
	return time.Now().After(m.LockExpiresAt)
}

// TimeUntilExpiry returns the remaining lock lifetime.
// Negative duration means the lock has already lapsed.
func (m *DeliveryLock) TimeUntilExpiry() time.Duration {
	return time.Until(m.LockExpiresAt)
}

// Domain errors returned by DeliveryLock business logic methods.
var (
	// ErrLockNotActive indicates a renewal was attempted on a non-Active lock.
	ErrLockNotActive = DomainError{Code: "LOCK_NOT_ACTIVE", Message: "Delivery lock is not active"}

	// ErrExpiryNotAdvanced indicates a renewal tried to move the expiry backwards.
	ErrExpiryNotAdvanced = DomainError{Code: "EXPIRY_NOT_ADVANCED", Message: "Renewal must advance the lock expiry"}

	// ErrAlreadyTerminal indicates a repeated transition to the same terminal state.
	ErrAlreadyTerminal = DomainError{Code: "ALREADY_TERMINAL", Message: "Delivery lock already in this terminal state"}

	// ErrTerminalConflict indicates a transition out of a terminal state was attempted.
	ErrTerminalConflict = DomainError{Code: "TERMINAL_CONFLICT", Message: "Delivery lock already reached a different terminal state"}
)

// DomainError represents a domain-level business rule violation.
type DomainError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
}

func (e DomainError) Error() string {
	return e.Message
}
