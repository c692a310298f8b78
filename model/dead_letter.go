package model

import (
	"database/sql"
	"time"
)

// DeadLetterMessage is a read-only view of one dead-lettered message as
// exposed by the broker's dead-letter holding area.
//
// The delivery core never mutates dead letters; they are aggregated for
// operational visibility and otherwise left for manual or automated
// inspection.
type DeadLetterMessage struct {
	ID                int64        `json:"id"`
	MessageID         string       `json:"messageID" db:"message_id"`
	InterfaceName     string       `json:"interfaceName" db:"interface_name"`
	AdapterInstanceID string       `json:"adapterInstanceID" db:"adapter_instance_id"`
	ErrorMessage      string       `json:"errorMessage" db:"error_message"`
	DeliveryCount     int          `json:"deliveryCount" db:"delivery_count"`
	Payload           string       `json:"payload" db:"payload"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
	ProcessedAt       sql.NullTime `json:"processedAt" db:"processed_at"`
}

// TableName returns the database table name for DeadLetterMessage.
func (m DeadLetterMessage) TableName() string {
	return tablePrefix + "dead_letter"
}

// EffectiveTime returns the timestamp used for ordering and age
// calculations: ProcessedAt when recorded, CreatedAt otherwise.
func (m DeadLetterMessage) EffectiveTime() time.Time {
	if m.ProcessedAt.Valid {
		return m.ProcessedAt.Time
	}
	return m.CreatedAt
}

// Age returns how long the message has been dead-lettered.
func (m DeadLetterMessage) Age() time.Duration {
	return time.Since(m.EffectiveTime())
}

// ErrorFrequency pairs one distinct error message with its occurrence count.
type ErrorFrequency struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// DeadLetterStats represents per-interface aggregate statistics over the
// dead-letter holding area. Used for monitoring dashboards and alerting.
type DeadLetterStats struct {
	InterfaceName string           `json:"interfaceName"`
	Count         int              `json:"count"`
	OldestAt      time.Time        `json:"oldestAt"`
	NewestAt      time.Time        `json:"newestAt"`
	TopErrors     []ErrorFrequency `json:"topErrors"` // At most five, most frequent first
}
