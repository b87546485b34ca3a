// Package tasks defines the structure for messages that are sent to Kafka.
package tasks

import "time"

// AnalyticsEventTask represents one analytics event on its way to the event store.
// EventID is assigned by the producer and makes redelivery idempotent.
type AnalyticsEventTask struct {
	EventID    string                 `json:"event_id"`
	SessionID  uint                   `json:"session_id"`
	UserID     uint                   `json:"user_id"`
	EventType  string                 `json:"event_type"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
