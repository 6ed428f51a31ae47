// Package telemetry emits best-effort diagnostic events for the realtime
// core (dispatches, delivery misses, sweeps). Events flow to Kafka when
// brokers are configured, otherwise to OTel logs; cmd/worker forwards the
// Kafka topic to Loki.
package telemetry

import (
	"encoding/json"
	"time"
)

// Event is one diagnostic event. Serialized as JSON onto the Kafka topic and
// into OTel log record attributes.
type Event struct {
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
