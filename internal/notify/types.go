package notify

import (
	"time"

	"github.com/google/uuid"
)

// Event types dispatched to registered webhooks.
const (
	EventAttendanceCommitted = "attendance.committed"
	EventFaceEnrolled        = "face.enrolled"
	EventSessionClosed       = "session.closed"
)

type Webhook struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Secret          string     `json:"-"`
	Events          []string   `json:"events"`
	Enabled         bool       `json:"enabled"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type WebhookJob struct {
	ID          uuid.UUID  `json:"id"`
	WebhookID   uuid.UUID  `json:"webhook_id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type EventPayload struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event payload with the current time.
func NewEvent(eventType string, data interface{}) EventPayload {
	return EventPayload{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
