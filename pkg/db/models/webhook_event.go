package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the append-only idempotency ledger for provider webhook
// deliveries. The composite unique index is the dedup mechanism: a unique
// violation on insert means the event was already handled.
type WebhookEvent struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider        string    `gorm:"column:provider;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID string    `gorm:"column:provider_event_id;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType       string    `gorm:"column:event_type;not null;index"`
	ReceivedAt      time.Time `gorm:"column:received_at;autoCreateTime"`
}
