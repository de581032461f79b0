package webhooks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db"
	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

// Ledger is the append-only webhook idempotency ledger.
type Ledger interface {
	// Record inserts the event id. duplicate is true when the id was already
	// recorded; that is the signal to acknowledge without reprocessing.
	Record(ctx context.Context, provider, eventID, eventType string) (duplicate bool, err error)
}

type ledger struct {
	db *gorm.DB
}

// NewLedger builds the webhook event ledger bound to the provided DB.
func NewLedger(gdb *gorm.DB) Ledger {
	return &ledger{db: gdb}
}

func (l *ledger) Record(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	event := &models.WebhookEvent{
		ID:              uuid.New(),
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       eventType,
	}
	err := l.db.WithContext(ctx).Create(event).Error
	if err == nil {
		return false, nil
	}
	if db.IsUniqueViolation(err, "ux_webhook_events_provider_event") {
		return true, nil
	}
	return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
}
