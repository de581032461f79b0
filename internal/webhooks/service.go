package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/farmstandhq/farmstand-backend/internal/orders"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
	"github.com/farmstandhq/farmstand-backend/pkg/metrics"
)

// Ack is the body every accepted webhook delivery gets. Providers retry on
// anything other than a fast 2xx, so even an uncorrelatable event is
// acknowledged.
type Ack struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type eventParser interface {
	Parse(payload []byte, signature string) (*NormalizedPaymentEvent, error)
}

type eventCorrelator interface {
	Correlate(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool)
}

type paymentConfirmer interface {
	ConfirmPaid(ctx context.Context, params orders.MarkPaidParams) error
}

type taskSubmitter interface {
	Submit(ctx context.Context, name string, run func(ctx context.Context) error)
}

// Service is the webhook reconciliation entrypoint: verify, dedupe, ack fast,
// correlate and transition in the background.
type Service interface {
	HandleStripe(ctx context.Context, payload []byte, signature string) (*Ack, error)
	HandleSquare(ctx context.Context, payload []byte, signature string) (*Ack, error)
}

type service struct {
	stripe     eventParser
	square     eventParser
	ledger     Ledger
	correlator eventCorrelator
	confirmer  paymentConfirmer
	dispatcher taskSubmitter
	metrics    *metrics.WebhookMetrics
	logger     *logger.Logger
	now        func() time.Time
}

// ServiceParams carries the webhook service dependencies. Metrics may be nil.
type ServiceParams struct {
	StripeParser eventParser
	SquareParser eventParser
	Ledger       Ledger
	Correlator   eventCorrelator
	Confirmer    paymentConfirmer
	Dispatcher   taskSubmitter
	Metrics      *metrics.WebhookMetrics
	Logger       *logger.Logger
}

// NewService builds the webhook reconciliation service.
func NewService(p ServiceParams) (Service, error) {
	if p.StripeParser == nil || p.SquareParser == nil {
		return nil, fmt.Errorf("webhook parsers required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("webhook ledger required")
	}
	if p.Correlator == nil {
		return nil, fmt.Errorf("correlator required")
	}
	if p.Confirmer == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	if p.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		stripe:     p.StripeParser,
		square:     p.SquareParser,
		ledger:     p.Ledger,
		correlator: p.Correlator,
		confirmer:  p.Confirmer,
		dispatcher: p.Dispatcher,
		metrics:    p.Metrics,
		logger:     p.Logger,
		now:        time.Now,
	}, nil
}

func (s *service) HandleStripe(ctx context.Context, payload []byte, signature string) (*Ack, error) {
	return s.handle(ctx, s.stripe, "stripe", payload, signature)
}

func (s *service) HandleSquare(ctx context.Context, payload []byte, signature string) (*Ack, error) {
	return s.handle(ctx, s.square, "square", payload, signature)
}

func (s *service) handle(ctx context.Context, parser eventParser, providerLabel string, payload []byte, signature string) (*Ack, error) {
	event, err := parser.Parse(payload, signature)
	if err != nil {
		s.metrics.IncRejected(providerLabel)
		return nil, err
	}

	s.metrics.IncReceived(providerLabel)
	ctx = s.logger.WithFields(ctx, map[string]any{
		"provider":   providerLabel,
		"event_id":   event.EventID,
		"event_type": event.Type,
	})

	// Non-payment event types are acknowledged and dropped so the provider
	// stops retrying them.
	if event.Kind == KindIgnored {
		s.logger.Info(ctx, "webhook event type ignored")
		return &Ack{Received: true}, nil
	}

	duplicate, err := s.ledger.Record(ctx, providerLabel, event.EventID, event.Type)
	if err != nil {
		return nil, err
	}
	if duplicate {
		s.metrics.IncDuplicate(providerLabel)
		s.logger.Info(ctx, "webhook event already processed")
		return &Ack{Received: true, Duplicate: true}, nil
	}

	// Correlation may fetch remote provider objects or scan sellers; the
	// provider's timeout window is a few seconds, so the response must not
	// wait for it.
	s.dispatcher.Submit(ctx, fmt.Sprintf("reconcile-%s-%s", providerLabel, event.EventID), func(taskCtx context.Context) error {
		return s.reconcile(taskCtx, providerLabel, event)
	})

	return &Ack{Received: true}, nil
}

func (s *service) reconcile(ctx context.Context, providerLabel string, event *NormalizedPaymentEvent) error {
	orderID, found := s.correlator.Correlate(ctx, event)
	if !found {
		s.metrics.IncUnmatched(providerLabel)
		fields := s.logger.WithFields(ctx, map[string]any{
			"provider": providerLabel,
			"event_id": event.EventID,
			"payload":  string(event.Raw),
		})
		s.logger.Warn(fields, "webhook event could not be matched to an order")
		return nil
	}

	err := s.confirmer.ConfirmPaid(ctx, orders.MarkPaidParams{
		OrderID:         orderID,
		Provider:        event.Provider,
		PaymentIntentID: event.ProviderPaymentID,
		PaidAt:          s.now(),
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		// The order expired or was cancelled before the delivery landed. The
		// provider must not retry; the conflict is an operator signal only.
		fields := s.logger.WithFields(ctx, map[string]any{
			"provider": providerLabel,
			"order_id": orderID.String(),
			"reason":   err.Error(),
		})
		s.logger.Warn(fields, "payment signal arrived for a closed order")
		return nil
	}
	return err
}
