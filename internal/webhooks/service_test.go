package webhooks

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

type stubParser struct {
	event *NormalizedPaymentEvent
	err   error
}

func (s *stubParser) Parse(payload []byte, signature string) (*NormalizedPaymentEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.event, nil
}

type stubLedger struct {
	recorded  map[string]bool
	callCount int
}

func newStubLedger() *stubLedger {
	return &stubLedger{recorded: map[string]bool{}}
}

func (s *stubLedger) Record(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	s.callCount++
	key := provider + ":" + eventID
	if s.recorded[key] {
		return true, nil
	}
	s.recorded[key] = true
	return false, nil
}

type stubCorrelatorFn struct {
	orderID uuid.UUID
	found   bool
}

func (s *stubCorrelatorFn) Correlate(ctx context.Context, event *NormalizedPaymentEvent) (uuid.UUID, bool) {
	return s.orderID, s.found
}

type recordingConfirmer struct {
	mu     sync.Mutex
	params []orders.MarkPaidParams
	err    error
}

func (s *recordingConfirmer) ConfirmPaid(ctx context.Context, params orders.MarkPaidParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, params)
	return s.err
}

func (s *recordingConfirmer) calls() []orders.MarkPaidParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orders.MarkPaidParams(nil), s.params...)
}

// syncSubmitter runs tasks inline so tests observe their effects
// deterministically.
type syncSubmitter struct{}

func (syncSubmitter) Submit(ctx context.Context, name string, run func(ctx context.Context) error) {
	_ = run(ctx)
}

// captureSubmitter runs tasks inline and keeps what they returned.
type captureSubmitter struct {
	errs []error
}

func (s *captureSubmitter) Submit(ctx context.Context, name string, run func(ctx context.Context) error) {
	s.errs = append(s.errs, run(ctx))
}

func paymentEvent(eventID string) *NormalizedPaymentEvent {
	return &NormalizedPaymentEvent{
		Provider:          enums.PaymentProviderStripe,
		EventID:           eventID,
		Kind:              KindPaymentCompleted,
		Type:              "checkout.session.completed",
		ProviderPaymentID: "pi_1",
		SessionID:         "cs_1",
	}
}

func newWebhookService(t *testing.T, parser eventParser, ledger Ledger, correlator eventCorrelator, confirmer paymentConfirmer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		StripeParser: parser,
		SquareParser: parser,
		Ledger:       ledger,
		Correlator:   correlator,
		Confirmer:    confirmer,
		Dispatcher:   syncSubmitter{},
		Logger:       testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestHandleFirstDeliveryConfirmsOrder(t *testing.T) {
	orderID := uuid.New()
	confirmer := &recordingConfirmer{}
	svc := newWebhookService(t, &stubParser{event: paymentEvent("evt_1")}, newStubLedger(),
		&stubCorrelatorFn{orderID: orderID, found: true}, confirmer)

	ack, err := svc.HandleStripe(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.False(t, ack.Duplicate)

	calls := confirmer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, orderID, calls[0].OrderID)
	assert.Equal(t, "pi_1", calls[0].PaymentIntentID)
	assert.Equal(t, enums.PaymentProviderStripe, calls[0].Provider)
	assert.False(t, calls[0].PaidAt.IsZero())
}

func TestHandleDuplicateDeliveryShortCircuits(t *testing.T) {
	confirmer := &recordingConfirmer{}
	ledger := newStubLedger()
	svc := newWebhookService(t, &stubParser{event: paymentEvent("evt_dup")}, ledger,
		&stubCorrelatorFn{orderID: uuid.New(), found: true}, confirmer)
	ctx := context.Background()

	first, err := svc.HandleStripe(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.HandleStripe(ctx, []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, second.Received)
	assert.True(t, second.Duplicate)

	// Exactly one order mutation across both deliveries.
	assert.Len(t, confirmer.calls(), 1)
}

func TestHandleIgnoredEventAckedWithoutLedger(t *testing.T) {
	ignored := &NormalizedPaymentEvent{
		Provider: enums.PaymentProviderStripe,
		EventID:  "evt_other",
		Kind:     KindIgnored,
		Type:     "invoice.created",
	}
	ledger := newStubLedger()
	confirmer := &recordingConfirmer{}
	svc := newWebhookService(t, &stubParser{event: ignored}, ledger, &stubCorrelatorFn{}, confirmer)

	ack, err := svc.HandleStripe(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Zero(t, ledger.callCount)
	assert.Empty(t, confirmer.calls())
}

func TestHandleUncorrelatedEventStillAcked(t *testing.T) {
	confirmer := &recordingConfirmer{}
	svc := newWebhookService(t, &stubParser{event: paymentEvent("evt_lost")}, newStubLedger(),
		&stubCorrelatorFn{found: false}, confirmer)

	ack, err := svc.HandleSquare(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Received)
	assert.Empty(t, confirmer.calls())
}

func TestHandleClosedOrderConflictNotRetried(t *testing.T) {
	// A delivery for an order the sweeper already expired is a conflict on the
	// confirmer, but the provider must still see success or it retries forever.
	confirmer := &recordingConfirmer{
		err: pkgerrors.New(pkgerrors.CodeStateConflict, "Order is no longer awaiting payment (status: EXPIRED)."),
	}
	submitter := &captureSubmitter{}
	svc, err := NewService(ServiceParams{
		StripeParser: &stubParser{event: paymentEvent("evt_expired")},
		SquareParser: &stubParser{event: paymentEvent("evt_expired")},
		Ledger:       newStubLedger(),
		Correlator:   &stubCorrelatorFn{orderID: uuid.New(), found: true},
		Confirmer:    confirmer,
		Dispatcher:   submitter,
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	ack, err := svc.HandleStripe(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Received)

	require.Len(t, submitter.errs, 1)
	assert.NoError(t, submitter.errs[0])
	assert.Len(t, confirmer.calls(), 1)
}

func TestHandleSignatureFailureRejected(t *testing.T) {
	parseErr := pkgerrors.New(pkgerrors.CodeValidation, "signature verification failed")
	svc := newWebhookService(t, &stubParser{err: parseErr}, newStubLedger(), &stubCorrelatorFn{}, &recordingConfirmer{})

	_, err := svc.HandleStripe(context.Background(), []byte(`{}`), "bad")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDispatcherRunsSubmittedTasks(t *testing.T) {
	d, err := NewDispatcher(4, 2, testLogger())
	require.NoError(t, err)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		d.Submit(context.Background(), "task", func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
	}
	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, ran)
}

func TestDispatcherFallsBackInlineWhenQueueFull(t *testing.T) {
	d, err := NewDispatcher(1, 1, testLogger())
	require.NoError(t, err)
	defer d.Stop()

	started := make(chan struct{})
	block := make(chan struct{})
	d.Submit(context.Background(), "blocker", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	// Wait for the single worker to be busy, then fill the one queue slot.
	<-started
	d.Submit(context.Background(), "filler", func(ctx context.Context) error { return nil })

	// Queue is saturated: this task must run inline on the caller.
	ran := false
	d.Submit(context.Background(), "inline", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
	close(block)
}
