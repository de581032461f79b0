package webhooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher detaches webhook correlation work from the HTTP response:
// providers need a fast 2xx, the actual state transition may land after the
// response. Tasks run at-least-once from the provider's point of view — a
// dropped task is re-delivered by the provider's retry and absorbed by the
// idempotency ledger only if it never reached processing.
type Dispatcher struct {
	queue   chan task
	logger  *logger.Logger
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// NewDispatcher builds a dispatcher with a bounded queue and a fixed worker
// pool.
func NewDispatcher(queueSize, workers int, logg *logger.Logger) (*Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:   make(chan task, queueSize),
		logger:  logg,
		baseCtx: ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d, nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		// Workers run on the dispatcher's own context: the HTTP request that
		// enqueued the task has already been answered.
		if err := t.run(d.baseCtx); err != nil {
			ctx := d.logger.WithField(d.baseCtx, "task", t.name)
			d.logger.Error(ctx, "webhook background task failed", err)
		}
	}
}

// Submit hands a task to the worker pool. When the queue is full the task
// runs inline instead of being dropped, trading response latency for
// delivery.
func (d *Dispatcher) Submit(ctx context.Context, name string, run func(ctx context.Context) error) {
	select {
	case d.queue <- task{name: name, run: run}:
	default:
		d.logger.Warn(d.logger.WithField(ctx, "task", name), "webhook queue full, processing inline")
		if err := run(ctx); err != nil {
			d.logger.Error(d.logger.WithField(ctx, "task", name), "webhook inline task failed", err)
		}
	}
}

// Stop drains the queue and waits for in-flight tasks.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.queue)
		d.wg.Wait()
		d.cancel()
	})
}
