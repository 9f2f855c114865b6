package usecase

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/ports"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
	maxDeliveryAttempts = 5
	maxRetryDelay       = 2 * time.Minute
)

// OutboxDispatcher drains pending change events and hands them to the
// configured publisher. A failing delivery backs off quadratically per
// event; after maxDeliveryAttempts the event is parked as dead so one
// broken webhook target cannot wedge the whole queue. Payloads that no
// longer decode are parked immediately: redelivering them can never
// succeed.
type OutboxDispatcher struct {
	outbox      ports.OutboxRepository
	publisher   ports.EventPublisher
	pollEvery   time.Duration
	batchSize   int
	maxAttempts int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	delivered atomic.Int64
	retried   atomic.Int64
	parked    atomic.Int64
}

// OutboxDispatcherMetrics is a point-in-time snapshot of delivery
// counters since the dispatcher started.
type OutboxDispatcherMetrics struct {
	Delivered int64
	Retried   int64
	Parked    int64
}

func NewOutboxDispatcher(outbox ports.OutboxRepository, publisher ports.EventPublisher, pollEvery time.Duration, batchSize int) *OutboxDispatcher {
	if pollEvery <= 0 {
		pollEvery = defaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &OutboxDispatcher{
		outbox:      outbox,
		publisher:   publisher,
		pollEvery:   pollEvery,
		batchSize:   batchSize,
		maxAttempts: maxDeliveryAttempts,
	}
}

// Start launches the background delivery loop. Starting an already
// running dispatcher is a no-op.
func (d *OutboxDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

// Close stops the loop and waits for the in-flight batch to finish.
func (d *OutboxDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *OutboxDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	for {
		d.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain delivers full batches until the pending window is empty, so a
// burst of mutations is flushed in one wake-up instead of one batch per
// tick.
func (d *OutboxDispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := d.deliverBatch(ctx)
		if err != nil {
			log.Printf("outbox drain: %v", err)
			return
		}
		if n < d.batchSize {
			return
		}
	}
}

func (d *OutboxDispatcher) deliverBatch(ctx context.Context) (int, error) {
	events, err := d.outbox.FetchPending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

// deliver publishes one event and settles its outbox row. Only outbox
// bookkeeping failures are returned; publish failures are absorbed into
// the retry schedule.
func (d *OutboxDispatcher) deliver(ctx context.Context, event domain.OutboxEvent) error {
	var envelope domain.EventEnvelope
	if err := json.Unmarshal(event.PayloadJSON, &envelope); err != nil {
		return d.park(ctx, event, "payload does not decode: "+err.Error())
	}

	if err := d.publisher.Publish(ctx, event.Topic, envelope); err != nil {
		attempts := event.Attempts + 1
		if attempts >= d.maxAttempts {
			return d.park(ctx, event, err.Error())
		}
		next := time.Now().UTC().Add(retryDelay(attempts)).Format(time.RFC3339Nano)
		if markErr := d.outbox.MarkFailed(ctx, event.ID, attempts, next, err.Error()); markErr != nil {
			return markErr
		}
		d.retried.Add(1)
		return nil
	}

	if err := d.outbox.MarkDispatched(ctx, event.ID); err != nil {
		return err
	}
	d.delivered.Add(1)
	return nil
}

// park dead-letters an event and reports it once. Parked events stay in
// the outbox table for an operator to inspect; nothing retries them.
func (d *OutboxDispatcher) park(ctx context.Context, event domain.OutboxEvent, reason string) error {
	if err := d.outbox.MarkDead(ctx, event.ID, event.Attempts+1, reason); err != nil {
		return err
	}
	d.parked.Add(1)
	log.Printf("outbox event %s on %s parked after %d attempts: %s", event.EventID, event.Topic, event.Attempts+1, reason)
	return nil
}

func (d *OutboxDispatcher) Metrics() OutboxDispatcherMetrics {
	return OutboxDispatcherMetrics{
		Delivered: d.delivered.Load(),
		Retried:   d.retried.Load(),
		Parked:    d.parked.Load(),
	}
}

// retryDelay grows quadratically with the attempt count, capped so a
// long webhook outage keeps retries within a bounded window.
func retryDelay(attempt int) time.Duration {
	delay := time.Duration(attempt*attempt) * time.Second
	if delay < time.Second {
		delay = time.Second
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
