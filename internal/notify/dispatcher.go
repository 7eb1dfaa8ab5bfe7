package notify

import (
	"context"
	"log"
	"sync"

	"github.com/paybridge/paybridge/internal/domain"
)

// Job is one callback delivery to perform.
type Job struct {
	OrderID string
	Outcome domain.Outcome
	Message string
}

// Deliverer is the fire-and-forget enqueue surface the lifecycle uses.
type Deliverer interface {
	Enqueue(job Job)
}

// Dispatcher runs deliveries on background workers so the retry loop never
// blocks the request that triggered it. A delivery, once started, runs to
// the end of its own retry budget; there is no cancellation path.
type Dispatcher struct {
	notifier *Notifier
	store    domain.OrderStore
	jobs     chan Job
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given job buffer.
func NewDispatcher(notifier *Notifier, store domain.OrderStore, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		notifier: notifier,
		store:    store,
		jobs:     make(chan Job, buffer),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Enqueue schedules a delivery. Blocks only when the buffer is full.
func (d *Dispatcher) Enqueue(job Job) {
	d.jobs <- job
}

// Stop drains the queue and waits for in-flight deliveries to finish.
// Enqueue must not be called after Stop.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		ctx := context.Background()
		order, err := d.store.FindByID(ctx, job.OrderID)
		if err != nil {
			log.Printf("Dropping callback job, order %s not found: %v", job.OrderID, err)
			continue
		}
		if !d.notifier.Notify(ctx, order, job.Outcome, job.Message) {
			// Operational alert: the merchant platform never acknowledged.
			// The order's own state stands; reconciliation is out-of-band.
			log.Printf("ALERT: callback delivery exhausted for order %s (result=%s)",
				order.Reference, job.Outcome)
		}
	}
}
