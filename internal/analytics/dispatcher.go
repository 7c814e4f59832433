// Package analytics fans coupon analytics records out to Kafka, S3 and the
// process log. Submissions never wait on a sink.
package analytics

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// Sink receives analytics records. Implementations must be safe to call from
// the dispatcher's worker goroutine.
type Sink interface {
	Name() string
	Record(ctx context.Context, rec models.AnalyticsRecord) error
	Close() error
}

type DispatcherConfig struct {
	// Buffer is the queue capacity. Records beyond it are dropped.
	Buffer int
	// SinkTimeout bounds a single Record call.
	SinkTimeout time.Duration
}

type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Dropped   int64 `json:"dropped"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Dispatcher owns a bounded queue drained by one background worker.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	queue   chan models.AnalyticsRecord
	done    chan struct{}
	stop    context.Context
	halt    context.CancelFunc

	mu     sync.RWMutex
	closed bool

	enqueued, dropped, delivered, failed atomic.Int64
}

// NewDispatcher starts the worker immediately.
func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 10 * time.Second
	}
	d := &Dispatcher{
		sinks:   sinks,
		timeout: cfg.SinkTimeout,
		queue:   make(chan models.AnalyticsRecord, cfg.Buffer),
		done:    make(chan struct{}),
	}
	d.stop, d.halt = context.WithCancel(context.Background())
	go d.run()
	log.Printf("[analytics] dispatcher started (buffer=%d, sinks=%d)", cfg.Buffer, len(sinks))
	return d
}

// Enqueue hands rec to the worker without blocking. It reports false when the
// record was dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(rec models.AnalyticsRecord) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- rec:
		d.enqueued.Add(1)
		return true
	default:
		d.dropped.Add(1)
		log.Printf("[analytics] queue full, dropped event %s", rec.EventID)
		return false
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued:  d.enqueued.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}

// Close stops accepting records and drains the queue until ctx expires. On
// expiry the in-flight delivery is cancelled and the rest of the queue is
// dropped. Sinks are closed only after the worker has exited.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	var err error
	select {
	case <-d.done:
	case <-ctx.Done():
		err = ctx.Err()
		log.Printf("[analytics] drain interrupted: %v", err)
		d.halt()
		<-d.done
	}
	d.halt()
	for _, s := range d.sinks {
		if cerr := s.Close(); cerr != nil {
			log.Printf("[analytics] close %s: %v", s.Name(), cerr)
		}
	}
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		if d.stop.Err() != nil {
			d.dropped.Add(1)
			continue
		}
		d.deliver(rec)
	}
}

func (d *Dispatcher) deliver(rec models.AnalyticsRecord) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(d.stop, d.timeout)
		err := s.Record(ctx, rec)
		cancel()
		if err != nil {
			d.failed.Add(1)
			log.Printf("[analytics] %s event %s: %v", s.Name(), rec.EventID, err)
			continue
		}
		d.delivered.Add(1)
	}
}
