package events

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/activerow/activerow/internal/core"
)

// DispatcherConfig contains configuration for the dispatcher.
type DispatcherConfig struct {
	// BufferSize is the number of events that can queue up before new events
	// are dropped.
	BufferSize int

	// PublishRate is the maximum number of events published per second.
	// This keeps a burst of record activity from overwhelming the broker.
	PublishRate int

	// PublishTimeout bounds a single publish attempt.
	PublishTimeout time.Duration
}

// DefaultDispatcherConfig returns sensible defaults for the dispatcher.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize:     10000,
		PublishRate:    200,
		PublishTimeout: 5 * time.Second,
	}
}

// Dispatcher decouples record operations from event publication. Notify
// enqueues without blocking; a background goroutine drains the buffer to the
// publisher at a controlled rate. When the buffer is full the event is
// dropped and logged, never blocking the record operation.
type Dispatcher struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	buffer    chan core.RecordEvent
	publisher Publisher
	config    DispatcherConfig
}

// NewDispatcher creates a dispatcher over a publisher.
func NewDispatcher(publisher Publisher, config DispatcherConfig) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.PublishRate <= 0 {
		config.PublishRate = defaults.PublishRate
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}

	return &Dispatcher{
		buffer:    make(chan core.RecordEvent, config.BufferSize),
		publisher: publisher,
		config:    config,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Notify enqueues an event for publication. It never blocks; when the buffer
// is full the event is dropped.
func (d *Dispatcher) Notify(event core.RecordEvent) {
	select {
	case d.buffer <- event:
	default:
		log.Printf("[EVENTS] Buffer full, dropping %s event for table %s", event.Kind, event.Table)
	}
}

// Start begins the background publication goroutine. Non-blocking; call Stop
// to shut down gracefully.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		log.Printf("[EVENTS] Dispatcher already running")
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	log.Printf("[EVENTS] Dispatcher started, publish rate: %d events/sec", d.config.PublishRate)
	return nil
}

// Stop shuts down the dispatcher, delivering everything still queued in the
// buffer first. It blocks until the drain completes.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	<-d.doneCh
	log.Printf("[EVENTS] Dispatcher stopped")
	return nil
}

// IsRunning reports whether the dispatcher goroutine is active.
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Pending returns the number of events waiting in the buffer.
func (d *Dispatcher) Pending() int {
	return len(d.buffer)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneCh)

	limiter := rate.NewLimiter(rate.Limit(d.config.PublishRate), 1)
	published := 0
	startTime := time.Now()

	// Stop interrupts the pacing wait so shutdown does not sit out the
	// remaining rate-limit window with an event in hand.
	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	stopCh := d.stopCh
	go func() {
		select {
		case <-stopCh:
			cancelWait()
		case <-waitCtx.Done():
		}
	}()

	for {
		select {
		case <-d.stopCh:
			published += d.drain(ctx)
			log.Printf("[EVENTS] Received stop signal, published %d events in %v", published, time.Since(startTime))
			return
		case <-ctx.Done():
			log.Printf("[EVENTS] Context cancelled, published %d events in %v", published, time.Since(startTime))
			return
		case event := <-d.buffer:
			if err := limiter.Wait(waitCtx); err != nil {
				if ctx.Err() != nil {
					log.Printf("[EVENTS] Context cancelled, published %d events in %v", published, time.Since(startTime))
					return
				}
				// Stop requested mid-wait; the event in hand still gets
				// delivered before the drain.
				if d.publish(ctx, event) {
					published++
				}
				published += d.drain(ctx)
				log.Printf("[EVENTS] Received stop signal, published %d events in %v", published, time.Since(startTime))
				return
			}
			if d.publish(ctx, event) {
				published++
			}
		}
	}
}

// publish sends one event with the configured timeout and reports whether it
// was accepted.
func (d *Dispatcher) publish(ctx context.Context, event core.RecordEvent) bool {
	publishCtx, cancel := context.WithTimeout(ctx, d.config.PublishTimeout)
	err := d.publisher.Publish(publishCtx, event)
	cancel()
	if err != nil {
		log.Printf("[EVENTS] Failed to publish %s event for table %s: %v", event.Kind, event.Table, err)
		return false
	}
	return true
}

// drain delivers everything left in the buffer. Events enqueued by operations
// that finished just before Stop must not be lost; the publish rate no longer
// applies on this path.
func (d *Dispatcher) drain(ctx context.Context) int {
	published := 0
	for {
		select {
		case event := <-d.buffer:
			if d.publish(ctx, event) {
				published++
			}
		default:
			return published
		}
	}
}
