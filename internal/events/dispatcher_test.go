package events

import (
	"context"
	"testing"
	"time"

	"github.com/activerow/activerow/internal/core"
)

func testEvent(table string, kind core.EventKind) core.RecordEvent {
	return core.RecordEvent{
		Table:      table,
		Kind:       kind,
		PrimaryKey: map[string]interface{}{"id": int64(1)},
		Timestamp:  time.Now(),
	}
}

func TestMemoryPublisher(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx := context.Background()

	if err := pub.Publish(ctx, testEvent("customer", core.EventAfterInsert)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	events := pub.Events()
	if len(events) != 1 || events[0].Table != "customer" {
		t.Fatalf("events = %v", events)
	}

	pub.Close()
	if err := pub.Publish(ctx, testEvent("customer", core.EventAfterInsert)); err != ErrPublisherClosed {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
}

func TestDispatcherPublishesInOrder(t *testing.T) {
	pub := NewMemoryPublisher()
	d := NewDispatcher(pub, DispatcherConfig{PublishRate: 1000})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	d.Notify(testEvent("customer", core.EventAfterInsert))
	d.Notify(testEvent("order", core.EventAfterInsert))
	d.Notify(testEvent("customer", core.EventAfterRefresh))

	deadline := time.Now().Add(5 * time.Second)
	for len(pub.Events()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, published %d of 3 events", len(pub.Events()))
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	events := pub.Events()
	if events[0].Table != "customer" || events[1].Table != "order" || events[2].Kind != core.EventAfterRefresh {
		t.Fatalf("events out of order: %v", events)
	}
}

func TestDispatcherDrainsOnStop(t *testing.T) {
	pub := NewMemoryPublisher()
	// Rate of 1/sec: the buffer is guaranteed to still hold events when Stop
	// is called.
	d := NewDispatcher(pub, DispatcherConfig{PublishRate: 1})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		d.Notify(testEvent("customer", core.EventAfterInsert))
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := len(pub.Events()); got != 5 {
		t.Fatalf("published %d of 5 events after Stop", got)
	}
	if d.Pending() != 0 {
		t.Fatalf("pending = %d after Stop, want 0", d.Pending())
	}
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	d := NewDispatcher(NewMemoryPublisher(), DispatcherConfig{})

	if d.IsRunning() {
		t.Fatal("dispatcher should not run before Start")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop before Start failed: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.IsRunning() {
		t.Fatal("dispatcher should be running after Start")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	pub := NewMemoryPublisher()
	d := NewDispatcher(pub, DispatcherConfig{BufferSize: 1})

	// Not started: the buffer never drains.
	d.Notify(testEvent("customer", core.EventAfterInsert))
	d.Notify(testEvent("customer", core.EventAfterInsert))

	if d.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", d.Pending())
	}
}
