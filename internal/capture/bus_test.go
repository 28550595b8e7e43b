package capture

import (
	"fmt"
	"testing"
	"time"
)

func TestPublishOrder(t *testing.T) {
	b := NewBus(128)
	sub := b.Subscribe()

	const n = 100
	for i := 0; i < n; i++ {
		b.Publish(NewEvent(Status, map[string]any{"seq": i}))
	}
	b.Close()

	var got []int
	for ev := range sub.Events() {
		got = append(got, ev.Payload["seq"].(int))
	}

	if len(got) != n {
		t.Fatalf("received %d events, want %d", len(got), n)
	}
	for i, seq := range got {
		if seq != i {
			t.Fatalf("event %d has seq %d, want %d", i, seq, i)
		}
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	b := NewBus(4)
	slow := b.Subscribe()
	fast := b.Subscribe()

	// Never read from slow; its 4-slot queue saturates and it must be
	// dropped without stalling publishes to fast. Receiving on fast
	// after every publish keeps it provably caught up regardless of
	// scheduling.
	const n = 50
	received := 0
	start := time.Now()
	for i := 0; i < n; i++ {
		b.Publish(StatusEvent(fmt.Sprintf("ev-%d", i)))
		select {
		case _, ok := <-fast.Events():
			if !ok {
				t.Fatalf("fast subscriber dropped after %d events", received)
			}
			received++
		case <-time.After(time.Second):
			t.Fatalf("no event after publish %d, publisher appears blocked", i)
		}
	}
	elapsed := time.Since(start)

	// Publishing must not block on the saturated subscriber. The loop
	// is pure channel sends, so even a slow CI box finishes fast.
	if elapsed > 5*time.Second {
		t.Fatalf("publishing %d events took %v, publisher appears blocked", n, elapsed)
	}

	b.Close()

	if received != n {
		t.Errorf("fast subscriber received %d events, want %d", received, n)
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("subscriber count after close = %d, want 0", got)
	}

	// The slow subscriber's channel must be closed, not left dangling.
	drained := 0
	for range slow.Events() {
		drained++
	}
	if drained > 4 {
		t.Errorf("slow subscriber drained %d events, queue capacity is 4", drained)
	}
}

func TestCloseWakesSubscribers(t *testing.T) {
	b := NewBus(8)
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.Events() {
		}
	}()

	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber not woken by Close")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	b := NewBus(8)
	b.Close()

	sub := b.Subscribe()
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel on closed bus not closed")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := NewBus(8)
	sub := b.Subscribe()
	sub.Close()
	sub.Close() // second close must not panic

	// Publishing after detach must not panic or deliver.
	b.Publish(StatusEvent("after-detach"))
	if _, ok := <-sub.Events(); ok {
		t.Fatal("detached subscriber received an event")
	}
}

func TestPublishConcurrentWithSubscribe(t *testing.T) {
	b := NewBus(256)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				b.Publish(StatusEvent("tick"))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		sub := b.Subscribe()
		sub.Close()
	}
	close(stop)
	b.Close()
}
