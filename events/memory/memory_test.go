package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Moriyan1307/misprint-demo/models"
)

func update(id string, quantity int64, seq uint64) *models.StateUpdate {
	return &models.StateUpdate{
		Item: models.Item{
			ID:       id,
			Quantity: quantity,
			Seq:      seq,
		},
		Timestamp: time.Now(),
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	b := NewBroker(10, nil)
	defer b.Close()

	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Publish(ctx, update("charizard-1st-ed", 0, 1)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-sub.C:
		if got.Item.ID != "charizard-1st-ed" {
			t.Errorf("Expected item charizard-1st-ed, got %s", got.Item.ID)
		}
		if got.Item.Quantity != 0 {
			t.Errorf("Expected quantity 0, got %d", got.Item.Quantity)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	b := NewBroker(10, nil)
	defer b.Close()

	ctx := context.Background()

	sub1, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}

	sub2, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	if err := b.Publish(ctx, update("charizard-1st-ed", 0, 1)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got1 := <-sub1.C
	if got1.Item.Seq != 1 {
		t.Errorf("Subscriber 1: expected seq 1, got %d", got1.Item.Seq)
	}

	got2 := <-sub2.C
	if got2.Item.Seq != 1 {
		t.Errorf("Subscriber 2: expected seq 1, got %d", got2.Item.Seq)
	}
}

func TestBroker_DeliveryOrder(t *testing.T) {
	b := NewBroker(10, nil)
	defer b.Close()

	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for seq := uint64(1); seq <= 5; seq++ {
		if err := b.Publish(ctx, update("charizard-1st-ed", int64(5-seq), seq)); err != nil {
			t.Fatalf("Publish %d failed: %v", seq, err)
		}
	}

	for want := uint64(1); want <= 5; want++ {
		got := <-sub.C
		if got.Item.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, got.Item.Seq)
		}
	}
}

func TestBroker_SlowSubscriberEvicted(t *testing.T) {
	b := NewBroker(2, nil)
	defer b.Close()

	ctx := context.Background()

	slow, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	fast, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// The slow subscriber never drains; the third publish overflows its
	// queue and must evict it without blocking.
	for seq := uint64(1); seq <= 3; seq++ {
		if err := b.Publish(ctx, update("charizard-1st-ed", 0, seq)); err != nil {
			t.Fatalf("Publish %d failed: %v", seq, err)
		}
		if seq <= 2 {
			<-fast.C
		}
	}

	received := 0
	for range slow.C {
		received++
	}
	if received != 2 {
		t.Errorf("slow subscriber received %d buffered events, want 2", received)
	}

	// The fast subscriber keeps receiving.
	select {
	case got := <-fast.C:
		if got.Item.Seq != 3 {
			t.Errorf("expected seq 3, got %d", got.Item.Seq)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("fast subscriber starved after slow eviction")
	}
}

func TestBroker_UnsubscribeIdempotent(t *testing.T) {
	b := NewBroker(10, nil)
	defer b.Close()

	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(10, nil)

	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, ok := <-sub.C; ok {
		t.Error("expected channel to be closed")
	}

	if _, err := b.Subscribe(context.Background()); err == nil {
		t.Error("expected Subscribe to fail after Close")
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	b := NewBroker(10, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Publish(ctx, update("charizard-1st-ed", 1, 1))
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
