package jobs

import (
	"context"
	"testing"
	"time"
)

func TestChannel_DeliversInOrder(t *testing.T) {
	ch := NewChannel()
	ch.Publish(Event{Message: "m1"})
	ch.Publish(Event{Message: "m2"})
	ch.Done(Event{Message: "done", Status: StatusCompleted})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []Event
	for e := range ch.Subscribe(ctx) {
		got = append(got, e)
	}

	if len(got) != 3 {
		t.Fatalf("received %d events, want 3: %+v", len(got), got)
	}
	if got[0].Message != "m1" || got[1].Message != "m2" {
		t.Errorf("events out of order: %+v", got)
	}
	final := got[2]
	if !final.Final || final.Status != StatusCompleted {
		t.Errorf("final event = %+v", final)
	}
}

func TestChannel_ProducerNeverBlocks(t *testing.T) {
	ch := NewChannel()

	// No consumer at all; a large publish burst must return promptly.
	published := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			ch.Publish(Event{Message: "tick"})
		}
		ch.Done(Event{Message: "done"})
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked without a consumer")
	}

	// A late consumer still sees the full backlog.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	count := 0
	for range ch.Subscribe(ctx) {
		count++
	}
	if count != 10001 {
		t.Errorf("late consumer saw %d events, want 10001", count)
	}
}

func TestChannel_PublishAfterDoneDropped(t *testing.T) {
	ch := NewChannel()
	ch.Done(Event{Message: "done"})
	ch.Publish(Event{Message: "late"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []Event
	for e := range ch.Subscribe(ctx) {
		got = append(got, e)
	}
	if len(got) != 1 || got[0].Message != "done" {
		t.Errorf("events = %+v, want only the final event", got)
	}
}

func TestChannel_SubscribeCancelled(t *testing.T) {
	ch := NewChannel()
	ch.Publish(Event{Message: "m1"})

	ctx, cancel := context.WithCancel(context.Background())
	sub := ch.Subscribe(ctx)
	if e := <-sub; e.Message != "m1" {
		t.Fatalf("event = %+v", e)
	}
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("expected closed subscription after cancel")
		}
	case <-time.After(time.Second):
		t.Error("subscription not closed after cancel")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	ch := r.Register("u1")
	if ch == nil {
		t.Fatal("Register() returned nil")
	}
	got, ok := r.Lookup("u1")
	if !ok || got != ch {
		t.Errorf("Lookup() = %v, %v", got, ok)
	}

	r.Remove("u1")
	if _, ok := r.Lookup("u1"); ok {
		t.Error("Lookup() found removed channel")
	}
}
