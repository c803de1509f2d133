package events

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventValidateStart, "mission-blink"))

	select {
	case event := <-ch:
		if event.Type != EventValidateStart {
			t.Errorf("expected EventValidateStart, got %s", event.Type)
		}
		if event.Data != "mission-blink" {
			t.Errorf("expected data 'mission-blink', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe(EventValidateResult)
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventValidateStart, "should-be-filtered"))
	bus.Publish(NewEvent(EventValidateResult, "should-arrive"))

	select {
	case event := <-ch:
		if event.Type != EventValidateResult {
			t.Errorf("expected EventValidateResult, got %s", event.Type)
		}
		if event.Data != "should-arrive" {
			t.Errorf("expected data 'should-arrive', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	select {
	case event := <-ch:
		t.Errorf("unexpected event: %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusMultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(0)
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(NewEvent(EventCatalogLoaded, "embedded"))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != EventCatalogLoaded {
				t.Errorf("expected EventCatalogLoaded, got %s", event.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryBusHistory(t *testing.T) {
	bus := NewMemoryBus(0)

	t1 := time.Now()
	bus.Publish(NewEvent(EventValidateStart, "first"))
	time.Sleep(10 * time.Millisecond)
	t2 := time.Now()
	bus.Publish(NewEvent(EventValidateResult, "second"))

	all := bus.History(t1)
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	since := bus.History(t2)
	if len(since) != 1 {
		t.Fatalf("expected 1 event since t2, got %d", len(since))
	}
	if since[0].Data != "second" {
		t.Errorf("expected 'second', got %v", since[0].Data)
	}
}

func TestMemoryBusHistoryBounded(t *testing.T) {
	bus := NewMemoryBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(NewEvent(EventAttemptSaved, fmt.Sprint(i)))
	}

	got := bus.History(time.Time{})
	if len(got) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(got))
	}
	if got[0].Data != "2" || got[2].Data != "4" {
		t.Errorf("retained %v .. %v, want 2 .. 4", got[0].Data, got[2].Data)
	}
}

func TestMemoryBusHistoryEmpty(t *testing.T) {
	bus := NewMemoryBus(0)
	if events := bus.History(time.Time{}); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed")
	}
}

func TestForSubmission(t *testing.T) {
	base := NewEvent(EventValidateResult, nil)
	tagged := base.ForSubmission("mission-servo", "ada")

	if tagged.MissionID != "mission-servo" || tagged.Learner != "ada" {
		t.Errorf("tagged = %+v", tagged)
	}
	if base.MissionID != "" {
		t.Error("ForSubmission modified the receiver")
	}
	if tagged.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}
