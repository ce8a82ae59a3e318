package engine

import "testing"

func TestEventBusSubscribeEmit(t *testing.T) {
	eb := NewEventBus()

	var got []EventType
	eb.Subscribe(func(evt Event) {
		got = append(got, evt.Type)
	})

	eb.Emit(Event{Type: EventOrderCreated})
	eb.Emit(Event{Type: EventDayClosed})

	if len(got) != 2 || got[0] != EventOrderCreated || got[1] != EventDayClosed {
		t.Errorf("received = %v", got)
	}
}

func TestEventBusTypeFilter(t *testing.T) {
	eb := NewEventBus()

	count := 0
	eb.SubscribeTypes(func(evt Event) { count++ }, EventSyncDrained)

	eb.Emit(Event{Type: EventOrderCreated})
	eb.Emit(Event{Type: EventSyncDrained})
	eb.Emit(Event{Type: EventInventoryRecorded})

	if count != 1 {
		t.Errorf("filtered subscriber fired %d times, want 1", count)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus()

	count := 0
	id := eb.Subscribe(func(Event) { count++ })
	eb.Emit(Event{Type: EventOrderCreated})
	eb.Unsubscribe(id)
	eb.Emit(Event{Type: EventOrderCreated})

	if count != 1 {
		t.Errorf("fired %d times, want 1", count)
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	eb := NewEventBus()

	var gotZero bool
	eb.Subscribe(func(evt Event) { gotZero = evt.Timestamp.IsZero() })
	eb.Emit(Event{Type: EventDayOpened})

	if gotZero {
		t.Error("Emit should stamp a zero timestamp")
	}
}
