package rangestate

import (
	"testing"

	"lpMonitor/internal/model"
)

func snap(id string, inRange bool) model.Snapshot {
	s := model.Snapshot{
		PositionID: id,
		Name:       "pos-" + id,
		Price:      1.25,
		PriceLower: 1.0,
		PriceUpper: 1.2,
		InRange:    inRange,
	}
	if !inRange {
		s.DeviationPercent = 4.1666
	}
	return s
}

func TestTrackerSequence(t *testing.T) {
	tracker := NewTracker(nil)

	steps := []struct {
		inRange bool
		want    model.RangeEventKind
	}{
		{inRange: true},
		{inRange: true},
		{inRange: false, want: model.EventOutOfRange},
		{inRange: false},
		{inRange: true, want: model.EventBackInRange},
	}

	emitted := 0
	for i, step := range steps {
		event, ok := tracker.Observe(snap("a", step.inRange))
		if step.want == "" {
			if ok {
				t.Fatalf("step %d: unexpected event %+v", i, event)
			}
			continue
		}
		if !ok || event.Kind != step.want {
			t.Fatalf("step %d: expected %s, got %+v (ok=%v)", i, step.want, event, ok)
		}
		emitted++
	}
	if emitted != 2 {
		t.Fatalf("expected 2 events, got %d", emitted)
	}
}

func TestTrackerInitialOutOfRange(t *testing.T) {
	tracker := NewTracker(nil)
	event, ok := tracker.Observe(snap("b", false))
	if !ok || event.Kind != model.EventInitialOutOfRange {
		t.Fatalf("expected initial out-of-range, got %+v (ok=%v)", event, ok)
	}
	if event.LowerPrice != 1.0 || event.UpperPrice != 1.2 || event.DeviationPercent == 0 {
		t.Fatalf("missing alert payload: %+v", event)
	}
	if event.PositionName != "pos-b" {
		t.Fatalf("unexpected name %q", event.PositionName)
	}

	if _, ok := tracker.Observe(snap("b", false)); ok {
		t.Fatalf("self transition must not emit")
	}
	if got := tracker.Store().Get("b"); got != OutOfRange {
		t.Fatalf("expected out_of_range, got %s", got)
	}
}

func TestTrackerBackInRangePayload(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Observe(snap("c", false))
	event, ok := tracker.Observe(snap("c", true))
	if !ok || event.Kind != model.EventBackInRange {
		t.Fatalf("expected back-in-range, got %+v", event)
	}
	if event.CurrentPrice != 1.25 || event.LowerPrice != 0 || event.DeviationPercent != 0 {
		t.Fatalf("back-in-range carries only the price: %+v", event)
	}
}

func TestTrackerStoresAreIndependent(t *testing.T) {
	first := NewTracker(NewMemoryStore())
	second := NewTracker(NewMemoryStore())

	first.Observe(snap("d", true))
	if got := second.Store().Get("d"); got != Unknown {
		t.Fatalf("trackers share state: %s", got)
	}
	if _, ok := second.Observe(snap("d", false)); !ok {
		t.Fatalf("second tracker should see an initial out-of-range")
	}
}

func TestMemoryStoreSnapshot(t *testing.T) {
	store := NewMemoryStore()
	store.Set("x", InRange)
	store.Set("y", OutOfRange)
	copied := store.Snapshot()
	store.Set("x", OutOfRange)
	if copied["x"] != InRange || copied["y"] != OutOfRange || len(copied) != 2 {
		t.Fatalf("unexpected snapshot %v", copied)
	}
}
