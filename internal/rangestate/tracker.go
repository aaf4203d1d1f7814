package rangestate

import (
	"sync"

	"lpMonitor/internal/model"
)

// State is the last observed range classification of a position.
type State int

const (
	Unknown State = iota
	InRange
	OutOfRange
)

func (s State) String() string {
	switch s {
	case InRange:
		return "in_range"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

func stateOf(inRange bool) State {
	if inRange {
		return InRange
	}
	return OutOfRange
}

// Store maps position ids to their last observed state. Missing entries
// read as Unknown.
type Store interface {
	Get(positionID string) State
	Set(positionID string, state State)
}

// MemoryStore is a process-lifetime Store. Reads from a dashboard goroutine
// may run concurrently with the cycle loop's writes.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(positionID string) State {
	s.mu.RLock()
	state := s.states[positionID]
	s.mu.RUnlock()
	return state
}

func (s *MemoryStore) Set(positionID string, state State) {
	s.mu.Lock()
	s.states[positionID] = state
	s.mu.Unlock()
}

// Snapshot copies the current states.
func (s *MemoryStore) Snapshot() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.states))
	for id, state := range s.states {
		out[id] = state
	}
	return out
}

// Tracker compares each successful snapshot with the stored state and emits
// edge-triggered range events.
type Tracker struct {
	store Store
}

// NewTracker builds a Tracker over store; nil uses a fresh MemoryStore.
func NewTracker(store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{store: store}
}

// Store returns the backing state store.
func (t *Tracker) Store() Store {
	return t.store
}

// Observe records the snapshot's classification and returns the event for
// the transition, if any. Only call it for snapshots that were built
// successfully: a failed check is not an observation.
func (t *Tracker) Observe(snap model.Snapshot) (model.RangeEvent, bool) {
	prev := t.store.Get(snap.PositionID)
	next := stateOf(snap.InRange)
	t.store.Set(snap.PositionID, next)

	event := model.RangeEvent{
		PositionID:   snap.PositionID,
		PositionName: snap.Name,
		CurrentPrice: snap.Price,
	}

	switch {
	case prev == Unknown && next == OutOfRange:
		event.Kind = model.EventInitialOutOfRange
	case prev == InRange && next == OutOfRange:
		event.Kind = model.EventOutOfRange
	case prev == OutOfRange && next == InRange:
		event.Kind = model.EventBackInRange
		return event, true
	default:
		return model.RangeEvent{}, false
	}

	event.LowerPrice = snap.PriceLower
	event.UpperPrice = snap.PriceUpper
	event.DeviationPercent = snap.DeviationPercent
	return event, true
}
