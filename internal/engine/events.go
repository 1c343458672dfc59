package engine

import (
	"sync"
)

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "build", "demolish", "factory", ...
	Meta        map[string]any `json:"meta,omitempty"`
}

const maxEvents = 1000

// eventLog keeps recent events and fans published snapshots out to
// subscribers. Slow subscribers miss snapshots rather than block the tick.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	subs   map[int]chan *Snapshot
	nextID int
}

// EmitEvent records an event.
func (s *Simulation) EmitEvent(e Event) {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	s.events.events = append(s.events.events, e)
	if len(s.events.events) > maxEvents {
		s.events.events = s.events.events[len(s.events.events)-maxEvents:]
	}
}

// RecentEvents returns up to limit of the most recent events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	start := max(len(s.events.events)-limit, 0)
	return append([]Event(nil), s.events.events[start:]...)
}

// Subscribe returns a channel receiving every published snapshot.
func (s *Simulation) Subscribe() (int, <-chan *Snapshot) {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	if s.events.subs == nil {
		s.events.subs = make(map[int]chan *Snapshot)
	}
	s.events.nextID++
	ch := make(chan *Snapshot, 4)
	s.events.subs[s.events.nextID] = ch
	return s.events.nextID, ch
}

// Unsubscribe closes a subscription.
func (s *Simulation) Unsubscribe(id int) {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	if ch, ok := s.events.subs[id]; ok {
		close(ch)
		delete(s.events.subs, id)
	}
}

// Latest returns the most recently published snapshot, or nil before the
// first tick.
func (s *Simulation) Latest() *Snapshot { return s.latest.Load() }

func (s *Simulation) publish(snap *Snapshot) {
	s.latest.Store(snap)
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	for _, ch := range s.events.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
