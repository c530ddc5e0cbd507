package memory

import (
	"sync"
	"time"

	plant "solar-dashboard/internal/plant/domain"
)

var _ plant.Store = (*Store)(nil)

// Store holds the loaded plant data and swaps it atomically on reload.
type Store struct {
	mu      sync.RWMutex
	current plant.Snapshot
	clock   func() time.Time
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{clock: func() time.Time { return time.Now().UTC() }}
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() plant.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply replaces the collections named by u in a single swap.
func (s *Store) Apply(u plant.Update) plant.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if u.Data != nil {
		data := *u.Data
		data.Equipment = append([]plant.Equipment(nil), u.Data.Equipment...)
		data.Thresholds = append([]plant.Threshold(nil), u.Data.Thresholds...)
		next.Data = &data
	}
	if u.ReplaceRecords {
		records := append([]plant.PerformanceRecord(nil), u.Records...)
		plant.SortRecords(records)
		next.Records = records
	}
	if u.ReplaceTickets {
		next.Tickets = append([]plant.Ticket(nil), u.Tickets...)
	}
	next.LoadedAt = s.clock()
	next.Generation = s.current.Generation + 1
	s.current = next
	return next
}

// Reset drops all loaded data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = plant.Snapshot{Generation: s.current.Generation + 1}
}
