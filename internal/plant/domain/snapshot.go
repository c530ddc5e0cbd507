package plant

import "time"

// Snapshot is an immutable view of the loaded data. Callers must not mutate its slices.
type Snapshot struct {
	Data       *Data
	Records    []PerformanceRecord
	Tickets    []Ticket
	LoadedAt   time.Time
	Generation uint64
}

// Plant returns the plant metadata when loaded.
func (s Snapshot) Plant() (Plant, bool) {
	if s.Data == nil {
		return Plant{}, false
	}
	return s.Data.Plant, true
}

// Thresholds returns the KPI thresholds, or nil when no plant is loaded.
func (s Snapshot) Thresholds() []Threshold {
	if s.Data == nil {
		return nil
	}
	return s.Data.Thresholds
}

// Reader exposes the current data snapshot.
type Reader interface {
	Snapshot() Snapshot
}

// Update carries the collections to replace. A nil Data keeps the loaded plant;
// records and tickets are only replaced when their Replace flag is set.
type Update struct {
	Data    *Data
	Records []PerformanceRecord
	Tickets []Ticket

	ReplaceRecords bool
	ReplaceTickets bool
}

// Store is a Reader that accepts whole-collection replacements.
type Store interface {
	Reader
	Apply(u Update) Snapshot
}
