package kpi

import "time"

// Range is a reporting window key.
type Range string

const (
	Range30Days   Range = "30d"
	Range90Days   Range = "90d"
	RangeYTD      Range = "YTD"
	Range12Months Range = "12m"
)

// ParseRange maps a request key to a Range. Unknown keys fall back to 30 days.
func ParseRange(key string) Range {
	switch Range(key) {
	case Range30Days, Range90Days, RangeYTD, Range12Months:
		return Range(key)
	default:
		return Range30Days
	}
}

// Label returns the human-readable period used in reports.
func (r Range) Label() string {
	switch r {
	case Range90Days:
		return "Últimos 90 días"
	case RangeYTD:
		return "Año a la fecha"
	case Range12Months:
		return "Últimos 12 meses"
	default:
		return "Últimos 30 días"
	}
}

// Start returns the inclusive window start for now. YTD starts on Jan 1 in now's location.
func (r Range) Start(now time.Time) time.Time {
	switch r {
	case Range90Days:
		return now.AddDate(0, 0, -90)
	case RangeYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case Range12Months:
		return now.AddDate(0, 0, -365)
	default:
		return now.AddDate(0, 0, -30)
	}
}

// ResolveWindow parses key and returns the range with its window start.
func ResolveWindow(key string, now time.Time) (Range, time.Time) {
	r := ParseRange(key)
	return r, r.Start(now)
}
