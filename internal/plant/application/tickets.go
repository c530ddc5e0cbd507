package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	plant "solar-dashboard/internal/plant/domain"
)

// Ticket list orderings.
const (
	SortCostDesc = "costo_desc"
	SortCostAsc  = "costo_asc"
	SortDate     = "fecha"

	MaxTicketLimit = 1000
)

// ErrInvalidLimit is returned for a limit outside 1..MaxTicketLimit.
var ErrInvalidLimit = errors.New("tickets: invalid limit")

// TicketFilter narrows a ticket listing. Zero Limit means no limit.
type TicketFilter struct {
	Status string
	Sort   string
	Limit  int
}

// TicketQuery lists loaded maintenance tickets.
type TicketQuery struct {
	store plant.Reader
}

// NewTicketQuery constructs the query.
func NewTicketQuery(store plant.Reader) (*TicketQuery, error) {
	if store == nil {
		return nil, errors.New("ticket query: nil store")
	}
	return &TicketQuery{store: store}, nil
}

// List filters, orders and truncates the loaded tickets. The status
// "pendiente" selects every open ticket.
func (q *TicketQuery) List(filter TicketFilter) ([]plant.Ticket, error) {
	if filter.Limit < 0 || filter.Limit > MaxTicketLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, filter.Limit)
	}
	all := q.store.Snapshot().Tickets
	if len(all) == 0 {
		return nil, fmt.Errorf("tickets: %w", plant.ErrNoData)
	}

	tickets := make([]plant.Ticket, 0, len(all))
	status := strings.TrimSpace(filter.Status)
	switch {
	case status == "":
		tickets = append(tickets, all...)
	case strings.EqualFold(status, string(plant.StatusPending)):
		tickets = append(tickets, plant.OpenTickets(all)...)
	default:
		want, err := plant.ParseTicketStatus(status)
		if err == nil {
			for _, t := range all {
				if t.Status == want {
					tickets = append(tickets, t)
				}
			}
		}
	}

	switch filter.Sort {
	case "", SortCostDesc:
		sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].CostUSD > tickets[j].CostUSD })
	case SortCostAsc:
		sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].CostUSD < tickets[j].CostUSD })
	case SortDate:
		sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].CreatedOn.After(tickets[j].CreatedOn.Time) })
	}

	if filter.Limit > 0 && len(tickets) > filter.Limit {
		tickets = tickets[:filter.Limit]
	}
	return tickets, nil
}
