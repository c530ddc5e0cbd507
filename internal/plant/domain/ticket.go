package plant

import (
	"fmt"
	"strings"
)

// TicketStatus is the lifecycle state of a maintenance ticket.
type TicketStatus string

const (
	StatusPending    TicketStatus = "pendiente"
	StatusInProgress TicketStatus = "en progreso"
	StatusBlocked    TicketStatus = "bloqueado"
	StatusClosed     TicketStatus = "cerrado"
)

// ParseTicketStatus normalizes a status label, ignoring case and surrounding spaces.
func ParseTicketStatus(value string) (TicketStatus, error) {
	switch TicketStatus(normalizeLabel(value)) {
	case StatusPending:
		return StatusPending, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusBlocked:
		return StatusBlocked, nil
	case StatusClosed:
		return StatusClosed, nil
	default:
		return "", fmt.Errorf("ticket: unknown status %q", value)
	}
}

// IsOpen reports whether the ticket still counts towards the backlog.
func (s TicketStatus) IsOpen() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked:
		return true
	default:
		return false
	}
}

// Label returns the display label used in source files and reports.
func (s TicketStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusInProgress:
		return "En Progreso"
	case StatusBlocked:
		return "Bloqueado"
	case StatusClosed:
		return "Cerrado"
	default:
		return string(s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TicketStatus) MarshalText() ([]byte, error) {
	return []byte(s.Label()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TicketStatus) UnmarshalText(data []byte) error {
	parsed, err := ParseTicketStatus(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Severity is the criticality of a maintenance ticket.
type Severity string

const (
	SeverityLow      Severity = "baja"
	SeverityMedium   Severity = "media"
	SeverityHigh     Severity = "alta"
	SeverityCritical Severity = "critica"
)

// ParseSeverity normalizes a severity label. "crítica" and "critica" are equivalent.
func ParseSeverity(value string) (Severity, error) {
	switch normalizeLabel(value) {
	case "baja":
		return SeverityLow, nil
	case "media":
		return SeverityMedium, nil
	case "alta":
		return SeverityHigh, nil
	case "critica", "crítica":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("ticket: unknown severity %q", value)
	}
}

// IsCritical reports whether the severity degrades plant output while open.
func (s Severity) IsCritical() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Label returns the display label.
func (s Severity) Label() string {
	switch s {
	case SeverityLow:
		return "Baja"
	case SeverityMedium:
		return "Media"
	case SeverityHigh:
		return "Alta"
	case SeverityCritical:
		return "Crítica"
	default:
		return string(s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.Label()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(data []byte) error {
	parsed, err := ParseSeverity(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Ticket is a maintenance work item.
type Ticket struct {
	ID                 string       `json:"ticket_id"`
	PlantID            string       `json:"planta_id"`
	CreatedOn          Date         `json:"fecha_creacion"`
	Status             TicketStatus `json:"estado"`
	Type               string       `json:"tipo"`
	Severity           Severity     `json:"criticidad"`
	EquipmentID        string       `json:"equipo_id,omitempty"`
	Description        string       `json:"descripcion"`
	CostUSD            float64      `json:"costo_estimado_usd"`
	EnergyImpactKWh    float64      `json:"impacto_estimado_kwh"`
	SLAHours           int          `json:"sla_objetivo_horas"`
	Owner              string       `json:"responsable"`
	TargetResolutionOn *Date        `json:"fecha_estimada_resolucion,omitempty"`
}

// IsOpen reports whether the ticket is pending, in progress or blocked.
func (t Ticket) IsOpen() bool {
	return t.Status.IsOpen()
}

// DegradesOutput reports whether an open, critical ticket derates the plant.
func (t Ticket) DegradesOutput() bool {
	return t.Status.IsOpen() && t.Severity.IsCritical()
}

// OpenTickets returns the open subset, preserving order.
func OpenTickets(tickets []Ticket) []Ticket {
	open := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.IsOpen() {
			open = append(open, t)
		}
	}
	return open
}

// AnyDegrading reports whether any ticket is open and critical.
func AnyDegrading(tickets []Ticket) bool {
	for _, t := range tickets {
		if t.DegradesOutput() {
			return true
		}
	}
	return false
}

func normalizeLabel(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
