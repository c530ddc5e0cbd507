package kpi

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/simulation"
)

const topTicketCount = 5

// Trend of actual energy between the two halves of a window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// SystemStatus classifies the window PR against the plant target.
type SystemStatus string

const (
	StatusNormal   SystemStatus = "normal"
	StatusAlert    SystemStatus = "alerta"
	StatusCritical SystemStatus = "critico"
)

// Variation keys.
const (
	VariationEnergyVsExpected = "energia_vs_esperada_pct"
	VariationRevenueVsTarget  = "ingresos_vs_objetivo_pct"
	VariationOpexVsBudget     = "opex_vs_presupuesto_pct"
)

// Snapshot is the consolidated executive KPI view of one range.
type Snapshot struct {
	Range       Range     `json:"rango"`
	WindowStart time.Time `json:"inicio_ventana"`
	RecordCount int       `json:"registros"`

	EnergyActualKWh   float64  `json:"energia_real_kwh"`
	EnergyExpectedKWh float64  `json:"energia_esperada_kwh"`
	DeviationPct      float64  `json:"desviacion_pct"`
	Trend             Trend    `json:"tendencia"`
	CO2AvoidedKg      float64  `json:"co2_evitado_kg"`
	Alerts            []string `json:"alertas_principales"`

	RevenueUSD     float64            `json:"ingresos_estimados_usd"`
	OpexUSD        float64            `json:"opex_estimado_usd"`
	GrossMarginUSD float64            `json:"margen_bruto_usd"`
	GrossMarginPct float64            `json:"margen_bruto_pct"`
	CostPerKWh     float64            `json:"costo_por_kwh"`
	ROIPct         *float64           `json:"roi_estimado_pct"`
	PaybackYears   *float64           `json:"payback_years"`
	Variations     map[string]float64 `json:"variaciones"`

	PRAvg              float64        `json:"pr_promedio"`
	AvailabilityAvgPct float64        `json:"availability_promedio_pct"`
	CurrentPowerKW     float64        `json:"potencia_actual_kw"`
	SystemStatus       SystemStatus   `json:"estado_sistema"`
	BacklogUSD         float64        `json:"backlog_total_usd"`
	PendingTickets     int            `json:"tickets_pendientes"`
	TopTickets         []plant.Ticket `json:"top_tickets"`
}

// CurrentPointer yields the latest simulated reading.
type CurrentPointer interface {
	CurrentPoint() (simulation.DataPoint, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithLocation sets the plant location used for window boundaries.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// Aggregator derives KPI snapshots from the loaded plant data.
type Aggregator struct {
	store     plant.Reader
	power     CurrentPointer
	co2Factor float64
	clock     Clock
	loc       *time.Location
}

// NewAggregator constructs an aggregator. power may be nil, in which case
// current power reads as zero.
func NewAggregator(store plant.Reader, power CurrentPointer, co2FactorKgPerKWh float64, opts ...Option) (*Aggregator, error) {
	if store == nil {
		return nil, errors.New("kpi aggregator: nil store")
	}
	if co2FactorKgPerKWh < 0 || math.IsNaN(co2FactorKgPerKWh) {
		return nil, errors.New("kpi aggregator: invalid co2 factor")
	}
	a := &Aggregator{
		store:     store,
		power:     power,
		co2Factor: co2FactorKgPerKWh,
		clock:     systemClock{},
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ComputeKPIs builds the snapshot for rangeKey. Unknown keys use 30 days.
func (a *Aggregator) ComputeKPIs(rangeKey string) (*Snapshot, error) {
	snap := a.store.Snapshot()
	p, ok := snap.Plant()
	if !ok {
		return nil, fmt.Errorf("kpi: plant metadata: %w", plant.ErrNoData)
	}
	if len(snap.Records) == 0 {
		return nil, fmt.Errorf("kpi: performance history: %w", plant.ErrNoData)
	}

	r, start := ResolveWindow(rangeKey, a.clock.Now().In(a.loc))
	records := selectFrom(snap.Records, start)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyWindow, r)
	}

	var energyActual, energyExpected, revenue, opex, prSum, availSum float64
	for _, rec := range records {
		energyActual += rec.EnergyActualKWh
		energyExpected += rec.EnergyExpectedKWh
		revenue += rec.EstimatedRevenueUSD
		opex += rec.EstimatedOpexUSD
		prSum += rec.PR
		availSum += rec.AvailabilityPct
	}
	n := float64(len(records))
	prAvg := prSum / n
	availAvg := availSum / n

	deviation := 0.0
	if energyExpected > 0 {
		deviation = (energyActual - energyExpected) / energyExpected * 100
	}
	margin := revenue - opex
	marginPct := 0.0
	if revenue > 0 {
		marginPct = margin / revenue * 100
	}
	costPerKWh := 0.0
	if energyActual > 0 {
		costPerKWh = opex / energyActual
	}

	open := plant.OpenTickets(snap.Tickets)
	var backlog float64
	for _, t := range open {
		backlog += t.CostUSD
	}

	return &Snapshot{
		Range:       r,
		WindowStart: start,
		RecordCount: len(records),

		EnergyActualKWh:   energyActual,
		EnergyExpectedKWh: energyExpected,
		DeviationPct:      round(deviation, 2),
		Trend:             trendOf(records),
		CO2AvoidedKg:      round(energyActual*a.co2Factor, 2),
		Alerts:            EvaluateAlerts(p, snap.Thresholds(), prAvg, availAvg),

		RevenueUSD:     round(revenue, 2),
		OpexUSD:        round(opex, 2),
		GrossMarginUSD: round(margin, 2),
		GrossMarginPct: round(marginPct, 2),
		CostPerKWh:     round(costPerKWh, 4),
		Variations: map[string]float64{
			VariationEnergyVsExpected: round(deviation, 2),
			VariationRevenueVsTarget:  0,
			VariationOpexVsBudget:     0,
		},

		PRAvg:              round(prAvg, 4),
		AvailabilityAvgPct: round(availAvg, 2),
		CurrentPowerKW:     round(a.currentPower(), 2),
		SystemStatus:       statusOf(prAvg, p.TargetPR),
		BacklogUSD:         round(backlog, 2),
		PendingTickets:     len(open),
		TopTickets:         topByCost(open, topTicketCount),
	}, nil
}

func (a *Aggregator) currentPower() float64 {
	if a.power == nil {
		return 0
	}
	point, err := a.power.CurrentPoint()
	if err != nil {
		return 0
	}
	return point.PowerKW
}

// selectFrom keeps records dated on or after start. Future dates are kept.
func selectFrom(records []plant.PerformanceRecord, start time.Time) []plant.PerformanceRecord {
	selected := make([]plant.PerformanceRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Date.Before(start) {
			selected = append(selected, rec)
		}
	}
	return selected
}

// trendOf compares mean actual energy of the two chronological halves.
// The second half takes the extra record on odd counts.
func trendOf(records []plant.PerformanceRecord) Trend {
	if len(records) < 2 {
		return TrendStable
	}
	mid := len(records) / 2
	first := meanActual(records[:mid])
	second := meanActual(records[mid:])
	switch {
	case second > first*1.02:
		return TrendUp
	case second < first*0.98:
		return TrendDown
	default:
		return TrendStable
	}
}

func meanActual(records []plant.PerformanceRecord) float64 {
	var sum float64
	for _, rec := range records {
		sum += rec.EnergyActualKWh
	}
	return sum / float64(len(records))
}

func statusOf(prAvg, targetPR float64) SystemStatus {
	switch {
	case prAvg < targetPR*0.9:
		return StatusCritical
	case prAvg < targetPR*0.95:
		return StatusAlert
	default:
		return StatusNormal
	}
}

func topByCost(tickets []plant.Ticket, limit int) []plant.Ticket {
	sorted := append([]plant.Ticket(nil), tickets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CostUSD > sorted[j].CostUSD })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	if sorted == nil {
		sorted = []plant.Ticket{}
	}
	return sorted
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
