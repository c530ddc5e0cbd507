package kpi

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/plant/infrastructure/memory"
	"solar-dashboard/internal/simulation"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubPower struct {
	kw  float64
	err error
}

func (s stubPower) CurrentPoint() (simulation.DataPoint, error) {
	return simulation.DataPoint{PowerKW: s.kw}, s.err
}

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func day(offset int) plant.Date {
	return plant.NewDate(now.AddDate(0, 0, offset))
}

func record(offset int, actual, expected float64) plant.PerformanceRecord {
	return plant.PerformanceRecord{
		Date:                day(offset),
		PlantID:             "PV-001",
		EnergyActualKWh:     actual,
		EnergyExpectedKWh:   expected,
		PR:                  0.80,
		AvailabilityPct:     99,
		EstimatedRevenueUSD: actual * 0.05,
		EstimatedOpexUSD:    10,
	}
}

func testPlant() plant.Plant {
	return plant.Plant{ID: "PV-001", Name: "Norte", ACPowerMW: 10, TargetPR: 0.80, TargetAvailability: 98}
}

func newStore(records []plant.PerformanceRecord, tickets []plant.Ticket, thresholds ...plant.Threshold) *memory.Store {
	store := memory.NewStore()
	store.Apply(plant.Update{
		Data:           &plant.Data{Plant: testPlant(), Thresholds: thresholds},
		Records:        records,
		ReplaceRecords: true,
		Tickets:        tickets,
		ReplaceTickets: true,
	})
	return store
}

func newAggregator(t *testing.T, store plant.Reader, power CurrentPointer) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(store, power, 0.5, WithClock(fixedClock{t: now}))
	require.NoError(t, err)
	return agg
}

func TestComputeKPIsTotals(t *testing.T) {
	records := []plant.PerformanceRecord{record(-3, 1000, 1100), record(-2, 1000, 1100), record(-1, 1100, 1100)}
	agg := newAggregator(t, newStore(records, nil), stubPower{kw: 4321.456})

	snap, err := agg.ComputeKPIs("30d")
	require.NoError(t, err)

	assert.Equal(t, Range30Days, snap.Range)
	assert.Equal(t, 3, snap.RecordCount)
	assert.InDelta(t, 3100.0, snap.EnergyActualKWh, 1e-9)
	assert.InDelta(t, 3300.0, snap.EnergyExpectedKWh, 1e-9)
	assert.Equal(t, -6.06, snap.DeviationPct)
	assert.Equal(t, 1550.0, snap.CO2AvoidedKg)
	assert.Equal(t, 155.0, snap.RevenueUSD)
	assert.Equal(t, 30.0, snap.OpexUSD)
	assert.Equal(t, 125.0, snap.GrossMarginUSD)
	assert.Equal(t, 80.65, snap.GrossMarginPct)
	assert.Equal(t, 0.0097, snap.CostPerKWh)
	assert.Nil(t, snap.ROIPct)
	assert.Nil(t, snap.PaybackYears)
	assert.Equal(t, -6.06, snap.Variations[VariationEnergyVsExpected])
	assert.Zero(t, snap.Variations[VariationRevenueVsTarget])
	assert.Zero(t, snap.Variations[VariationOpexVsBudget])
	assert.Equal(t, 0.8, snap.PRAvg)
	assert.Equal(t, 99.0, snap.AvailabilityAvgPct)
	assert.Equal(t, 4321.46, snap.CurrentPowerKW)
	assert.Equal(t, StatusNormal, snap.SystemStatus)
	assert.NotNil(t, snap.Alerts)
	assert.Empty(t, snap.Alerts)
}

func TestDeviationSignFollowsActualMinusExpected(t *testing.T) {
	cases := []struct {
		actual, expected float64
		sign             int
	}{
		{1200, 1000, 1},
		{800, 1000, -1},
		{1000, 1000, 0},
	}
	for _, tc := range cases {
		agg := newAggregator(t, newStore([]plant.PerformanceRecord{record(-1, tc.actual, tc.expected)}, nil), nil)
		snap, err := agg.ComputeKPIs("30d")
		require.NoError(t, err)
		switch tc.sign {
		case 1:
			assert.Greater(t, snap.DeviationPct, 0.0)
		case -1:
			assert.Less(t, snap.DeviationPct, 0.0)
		default:
			assert.Zero(t, snap.DeviationPct)
		}
	}
}

func TestZeroDenominatorsYieldZero(t *testing.T) {
	rec := plant.PerformanceRecord{Date: day(-1), PR: 0.8, AvailabilityPct: 99}
	agg := newAggregator(t, newStore([]plant.PerformanceRecord{rec}, nil), nil)

	snap, err := agg.ComputeKPIs("30d")
	require.NoError(t, err)
	assert.Zero(t, snap.DeviationPct)
	assert.Zero(t, snap.GrossMarginPct)
	assert.Zero(t, snap.CostPerKWh)
	assert.Zero(t, snap.CurrentPowerKW)
}

func TestTrend(t *testing.T) {
	up := []plant.PerformanceRecord{record(-4, 10, 10), record(-3, 10, 10), record(-2, 20, 20), record(-1, 20, 20)}
	down := []plant.PerformanceRecord{record(-4, 20, 10), record(-3, 20, 10), record(-2, 10, 10), record(-1, 10, 10)}
	flat := []plant.PerformanceRecord{record(-2, 100, 100), record(-1, 101, 100)}
	single := []plant.PerformanceRecord{record(-1, 100, 100)}
	odd := []plant.PerformanceRecord{record(-3, 10, 10), record(-2, 10, 10), record(-1, 10, 10)}

	assert.Equal(t, TrendUp, trendOf(up))
	assert.Equal(t, TrendDown, trendOf(down))
	assert.Equal(t, TrendStable, trendOf(flat))
	assert.Equal(t, TrendStable, trendOf(single))
	assert.Equal(t, TrendStable, trendOf(odd))

	oddUp := []plant.PerformanceRecord{record(-3, 10, 10), record(-2, 10, 10), record(-1, 40, 10)}
	assert.Equal(t, TrendUp, trendOf(oddUp), "second half takes the middle record: mean(10,40)=25 > 10")
}

func TestSinglePRThresholdBreachYieldsOneCriticalAlert(t *testing.T) {
	rec := record(-1, 1000, 1000)
	rec.PR = 0.74
	agg := newAggregator(t, newStore([]plant.PerformanceRecord{rec}, nil,
		plant.Threshold{KPI: "PR", Yellow: 0.78, Red: 0.75}), nil)

	snap, err := agg.ComputeKPIs("30d")
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "PR crítico: 74.00% (objetivo: 80.00%)", snap.Alerts[0])
	assert.NotContains(t, snap.Alerts[0], "bajo")
	assert.Equal(t, StatusAlert, snap.SystemStatus)
}

func TestEvaluateAlerts(t *testing.T) {
	p := testPlant()
	thresholds := []plant.Threshold{
		{KPI: "availability", Yellow: 97, Red: 95},
		{KPI: "pr", Yellow: 0.78, Red: 0.75},
		{KPI: "PR", Yellow: 0.99, Red: 0.98},
	}

	alerts := EvaluateAlerts(p, thresholds, 0.77, 90)
	assert.Equal(t, []string{
		"PR bajo: 77.00% (objetivo: 80.00%)",
		"Disponibilidad crítica: 90.0% (objetivo: 98.0%)",
	}, alerts)

	assert.Empty(t, EvaluateAlerts(p, thresholds, 0.80, 96), "availability has no yellow tier")
	assert.Empty(t, EvaluateAlerts(p, nil, 0.1, 1))
}

func TestSystemStatus(t *testing.T) {
	assert.Equal(t, StatusCritical, statusOf(0.71, 0.80))
	assert.Equal(t, StatusAlert, statusOf(0.75, 0.80))
	assert.Equal(t, StatusNormal, statusOf(0.77, 0.80))
}

func TestBacklogIgnoresRange(t *testing.T) {
	tickets := []plant.Ticket{
		{ID: "T1", Status: plant.StatusPending, CostUSD: 100, CreatedOn: day(-400)},
		{ID: "T2", Status: plant.StatusInProgress, CostUSD: 250.5, CreatedOn: day(-1)},
		{ID: "T3", Status: plant.StatusBlocked, CostUSD: 50, CreatedOn: day(-200)},
		{ID: "T4", Status: plant.StatusClosed, CostUSD: 9999, CreatedOn: day(-1)},
	}
	records := []plant.PerformanceRecord{record(-100, 10, 10), record(-1, 10, 10)}
	agg := newAggregator(t, newStore(records, tickets), nil)

	for _, key := range []string{"30d", "90d", "YTD", "12m"} {
		snap, err := agg.ComputeKPIs(key)
		require.NoError(t, err, key)
		assert.Equal(t, 400.5, snap.BacklogUSD, key)
		assert.Equal(t, 3, snap.PendingTickets, key)
	}
}

func TestTopTicketsSortedAndCapped(t *testing.T) {
	var tickets []plant.Ticket
	for i := 0; i < 8; i++ {
		tickets = append(tickets, plant.Ticket{ID: fmt.Sprintf("T%d", i), Status: plant.StatusPending, CostUSD: float64(i % 4)})
	}
	agg := newAggregator(t, newStore([]plant.PerformanceRecord{record(-1, 10, 10)}, tickets), nil)

	snap, err := agg.ComputeKPIs("30d")
	require.NoError(t, err)
	require.Len(t, snap.TopTickets, 5)
	got := make([]string, 0, 5)
	for _, tk := range snap.TopTickets {
		got = append(got, tk.ID)
	}
	assert.Equal(t, []string{"T3", "T7", "T2", "T6", "T1"}, got)
}

func TestRangeSelection(t *testing.T) {
	records := []plant.PerformanceRecord{
		record(-300, 1, 1),
		record(-80, 1, 1),
		record(-29, 1, 1),
		record(5, 1, 1),
	}
	agg := newAggregator(t, newStore(records, nil), nil)

	counts := map[string]int{"30d": 2, "90d": 3, "YTD": 2, "12m": 4, "bogus": 2}
	for key, want := range counts {
		snap, err := agg.ComputeKPIs(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, snap.RecordCount, key)
	}
}

func TestComputeKPIsNoData(t *testing.T) {
	empty, err := NewAggregator(memory.NewStore(), nil, 0.5)
	require.NoError(t, err)
	_, err = empty.ComputeKPIs("30d")
	assert.True(t, errors.Is(err, plant.ErrNoData))

	stale := newAggregator(t, newStore([]plant.PerformanceRecord{record(-60, 1, 1)}, nil), nil)
	_, err = stale.ComputeKPIs("30d")
	assert.True(t, errors.Is(err, plant.ErrNoData))
	assert.True(t, errors.Is(err, ErrEmptyWindow))

	_, err = NewAggregator(nil, nil, 0.5)
	require.Error(t, err)
	_, err = NewAggregator(memory.NewStore(), nil, -1)
	require.Error(t, err)
}

func TestCurrentPowerErrorReadsZero(t *testing.T) {
	agg := newAggregator(t, newStore([]plant.PerformanceRecord{record(-1, 1, 1)}, nil), stubPower{kw: 50, err: errors.New("boom")})
	snap, err := agg.ComputeKPIs("30d")
	require.NoError(t, err)
	assert.Zero(t, snap.CurrentPowerKW)
}

func TestSnapshotJSONContract(t *testing.T) {
	agg := newAggregator(t, newStore([]plant.PerformanceRecord{record(-1, 1, 1)}, nil), nil)
	snap, err := agg.ComputeKPIs("30d")
	require.NoError(t, err)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))

	for _, key := range []string{
		"energia_real_kwh", "energia_esperada_kwh", "desviacion_pct", "tendencia",
		"co2_evitado_kg", "alertas_principales", "ingresos_estimados_usd",
		"opex_estimado_usd", "margen_bruto_usd", "margen_bruto_pct", "costo_por_kwh",
		"roi_estimado_pct", "payback_years", "variaciones", "pr_promedio",
		"availability_promedio_pct", "potencia_actual_kw", "estado_sistema",
		"backlog_total_usd", "tickets_pendientes", "top_tickets",
	} {
		assert.Contains(t, payload, key)
	}
	assert.Nil(t, payload["roi_estimado_pct"])
	assert.Equal(t, []any{}, payload["top_tickets"])
}

func TestResolveWindow(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, loc)

	r, start := ResolveWindow("YTD", at)
	assert.Equal(t, RangeYTD, r)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, loc), start)

	r, start = ResolveWindow("", at)
	assert.Equal(t, Range30Days, r)
	assert.Equal(t, at.AddDate(0, 0, -30), start)

	_, start = ResolveWindow("12m", at)
	assert.Equal(t, at.AddDate(0, 0, -365), start)

	assert.Equal(t, "Año a la fecha", RangeYTD.Label())
	assert.Equal(t, "Últimos 30 días", ParseRange("7d").Label())
}
