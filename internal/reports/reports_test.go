package reports

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"solar-dashboard/internal/audit"
	kpi "solar-dashboard/internal/kpi/domain"
	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/plant/infrastructure/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubKPIs struct {
	snap *kpi.Snapshot
	err  error
	keys []string
}

func (s *stubKPIs) ComputeKPIs(rangeKey string) (*kpi.Snapshot, error) {
	s.keys = append(s.keys, rangeKey)
	return s.snap, s.err
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

var generatedAt = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func samplePlant() plant.Plant {
	return plant.Plant{
		ID: "PV-001", Name: "Planta Solar Norte", City: "Ullum", Region: "San Juan", Country: "Argentina",
		DCPowerMWp: 12.5, ACPowerMW: 10, TargetPR: 0.8, TargetAvailability: 98,
	}
}

func sampleSnapshot() *kpi.Snapshot {
	created, _ := plant.ParseDate("2026-03-01", time.UTC)
	return &kpi.Snapshot{
		Range:              kpi.Range90Days,
		EnergyActualKWh:    1234567.8,
		EnergyExpectedKWh:  1300000,
		DeviationPct:       -5.03,
		Trend:              kpi.TrendDown,
		CO2AvoidedKg:       617283.9,
		Alerts:             []string{"PR crítico: 74.00% (objetivo: 80.00%)", "Disponibilidad crítica: 90.0% (objetivo: 98.0%)", "tercera"},
		RevenueUSD:         61728.39,
		OpexUSD:            12000,
		GrossMarginUSD:     49728.39,
		GrossMarginPct:     80.56,
		CostPerKWh:         0.0097,
		Variations:         map[string]float64{kpi.VariationEnergyVsExpected: -5.03},
		PRAvg:              0.7412,
		AvailabilityAvgPct: 90,
		CurrentPowerKW:     5120.5,
		SystemStatus:       kpi.StatusAlert,
		BacklogUSD:         4500,
		PendingTickets:     2,
		TopTickets: []plant.Ticket{
			{ID: "TKT-1", CreatedOn: created, Status: plant.StatusPending, Severity: plant.SeverityCritical,
				Description: "Falla en el inversor central por sobretemperatura en el gabinete", CostUSD: 4000},
			{ID: "TKT-2", CreatedOn: created, Status: plant.StatusBlocked, Severity: plant.SeverityLow,
				Description: "Limpieza", CostUSD: 500},
		},
	}
}

func loadedStore() *memory.Store {
	store := memory.NewStore()
	p := samplePlant()
	store.Apply(plant.Update{Data: &plant.Data{Plant: p}})
	return store
}

func TestBuildExecutivePDF(t *testing.T) {
	content, err := BuildExecutivePDF(samplePlant(), sampleSnapshot(), generatedAt)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))

	_, err = BuildExecutivePDF(samplePlant(), nil, generatedAt)
	require.Error(t, err)
}

func TestSummaryBullets(t *testing.T) {
	bullets := summaryBullets(samplePlant(), sampleSnapshot())
	require.Len(t, bullets, 9)
	assert.Equal(t, "Energía generada: 1,234,568 kWh (-5.0% vs esperado)", bullets[0])
	assert.Equal(t, "Performance Ratio (PR): 74.12% (objetivo: 80.00%)", bullets[1])
	assert.Equal(t, "Ingresos estimados: USD $61,728.39", bullets[3])
	assert.Equal(t, "Estado del sistema: ALERTA", bullets[8])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "corto", truncate("corto", descriptionWidth))
	long := strings.Repeat("á", 45)
	assert.Equal(t, strings.Repeat("á", 40)+"...", truncate(long, descriptionWidth))
}

func TestBuildKPIWorkbook(t *testing.T) {
	content, err := BuildKPIWorkbook(samplePlant(), sampleSnapshot(), generatedAt)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetTickets}, f.GetSheetList())
	name, err := f.GetCellValue(SheetSummary, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Planta Solar Norte", name)
	period, err := f.GetCellValue(SheetSummary, "B5")
	require.NoError(t, err)
	assert.Equal(t, "Últimos 90 días", period)

	rows, err := f.GetRows(SheetTickets)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "TKT-1", rows[1][0])
	assert.Equal(t, "Pendiente", rows[1][2])
	assert.Equal(t, "Crítica", rows[1][3])
}

func TestSummaryTemplate(t *testing.T) {
	tpl, err := NewSummaryTemplate("")
	require.NoError(t, err)

	text, err := tpl.Render(samplePlant(), sampleSnapshot())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Resumen ejecutivo de Planta Solar Norte."))
	assert.Contains(t, text, "1,234,568 kilovatios hora")
	assert.Contains(t, text, "-5.0 por ciento")
	assert.Contains(t, text, "El Performance Ratio alcanzó 74.1%")
	assert.Contains(t, text, "con 2 tickets pendientes")
	assert.Contains(t, text, "El estado general del sistema es alerta.")
	assert.Contains(t, text, "Alertas principales: PR crítico: 74.00% (objetivo: 80.00%). Disponibilidad crítica")
	assert.NotContains(t, text, "tercera")

	quiet := sampleSnapshot()
	quiet.Alerts = nil
	text, err = tpl.Render(samplePlant(), quiet)
	require.NoError(t, err)
	assert.NotContains(t, text, "Alertas principales")

	_, err = NewSummaryTemplate("{{.Broken")
	require.Error(t, err)
}

func TestServiceGeneratePDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	kpis := &stubKPIs{snap: sampleSnapshot()}
	recorder := &recordingAudit{}
	svc, err := NewService(loadedStore(), kpis, dir,
		WithClock(fixedClock{t: generatedAt}),
		WithAudit(recorder),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	path, err := svc.GeneratePDF(context.Background(), "90d")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^Reporte_Ejecutivo_20260315_093000_[0-9a-f]{8}\.pdf$`), filepath.Base(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
	assert.Equal(t, []string{"90d"}, kpis.keys)

	xlsx, err := svc.GenerateWorkbook(context.Background(), "90d")
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", filepath.Ext(xlsx))
	assert.NotEqual(t, path, xlsx)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, audit.ActionReportPDF, recorder.entries[0].Action)
	assert.Equal(t, audit.ActionReportXLSX, recorder.entries[1].Action)
}

func TestServiceRequiresData(t *testing.T) {
	svc, err := NewService(memory.NewStore(), &stubKPIs{snap: sampleSnapshot()}, t.TempDir())
	require.NoError(t, err)
	_, err = svc.GeneratePDF(context.Background(), "30d")
	assert.True(t, errors.Is(err, plant.ErrNoData))

	failing, err := NewService(loadedStore(), &stubKPIs{err: kpi.ErrEmptyWindow}, t.TempDir())
	require.NoError(t, err)
	_, err = failing.Summary("30d")
	assert.True(t, errors.Is(err, plant.ErrNoData))

	_, err = NewService(nil, &stubKPIs{}, "out")
	require.Error(t, err)
	_, err = NewService(loadedStore(), nil, "out")
	require.Error(t, err)
	_, err = NewService(loadedStore(), &stubKPIs{}, "")
	require.Error(t, err)
}
