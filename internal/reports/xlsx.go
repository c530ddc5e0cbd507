package reports

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	kpi "solar-dashboard/internal/kpi/domain"
	plant "solar-dashboard/internal/plant/domain"
)

// Workbook sheet names.
const (
	SheetSummary = "resumen"
	SheetTickets = "tickets"
)

// BuildKPIWorkbook renders the KPI snapshot as a two-sheet workbook.
func BuildKPIWorkbook(p plant.Plant, snap *kpi.Snapshot, generatedAt time.Time) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("kpi workbook: nil snapshot")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetTickets); err != nil {
		return nil, err
	}

	rows := [][2]any{
		{"Planta", p.Name},
		{"Planta ID", p.ID},
		{"Período", snap.Range.Label()},
		{"Generado", generatedAt.Format(time.RFC3339)},
		{"Energía real (kWh)", snap.EnergyActualKWh},
		{"Energía esperada (kWh)", snap.EnergyExpectedKWh},
		{"Desviación (%)", snap.DeviationPct},
		{"Tendencia", string(snap.Trend)},
		{"CO2 evitado (kg)", snap.CO2AvoidedKg},
		{"Ingresos estimados (USD)", snap.RevenueUSD},
		{"OPEX estimado (USD)", snap.OpexUSD},
		{"Margen bruto (USD)", snap.GrossMarginUSD},
		{"Margen bruto (%)", snap.GrossMarginPct},
		{"Costo por kWh (USD)", snap.CostPerKWh},
		{"PR promedio", snap.PRAvg},
		{"Disponibilidad promedio (%)", snap.AvailabilityAvgPct},
		{"Potencia actual (kW)", snap.CurrentPowerKW},
		{"Estado del sistema", string(snap.SystemStatus)},
		{"Backlog (USD)", snap.BacklogUSD},
		{"Tickets pendientes", snap.PendingTickets},
	}
	_ = f.SetCellValue(SheetSummary, "A1", "Reporte Ejecutivo")
	for i, row := range rows {
		line := i + 3
		_ = f.SetCellValue(SheetSummary, fmt.Sprintf("A%d", line), row[0])
		_ = f.SetCellValue(SheetSummary, fmt.Sprintf("B%d", line), row[1])
	}
	alertRow := len(rows) + 4
	_ = f.SetCellValue(SheetSummary, fmt.Sprintf("A%d", alertRow), "Alertas")
	for i, alert := range snap.Alerts {
		_ = f.SetCellValue(SheetSummary, fmt.Sprintf("B%d", alertRow+i), alert)
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 30)
	_ = f.SetColWidth(SheetSummary, "B", "B", 45)

	headers := []any{"ID", "Fecha", "Estado", "Criticidad", "Tipo", "Descripción", "Costo (USD)", "Impacto (kWh)", "SLA (h)", "Responsable"}
	if err := f.SetSheetRow(SheetTickets, "A1", &headers); err != nil {
		return nil, err
	}
	for i, t := range snap.TopTickets {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			t.ID, t.CreatedOn.String(), t.Status.Label(), t.Severity.Label(), t.Type,
			t.Description, t.CostUSD, t.EnergyImpactKWh, t.SLAHours, t.Owner,
		}
		if err := f.SetSheetRow(SheetTickets, cell, &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
