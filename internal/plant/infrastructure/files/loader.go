package files

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	plant "solar-dashboard/internal/plant/domain"
)

// Source file names expected in the data folder.
const (
	PlantWorkbookFile = "Parametros_Planta.xlsx"
	HistoryFile       = "Historico_Performance.csv"
	TicketsFile       = "Tickets_Mantenimiento.csv"
)

// Workbook sheet names.
const (
	SheetPlant      = "Planta"
	SheetEquipment  = "Equipos"
	SheetThresholds = "Umbrales"
)

var (
	plantColumns = []string{
		"planta_id", "nombre_planta", "pais", "provincia_estado", "ciudad",
		"lat", "lon", "zona_horaria", "potencia_dc_mwp", "potencia_ac_mw",
		"cantidad_paneles", "cantidad_strings", "cantidad_inversores",
		"fecha_puesta_en_marcha", "tarifa_usd_mwh", "target_pr",
		"target_availability", "soiling_loss_target_pct",
		"degradation_annual_pct", "curtailment_policy",
	}
	equipmentColumns = []string{
		"equipo_id", "tipo", "fabricante", "modelo", "capacidad_kw", "estado_base",
	}
	thresholdColumns = []string{
		"kpi", "umbral_amarillo", "umbral_rojo", "descripcion_alerta",
	}
	historyColumns = []string{
		"fecha", "planta_id", "energia_real_kwh", "energia_esperada_kwh",
		"irradiancia_poa_kwh_m2", "pr_real", "availability_real_pct",
		"curtailment_kwh", "perdida_soiling_kwh", "perdida_otros_kwh",
		"ingresos_estimados_usd", "opex_estimado_usd",
	}
	ticketColumns = []string{
		"ticket_id", "planta_id", "fecha_creacion", "estado", "tipo",
		"criticidad", "descripcion", "costo_estimado_usd",
		"impacto_estimado_kwh", "sla_objetivo_horas", "responsable",
	}
)

// Loader reads the plant source files from a data folder.
type Loader struct {
	loc *time.Location
}

// NewLoader constructs a loader that interprets calendar dates in loc.
func NewLoader(loc *time.Location) *Loader {
	if loc == nil {
		loc = time.UTC
	}
	return &Loader{loc: loc}
}

// LoadPlant reads Parametros_Planta.xlsx.
func (l *Loader) LoadPlant(folder string) (*plant.Data, error) {
	f, err := openSource(folder, PlantWorkbookFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPlantWorkbook(f)
}

// LoadHistory reads Historico_Performance.csv.
func (l *Loader) LoadHistory(folder string) ([]plant.PerformanceRecord, error) {
	f, err := openSource(folder, HistoryFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadHistoryCSV(f, l.loc)
}

// LoadTickets reads Tickets_Mantenimiento.csv.
func (l *Loader) LoadTickets(folder string) ([]plant.Ticket, error) {
	f, err := openSource(folder, TicketsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTicketsCSV(f, l.loc)
}

func openSource(folder, name string) (*os.File, error) {
	path := filepath.Join(folder, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s not found in %s: %w", name, folder, os.ErrNotExist)
		}
		return nil, err
	}
	return f, nil
}

// ReadPlantWorkbook parses the Planta, Equipos and Umbrales sheets.
func ReadPlantWorkbook(r io.Reader) (*plant.Data, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: open workbook: %w", PlantWorkbookFile, err)
	}
	defer wb.Close()

	plantTable, err := sheetTable(wb, SheetPlant, plantColumns)
	if err != nil {
		return nil, err
	}
	equipmentTable, err := sheetTable(wb, SheetEquipment, equipmentColumns)
	if err != nil {
		return nil, err
	}
	thresholdTable, err := sheetTable(wb, SheetThresholds, thresholdColumns)
	if err != nil {
		return nil, err
	}

	if len(plantTable.rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %s has no data rows", PlantWorkbookFile, SheetPlant)
	}
	p, err := parsePlant(plantTable.row(0))
	if err != nil {
		return nil, err
	}

	data := &plant.Data{Plant: p}
	for i := range equipmentTable.rows {
		eq, err := parseEquipment(equipmentTable.row(i))
		if err != nil {
			return nil, err
		}
		data.Equipment = append(data.Equipment, eq)
	}
	for i := range thresholdTable.rows {
		th, err := parseThreshold(thresholdTable.row(i))
		if err != nil {
			return nil, err
		}
		data.Thresholds = append(data.Thresholds, th)
	}
	return data, nil
}

func sheetTable(wb *excelize.File, sheet string, required []string) (*table, error) {
	rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %s: %w", PlantWorkbookFile, sheet, err)
	}
	return newTable(PlantWorkbookFile+"["+sheet+"]", rows, required)
}

func parsePlant(r row) (plant.Plant, error) {
	p := plant.Plant{
		ID:                   r.str("planta_id"),
		Name:                 r.str("nombre_planta"),
		Country:              r.str("pais"),
		Region:               r.str("provincia_estado"),
		City:                 r.str("ciudad"),
		Lat:                  r.float("lat"),
		Lon:                  r.float("lon"),
		Timezone:             r.str("zona_horaria"),
		DCPowerMWp:           r.float("potencia_dc_mwp"),
		ACPowerMW:            r.float("potencia_ac_mw"),
		PanelCount:           r.int("cantidad_paneles"),
		StringCount:          r.int("cantidad_strings"),
		InverterCount:        r.int("cantidad_inversores"),
		CommissionedOn:       r.date("fecha_puesta_en_marcha", time.UTC).String(),
		TariffUSDPerMWh:      r.float("tarifa_usd_mwh"),
		TargetPR:             r.float("target_pr"),
		TargetAvailability:   r.float("target_availability"),
		SoilingLossTargetPct: r.float("soiling_loss_target_pct"),
		DegradationAnnualPct: r.float("degradation_annual_pct"),
		CurtailmentPolicy:    r.str("curtailment_policy"),
	}
	if r.err != nil {
		return plant.Plant{}, r.err
	}
	if err := p.Validate(); err != nil {
		return plant.Plant{}, fmt.Errorf("%s: %w", PlantWorkbookFile, err)
	}
	return p, nil
}

func parseEquipment(r row) (plant.Equipment, error) {
	eq := plant.Equipment{
		ID:           r.str("equipo_id"),
		Type:         r.str("tipo"),
		Manufacturer: r.str("fabricante"),
		Model:        r.str("modelo"),
		CapacityKW:   r.float("capacidad_kw"),
		BaseState:    r.str("estado_base"),
	}
	return eq, r.err
}

func parseThreshold(r row) (plant.Threshold, error) {
	th := plant.Threshold{
		KPI:         r.str("kpi"),
		Yellow:      r.float("umbral_amarillo"),
		Red:         r.float("umbral_rojo"),
		Description: r.str("descripcion_alerta"),
	}
	return th, r.err
}

// ReadHistoryCSV parses daily performance rows and returns them in date order.
func ReadHistoryCSV(src io.Reader, loc *time.Location) ([]plant.PerformanceRecord, error) {
	t, err := readCSV(HistoryFile, src, historyColumns)
	if err != nil {
		return nil, err
	}
	records := make([]plant.PerformanceRecord, 0, len(t.rows))
	for i := range t.rows {
		r := t.row(i)
		rec := plant.PerformanceRecord{
			Date:                r.date("fecha", loc),
			PlantID:             r.str("planta_id"),
			EnergyActualKWh:     r.float("energia_real_kwh"),
			EnergyExpectedKWh:   r.float("energia_esperada_kwh"),
			IrradiancePOAKWhM2:  r.float("irradiancia_poa_kwh_m2"),
			PR:                  r.float("pr_real"),
			AvailabilityPct:     r.float("availability_real_pct"),
			CurtailmentKWh:      r.float("curtailment_kwh"),
			SoilingLossKWh:      r.float("perdida_soiling_kwh"),
			OtherLossKWh:        r.float("perdida_otros_kwh"),
			EstimatedRevenueUSD: r.float("ingresos_estimados_usd"),
			EstimatedOpexUSD:    r.float("opex_estimado_usd"),
		}
		if r.err != nil {
			return nil, r.err
		}
		records = append(records, rec)
	}
	plant.SortRecords(records)
	return records, nil
}

// ReadTicketsCSV parses maintenance tickets in source order.
func ReadTicketsCSV(src io.Reader, loc *time.Location) ([]plant.Ticket, error) {
	t, err := readCSV(TicketsFile, src, ticketColumns)
	if err != nil {
		return nil, err
	}
	tickets := make([]plant.Ticket, 0, len(t.rows))
	for i := range t.rows {
		r := t.row(i)
		status, err := plant.ParseTicketStatus(r.str("estado"))
		if err != nil {
			r.fail("estado", err)
		}
		severity, err := plant.ParseSeverity(r.str("criticidad"))
		if err != nil {
			r.fail("criticidad", err)
		}
		ticket := plant.Ticket{
			ID:              r.str("ticket_id"),
			PlantID:         r.str("planta_id"),
			CreatedOn:       r.date("fecha_creacion", loc),
			Status:          status,
			Type:            r.str("tipo"),
			Severity:        severity,
			Description:     r.str("descripcion"),
			CostUSD:         r.float("costo_estimado_usd"),
			EnergyImpactKWh: r.float("impacto_estimado_kwh"),
			SLAHours:        r.int("sla_objetivo_horas"),
			Owner:           r.str("responsable"),
		}
		if r.has("equipo_id") {
			ticket.EquipmentID = r.str("equipo_id")
		}
		if r.has("fecha_estimada_resolucion") {
			ticket.TargetResolutionOn = r.optionalDate("fecha_estimada_resolucion", loc)
		}
		if r.err != nil {
			return nil, r.err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func readCSV(source string, r io.Reader, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return newTable(source, records, required)
}
