package reports

import (
	"bytes"
	"errors"
	"strings"
	"text/template"

	kpi "solar-dashboard/internal/kpi/domain"
	plant "solar-dashboard/internal/plant/domain"
)

const summaryAlertCount = 2

// DefaultSummaryTemplate is the spoken executive summary.
const DefaultSummaryTemplate = `Resumen ejecutivo de {{.Plant.Name}}.

Durante el período analizado, la planta generó {{number .KPI.EnergyActualKWh 0}} kilovatios hora, con una desviación de {{signed .KPI.DeviationPct}} por ciento respecto a lo esperado.

El Performance Ratio alcanzó {{percent .KPI.PRAvg 1}}, y la disponibilidad fue de {{number .KPI.AvailabilityAvgPct 1}} por ciento.

Los ingresos estimados totalizaron {{number .KPI.RevenueUSD 0}} dólares, con un margen bruto de {{number .KPI.GrossMarginPct 1}} por ciento.

Se evitaron {{number .KPI.CO2AvoidedKg 0}} kilogramos de emisiones de C O 2.

El backlog de mantenimiento asciende a {{number .KPI.BacklogUSD 0}} dólares, con {{.KPI.PendingTickets}} tickets pendientes.

El estado general del sistema es {{.KPI.SystemStatus}}.
{{- if .Alerts}}

Alertas principales: {{join .Alerts ". "}}
{{- end}}`

var templateFuncs = template.FuncMap{
	"number":  number,
	"signed":  signed,
	"percent": percent,
	"usd":     usd,
	"join":    strings.Join,
}

// SummaryData feeds the summary template.
type SummaryData struct {
	Plant  plant.Plant
	KPI    *kpi.Snapshot
	Alerts []string
}

// SummaryTemplate renders executive summaries.
type SummaryTemplate struct {
	tpl *template.Template
}

// NewSummaryTemplate parses a summary template, falling back to DefaultSummaryTemplate.
func NewSummaryTemplate(tpl string) (*SummaryTemplate, error) {
	if tpl == "" {
		tpl = DefaultSummaryTemplate
	}
	parsed, err := template.New("executive-summary").Funcs(templateFuncs).Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &SummaryTemplate{tpl: parsed}, nil
}

// Render applies the template. Only the first two alerts are read out.
func (t *SummaryTemplate) Render(p plant.Plant, snap *kpi.Snapshot) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("summary template: nil")
	}
	if snap == nil {
		return "", errors.New("summary template: nil snapshot")
	}
	alerts := snap.Alerts
	if len(alerts) > summaryAlertCount {
		alerts = alerts[:summaryAlertCount]
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, SummaryData{Plant: p, KPI: snap, Alerts: alerts}); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
