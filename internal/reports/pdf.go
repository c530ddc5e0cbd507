package reports

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	kpi "solar-dashboard/internal/kpi/domain"
	plant "solar-dashboard/internal/plant/domain"
)

const (
	pdfTopTicketRows = 10
	productFooter    = "Solar PV Analytics - Executive Dashboard"
)

// BuildExecutivePDF renders the executive report: cover, summary, alerts,
// top tickets by cost and a footer.
func BuildExecutivePDF(p plant.Plant, snap *kpi.Snapshot, generatedAt time.Time) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("executive pdf: nil snapshot")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(25, 25, 25)

	// Cover
	pdf.AddPage()
	pdf.Ln(35)
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(30, 58, 138)
	pdf.CellFormat(0, 12, "REPORTE EJECUTIVO", "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(30, 64, 175)
	pdf.CellFormat(0, 10, tr(p.Name), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 11)
	location := strings.Join(nonEmpty(p.City, p.Region, p.Country), ", ")
	labelLine(pdf, tr, "Ubicación:", location)
	labelLine(pdf, tr, "Capacidad:", fmt.Sprintf("%.2f MWp DC / %.2f MW AC", p.DCPowerMWp, p.ACPowerMW))
	labelLine(pdf, tr, "Fecha del reporte:", generatedAt.Format("02/01/2006 15:04"))
	labelLine(pdf, tr, "Período analizado:", snap.Range.Label())

	// Executive summary
	pdf.AddPage()
	heading(pdf, tr, "Resumen Ejecutivo")
	pdf.SetFont("Arial", "", 11)
	for _, line := range summaryBullets(p, snap) {
		pdf.MultiCell(0, 6, tr("- "+line), "", "L", false)
		pdf.Ln(2)
	}

	if len(snap.Alerts) > 0 {
		pdf.Ln(6)
		heading(pdf, tr, "Alertas y Riesgos")
		pdf.SetFont("Arial", "", 11)
		pdf.SetTextColor(185, 28, 28)
		for _, alert := range snap.Alerts {
			pdf.MultiCell(0, 6, tr("! "+alert), "", "L", false)
			pdf.Ln(2)
		}
		pdf.SetTextColor(0, 0, 0)
	}

	if len(snap.TopTickets) > 0 {
		pdf.AddPage()
		heading(pdf, tr, "Top Tickets por Costo")
		ticketTable(pdf, tr, snap.TopTickets)
	}

	pdf.Ln(12)
	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 5, tr("Documento generado automáticamente el "+generatedAt.Format("02/01/2006 a las 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, productFooter, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func summaryBullets(p plant.Plant, snap *kpi.Snapshot) []string {
	return []string{
		fmt.Sprintf("Energía generada: %s kWh (%s%% vs esperado)", number(snap.EnergyActualKWh, 0), signed(snap.DeviationPct)),
		fmt.Sprintf("Performance Ratio (PR): %s (objetivo: %s)", percent(snap.PRAvg, 2), percent(p.TargetPR, 2)),
		fmt.Sprintf("Disponibilidad: %s%% (objetivo: %s%%)", number(snap.AvailabilityAvgPct, 1), number(p.TargetAvailability, 1)),
		fmt.Sprintf("Ingresos estimados: USD %s", usd(snap.RevenueUSD)),
		fmt.Sprintf("OPEX estimado: USD %s", usd(snap.OpexUSD)),
		fmt.Sprintf("Margen bruto: USD %s (%s%%)", usd(snap.GrossMarginUSD), number(snap.GrossMarginPct, 1)),
		fmt.Sprintf("CO2 evitado: %s kg", number(snap.CO2AvoidedKg, 0)),
		fmt.Sprintf("Backlog de mantenimiento: USD %s (%d tickets)", usd(snap.BacklogUSD), snap.PendingTickets),
		fmt.Sprintf("Estado del sistema: %s", upper(string(snap.SystemStatus))),
	}
}

func ticketTable(pdf *gofpdf.Fpdf, tr func(string) string, tickets []plant.Ticket) {
	widths := []float64{22, 68, 25, 22, 23}
	headers := []string{"ID", "Descripción", "Estado", "Criticidad", "Costo (USD)"}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(30, 58, 138)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	for i, t := range tickets {
		if i == pdfTopTicketRows {
			break
		}
		pdf.CellFormat(widths[0], 7, tr(t.ID), "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[1], 7, tr(truncate(t.Description, descriptionWidth)), "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[2], 7, tr(t.Status.Label()), "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[3], 7, tr(t.Severity.Label()), "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[4], 7, usd(t.CostUSD), "1", 0, "R", true, 0, "")
		pdf.Ln(-1)
	}
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(30, 64, 175)
	pdf.CellFormat(0, 10, tr(text), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	pdf.SetTextColor(0, 0, 0)
}

func labelLine(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(45, 7, tr(label), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
