package plant

import "sort"

// PerformanceRecord holds the realized performance of one calendar day.
type PerformanceRecord struct {
	Date                Date    `json:"fecha"`
	PlantID             string  `json:"planta_id"`
	EnergyActualKWh     float64 `json:"energia_real_kwh"`
	EnergyExpectedKWh   float64 `json:"energia_esperada_kwh"`
	IrradiancePOAKWhM2  float64 `json:"irradiancia_poa_kwh_m2"`
	PR                  float64 `json:"pr_real"`
	AvailabilityPct     float64 `json:"availability_real_pct"`
	CurtailmentKWh      float64 `json:"curtailment_kwh"`
	SoilingLossKWh      float64 `json:"perdida_soiling_kwh"`
	OtherLossKWh        float64 `json:"perdida_otros_kwh"`
	EstimatedRevenueUSD float64 `json:"ingresos_estimados_usd"`
	EstimatedOpexUSD    float64 `json:"opex_estimado_usd"`
}

// SortRecords orders records chronologically, keeping source order for equal days.
func SortRecords(records []PerformanceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date.Time)
	})
}
