package plant

import (
	"errors"
	"strings"
)

// Plant is the static description of the deployment.
type Plant struct {
	ID                   string  `json:"planta_id"`
	Name                 string  `json:"nombre_planta"`
	Country              string  `json:"pais"`
	Region               string  `json:"provincia_estado"`
	City                 string  `json:"ciudad"`
	Lat                  float64 `json:"lat"`
	Lon                  float64 `json:"lon"`
	Timezone             string  `json:"zona_horaria"`
	DCPowerMWp           float64 `json:"potencia_dc_mwp"`
	ACPowerMW            float64 `json:"potencia_ac_mw"`
	PanelCount           int     `json:"cantidad_paneles"`
	StringCount          int     `json:"cantidad_strings"`
	InverterCount        int     `json:"cantidad_inversores"`
	CommissionedOn       string  `json:"fecha_puesta_en_marcha"`
	TariffUSDPerMWh      float64 `json:"tarifa_usd_mwh"`
	TargetPR             float64 `json:"target_pr"`
	TargetAvailability   float64 `json:"target_availability"`
	SoilingLossTargetPct float64 `json:"soiling_loss_target_pct"`
	DegradationAnnualPct float64 `json:"degradation_annual_pct"`
	CurtailmentPolicy    string  `json:"curtailment_policy"`
}

// ACPowerKW returns the rated AC power in kW.
func (p Plant) ACPowerKW() float64 {
	return p.ACPowerMW * 1000
}

// Validate checks plant invariants.
func (p Plant) Validate() error {
	if p.ID == "" {
		return errors.New("plant: empty id")
	}
	if p.Name == "" {
		return errors.New("plant: empty name")
	}
	if p.ACPowerMW < 0 || p.DCPowerMWp < 0 {
		return errors.New("plant: negative rated power")
	}
	return nil
}

// Equipment is a major plant asset such as an inverter or transformer.
type Equipment struct {
	ID           string  `json:"equipo_id"`
	Type         string  `json:"tipo"`
	Manufacturer string  `json:"fabricante"`
	Model        string  `json:"modelo"`
	CapacityKW   float64 `json:"capacidad_kw"`
	BaseState    string  `json:"estado_base"`
}

// Threshold defines the yellow/red boundaries of a KPI.
type Threshold struct {
	KPI         string  `json:"kpi"`
	Yellow      float64 `json:"umbral_amarillo"`
	Red         float64 `json:"umbral_rojo"`
	Description string  `json:"descripcion_alerta"`
}

// Data bundles the plant workbook contents.
type Data struct {
	Plant      Plant       `json:"planta"`
	Equipment  []Equipment `json:"equipos"`
	Thresholds []Threshold `json:"umbrales"`
}

// FindThreshold returns the first threshold whose KPI matches name, ignoring case.
func FindThreshold(thresholds []Threshold, name string) (Threshold, bool) {
	for _, t := range thresholds {
		if strings.EqualFold(strings.TrimSpace(t.KPI), name) {
			return t, true
		}
	}
	return Threshold{}, false
}
