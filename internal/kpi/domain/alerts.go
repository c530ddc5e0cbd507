package kpi

import (
	"fmt"

	plant "solar-dashboard/internal/plant/domain"
)

// MaxAlerts caps the alert list of a snapshot.
const MaxAlerts = 5

// Threshold KPI names.
const (
	ThresholdPR           = "PR"
	ThresholdAvailability = "Availability"
)

// EvaluateAlerts checks window means against the PR and Availability
// thresholds, in that order. Availability only has a critical tier.
func EvaluateAlerts(p plant.Plant, thresholds []plant.Threshold, prAvg, availAvg float64) []string {
	alerts := make([]string, 0, 2)

	if th, ok := plant.FindThreshold(thresholds, ThresholdPR); ok {
		switch {
		case prAvg < th.Red:
			alerts = append(alerts, fmt.Sprintf("PR crítico: %.2f%% (objetivo: %.2f%%)", prAvg*100, p.TargetPR*100))
		case prAvg < th.Yellow:
			alerts = append(alerts, fmt.Sprintf("PR bajo: %.2f%% (objetivo: %.2f%%)", prAvg*100, p.TargetPR*100))
		}
	}

	if th, ok := plant.FindThreshold(thresholds, ThresholdAvailability); ok && availAvg < th.Red {
		alerts = append(alerts, fmt.Sprintf("Disponibilidad crítica: %.1f%% (objetivo: %.1f%%)", availAvg, p.TargetAvailability))
	}

	if len(alerts) > MaxAlerts {
		alerts = alerts[:MaxAlerts]
	}
	return alerts
}
