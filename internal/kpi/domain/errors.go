package kpi

import (
	"fmt"

	plant "solar-dashboard/internal/plant/domain"
)

// ErrEmptyWindow is returned when the requested range selects no records. It wraps plant.ErrNoData.
var ErrEmptyWindow = fmt.Errorf("%w: no records in range", plant.ErrNoData)
