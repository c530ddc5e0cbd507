package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"solar-dashboard/internal/observability/metrics"
	plant "solar-dashboard/internal/plant/domain"
)

const (
	// Interval is the spacing between simulated points.
	Interval = 5 * time.Minute

	MinHours = 1
	MaxHours = 168

	sunrise    = 6.0
	sunset     = 20.0
	peakHour   = 13.0
	curveWidth = 4.5

	pointsPerHour = int(time.Hour / Interval)
)

// ErrInvalidHours is returned for a window outside MinHours..MaxHours.
var ErrInvalidHours = errors.New("simulation: hours out of range")

// DataPoint is one simulated reading.
type DataPoint struct {
	Timestamp         time.Time `json:"timestamp"`
	PowerKW           float64   `json:"potencia_kw"`
	IntervalEnergyKWh float64   `json:"energia_kwh_intervalo"`
	Irradiance        float64   `json:"irradiancia"`
	ModuleTempC       float64   `json:"temp_modulo"`
	InverterHealthPct float64   `json:"estado_inversores_pct"`
}

// RandomSource yields uniform values in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Simulator.
type Option func(*Simulator)

// WithRandomSource injects the random source. Sources that are not safe for
// concurrent use must not be shared across goroutines.
func WithRandomSource(src RandomSource) Option {
	return func(s *Simulator) {
		if src != nil {
			s.rnd = src
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Simulator) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the plant location used for hour-of-day.
func WithLocation(loc *time.Location) Option {
	return func(s *Simulator) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Simulator produces a synthetic diurnal power curve for the loaded plant.
type Simulator struct {
	store plant.Reader
	rnd   RandomSource
	clock Clock
	loc   *time.Location
}

// NewSimulator constructs a simulator reading plant data from store.
func NewSimulator(store plant.Reader, opts ...Option) (*Simulator, error) {
	if store == nil {
		return nil, errors.New("simulator: nil store")
	}
	s := &Simulator{
		store: store,
		rnd:   globalSource{},
		clock: systemClock{},
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SolarFactor returns the normalized output at a fractional local hour.
func SolarFactor(hour float64) float64 {
	if hour < sunrise || hour > sunset {
		return 0
	}
	d := hour - peakHour
	return math.Exp(-(d * d) / (2 * curveWidth * curveWidth))
}

// GenerateSeries returns hours*12 points, oldest first, the last one on the
// most recent 5-minute boundary.
func (s *Simulator) GenerateSeries(hours int) ([]DataPoint, error) {
	if hours < MinHours || hours > MaxHours {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHours, hours)
	}
	snap := s.store.Snapshot()
	p, ok := snap.Plant()
	if !ok {
		return nil, fmt.Errorf("simulator: %w", plant.ErrNoData)
	}
	capacityKW := p.ACPowerKW()
	derated := plant.AnyDegrading(snap.Tickets)

	n := hours * pointsPerHour
	last := alignToInterval(s.clock.Now().In(s.loc))
	points := make([]DataPoint, n)
	for i := 0; i < n; i++ {
		ts := last.Add(-time.Duration(n-1-i) * Interval)
		points[i] = s.point(ts, capacityKW, derated)
	}
	metrics.AddSeriesPoints(n)
	return points, nil
}

// CurrentPoint returns the last point of a one-hour series.
func (s *Simulator) CurrentPoint() (DataPoint, error) {
	series, err := s.GenerateSeries(1)
	if err != nil {
		return DataPoint{}, err
	}
	return series[len(series)-1], nil
}

func (s *Simulator) point(ts time.Time, capacityKW float64, derated bool) DataPoint {
	f := SolarFactor(float64(ts.Hour()) + float64(ts.Minute())/60)

	power := capacityKW * f * s.uniform(0.92, 1.08)
	if derated {
		power *= s.uniform(0.70, 0.95)
	}
	irradiance := f * s.uniform(800, 1000)
	temp := 25 + f*s.uniform(20, 35)
	var health float64
	if f > 0.1 {
		health = s.uniform(95, 100)
	}

	return DataPoint{
		Timestamp:         ts,
		PowerKW:           round2(power),
		IntervalEnergyKWh: round2(power / float64(pointsPerHour)),
		Irradiance:        round2(irradiance),
		ModuleTempC:       round2(temp),
		InverterHealthPct: round2(health),
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rnd.Float64()
}

// alignToInterval truncates t to the previous 5-minute boundary. Zone offsets
// are whole multiples of the interval, so this is also a local boundary.
func alignToInterval(t time.Time) time.Time {
	return t.Truncate(Interval)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
