package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "solar_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	reloadTotal   *prometheus.CounterVec
	reloadLatency *prometheus.HistogramVec

	loadedRecords prometheus.Gauge
	openTickets   prometheus.Gauge

	kpiComputeTotal   *prometheus.CounterVec
	kpiComputeLatency *prometheus.HistogramVec

	seriesPointsTotal prometheus.Counter

	reportGenerateTotal   *prometheus.CounterVec
	reportGenerateLatency *prometheus.HistogramVec

	notifyTotal   *prometheus.CounterVec
	notifyLatency *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
)

// Init registers dashboard metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		reloadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reload_files_total",
				Help: "Total source file loads by file and result",
			},
			[]string{"file", "result"},
		)
		reloadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reload_latency_seconds",
				Help:    "Data folder reload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		loadedRecords = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "history_records",
				Help: "Daily performance records currently loaded",
			},
		)
		openTickets = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "open_tickets",
				Help: "Open maintenance tickets currently loaded",
			},
		)

		kpiComputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "kpi_compute_total",
				Help: "Total KPI snapshot computations by range and result",
			},
			[]string{"range", "result"},
		)
		kpiComputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "kpi_compute_latency_seconds",
				Help:    "KPI snapshot latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		seriesPointsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_points_total",
				Help: "Total simulated curve points generated",
			},
		)

		reportGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_generate_total",
				Help: "Total report generations by format and result",
			},
			[]string{"format", "result"},
		)
		reportGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_generate_latency_seconds",
				Help:    "Report generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_total",
				Help: "Total outbound notifications by channel and mode",
			},
			[]string{"channel", "mode"},
		)
		notifyLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "notify_latency_seconds",
				Help:    "Outbound notification latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total API requests by method and status code",
			},
			[]string{"method", "code"},
		)

		prometheus.MustRegister(
			reloadTotal,
			reloadLatency,
			loadedRecords,
			openTickets,
			kpiComputeTotal,
			kpiComputeLatency,
			seriesPointsTotal,
			reportGenerateTotal,
			reportGenerateLatency,
			notifyTotal,
			notifyLatency,
			httpRequests,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncReloadFile increments the per-file load counter.
func IncReloadFile(file, result string) {
	if file == "" {
		file = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reloadTotal != nil {
		reloadTotal.WithLabelValues(file, result).Inc()
	}
}

// ObserveReload records reload latency and the loaded collection sizes.
func ObserveReload(result string, duration time.Duration, records, open int) {
	if result == "" {
		result = resultSuccess
	}
	if reloadLatency != nil {
		reloadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if loadedRecords != nil {
		loadedRecords.Set(float64(records))
	}
	if openTickets != nil {
		openTickets.Set(float64(open))
	}
}

// ObserveKPICompute records KPI computation latency and result.
func ObserveKPICompute(rangeCode, result string, duration time.Duration) {
	if rangeCode == "" {
		rangeCode = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if kpiComputeTotal != nil {
		kpiComputeTotal.WithLabelValues(rangeCode, result).Inc()
	}
	if kpiComputeLatency != nil {
		kpiComputeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddSeriesPoints increments the simulated point counter by count.
func AddSeriesPoints(count int) {
	if count <= 0 {
		return
	}
	if seriesPointsTotal != nil {
		seriesPointsTotal.Add(float64(count))
	}
}

// ObserveReportGenerate records report latency and result.
func ObserveReportGenerate(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportGenerateTotal != nil {
		reportGenerateTotal.WithLabelValues(format, result).Inc()
	}
	if reportGenerateLatency != nil {
		reportGenerateLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveNotify records an outbound TTS or messaging call.
func ObserveNotify(channel, mode string, duration time.Duration) {
	if channel == "" {
		channel = "unknown"
	}
	if mode == "" {
		mode = "unknown"
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(channel, mode).Inc()
	}
	if notifyLatency != nil {
		notifyLatency.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

// IncHTTPRequest increments the API request counter.
func IncHTTPRequest(method string, code int) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, statusLabel(code)).Inc()
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
