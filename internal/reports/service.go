package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solar-dashboard/internal/audit"
	kpi "solar-dashboard/internal/kpi/domain"
	"solar-dashboard/internal/observability/metrics"
	plant "solar-dashboard/internal/plant/domain"
)

// Report formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// KPISource computes KPI snapshots.
type KPISource interface {
	ComputeKPIs(rangeKey string) (*kpi.Snapshot, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAudit sets the audit logger.
func WithAudit(logger audit.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSummaryTemplate overrides the summary template.
func WithSummaryTemplate(tpl *SummaryTemplate) Option {
	return func(s *Service) {
		if tpl != nil {
			s.summary = tpl
		}
	}
}

// Service renders reports for the loaded plant into an output folder.
type Service struct {
	store     plant.Reader
	kpis      KPISource
	outputDir string
	summary   *SummaryTemplate
	clock     Clock
	audit     audit.Logger
	logger    *zap.Logger
}

// NewService constructs the report service.
func NewService(store plant.Reader, kpis KPISource, outputDir string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("report service: nil store")
	}
	if kpis == nil {
		return nil, errors.New("report service: nil kpi source")
	}
	if outputDir == "" {
		return nil, errors.New("report service: empty output folder")
	}
	summary, err := NewSummaryTemplate("")
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:     store,
		kpis:      kpis,
		outputDir: outputDir,
		summary:   summary,
		clock:     systemClock{},
		audit:     audit.NopLogger{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OutputDir returns the folder reports are written to.
func (s *Service) OutputDir() string {
	return s.outputDir
}

// GeneratePDF writes the executive PDF for rangeKey and returns its path.
func (s *Service) GeneratePDF(ctx context.Context, rangeKey string) (string, error) {
	return s.generate(ctx, FormatPDF, audit.ActionReportPDF, rangeKey, BuildExecutivePDF)
}

// GenerateWorkbook writes the KPI workbook for rangeKey and returns its path.
func (s *Service) GenerateWorkbook(ctx context.Context, rangeKey string) (string, error) {
	return s.generate(ctx, FormatXLSX, audit.ActionReportXLSX, rangeKey, BuildKPIWorkbook)
}

// Summary renders the spoken executive summary for rangeKey.
func (s *Service) Summary(rangeKey string) (string, error) {
	p, snap, err := s.load(rangeKey)
	if err != nil {
		return "", err
	}
	return s.summary.Render(p, snap)
}

type renderFunc func(plant.Plant, *kpi.Snapshot, time.Time) ([]byte, error)

func (s *Service) generate(ctx context.Context, format, action, rangeKey string, render renderFunc) (path string, err error) {
	started := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveReportGenerate(format, result, time.Since(started))
	}()

	p, snap, err := s.load(rangeKey)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()
	content, err := render(p, snap, now)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", format, err)
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", err
	}
	path = filepath.Join(s.outputDir, FileName(now, format))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}

	s.logger.Info("report generated",
		zap.String("format", format),
		zap.String("range", string(snap.Range)),
		zap.String("path", path),
		zap.Int("bytes", len(content)),
	)
	entry := audit.FromContext(ctx, action, "report", filepath.Base(path))
	entry.Metadata = audit.Metadata(map[string]string{"range": string(snap.Range)})
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
	return path, nil
}

func (s *Service) load(rangeKey string) (plant.Plant, *kpi.Snapshot, error) {
	p, ok := s.store.Snapshot().Plant()
	if !ok {
		return plant.Plant{}, nil, fmt.Errorf("report: %w", plant.ErrNoData)
	}
	snap, err := s.kpis.ComputeKPIs(rangeKey)
	if err != nil {
		return plant.Plant{}, nil, err
	}
	return p, snap, nil
}

// FileName builds a unique report file name.
func FileName(at time.Time, format string) string {
	return fmt.Sprintf("Reporte_Ejecutivo_%s_%s.%s", at.Format("20060102_150405"), uuid.New().String()[:8], format)
}
