package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"solar-dashboard/internal/audit"
	"solar-dashboard/internal/observability/metrics"
	plant "solar-dashboard/internal/plant/domain"
)

// Modes reported in results.
const (
	ModeReal       = "real"
	ModeSimulation = "simulation"
)

// SummaryRange is the window narrated when no custom text is given.
const SummaryRange = "30d"

const channel = "tts"

// Synthesizer turns text into audio.
type Synthesizer interface {
	Enabled() bool
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SummarySource renders the spoken executive summary.
type SummarySource interface {
	Summary(rangeKey string) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Result describes a generated audio file.
type Result struct {
	Success   bool   `json:"success"`
	AudioPath string `json:"audio_path"`
	Filename  string `json:"filename"`
	Mode      string `json:"mode"`
	Message   string `json:"message"`
}

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

// Service produces the audio executive summary.
type Service struct {
	store     plant.Reader
	summaries SummarySource
	speech    Synthesizer
	outputDir string
	clock     Clock
	audit     audit.Logger
	logger    *zap.Logger
}

// NewService constructs the audio summary service. speech may be nil, in
// which case every call runs in simulation mode.
func NewService(store plant.Reader, summaries SummarySource, speech Synthesizer, outputDir string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("tts service: nil store")
	}
	if summaries == nil {
		return nil, errors.New("tts service: nil summary source")
	}
	if outputDir == "" {
		return nil, errors.New("tts service: empty output folder")
	}
	s := &Service{
		store:     store,
		summaries: summaries,
		speech:    speech,
		outputDir: outputDir,
		clock:     systemClock{},
		audit:     audit.NopLogger{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateSummary synthesizes customText, or the 30-day summary when it is
// empty. Without a configured synthesizer an empty placeholder file is written,
// loaded plant data or not.
func (s *Service) GenerateSummary(ctx context.Context, customText string) (*Result, error) {
	started := time.Now()
	mode := ModeSimulation
	if s.speech != nil && s.speech.Enabled() {
		mode = ModeReal
	}
	defer func() { metrics.ObserveNotify(channel, mode, time.Since(started)) }()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, err
	}
	stamp := s.clock.Now().Format("20060102_150405")

	var (
		path    string
		content []byte
	)
	if mode == ModeSimulation {
		s.logger.Warn("speech api key not configured, writing placeholder audio")
		path = filepath.Join(s.outputDir, fmt.Sprintf("resumen_ejecutivo_%s_MOCK.mp3", stamp))
	} else {
		text := customText
		if text == "" {
			if _, ok := s.store.Snapshot().Plant(); !ok {
				return nil, fmt.Errorf("tts: %w", plant.ErrNoData)
			}
			summary, err := s.summaries.Summary(SummaryRange)
			if err != nil {
				return nil, err
			}
			text = summary
		}
		audio, err := s.speech.Synthesize(ctx, text)
		if err != nil {
			s.logger.Error("speech synthesis failed", zap.Error(err))
			return nil, fmt.Errorf("generate audio: %w", err)
		}
		content = audio
		path = filepath.Join(s.outputDir, fmt.Sprintf("resumen_ejecutivo_%s.mp3", stamp))
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, err
	}

	s.logger.Info("audio summary generated",
		zap.String("mode", mode),
		zap.String("path", path),
		zap.Int("bytes", len(content)),
	)
	entry := audit.FromContext(ctx, audit.ActionReportTTS, "audio", filepath.Base(path))
	entry.Metadata = audit.Metadata(map[string]any{"mode": mode, "custom_text": customText != ""})
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", audit.ActionReportTTS), zap.Error(err))
	}
	return &Result{
		Success:   true,
		AudioPath: path,
		Filename:  filepath.Base(path),
		Mode:      mode,
		Message:   "Audio generado exitosamente",
	}, nil
}
