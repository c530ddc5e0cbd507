package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"solar-dashboard/internal/audit"
	"solar-dashboard/internal/observability/metrics"
)

// Modes reported in results.
const (
	ModeReal       = "real"
	ModeSimulation = "simulation"
)

// Simulation identifiers.
const (
	SimulatedSID    = "MOCK_SID_123456"
	SimulatedStatus = "simulated"
)

const (
	channel   = "whatsapp"
	mediaNote = "Para enviar el audio, debe estar accesible via URL pública"
)

var (
	// ErrInvalidPhone is returned for numbers not in E.164 form.
	ErrInvalidPhone  = errors.New("whatsapp: phone number not in E.164 form")
	// ErrEmptyMessage is returned when a text message has no body.
	ErrEmptyMessage  = errors.New("whatsapp: empty message")
	// ErrAudioNotFound is returned, alongside os.ErrNotExist, when the audio
	// file to announce is missing.
	ErrAudioNotFound = errors.New("whatsapp: audio file not found")
)

// Sender delivers a WhatsApp message.
type Sender interface {
	Enabled() bool
	Send(ctx context.Context, to, body string) (Message, error)
}

// Result is the outcome of a send.
type Result struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode"`
	Message string `json:"message"`
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Note    string `json:"note,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter overrides the send throttle.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(s *Service) {
		if limiter != nil {
			s.limiter = limiter
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

// Service validates and sends WhatsApp notifications.
type Service struct {
	sender  Sender
	limiter *rate.Limiter
	audit   audit.Logger
	logger  *zap.Logger
}

// NewService constructs the WhatsApp service. sender may be nil, in which
// case every send is simulated.
func NewService(sender Sender, opts ...Option) *Service {
	s := &Service{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		audit:   audit.NopLogger{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendText sends message to the E.164 number to.
func (s *Service) SendText(ctx context.Context, to, message string) (*Result, error) {
	if err := validatePhone(to); err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if !s.enabled() {
		return s.simulate(ctx, to, "SIMULACIÓN: Mensaje se enviaría a "+to, "text")
	}
	return s.send(ctx, to, message, "text", "")
}

// SendAudio notifies to that the audio summary at audioPath is available.
// Media delivery needs a public URL, so only a text notice is sent.
func (s *Service) SendAudio(ctx context.Context, to, audioPath string) (*Result, error) {
	if err := validatePhone(to); err != nil {
		return nil, err
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrAudioNotFound, audioPath, os.ErrNotExist)
		}
		return nil, err
	}
	if !s.enabled() {
		return s.simulate(ctx, to, "SIMULACIÓN: Audio se enviaría a "+to, "audio")
	}
	body := fmt.Sprintf("Nuevo reporte ejecutivo disponible. Audio generado el %s (%s)",
		info.ModTime().Format("02/01/2006 15:04"), filepath.Base(audioPath))
	return s.send(ctx, to, body, "audio", mediaNote)
}

func (s *Service) enabled() bool {
	return s.sender != nil && s.sender.Enabled()
}

func (s *Service) simulate(ctx context.Context, to, message, kind string) (*Result, error) {
	started := time.Now()
	s.logger.Warn("twilio credentials not configured, simulating send", zap.String("kind", kind))
	metrics.ObserveNotify(channel, ModeSimulation, time.Since(started))
	result := &Result{
		Success: true,
		Mode:    ModeSimulation,
		Message: message,
		SID:     SimulatedSID,
		Status:  SimulatedStatus,
	}
	s.record(ctx, to, kind, result)
	return result, nil
}

func (s *Service) send(ctx context.Context, to, body, kind, note string) (*Result, error) {
	started := time.Now()
	defer func() { metrics.ObserveNotify(channel, ModeReal, time.Since(started)) }()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("whatsapp throttle: %w", err)
	}
	msg, err := s.sender.Send(ctx, to, body)
	if err != nil {
		s.logger.Error("whatsapp send failed", zap.String("kind", kind), zap.Error(err))
		return nil, fmt.Errorf("whatsapp send: %w", err)
	}
	s.logger.Info("whatsapp message sent", zap.String("kind", kind), zap.String("sid", msg.SID))
	result := &Result{
		Success: true,
		Mode:    ModeReal,
		Message: "Mensaje enviado exitosamente",
		SID:     msg.SID,
		Status:  msg.Status,
		Note:    note,
	}
	s.record(ctx, to, kind, result)
	return result, nil
}

func (s *Service) record(ctx context.Context, to, kind string, result *Result) {
	entry := audit.FromContext(ctx, audit.ActionWhatsAppSend, "whatsapp", result.SID)
	entry.Metadata = audit.Metadata(map[string]string{"to": to, "kind": kind, "mode": result.Mode})
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", audit.ActionWhatsAppSend), zap.Error(err))
	}
}

func validatePhone(number string) error {
	if !strings.HasPrefix(number, "+") || len(number) < 2 {
		return ErrInvalidPhone
	}
	return nil
}
