package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"solar-dashboard/internal/audit"
	"solar-dashboard/internal/observability/metrics"
	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/plant/infrastructure/files"
)

// Result keys reported per source file.
const (
	ResultPlant   = "planta"
	ResultHistory = "historico"
	ResultTickets = "tickets"

	resultOK = "OK"
)

// SourceLoader reads the three plant source files from a folder.
type SourceLoader interface {
	LoadPlant(folder string) (*plant.Data, error)
	LoadHistory(folder string) ([]plant.PerformanceRecord, error)
	LoadTickets(folder string) ([]plant.Ticket, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ReloadResult summarizes one reload attempt.
type ReloadResult struct {
	Success     bool              `json:"success"`
	Results     map[string]string `json:"results"`
	Errors      []string          `json:"errors"`
	FilesLoaded map[string]int    `json:"files_loaded"`
	LastReload  time.Time         `json:"last_reload"`
}

// ReloadOption configures a ReloadService.
type ReloadOption func(*ReloadService)

// WithReloadLogger sets the logger.
func WithReloadLogger(logger *zap.Logger) ReloadOption {
	return func(s *ReloadService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReloadAudit sets the audit logger.
func WithReloadAudit(logger audit.Logger) ReloadOption {
	return func(s *ReloadService) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithReloadClock overrides the clock.
func WithReloadClock(clock Clock) ReloadOption {
	return func(s *ReloadService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// ReloadService loads the source files of the configured data folder into the store.
type ReloadService struct {
	store  plant.Store
	loader SourceLoader
	audit  audit.Logger
	logger *zap.Logger
	clock  Clock

	mu          sync.Mutex
	folder      string
	lastReload  time.Time
	filesLoaded map[string]int
}

// NewReloadService constructs the service.
func NewReloadService(store plant.Store, loader SourceLoader, opts ...ReloadOption) (*ReloadService, error) {
	if store == nil {
		return nil, errors.New("reload service: nil store")
	}
	if loader == nil {
		return nil, errors.New("reload service: nil loader")
	}
	s := &ReloadService{
		store:       store,
		loader:      loader,
		audit:       audit.NopLogger{},
		logger:      zap.NewNop(),
		clock:       SystemClock{},
		filesLoaded: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetDataFolder points the service at a folder, which must exist.
func (s *ReloadService) SetDataFolder(folder string) error {
	if folder == "" {
		return plant.ErrDataFolderNotConfigured
	}
	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("data folder %q does not exist: %w", folder, os.ErrNotExist)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("data folder %q is not a directory", folder)
	}
	s.mu.Lock()
	s.folder = folder
	s.mu.Unlock()
	return nil
}

// DataFolder returns the configured folder, or "" when unset.
func (s *ReloadService) DataFolder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folder
}

// LastReload returns the time of the last reload, zero if none.
func (s *ReloadService) LastReload() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReload
}

// FilesLoaded returns row counts per successfully loaded file.
func (s *ReloadService) FilesLoaded() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounts(s.filesLoaded)
}

// Reload reads each source file independently. A failing file leaves the
// previously loaded collection in place and is reported in the result.
func (s *ReloadService) Reload(ctx context.Context) (ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.folder == "" {
		return ReloadResult{}, plant.ErrDataFolderNotConfigured
	}
	started := s.clock.Now()
	folder := s.folder

	result := ReloadResult{
		Results: make(map[string]string, 3),
		Errors:  []string{},
	}
	var update plant.Update

	fail := func(key, file string, err error) {
		result.Results[key] = "ERROR: " + err.Error()
		result.Errors = append(result.Errors, fmt.Sprintf("Error cargando %s: %v", file, err))
		metrics.IncReloadFile(key, metrics.ResultError)
		s.logger.Warn("source file load failed", zap.String("file", file), zap.Error(err))
	}
	ok := func(key, file string, count int) {
		result.Results[key] = resultOK
		s.filesLoaded[file] = count
		metrics.IncReloadFile(key, metrics.ResultSuccess)
	}

	if data, err := s.loader.LoadPlant(folder); err != nil {
		fail(ResultPlant, files.PlantWorkbookFile, err)
	} else {
		update.Data = data
		ok(ResultPlant, files.PlantWorkbookFile, 1+len(data.Equipment)+len(data.Thresholds))
	}

	if records, err := s.loader.LoadHistory(folder); err != nil {
		fail(ResultHistory, files.HistoryFile, err)
	} else {
		update.Records = records
		update.ReplaceRecords = true
		ok(ResultHistory, files.HistoryFile, len(records))
	}

	if tickets, err := s.loader.LoadTickets(folder); err != nil {
		fail(ResultTickets, files.TicketsFile, err)
	} else {
		update.Tickets = tickets
		update.ReplaceTickets = true
		ok(ResultTickets, files.TicketsFile, len(tickets))
	}

	snap := s.store.Apply(update)
	s.lastReload = s.clock.Now()

	result.Success = len(result.Errors) == 0
	result.FilesLoaded = copyCounts(s.filesLoaded)
	result.LastReload = s.lastReload

	outcome := metrics.ResultSuccess
	if !result.Success {
		outcome = metrics.ResultError
	}
	metrics.ObserveReload(outcome, s.lastReload.Sub(started), len(snap.Records), len(plant.OpenTickets(snap.Tickets)))
	s.logger.Info("data reloaded",
		zap.String("folder", folder),
		zap.Bool("success", result.Success),
		zap.Int("records", len(snap.Records)),
		zap.Int("tickets", len(snap.Tickets)),
		zap.Uint64("generation", snap.Generation),
	)

	entry := audit.FromContext(ctx, audit.ActionDataReload, "data_folder", folder)
	entry.Metadata = audit.Metadata(map[string]any{
		"success": result.Success,
		"results": result.Results,
	})
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", entry.Action), zap.Error(err))
	}
	return result, nil
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
