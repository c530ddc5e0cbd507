package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"solar-dashboard/internal/audit"
)

// Settings is the persisted runtime configuration of the dashboard.
type Settings struct {
	DataFolder  string         `json:"data_folder" yaml:"data_folder"`
	LastReload  *time.Time     `json:"last_reload" yaml:"last_reload,omitempty"`
	FilesLoaded map[string]int `json:"files_loaded" yaml:"files_loaded"`
}

// SettingsService reads and persists Settings as YAML.
type SettingsService struct {
	path          string
	defaultFolder string
	reload        *ReloadService
	audit         audit.Logger
	logger        *zap.Logger

	mu sync.Mutex
}

// NewSettingsService constructs the service. path is the YAML file location.
func NewSettingsService(path, defaultFolder string, reload *ReloadService, auditLogger audit.Logger, logger *zap.Logger) (*SettingsService, error) {
	if path == "" {
		return nil, errors.New("settings service: empty path")
	}
	if reload == nil {
		return nil, errors.New("settings service: nil reload service")
	}
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{
		path:          path,
		defaultFolder: defaultFolder,
		reload:        reload,
		audit:         auditLogger,
		logger:        logger,
	}, nil
}

// Get returns the persisted settings, or defaults when none were saved.
func (s *SettingsService) Get() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Restore applies the persisted data folder to the reload service. It returns
// the folder in use, or "" when none could be applied.
func (s *SettingsService) Restore() string {
	settings, err := s.Get()
	if err != nil {
		s.logger.Warn("settings read failed", zap.String("path", s.path), zap.Error(err))
		return ""
	}
	if settings.DataFolder == "" {
		return ""
	}
	if err := s.reload.SetDataFolder(settings.DataFolder); err != nil {
		s.logger.Warn("stored data folder unusable", zap.String("folder", settings.DataFolder), zap.Error(err))
		return ""
	}
	return settings.DataFolder
}

// Update points the reload service at folder and persists the result.
func (s *SettingsService) Update(ctx context.Context, folder string) (Settings, error) {
	if err := s.reload.SetDataFolder(folder); err != nil {
		return Settings{}, err
	}
	return s.Save(ctx)
}

// Save persists the current reload service state.
func (s *SettingsService) Save(ctx context.Context) (Settings, error) {
	settings := Settings{
		DataFolder:  s.reload.DataFolder(),
		FilesLoaded: s.reload.FilesLoaded(),
	}
	if last := s.reload.LastReload(); !last.IsZero() {
		settings.LastReload = &last
	}

	s.mu.Lock()
	err := s.write(settings)
	s.mu.Unlock()
	if err != nil {
		return Settings{}, err
	}

	entry := audit.FromContext(ctx, audit.ActionSettingsSave, "settings", settings.DataFolder)
	entry.Metadata = audit.Metadata(settings)
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log failed", zap.String("action", entry.Action), zap.Error(err))
	}
	return settings, nil
}

func (s *SettingsService) read() (Settings, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{DataFolder: s.defaultFolder, FilesLoaded: map[string]int{}}, nil
		}
		return Settings{}, err
	}
	var settings Settings
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	if settings.FilesLoaded == nil {
		settings.FilesLoaded = map[string]int{}
	}
	return settings, nil
}

func (s *SettingsService) write(settings Settings) error {
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o644)
}
