package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apihttp "solar-dashboard/internal/api/http"
	"solar-dashboard/internal/audit"
	"solar-dashboard/internal/auth"
	"solar-dashboard/internal/config"
	kpi "solar-dashboard/internal/kpi/domain"
	"solar-dashboard/internal/notify/tts"
	"solar-dashboard/internal/notify/whatsapp"
	"solar-dashboard/internal/observability/metrics"
	plantapp "solar-dashboard/internal/plant/application"
	"solar-dashboard/internal/plant/infrastructure/files"
	"solar-dashboard/internal/plant/infrastructure/memory"
	"solar-dashboard/internal/reports"
	"solar-dashboard/internal/simulation"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, auditLogger, err := openAudit(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	metrics.Init(db, logger)

	store := memory.NewStore()
	reloadService, err := plantapp.NewReloadService(store, files.NewLoader(loc),
		plantapp.WithReloadLogger(logger),
		plantapp.WithReloadAudit(auditLogger),
	)
	if err != nil {
		return err
	}
	settingsService, err := plantapp.NewSettingsService(cfg.Data.SettingsFile, cfg.Data.Folder, reloadService, auditLogger, logger)
	if err != nil {
		return err
	}
	if folder := settingsService.Restore(); folder != "" {
		if _, err := reloadService.Reload(ctx); err != nil {
			logger.Warn("initial reload failed", zap.String("folder", folder), zap.Error(err))
		}
	}

	simulator, err := simulation.NewSimulator(store, simulation.WithLocation(loc))
	if err != nil {
		return err
	}
	aggregator, err := kpi.NewAggregator(store, simulator, cfg.Plant.CO2FactorKgPerKWh, kpi.WithLocation(loc))
	if err != nil {
		return err
	}
	ticketQuery, err := plantapp.NewTicketQuery(store)
	if err != nil {
		return err
	}
	reportService, err := reports.NewService(store, aggregator, cfg.Data.OutputFolder,
		reports.WithLogger(logger),
		reports.WithAudit(auditLogger),
	)
	if err != nil {
		return err
	}

	speech := tts.NewClient(tts.ClientConfig{
		BaseURL: cfg.TTS.BaseURL,
		APIKey:  cfg.TTS.OpenAIAPIKey,
		Model:   cfg.TTS.Model,
		Voice:   cfg.TTS.Voice,
		Timeout: cfg.TTS.Timeout,
	})
	audioService, err := tts.NewService(store, reportService, speech, cfg.Data.OutputFolder,
		tts.WithLogger(logger),
		tts.WithAudit(auditLogger),
	)
	if err != nil {
		return err
	}

	twilio := whatsapp.NewClient(whatsapp.ClientConfig{
		BaseURL:    cfg.WhatsApp.BaseURL,
		AccountSID: cfg.WhatsApp.TwilioAccountSID,
		AuthToken:  cfg.WhatsApp.TwilioAuthToken,
		From:       cfg.WhatsApp.From,
		Timeout:    cfg.WhatsApp.Timeout,
	})
	messenger := whatsapp.NewService(twilio,
		whatsapp.WithLimiter(sendLimiter(cfg.WhatsApp)),
		whatsapp.WithLogger(logger),
		whatsapp.WithAudit(auditLogger),
	)

	handler, err := apihttp.NewHandler(apihttp.Deps{
		Store:     store,
		KPIs:      aggregator,
		Series:    simulator,
		Tickets:   ticketQuery,
		Reloader:  reloadService,
		Settings:  settingsService,
		Reports:   reportService,
		Audio:     audioService,
		Messenger: messenger,
		AudioDir:  cfg.Data.OutputFolder,
	}, logger)
	if err != nil {
		return err
	}
	authMiddleware := auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), auth.NewDefaultPolicy(nil, nil))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apihttp.NewRouter(handler, authMiddleware, cfg.Server.Origins(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("http listening",
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("cors_origins", cfg.Server.Origins()),
		zap.Bool("auth", authMiddleware.Enabled()),
		zap.Bool("tts_configured", speech.Enabled()),
		zap.Bool("whatsapp_configured", twilio.Enabled()),
		zap.Bool("audit_db", db != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openAudit connects the audit store when a database URL is configured.
func openAudit(ctx context.Context, url string, logger *zap.Logger) (*sql.DB, audit.Logger, error) {
	if url == "" {
		logger.Info("database not configured, audit log disabled")
		return nil, audit.NopLogger{}, nil
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	repo := audit.NewRepository(db)
	if err := repo.EnsureSchema(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}

func sendLimiter(cfg config.WhatsAppConfig) *rate.Limiter {
	if cfg.RatePerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), burst)
}
