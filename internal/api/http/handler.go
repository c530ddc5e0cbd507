package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	kpi "solar-dashboard/internal/kpi/domain"
	"solar-dashboard/internal/notify/tts"
	"solar-dashboard/internal/notify/whatsapp"
	"solar-dashboard/internal/observability/metrics"
	plantapp "solar-dashboard/internal/plant/application"
	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/simulation"
)

const (
	defaultRange = "30d"
	defaultHours = 24
	maxBodyBytes = 1 << 20
)

// Service metadata reported by the health endpoint.
const (
	ServiceName    = "Solar PV Analytics API"
	ServiceVersion = "1.0.0"
)

// KPIComputer builds KPI snapshots for a range.
type KPIComputer interface {
	ComputeKPIs(rangeKey string) (*kpi.Snapshot, error)
}

// SeriesGenerator produces the simulated power curve.
type SeriesGenerator interface {
	GenerateSeries(hours int) ([]simulation.DataPoint, error)
}

// TicketLister lists maintenance tickets.
type TicketLister interface {
	List(filter plantapp.TicketFilter) ([]plant.Ticket, error)
}

// Reloader reloads the source files.
type Reloader interface {
	Reload(ctx context.Context) (plantapp.ReloadResult, error)
}

// SettingsStore reads and persists user settings.
type SettingsStore interface {
	Get() (plantapp.Settings, error)
	Update(ctx context.Context, folder string) (plantapp.Settings, error)
	Save(ctx context.Context) (plantapp.Settings, error)
}

// ReportGenerator writes report files and returns their paths.
type ReportGenerator interface {
	GeneratePDF(ctx context.Context, rangeKey string) (string, error)
	GenerateWorkbook(ctx context.Context, rangeKey string) (string, error)
}

// AudioGenerator produces the spoken summary.
type AudioGenerator interface {
	GenerateSummary(ctx context.Context, customText string) (*tts.Result, error)
}

// Messenger sends WhatsApp notifications.
type Messenger interface {
	SendText(ctx context.Context, to, message string) (*whatsapp.Result, error)
	SendAudio(ctx context.Context, to, audioPath string) (*whatsapp.Result, error)
}

// Deps bundles the services behind the dashboard API.
type Deps struct {
	Store     plant.Reader
	KPIs      KPIComputer
	Series    SeriesGenerator
	Tickets   TicketLister
	Reloader  Reloader
	Settings  SettingsStore
	Reports   ReportGenerator
	Audio     AudioGenerator
	Messenger Messenger
	// AudioDir confines send-audio paths when set.
	AudioDir string
}

// Handler serves the dashboard API under /api.
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(deps Deps, logger *zap.Logger) (*Handler, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("api handler: nil store")
	case deps.KPIs == nil:
		return nil, errors.New("api handler: nil kpi service")
	case deps.Series == nil:
		return nil, errors.New("api handler: nil series generator")
	case deps.Tickets == nil:
		return nil, errors.New("api handler: nil ticket query")
	case deps.Reloader == nil:
		return nil, errors.New("api handler: nil reloader")
	case deps.Settings == nil:
		return nil, errors.New("api handler: nil settings")
	case deps.Reports == nil:
		return nil, errors.New("api handler: nil report service")
	case deps.Audio == nil:
		return nil, errors.New("api handler: nil audio service")
	case deps.Messenger == nil:
		return nil, errors.New("api handler: nil messenger")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{deps: deps, logger: logger}, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("POST /api/settings", h.handleUpdateSettings)
	mux.HandleFunc("POST /api/data/reload", h.handleReload)
	mux.HandleFunc("GET /api/plant", h.handlePlant)
	mux.HandleFunc("GET /api/kpis/exec", h.handleKPIs)
	mux.HandleFunc("GET /api/series/realtime", h.handleSeries)
	mux.HandleFunc("GET /api/tickets", h.handleTickets)
	mux.HandleFunc("POST /api/report/pdf", h.handleReportPDF)
	mux.HandleFunc("POST /api/report/xlsx", h.handleReportWorkbook)
	mux.HandleFunc("POST /api/report/tts", h.handleReportAudio)
	mux.HandleFunc("POST /api/whatsapp/send-audio", h.handleSendAudio)
	mux.HandleFunc("POST /api/whatsapp/send-text", h.handleSendText)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Settings.Get()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataFolder string `json:"data_folder"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	settings, err := h.deps.Settings.Update(r.Context(), strings.TrimSpace(req.DataFolder))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Reloader.Reload(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.deps.Settings.Save(r.Context()); err != nil {
		h.logger.Warn("persist settings after reload failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePlant(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Store.Snapshot()
	if snap.Data == nil {
		h.writeError(w, r, plant.ErrNoData)
		return
	}
	writeJSON(w, http.StatusOK, snap.Data)
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	key := rangeParam(r)
	started := time.Now()
	snap, err := h.deps.KPIs.ComputeKPIs(key)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveKPICompute(string(kpi.ParseRange(key)), result, time.Since(started))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSeries(w http.ResponseWriter, r *http.Request) {
	hours := defaultHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "hours debe ser un entero entre 1 y 168")
			return
		}
		hours = parsed
	}
	series, err := h.deps.Series.GenerateSeries(hours)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := plantapp.TicketFilter{
		Status: query.Get("status"),
		Sort:   query.Get("sort"),
	}
	if filter.Sort == "" {
		filter.Sort = plantapp.SortCostDesc
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeDetail(w, http.StatusBadRequest, "limit debe ser un entero entre 1 y 1000")
			return
		}
		filter.Limit = limit
	}
	tickets, err := h.deps.Tickets.List(filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	path, err := h.deps.Reports.GeneratePDF(r.Context(), rangeParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.serveFile(w, r, path, "application/pdf")
}

func (h *Handler) handleReportWorkbook(w http.ResponseWriter, r *http.Request) {
	path, err := h.deps.Reports.GenerateWorkbook(r.Context(), rangeParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.serveFile(w, r, path, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (h *Handler) handleReportAudio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.deps.Audio.GenerateSummary(r.Context(), strings.TrimSpace(req.Text))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSendAudio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToPhone   string `json:"to_phone"`
		AudioPath string `json:"audio_path"`
	}
	if err := decodeBody(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.audioAllowed(req.AudioPath) {
		writeDetail(w, http.StatusBadRequest, "audio_path fuera de la carpeta de salida")
		return
	}
	result, err := h.deps.Messenger.SendAudio(r.Context(), strings.TrimSpace(req.ToPhone), req.AudioPath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSendText(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	to := strings.TrimSpace(query.Get("to_phone"))
	message := query.Get("message")
	if to == "" || message == "" {
		writeDetail(w, http.StatusBadRequest, "to_phone y message son requeridos")
		return
	}
	result, err := h.deps.Messenger.SendText(r.Context(), to, message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func (h *Handler) audioAllowed(path string) bool {
	if h.deps.AudioDir == "" {
		return true
	}
	root, err := filepath.Abs(h.deps.AudioDir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func rangeParam(r *http.Request) string {
	if value := r.URL.Query().Get("range"); value != "" {
		return value
	}
	return defaultRange
}

// decodeBody reads a JSON body into v. An empty body is accepted when optional.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	default:
		return fmt.Errorf("%w: invalid json", errBadRequest)
	}
}
