package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"go.uber.org/zap"

	kpi "solar-dashboard/internal/kpi/domain"
	"solar-dashboard/internal/notify/whatsapp"
	plantapp "solar-dashboard/internal/plant/application"
	plant "solar-dashboard/internal/plant/domain"
	"solar-dashboard/internal/simulation"
)

// User-facing details for well-known service errors.
const (
	detailNoData        = "Datos no cargados. Usar POST /api/data/reload primero."
	detailInvalidPhone  = "El número de teléfono debe estar en formato E.164 (comenzar con +)"
	detailEmptyMessage  = "El mensaje no puede estar vacío"
	detailAudioNotFound = "Archivo de audio no encontrado"
	detailInternal      = "Error interno del servidor"
)

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, plant.ErrNoData),
		errors.Is(err, plant.ErrDataFolderNotConfigured),
		errors.Is(err, plant.ErrMissingColumns),
		errors.Is(err, simulation.ErrInvalidHours),
		errors.Is(err, plantapp.ErrInvalidLimit),
		errors.Is(err, whatsapp.ErrInvalidPhone),
		errors.Is(err, whatsapp.ErrEmptyMessage),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		detail = detailInternal
	case errors.Is(err, plant.ErrNoData) && !errors.Is(err, kpi.ErrEmptyWindow):
		detail = detailNoData
	case errors.Is(err, whatsapp.ErrInvalidPhone):
		detail = detailInvalidPhone
	case errors.Is(err, whatsapp.ErrEmptyMessage):
		detail = detailEmptyMessage
	case errors.Is(err, whatsapp.ErrAudioNotFound):
		detail = detailAudioNotFound
	}
	writeDetail(w, status, detail)
}
