package httphandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// ReadingQuerier reads stored readings by capture time.
type ReadingQuerier interface {
	QueryRange(ctx context.Context, startMillis, endMillis int64) ([]model.Reading, error)
}

// StatusReader produces a fresh device telemetry snapshot.
type StatusReader interface {
	Snapshot(ctx context.Context) model.DeviceStatus
}

// MetricsExporter serves the metrics scrape endpoint when enabled.
type MetricsExporter interface {
	RequestObserver
	Enabled() bool
	Handler() http.Handler
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	readings ReadingQuerier
	status   StatusReader
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(readings ReadingQuerier, status StatusReader, logger *slog.Logger) *Handler {
	return &Handler{
		readings: readings,
		status:   status,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers the authenticated API routes and the open
// health and metrics routes on mux.
func RegisterRoutes(mux *http.ServeMux, h *Handler, tokens TokenFinder, metrics MetricsExporter) {
	auth := RequireBearer(tokens, h.logger)

	// Auth wraps each API route, not the /api prefix: unknown paths are 404
	// with or without a token.
	mux.Handle("GET /api/sensor_data", auth(http.HandlerFunc(h.SensorData)))
	mux.Handle("GET /api/device_status", auth(http.HandlerFunc(h.DeviceStatus)))

	mux.HandleFunc("GET /healthz", h.Health)
	if metrics.Enabled() {
		mux.Handle("GET /metrics", metrics.Handler())
	}
}

// NewServeMux builds the complete HTTP handler: routes plus middleware.
func NewServeMux(h *Handler, tokens TokenFinder, metrics MetricsExporter) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, h, tokens, metrics)
	return ApplyMiddleware(mux, metrics, h.logger)
}

// SensorData returns readings captured within [start_time, end_time], both
// epoch milliseconds, newest first.
func (h *Handler) SensorData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseMillis("start_time", q.Get("start_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseMillis("end_time", q.Get("end_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := h.readings.QueryRange(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to query readings", "start", start, "end", end, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ReadingResponse, 0, len(readings))
	for _, rd := range readings {
		resp = append(resp, toReadingResponse(rd))
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeviceStatus returns a fresh telemetry snapshot. Probe failures degrade
// individual fields and never fail the request.
func (h *Handler) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toDeviceStatusResponse(h.status.Snapshot(r.Context())))
}

// Health returns the service health status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toHealthResponse(h.now()))
}

// parseMillis parses a required epoch-millisecond query parameter. Errors
// wrap model.ErrValidation and read as client-facing messages.
func parseMillis(name, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", model.ErrValidation, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer (epoch milliseconds)", model.ErrValidation, name)
	}
	return v, nil
}
