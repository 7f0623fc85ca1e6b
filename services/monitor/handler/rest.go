package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopfloor/floorstate/internal/domain"
	"github.com/shopfloor/floorstate/services/monitor"
)

// SnapshotReader is the read surface the monitor exposes. Reads are lock-free
// pointer loads; a handler never blocks a refresh cycle and vice versa.
type SnapshotReader interface {
	StageMetrics() ([]domain.StageMetric, monitor.Staleness, error)
	MachineStates() ([]domain.MachineState, monitor.Staleness, error)
	Bottlenecks() ([]domain.BottleneckEntry, monitor.Staleness, error)
	Published(view string) (*monitor.Published, error)
}

// REST serves the floor state read API.
type REST struct {
	reader SnapshotReader
	logger *slog.Logger
}

// NewREST creates a new REST handler over the given snapshot reader.
func NewREST(reader SnapshotReader, logger *slog.Logger) *REST {
	return &REST{reader: reader, logger: logger}
}

// Routes mounts all endpoints on the given router.
func (h *REST) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stages", h.GetStages)
		r.Get("/machines", h.GetMachines)
		r.Get("/bottlenecks", h.GetBottlenecks)
		r.Get("/snapshot", h.GetSnapshot)
	})
}

// envelope wraps every data response with its staleness indicator so clients
// can render a "last updated / degraded" banner without a second call.
type envelope struct {
	Data        any       `json:"data"`
	LastRefresh time.Time `json:"last_refresh"`
	Degraded    bool      `json:"degraded"`
}

// GetStages handles GET /api/v1/stages.
func (h *REST) GetStages(w http.ResponseWriter, r *http.Request) {
	stages, stale, err := h.reader.StageMetrics()
	if err != nil {
		h.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: stages, LastRefresh: stale.LastSuccess, Degraded: stale.Degraded})
}

// GetMachines handles GET /api/v1/machines.
func (h *REST) GetMachines(w http.ResponseWriter, r *http.Request) {
	machines, stale, err := h.reader.MachineStates()
	if err != nil {
		h.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: machines, LastRefresh: stale.LastSuccess, Degraded: stale.Degraded})
}

// GetBottlenecks handles GET /api/v1/bottlenecks.
func (h *REST) GetBottlenecks(w http.ResponseWriter, r *http.Request) {
	bottlenecks, stale, err := h.reader.Bottlenecks()
	if err != nil {
		h.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: bottlenecks, LastRefresh: stale.LastSuccess, Degraded: stale.Degraded})
}

// GetSnapshot handles GET /api/v1/snapshot?view=machines. It returns the full
// published snapshot for one view, defaulting to the machines view.
func (h *REST) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = monitor.ViewMachines
	}

	pub, err := h.reader.Published(view)
	if err != nil {
		h.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. The process is ready once the machines view has
// published at least one snapshot.
func (h *REST) Readyz(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.reader.Published(monitor.ViewMachines); err != nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeReadError maps a reader error to a response. A missing snapshot means
// the view has not completed a refresh yet, which is 503 territory rather
// than 404: the resource exists, the data just is not there yet.
func (h *REST) writeReadError(w http.ResponseWriter, err error) {
	var notFound *domain.SnapshotNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusServiceUnavailable, "snapshot not available for view "+notFound.View)
		return
	}
	h.logger.Error("snapshot read failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "failed to read snapshot")
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
