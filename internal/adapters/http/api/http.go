// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	repository "github.com/okian/raidep/internal/adapters/repository"
	service "github.com/okian/raidep/internal/app"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ReportDependencies
	StandingsDependencies
}

// ReportDependencies covers report upload, reads and flushing.
type ReportDependencies interface {
	Submit(ctx context.Context, payload []byte, opts service.SubmitOptions) (service.SubmitResult, error)
	Reports(ctx context.Context) ([]model.Report, error)
	Report(ctx context.Context, id string) (service.ReportView, error)
	Export(ctx context.Context, id string) (string, error)
	Flush(ctx context.Context, id string) (service.FlushResult, error)
}

// StandingsDependencies exposes the cumulative standings.
type StandingsDependencies interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, name string) (Entry, error)
}

// Entry mirrors the read shape returned by standings queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	reportsHandler   *ReportsHandler
	standingsHandler *StandingsHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps
// GET /standings?limit.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, opts ...ReportsOption) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		reportsHandler:   NewReportsHandler(deps, opts...),
		standingsHandler: NewStandingsHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /reports", MetricsMiddleware(s.reportsHandler.HandlePostReport, "reports"))
	mux.HandleFunc("GET /reports", MetricsMiddleware(s.reportsHandler.HandleListReports, "reports"))
	mux.HandleFunc("GET /reports/{id}", MetricsMiddleware(s.reportsHandler.HandleGetReport, "report"))
	mux.HandleFunc("GET /reports/{id}/export", MetricsMiddleware(s.reportsHandler.HandleExport, "report_export"))
	mux.HandleFunc("POST /reports/{id}/flush", MetricsMiddleware(s.reportsHandler.HandleFlush, "report_flush"))

	mux.HandleFunc("GET /standings", MetricsMiddleware(s.standingsHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("GET /standings/{name}", MetricsMiddleware(s.standingsHandler.HandleGetRank, "standings_rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps upstream error kinds to a status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrEmptyLog):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotReady):
		writeError(w, http.StatusConflict, "not_ready", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
