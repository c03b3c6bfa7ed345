package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	service "github.com/okian/raidep/internal/app"
)

const defaultMaxBodyBytes = 64 << 20

// ReportsHandler handles report upload and report reads.
type ReportsHandler struct {
	deps         ReportDependencies
	maxBodyBytes int64
}

// ReportsOption configures a ReportsHandler.
type ReportsOption func(*ReportsHandler)

// WithMaxBodyBytes caps the size of an uploaded log.
func WithMaxBodyBytes(n int64) ReportsOption {
	return func(h *ReportsHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps ReportDependencies, opts ...ReportsOption) *ReportsHandler {
	h := &ReportsHandler{deps: deps, maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlePostReport handles POST /reports?static=N&hard_mode=bool. The body
// is the raw combat log.
func (h *ReportsHandler) HandlePostReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_report"

	opts, err := submitOptions(r)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Submit(r.Context(), payload, opts)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, submitResponse{ReportID: res.ReportID, Status: string(res.Status), Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{ReportID: res.ReportID, Status: string(res.Status)})
}

func submitOptions(r *http.Request) (service.SubmitOptions, error) {
	var opts service.SubmitOptions
	q := r.URL.Query()
	if v := q.Get("static"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid static %q", v)
		}
		opts.Static = n
	}
	if v := q.Get("hard_mode"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid hard_mode %q", v)
		}
		opts.HardMode = b
	}
	return opts, nil
}

// HandleListReports handles GET /reports requests.
func (h *ReportsHandler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.deps.Reports(r.Context())
	if err != nil {
		writeServiceError(w, Wrap("api.list_reports", err))
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, newReportResponse(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetReport handles GET /reports/{id} requests.
func (h *ReportsHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, Wrap("api.get_report", err))
		return
	}
	writeJSON(w, http.StatusOK, newReportDetail(view))
}

// HandleExport handles GET /reports/{id}/export requests.
func (h *ReportsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, Wrap("api.export_report", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if out != "" {
		_, _ = io.WriteString(w, out+"\n")
	}
}

// HandleFlush handles POST /reports/{id}/flush requests.
func (h *ReportsHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := h.deps.Flush(r.Context(), id)
	if err != nil {
		writeServiceError(w, Wrap("api.flush_report", err))
		return
	}
	writeJSON(w, http.StatusOK, flushResponse{ReportID: id, Players: res.Players, AlreadyFlushed: res.AlreadyFlushed})
}

func newReportDetail(view service.ReportView) reportDetail {
	d := reportDetail{
		Report:   newReportResponse(view.Report),
		Runs:     make([]runResponse, 0, len(view.Runs)),
		Players:  []playerResponse{},
		Warnings: []warningResponse{},
	}
	for _, run := range view.Runs {
		d.Runs = append(d.Runs, runResponse{
			ID:                run.ID,
			RaidID:            run.RaidID,
			Begin:             run.Begin,
			End:               run.End,
			RequiredUptime:    run.RequiredUptime,
			MinimumUptime:     run.MinimumUptime,
			PointsCoefficient: run.PointsCoefficient,
		})
	}
	if view.Result == nil {
		return d
	}

	ids := make([]int64, 0, len(view.Result.Records))
	for id := range view.Result.Records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := view.Result.Players[id]
		d.Players = append(d.Players, playerResponse{
			ID:     id,
			Name:   p.Name,
			Class:  p.Class,
			Role:   p.Role,
			Total:  view.Result.Totals[id],
			Scores: view.Result.Records[id],
		})
	}
	for _, wr := range view.Result.Warnings {
		d.Warnings = append(d.Warnings, warningResponse{Text: wr.Text, PlayerID: wr.PlayerID})
	}
	return d
}
