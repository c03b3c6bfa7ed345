package api

import (
	"net/http"
	"strconv"
	"strings"
)

const defaultStandingsLimit = 10

// StandingsHandler handles standings requests.
type StandingsHandler struct {
	deps     StandingsDependencies
	maxLimit int
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies, maxLimit int) *StandingsHandler {
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &StandingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetStandings handles GET /standings?limit=N requests.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	n := min(defaultStandingsLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetRank handles GET /standings/{name} requests.
func (h *StandingsHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.Rank(r.Context(), name)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
