package api

import (
	"time"

	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/scoring"
)

type submitResponse struct {
	ReportID  string `json:"report_id"`
	Status    string `json:"status,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type flushResponse struct {
	ReportID       string `json:"report_id"`
	Players        int    `json:"players"`
	AlreadyFlushed bool   `json:"already_flushed"`
}

type reportResponse struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	Static       int        `json:"static"`
	HardMode     bool       `json:"hard_mode"`
	RaidDay      *time.Time `json:"raid_day,omitempty"`
	RaidName     string     `json:"raid_name,omitempty"`
	Flushed      bool       `json:"flushed"`
	LinesRead    int        `json:"lines_read"`
	LinesSkipped int        `json:"lines_skipped"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newReportResponse(r model.Report) reportResponse {
	resp := reportResponse{
		ID:           r.ID,
		Status:       string(r.Status),
		Error:        r.Error,
		Static:       r.Static,
		HardMode:     r.HardMode,
		RaidName:     r.RaidName,
		Flushed:      r.Flushed,
		LinesRead:    r.LinesRead,
		LinesSkipped: r.LinesSkipped,
		CreatedAt:    r.CreatedAt,
	}
	if !r.RaidDay.IsZero() {
		day := r.RaidDay
		resp.RaidDay = &day
	}
	return resp
}

type runResponse struct {
	ID                string    `json:"id"`
	RaidID            int       `json:"raid_id"`
	Begin             time.Time `json:"begin"`
	End               time.Time `json:"end"`
	RequiredUptime    float64   `json:"required_uptime"`
	MinimumUptime     float64   `json:"minimum_uptime"`
	PointsCoefficient float64   `json:"points_coefficient"`
}

type playerResponse struct {
	ID     int64                       `json:"id"`
	Name   string                      `json:"name"`
	Class  string                      `json:"class,omitempty"`
	Role   string                      `json:"role,omitempty"`
	Total  int                         `json:"total"`
	Scores map[string][]scoring.Record `json:"scores"` // raid run id -> records
}

type warningResponse struct {
	Text     string `json:"text"`
	PlayerID int64  `json:"player_id,omitempty"`
}

type reportDetail struct {
	Report   reportResponse    `json:"report"`
	Runs     []runResponse     `json:"runs"`
	Players  []playerResponse  `json:"players"`
	Warnings []warningResponse `json:"warnings"`
}
