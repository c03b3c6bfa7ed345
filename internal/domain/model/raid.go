package model

import "time"

// Raid describes a raid instance and the scoring thresholds its runs start with.
type Raid struct {
	ID                       int
	Name                     string
	DefaultRequiredUptime    float64
	DefaultMinimumUptime     float64
	DefaultPointsCoefficient float64
}

// Boss is an encounter that belongs to a raid.
type Boss struct {
	EncounterID int
	RaidID      int
	Name        string
	EndsRaid    bool // a kill of this boss closes the current run
}

// Run thresholds used until a raid is recognized.
const (
	DefaultRequiredUptime    = 0.85
	DefaultMinimumUptime     = 0.5
	DefaultPointsCoefficient = 1.0
)

// RaidRun is a bounded segment of a log attributed to a single raid.
// RaidID is 0 until the first recognized encounter start. Begin and End
// stay zero until set.
type RaidRun struct {
	ID                string
	ReportID          string
	RaidID            int
	Begin             time.Time
	End               time.Time
	RequiredUptime    float64
	MinimumUptime     float64
	PointsCoefficient float64
}

// NewRaidRun returns an open run with no raid and default thresholds.
func NewRaidRun(id, reportID string) *RaidRun {
	return &RaidRun{
		ID:                id,
		ReportID:          reportID,
		RequiredUptime:    DefaultRequiredUptime,
		MinimumUptime:     DefaultMinimumUptime,
		PointsCoefficient: DefaultPointsCoefficient,
	}
}

// HasRaid reports whether the run was bound to a raid.
func (r *RaidRun) HasRaid() bool { return r.RaidID != 0 }

// BindRaid assigns the raid and copies its thresholds.
func (r *RaidRun) BindRaid(raid Raid) {
	r.RaidID = raid.ID
	r.RequiredUptime = raid.DefaultRequiredUptime
	r.MinimumUptime = raid.DefaultMinimumUptime
	r.PointsCoefficient = raid.DefaultPointsCoefficient
}

// Duration returns End-Begin, or 0 when either bound is unset.
func (r *RaidRun) Duration() time.Duration {
	if r.Begin.IsZero() || r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Begin)
}
