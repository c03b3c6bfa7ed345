package model

import "time"

// Status is the ingestion state of a report.
type Status string

// Report states.
const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Report is one uploaded combat log.
type Report struct {
	ID           string
	Digest       string // hex sha256 of the payload
	Static       int
	HardMode     bool
	Status       Status
	Error        string
	RaidDay      time.Time
	RaidName     string
	Flushed      bool
	LinesRead    int
	LinesSkipped int
	CreatedAt    time.Time
}

// Player is a character seen in a log. Role and Class are empty when unknown.
type Player struct {
	ID    int64
	Name  string
	Role  string
	Class string
}

// UsageInterval is a span during which a consumable was active for a player.
type UsageInterval struct {
	ReportID     string
	RaidRunID    string
	PlayerID     int64
	ConsumableID int
	Begin        time.Time
	End          time.Time
}
