package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumReports   int           // Number of combat logs to generate
	Players      []string      // Roster names the logs are written for
	Spells       []int         // Aura spell ids applied to players
	CastSpells   []int         // Spell ids cast once per run
	TopN         int           // Number of standings entries to fetch
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between report status polls
	HardMode     bool          // Submit reports in hard mode
	Static       int           // Static the reports belong to
	OutputDir    string        // Directory generated logs are saved to; empty skips saving
}

// Log is one generated combat log.
type Log struct {
	Name string
	Body []byte
}

// Entry is one standings row.
type Entry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Points int    `json:"points"`
}

type submitResponse struct {
	ReportID  string `json:"report_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type reportResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type flushResponse struct {
	ReportID       string `json:"report_id"`
	Players        int    `json:"players"`
	AlreadyFlushed bool   `json:"already_flushed"`
}

// Stats holds run statistics.
type Stats struct {
	LogsGenerated     int
	ReportsSubmitted  int
	ReportsAccepted   int
	ReportsDuplicate  int
	ReportsFailed     int
	ReportsDone       int
	ReportsFlushed    int
	RankingsRetrieved int
	StandingsEntries  int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
