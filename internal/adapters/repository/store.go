// Package repository persists reports, raid runs, usage intervals and
// players, and keeps the standings ladder.
package repository

import (
	"context"

	"github.com/okian/raidep/internal/domain/model"
)

// Store provides read/write access to ingested reports.
type Store interface {
	// CreateReport inserts a new report. Returns ErrConflict if the id exists.
	CreateReport(ctx context.Context, r model.Report) error
	// GetReport returns ErrNotFound for unknown ids.
	GetReport(ctx context.Context, id string) (model.Report, error)
	// UpdateReport replaces a stored report.
	UpdateReport(ctx context.Context, r model.Report) error
	// ListReports returns reports newest first.
	ListReports(ctx context.Context) ([]model.Report, error)
	// ReportByDigest returns the report owning a log digest.
	ReportByDigest(ctx context.Context, digest string) (model.Report, error)

	// SaveRaidRun stores a kept run.
	SaveRaidRun(ctx context.Context, run model.RaidRun) error
	// RaidRuns returns a report's runs ordered by begin.
	RaidRuns(ctx context.Context, reportID string) ([]model.RaidRun, error)
	// DeleteReportData drops a report's runs and intervals.
	DeleteReportData(ctx context.Context, reportID string) error

	// AddIntervals stores usage intervals.
	AddIntervals(ctx context.Context, intervals []model.UsageInterval) error
	// Intervals returns a report's intervals in insertion order.
	Intervals(ctx context.Context, reportID string) ([]model.UsageInterval, error)

	// GetOrCreatePlayer returns the player named seed.Name, creating it
	// from seed when missing. Stored role and class are not overwritten.
	GetOrCreatePlayer(ctx context.Context, seed model.Player) (model.Player, error)
	// Player returns ErrNotFound for unknown ids.
	Player(ctx context.Context, id int64) (model.Player, error)
	// Players returns the players with the given ids; unknown ids are skipped.
	Players(ctx context.Context, ids []int64) ([]model.Player, error)
	// UpdatePlayer sets a player's role and class.
	UpdatePlayer(ctx context.Context, p model.Player) error

	Close() error
}
