package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/raidep/internal/domain/model"
)

// SQLiteStore implements Store on SQLite. Timestamps are stored as unix
// nanoseconds, 0 meaning unset.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens dsn and applies the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to an in-memory database gets its own copy.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			static INTEGER NOT NULL DEFAULT 0,
			hard_mode INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			raid_day INTEGER NOT NULL DEFAULT 0,
			raid_name TEXT NOT NULL DEFAULT '',
			flushed INTEGER NOT NULL DEFAULT 0,
			lines_read INTEGER NOT NULL DEFAULT 0,
			lines_skipped INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_digest ON reports(digest)`,
		`CREATE TABLE IF NOT EXISTS players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL DEFAULT '',
			class TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS raid_runs (
			id TEXT PRIMARY KEY,
			report_id TEXT NOT NULL,
			raid_id INTEGER NOT NULL,
			begin_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			required_uptime REAL NOT NULL,
			minimum_uptime REAL NOT NULL,
			points_coefficient REAL NOT NULL,
			FOREIGN KEY (report_id) REFERENCES reports(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raid_runs_report ON raid_runs(report_id, begin_at)`,
		`CREATE TABLE IF NOT EXISTS usage_intervals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id TEXT NOT NULL,
			raid_run_id TEXT NOT NULL,
			player_id INTEGER NOT NULL,
			consumable_id INTEGER NOT NULL,
			begin_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			FOREIGN KEY (report_id) REFERENCES reports(id),
			FOREIGN KEY (raid_run_id) REFERENCES raid_runs(id),
			FOREIGN KEY (player_id) REFERENCES players(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_intervals_report ON usage_intervals(report_id, id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const reportColumns = `id, digest, static, hard_mode, status, error, raid_day, raid_name, flushed, lines_read, lines_skipped, created_at`

func (s *SQLiteStore) CreateReport(ctx context.Context, r model.Report) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM reports WHERE id = ?`, r.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check report: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: report %s", ErrConflict, r.ID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Digest, r.Static, r.HardMode, string(r.Status), r.Error, toNanos(r.RaidDay), r.RaidName,
		r.Flushed, r.LinesRead, r.LinesSkipped, toNanos(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	return r, err
}

func (s *SQLiteStore) UpdateReport(ctx context.Context, r model.Report) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET digest = ?, static = ?, hard_mode = ?, status = ?, error = ?, raid_day = ?,
			raid_name = ?, flushed = ?, lines_read = ?, lines_skipped = ? WHERE id = ?`,
		r.Digest, r.Static, r.HardMode, string(r.Status), r.Error, toNanos(r.RaidDay),
		r.RaidName, r.Flushed, r.LinesRead, r.LinesSkipped, r.ID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: report %s", ErrNotFound, r.ID)
	}
	return nil
}

func (s *SQLiteStore) ListReports(ctx context.Context) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReportByDigest(ctx context.Context, digest string) (model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE digest = ? ORDER BY created_at ASC LIMIT 1`, digest)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (model.Report, error) {
	var (
		r                  model.Report
		status             string
		raidDay, createdAt int64
	)
	err := row.Scan(&r.ID, &r.Digest, &r.Static, &r.HardMode, &status, &r.Error, &raidDay, &r.RaidName,
		&r.Flushed, &r.LinesRead, &r.LinesSkipped, &createdAt)
	if err != nil {
		return model.Report{}, err
	}
	r.Status = model.Status(status)
	r.RaidDay = fromNanos(raidDay)
	r.CreatedAt = fromNanos(createdAt)
	return r, nil
}

func (s *SQLiteStore) SaveRaidRun(ctx context.Context, run model.RaidRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raid_runs (id, report_id, raid_id, begin_at, end_at, required_uptime, minimum_uptime, points_coefficient)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ReportID, run.RaidID, toNanos(run.Begin), toNanos(run.End),
		run.RequiredUptime, run.MinimumUptime, run.PointsCoefficient)
	if err != nil {
		return fmt.Errorf("insert raid run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RaidRuns(ctx context.Context, reportID string) ([]model.RaidRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, raid_id, begin_at, end_at, required_uptime, minimum_uptime, points_coefficient
		FROM raid_runs WHERE report_id = ? ORDER BY begin_at ASC, rowid ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list raid runs: %w", err)
	}
	defer rows.Close()

	out := []model.RaidRun{}
	for rows.Next() {
		var (
			run        model.RaidRun
			begin, end int64
		)
		if err := rows.Scan(&run.ID, &run.ReportID, &run.RaidID, &begin, &end,
			&run.RequiredUptime, &run.MinimumUptime, &run.PointsCoefficient); err != nil {
			return nil, err
		}
		run.Begin = fromNanos(begin)
		run.End = fromNanos(end)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteReportData(ctx context.Context, reportID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_intervals WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("delete intervals: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM raid_runs WHERE report_id = ?`, reportID); err != nil {
		return fmt.Errorf("delete raid runs: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddIntervals(ctx context.Context, intervals []model.UsageInterval) error {
	if len(intervals) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO usage_intervals (report_id, raid_run_id, player_id, consumable_id, begin_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, iv := range intervals {
		if _, err := stmt.ExecContext(ctx, iv.ReportID, iv.RaidRunID, iv.PlayerID, iv.ConsumableID,
			toNanos(iv.Begin), toNanos(iv.End)); err != nil {
			return fmt.Errorf("insert interval: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Intervals(ctx context.Context, reportID string) ([]model.UsageInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id, raid_run_id, player_id, consumable_id, begin_at, end_at
		FROM usage_intervals WHERE report_id = ? ORDER BY id ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}
	defer rows.Close()

	out := []model.UsageInterval{}
	for rows.Next() {
		var (
			iv         model.UsageInterval
			begin, end int64
		)
		if err := rows.Scan(&iv.ReportID, &iv.RaidRunID, &iv.PlayerID, &iv.ConsumableID, &begin, &end); err != nil {
			return nil, err
		}
		iv.Begin = fromNanos(begin)
		iv.End = fromNanos(end)
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetOrCreatePlayer(ctx context.Context, seed model.Player) (model.Player, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO players (name, role, class) VALUES (?, ?, ?)`,
		seed.Name, seed.Role, seed.Class)
	if err != nil {
		return model.Player{}, fmt.Errorf("insert player: %w", err)
	}

	var p model.Player
	err = s.db.QueryRowContext(ctx, `SELECT id, name, role, class FROM players WHERE name = ?`, seed.Name).
		Scan(&p.ID, &p.Name, &p.Role, &p.Class)
	if err != nil {
		return model.Player{}, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) Player(ctx context.Context, id int64) (model.Player, error) {
	var p model.Player
	err := s.db.QueryRowContext(ctx, `SELECT id, name, role, class FROM players WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Role, &p.Class)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, fmt.Errorf("%w: player %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) Players(ctx context.Context, ids []int64) ([]model.Player, error) {
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		p, err := s.Player(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLiteStore) UpdatePlayer(ctx context.Context, p model.Player) error {
	res, err := s.db.ExecContext(ctx, `UPDATE players SET role = ?, class = ? WHERE id = ?`, p.Role, p.Class, p.ID)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: player %d", ErrNotFound, p.ID)
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
