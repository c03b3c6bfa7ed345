// Package ingest runs the single pass over a combat log that segments it
// into raid runs and records consumable usage intervals.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/raidep/internal/domain/logparse"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
	"github.com/okian/raidep/pkg/logger"
	"github.com/okian/raidep/pkg/metrics"
)

const (
	maxLineBytes     = 4 << 20
	ctxCheckInterval = 4096
)

// Stats counts what a pass saw.
type Stats struct {
	LinesRead         int
	LinesSkipped      int
	Malformed         int
	Unsupported       int
	Events            int
	UnknownEncounters int
	RunsKept          int
	RunsDiscarded     int
	Intervals         int
	WorldBuffsDropped int
}

// Result is the outcome of one pass. Runs are in log order and every
// interval belongs to one of them.
type Result struct {
	Runs      []model.RaidRun
	Intervals []model.UsageInterval
	Stats     Stats
}

// Importer drives the segmenter and the usage tracker over one log.
// An Importer holds no per-log state and can run passes concurrently.
type Importer struct {
	catalog *refdata.Catalog
	players PlayerSource
	parser  *logparse.Parser
	newID   func() string
	logger  logger.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithParser sets the line parser.
func WithParser(p *logparse.Parser) Option {
	return func(im *Importer) {
		if p != nil {
			im.parser = p
		}
	}
}

// WithIDGenerator sets the raid run id generator.
func WithIDGenerator(newID func() string) Option {
	return func(im *Importer) {
		if newID != nil {
			im.newID = newID
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// New creates an Importer resolving reference data through catalog and
// players through players.
func New(catalog *refdata.Catalog, players PlayerSource, opts ...Option) *Importer {
	im := &Importer{
		catalog: catalog,
		players: players,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(im)
	}
	if im.parser == nil {
		im.parser = logparse.New()
	}
	if im.logger == nil {
		im.logger = logger.Get().Named("ingest")
	}
	return im
}

// Import reads the whole log and returns the kept runs and their intervals.
// Lines that cannot be used are skipped; only read and store failures are
// returned as errors. Running Import twice on one log yields two
// independent sets of runs.
func (im *Importer) Import(ctx context.Context, reportID string, r io.Reader) (*Result, error) {
	start := time.Now()

	players := NewPlayerTable(im.players, im.catalog)
	seg := newSegmenter(im.catalog, reportID, im.newID)
	trk := newTracker(im.catalog, players, reportID)
	res := &Result{}

	seg.onClose = func(run *model.RaidRun, kept, finalize bool, at time.Time) {
		if kept {
			res.Stats.RunsKept++
			metrics.RecordRaidRun("kept")
		} else {
			res.Stats.RunsDiscarded++
			metrics.RecordRaidRun("discarded")
			im.logger.Debug(ctx, "discarding raid run without raid", logger.String("run_id", run.ID))
		}
		if finalize {
			trk.finalize(at, seg.isDiscarded)
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	var last time.Time
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.Stats.LinesRead++
		metrics.RecordLineRead()

		if res.Stats.LinesRead%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ev, err := im.parser.Parse(line)
		if err != nil {
			im.skip(ctx, res, err, line)
			continue
		}
		res.Stats.Events++
		metrics.RecordEventParsed(string(ev.Kind))
		last = ev.TS

		if ev.Kind.IsEncounter() {
			if _, ok := im.catalog.Boss(ev.EncounterID); !ok {
				res.Stats.UnknownEncounters++
				im.logger.Debug(ctx, "unknown encounter", logger.Int("encounter_id", ev.EncounterID))
			}
		}

		run := seg.run()
		if err := trk.observe(ctx, ev, run); err != nil {
			return nil, err
		}
		seg.observe(ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if seg.current != nil {
		seg.close(last, true)
	}

	dropped, err := trk.resolveWorldBuffs(ctx, seg.isDiscarded)
	if err != nil {
		return nil, err
	}
	res.Stats.WorldBuffsDropped = dropped

	res.Runs = make([]model.RaidRun, 0, len(seg.kept))
	for _, run := range seg.kept {
		res.Runs = append(res.Runs, *run)
	}
	res.Intervals = trk.intervals(seg.isDiscarded)
	res.Stats.Intervals = len(res.Intervals)
	metrics.RecordUsageIntervals(len(res.Intervals))
	metrics.RecordIngestLatency(float64(time.Since(start).Milliseconds()))

	im.logger.Info(ctx, "log ingested",
		logger.String("report_id", reportID),
		logger.Int("lines", res.Stats.LinesRead),
		logger.Int("skipped", res.Stats.LinesSkipped),
		logger.Int("runs_kept", res.Stats.RunsKept),
		logger.Int("runs_discarded", res.Stats.RunsDiscarded),
		logger.Int("intervals", res.Stats.Intervals),
		logger.Int("players", players.Len()),
	)
	return res, nil
}

func (im *Importer) skip(ctx context.Context, res *Result, err error, line string) {
	res.Stats.LinesSkipped++
	reason := "malformed"
	if errors.Is(err, logparse.ErrUnsupportedEvent) {
		reason = "unsupported"
		res.Stats.Unsupported++
	} else {
		res.Stats.Malformed++
		im.logger.Debug(ctx, "skipping line", logger.Error(err), logger.String("line", line))
	}
	metrics.RecordLineSkipped(reason)
}
