// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the command line tools.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/raidep/internal/adapters/mq/queue"
	workerpool "github.com/okian/raidep/internal/adapters/mq/worker"
	repository "github.com/okian/raidep/internal/adapters/repository"
	"github.com/okian/raidep/internal/domain/dedupe"
	"github.com/okian/raidep/internal/domain/ingest"
	"github.com/okian/raidep/internal/domain/logparse"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
	"github.com/okian/raidep/internal/domain/report"
	"github.com/okian/raidep/internal/domain/types"
	"github.com/okian/raidep/pkg/logger"
	"github.com/okian/raidep/pkg/metrics"
)

// SubmitOptions describes an uploaded log.
type SubmitOptions struct {
	Static   int
	HardMode bool
}

// SubmitResult is the outcome of Submit. Duplicate is true when the log
// was already submitted; ReportID then names the first report.
type SubmitResult struct {
	ReportID  string
	Status    model.Status
	Duplicate bool
}

// ReportView is a finished report with its scored records.
type ReportView struct {
	Report model.Report
	Runs   []model.RaidRun
	Result *report.Result
}

// FlushResult is the outcome of Flush.
type FlushResult struct {
	Players        int
	AlreadyFlushed bool
}

// Service ingests logs, scores reports and keeps the standings.
type Service struct {
	mu sync.RWMutex

	// Core components
	catalog    *refdata.Catalog
	store      repository.Store
	standings  *repository.Standings
	ledger     dedupe.Ledger
	queue      eventqueue.Queue
	workerPool *workerpool.Pool
	importer   *ingest.Importer
	aggregator *report.Aggregator
	parser     *logparse.Parser

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	newID       func() string
	now         func() time.Time

	// Aggregation results per report id
	cacheMu sync.RWMutex
	cache   map[string]*report.Result

	flushMu sync.Mutex

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued ingestion jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many log digests the ledger keeps in memory.
// 0 keeps all of them.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithCatalog sets the reference data.
func WithCatalog(c *refdata.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithStore sets the persistence layer. The default is an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithParser sets the combat log line parser.
func WithParser(p *logparse.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithIDGenerator sets the generator used for report and raid run ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithClock sets the clock used for report creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1_024,
		dedupeSize:  10_000,
		newID:       uuid.NewString,
		now:         time.Now,
		cache:       make(map[string]*report.Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and starts the worker pool. The
// standings are rebuilt from reports flushed before a restart.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting report service...")

	if s.catalog == nil {
		c, err := refdata.New()
		if err != nil {
			return fmt.Errorf("empty catalog: %w", err)
		}
		s.catalog = c
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.parser == nil {
		s.parser = logparse.New()
	}

	s.standings = repository.NewStandings()
	s.ledger = dedupe.NewInMemoryLedger(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithLookup(storeLookup{store: s.store}),
	)
	s.importer = ingest.New(s.catalog, s.store,
		ingest.WithParser(s.parser),
		ingest.WithIDGenerator(s.newID),
	)
	s.aggregator = report.New(s.catalog)
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	if err := s.restoreStandings(ctx); err != nil {
		return err
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.process))
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "report service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued jobs and shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping report service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "report service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Submit records a new report for payload and queues it for ingestion.
// A payload whose digest is already owned by a report is not ingested
// again; the owner's id is returned with Duplicate set.
func (s *Service) Submit(ctx context.Context, payload []byte, opts SubmitOptions) (SubmitResult, error) {
	rep, dup, err := s.claim(ctx, payload, opts)
	if err != nil || dup {
		return SubmitResult{ReportID: rep.ID, Status: rep.Status, Duplicate: dup}, err
	}

	job := eventqueue.Job{ReportID: rep.ID, Payload: payload, EnqueuedAt: s.now()}
	if err := s.queue.Offer(ctx, job); err != nil {
		s.ledger.Release(ctx, rep.Digest)
		s.fail(ctx, rep, err)
		return SubmitResult{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
	}

	s.logger.Debug(ctx, "report queued", logger.String("report_id", rep.ID), logger.Int("bytes", len(payload)))
	return SubmitResult{ReportID: rep.ID, Status: model.StatusQueued}, nil
}

// Import records a new report for payload and ingests it synchronously.
func (s *Service) Import(ctx context.Context, payload []byte, opts SubmitOptions) (model.Report, bool, error) {
	rep, dup, err := s.claim(ctx, payload, opts)
	if err != nil || dup {
		return rep, dup, err
	}
	if err := s.Ingest(ctx, rep.ID, bytes.NewReader(payload)); err != nil {
		return model.Report{}, false, err
	}
	rep, err = s.store.GetReport(ctx, rep.ID)
	return rep, false, err
}

// claim creates a queued report for payload unless its digest is owned.
func (s *Service) claim(ctx context.Context, payload []byte, opts SubmitOptions) (model.Report, bool, error) {
	if err := s.ready(); err != nil {
		return model.Report{}, false, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return model.Report{}, false, ErrEmptyLog
	}

	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])
	id := s.newID()

	owner, claimed := s.ledger.Claim(ctx, digest, id)
	if !claimed {
		metrics.RecordReportDuplicate()
		s.logger.Info(ctx, "duplicate log submitted", logger.String("report_id", owner))
		rep, err := s.store.GetReport(ctx, owner)
		if err != nil {
			rep = model.Report{ID: owner}
		}
		return rep, true, nil
	}

	rep := model.Report{
		ID:        id,
		Digest:    digest,
		Static:    opts.Static,
		HardMode:  opts.HardMode,
		Status:    model.StatusQueued,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateReport(ctx, rep); err != nil {
		s.ledger.Release(ctx, digest)
		return model.Report{}, false, fmt.Errorf("create report: %w", err)
	}
	metrics.RecordReportStatus(string(model.StatusQueued))
	return rep, false, nil
}

func (s *Service) process(ctx context.Context, job eventqueue.Job) error {
	return s.Ingest(ctx, job.ReportID, bytes.NewReader(job.Payload))
}

// Ingest runs one ingestion pass over r for an existing report, replacing
// anything recorded for it before. A failed pass marks the report failed
// and releases its digest so the log can be submitted again.
func (s *Service) Ingest(ctx context.Context, reportID string, r io.Reader) error {
	rep, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}

	rep.Status = model.StatusProcessing
	rep.Error = ""
	if err := s.store.UpdateReport(ctx, rep); err != nil {
		return err
	}
	metrics.RecordReportStatus(string(model.StatusProcessing))
	s.invalidate(reportID)

	if err := s.ingest(ctx, &rep, r); err != nil {
		s.ledger.Release(ctx, rep.Digest)
		s.fail(ctx, rep, err)
		return err
	}

	rep.Status = model.StatusDone
	if err := s.store.UpdateReport(ctx, rep); err != nil {
		return err
	}
	metrics.RecordReportStatus(string(model.StatusDone))
	return nil
}

func (s *Service) ingest(ctx context.Context, rep *model.Report, r io.Reader) error {
	if err := s.store.DeleteReportData(ctx, rep.ID); err != nil {
		return fmt.Errorf("clear report data: %w", err)
	}

	res, err := s.importer.Import(ctx, rep.ID, r)
	if err != nil {
		return fmt.Errorf("import log: %w", err)
	}
	for _, run := range res.Runs {
		if err := s.store.SaveRaidRun(ctx, run); err != nil {
			return fmt.Errorf("save raid run: %w", err)
		}
	}
	if err := s.store.AddIntervals(ctx, res.Intervals); err != nil {
		return fmt.Errorf("save intervals: %w", err)
	}

	rep.RaidDay, rep.RaidName = report.Summarize(s.catalog, res.Runs)
	rep.LinesRead = res.Stats.LinesRead
	rep.LinesSkipped = res.Stats.LinesSkipped
	return nil
}

func (s *Service) fail(ctx context.Context, rep model.Report, cause error) {
	rep.Status = model.StatusFailed
	rep.Error = cause.Error()
	if err := s.store.UpdateReport(ctx, rep); err != nil {
		s.logger.Error(ctx, "failed to mark report failed", logger.String("report_id", rep.ID), logger.Error(err))
	}
	metrics.RecordReportStatus(string(model.StatusFailed))
	metrics.RecordErrorByComponent("service", "ingest_failed")
	s.logger.Error(ctx, "report ingestion failed", logger.String("report_id", rep.ID), logger.Error(cause))
}

// Reports lists all reports, newest first.
func (s *Service) Reports(ctx context.Context) ([]model.Report, error) {
	return s.store.ListReports(ctx)
}

// Report returns a finished report with its scored records. Reports that
// are not done yield ErrNotReady.
func (s *Service) Report(ctx context.Context, id string) (ReportView, error) {
	rep, err := s.store.GetReport(ctx, id)
	if err != nil {
		return ReportView{}, err
	}
	if rep.Status != model.StatusDone {
		return ReportView{Report: rep}, fmt.Errorf("%w: report %s is %s", ErrNotReady, id, rep.Status)
	}

	runs, err := s.store.RaidRuns(ctx, id)
	if err != nil {
		return ReportView{}, err
	}
	res, err := s.aggregate(ctx, rep, runs)
	if err != nil {
		return ReportView{}, err
	}
	return ReportView{Report: rep, Runs: runs, Result: res}, nil
}

// Export renders the report totals as name,points lines sorted by name.
func (s *Service) Export(ctx context.Context, id string) (string, error) {
	view, err := s.Report(ctx, id)
	if err != nil {
		return "", err
	}
	return report.Export(view.Result), nil
}

// Flush credits each player's report total to the standings. A report is
// credited at most once.
func (s *Service) Flush(ctx context.Context, id string) (FlushResult, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	view, err := s.Report(ctx, id)
	if err != nil {
		return FlushResult{}, err
	}
	if view.Report.Flushed {
		return FlushResult{Players: len(view.Result.Totals), AlreadyFlushed: true}, nil
	}

	// Persist the flag before crediting so a failed write can be retried
	// without crediting twice.
	view.Report.Flushed = true
	if err := s.store.UpdateReport(ctx, view.Report); err != nil {
		return FlushResult{}, fmt.Errorf("mark report %s flushed: %w", id, err)
	}
	s.credit(ctx, view.Result)
	s.logger.Info(ctx, "report flushed", logger.String("report_id", id), logger.Int("players", len(view.Result.Totals)))
	return FlushResult{Players: len(view.Result.Totals)}, nil
}

func (s *Service) credit(ctx context.Context, res *report.Result) {
	ids := make([]int64, 0, len(res.Totals))
	for id := range res.Totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.standings.AddPoints(ctx, res.Players[id].Name, res.Totals[id])
	}
}

func (s *Service) restoreStandings(ctx context.Context) error {
	reports, err := s.store.ListReports(ctx)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	restored := 0
	for _, rep := range reports {
		if !rep.Flushed || rep.Status != model.StatusDone {
			continue
		}
		runs, err := s.store.RaidRuns(ctx, rep.ID)
		if err != nil {
			return err
		}
		res, err := s.aggregate(ctx, rep, runs)
		if err != nil {
			return err
		}
		s.credit(ctx, res)
		restored++
	}
	if restored > 0 {
		s.logger.Info(ctx, "standings restored", logger.Int("reports", restored))
	}
	return nil
}

// aggregate scores a report, reusing a cached result when present.
func (s *Service) aggregate(ctx context.Context, rep model.Report, runs []model.RaidRun) (*report.Result, error) {
	s.cacheMu.RLock()
	cached, ok := s.cache[rep.ID]
	s.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	intervals, err := s.store.Intervals(ctx, rep.ID)
	if err != nil {
		return nil, err
	}
	players, err := s.players(ctx, intervals)
	if err != nil {
		return nil, err
	}

	res, err := s.aggregator.Aggregate(ctx, report.Input{Report: rep, Runs: runs, Intervals: intervals, Players: players})
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[rep.ID] = res
	s.cacheMu.Unlock()
	return res, nil
}

// players loads the players referenced by intervals, filling a missing
// role or class from the configured roster.
func (s *Service) players(ctx context.Context, intervals []model.UsageInterval) ([]model.Player, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, iv := range intervals {
		if _, ok := seen[iv.PlayerID]; ok {
			continue
		}
		seen[iv.PlayerID] = struct{}{}
		ids = append(ids, iv.PlayerID)
	}

	players, err := s.store.Players(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, p := range players {
		known, ok := s.catalog.Roster(p.Name)
		if !ok {
			continue
		}
		if p.Role == "" {
			players[i].Role = known.Role
		}
		if p.Class == "" {
			players[i].Class = known.Class
		}
	}
	return players, nil
}

func (s *Service) invalidate(reportID string) {
	s.cacheMu.Lock()
	delete(s.cache, reportID)
	s.cacheMu.Unlock()
}

// TopN returns the top n standings entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.standings.TopN(ctx, n)
}

// Rank returns the standings entry for a player name.
func (s *Service) Rank(ctx context.Context, name string) (types.Entry, error) {
	if err := s.ready(); err != nil {
		return types.Entry{}, err
	}
	return s.standings.Rank(ctx, name)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["standingsPlayers"] = s.standings.Count(ctx)
		stats["knownLogs"] = s.ledger.Size()

		s.cacheMu.RLock()
		stats["cachedReports"] = len(s.cache)
		s.cacheMu.RUnlock()

		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// storeLookup lets the ledger recognize logs ingested before a restart.
// Failed reports do not own their digest.
type storeLookup struct {
	store repository.Store
}

func (l storeLookup) OwnerOf(ctx context.Context, digest string) (string, bool) {
	rep, err := l.store.ReportByDigest(ctx, digest)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			metrics.RecordErrorByComponent("service", "digest_lookup")
		}
		return "", false
	}
	if rep.Status == model.StatusFailed {
		return "", false
	}
	return rep.ID, true
}
