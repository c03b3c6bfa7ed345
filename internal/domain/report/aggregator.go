// Package report turns a report's raid runs and usage intervals into scored
// records per player and run.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/raidep/internal/domain/interval"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
	"github.com/okian/raidep/internal/domain/scoring"
	"github.com/okian/raidep/pkg/logger"
	"github.com/okian/raidep/pkg/metrics"
)

// Warning is a configuration gap found while aggregating. PlayerID is 0
// when the warning is not about a single player.
type Warning struct {
	Text     string
	PlayerID int64
}

// Input is everything recorded for one report.
type Input struct {
	Report    model.Report
	Runs      []model.RaidRun
	Intervals []model.UsageInterval
	Players   []model.Player
}

// Result holds the scored records keyed by player id and raid run id.
type Result struct {
	Records  map[int64]map[string][]scoring.Record
	Totals   map[int64]int
	Players  map[int64]model.Player
	Warnings []Warning
}

// Aggregator scores reports. It keeps no state between calls.
type Aggregator struct {
	catalog *refdata.Catalog
	engine  *scoring.Engine
	logger  logger.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Aggregator over catalog.
func New(catalog *refdata.Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{
		catalog: catalog,
		engine:  scoring.NewEngine(catalog),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("report")
	}
	return a
}

// playerUsage is one player's intervals prepared for scoring.
type playerUsage struct {
	merged map[int]*interval.Set  // consumable id -> report-wide union
	counts map[string]map[int]int // run id -> consumable id -> activations
}

func newPlayerUsage() *playerUsage {
	return &playerUsage{
		merged: make(map[int]*interval.Set),
		counts: make(map[string]map[int]int),
	}
}

func (u *playerUsage) add(iv model.UsageInterval) {
	p := interval.Period{Begin: iv.Begin, End: iv.End}

	set, ok := u.merged[iv.ConsumableID]
	if !ok {
		set = interval.Merge()
		u.merged[iv.ConsumableID] = set
	}
	set.Insert(p)

	runCounts, ok := u.counts[iv.RaidRunID]
	if !ok {
		runCounts = make(map[int]int)
		u.counts[iv.RaidRunID] = runCounts
	}
	runCounts[iv.ConsumableID]++
}

func (u *playerUsage) consumable(id int) *interval.Set {
	if set, ok := u.merged[id]; ok {
		return set
	}
	return interval.Merge()
}

func (u *playerUsage) group(g model.ConsumableGroup) *interval.Set {
	union := interval.Merge()
	for _, id := range g.Consumables {
		if set, ok := u.merged[id]; ok {
			for _, p := range set.Periods() {
				union.Insert(p)
			}
		}
	}
	return union
}

// Aggregate scores every player with at least one interval in the report
// against every run of the report, in ascending player id order. A run
// without any usage by the player still scores the penalties for missing
// required items. Players without a role, a class or a matching
// consumables set produce a warning and are skipped.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	usage := make(map[int64]*playerUsage)
	for _, iv := range in.Intervals {
		u, ok := usage[iv.PlayerID]
		if !ok {
			u = newPlayerUsage()
			usage[iv.PlayerID] = u
		}
		u.add(iv)
	}

	players := make(map[int64]model.Player, len(in.Players))
	for _, p := range in.Players {
		players[p.ID] = p
	}

	ids := make([]int64, 0, len(usage))
	for id := range usage {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := &Result{
		Records: make(map[int64]map[string][]scoring.Record),
		Totals:  make(map[int64]int),
		Players: make(map[int64]model.Player),
	}
	warnings := newWarningSet()
	ledger := scoring.NewUsageLedger()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, ok := players[id]
		if !ok {
			a.logger.Warn(ctx, "intervals reference an unknown player",
				logger.String("report_id", in.Report.ID),
				logger.Int64("player_id", id))
			warnings.add(fmt.Sprintf("player #%d is not in the store", id), id)
			continue
		}
		if p.Role == "" {
			warnings.add(fmt.Sprintf("player %s has no role", p.Name), id)
			continue
		}
		if p.Class == "" {
			warnings.add(fmt.Sprintf("player %s has no class", p.Name), id)
			continue
		}
		set, ok := a.catalog.Set(p.Class, p.Role)
		if !ok {
			warnings.add(fmt.Sprintf("no consumables set for class %s and role %s", p.Class, p.Role), 0)
			continue
		}

		res.Players[id] = p
		res.Totals[id] = 0
		byRun := make(map[string][]scoring.Record)
		for _, run := range in.Runs {
			records := a.scoreRun(run, set, id, usage[id], ledger, in.Report.HardMode)
			for _, rec := range records {
				res.Totals[id] += rec.Points
			}
			byRun[run.ID] = records
		}
		res.Records[id] = byRun
	}

	res.Warnings = warnings.list()
	metrics.RecordReportWarnings(len(res.Warnings))
	metrics.RecordAggregateLatency(float64(time.Since(start).Milliseconds()))
	a.logger.Debug(ctx, "report aggregated",
		logger.String("report_id", in.Report.ID),
		logger.Int("players", len(res.Players)),
		logger.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

func (a *Aggregator) scoreRun(run model.RaidRun, set model.ConsumablesSet, playerID int64, u *playerUsage, ledger *scoring.UsageLedger, hardMode bool) []scoring.Record {
	records := make([]scoring.Record, 0, len(set.Consumables)+len(set.Groups))

	for _, cid := range set.Consumables {
		cons, ok := a.catalog.Consumable(cid)
		if !ok {
			continue
		}
		if cons.UsageBased || hardMode {
			records = append(records, a.engine.ScoreUsage(run, cons, playerID, u.counts[run.ID][cid], ledger))
			continue
		}
		records = append(records, a.engine.ScoreConsumable(run, cons, u.consumable(cid)))
	}

	for _, gid := range set.Groups {
		g, ok := a.catalog.Group(gid)
		if !ok {
			continue
		}
		records = append(records, a.engine.ScoreGroup(run, g, u.group(g)))
	}
	return records
}

// Export renders name,points lines sorted by name, without a header.
func Export(res *Result) string {
	type row struct {
		name   string
		points int
	}
	rows := make([]row, 0, len(res.Totals))
	for id, total := range res.Totals {
		rows = append(rows, row{name: res.Players[id].Name, points: total})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s,%d", r.name, r.points)
	}
	return strings.Join(lines, "\n")
}

type warningSet struct {
	seen  map[Warning]struct{}
	order []Warning
}

func newWarningSet() *warningSet {
	return &warningSet{seen: make(map[Warning]struct{})}
}

func (s *warningSet) add(text string, playerID int64) {
	w := Warning{Text: text, PlayerID: playerID}
	if _, ok := s.seen[w]; ok {
		return
	}
	s.seen[w] = struct{}{}
	s.order = append(s.order, w)
}

func (s *warningSet) list() []Warning {
	out := make([]Warning, len(s.order))
	copy(out, s.order)
	return out
}
