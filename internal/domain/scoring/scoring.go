// Package scoring converts consumable usage within a raid run into points.
package scoring

import (
	"math"
	"time"

	"github.com/okian/raidep/internal/domain/interval"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
)

// Kind tags a Record's payload.
type Kind string

// Record kinds.
const (
	KindCounted Kind = "counted"
	KindUptime  Kind = "uptime"
)

// CountedUsage scores a usage-based consumable by number of uses.
type CountedUsage struct {
	ConsumableID int `json:"consumable_id"`
	TimesUsed    int `json:"times_used"`
	Points       int `json:"points"`
}

// UptimeUsage scores a consumable or group by the share of the run it was
// active. Exactly one of ConsumableID and GroupID is set.
type UptimeUsage struct {
	ConsumableID int               `json:"consumable_id,omitempty"`
	GroupID      int               `json:"group_id,omitempty"`
	Periods      []interval.Period `json:"periods"`
	Coefficient  float64           `json:"coefficient"`
	Points       int               `json:"points"`
}

// Record is one scored line of a report. Kind is fixed at construction and
// selects which of Counted and Uptime is set.
type Record struct {
	Kind    Kind          `json:"kind"`
	Points  int           `json:"points"`
	Counted *CountedUsage `json:"counted,omitempty"`
	Uptime  *UptimeUsage  `json:"uptime,omitempty"`
}

// NewCounted builds a counted record.
func NewCounted(consumableID, timesUsed, points int) Record {
	return Record{
		Kind:    KindCounted,
		Points:  points,
		Counted: &CountedUsage{ConsumableID: consumableID, TimesUsed: timesUsed, Points: points},
	}
}

// NewUptime builds an uptime record.
func NewUptime(u UptimeUsage) Record {
	return Record{Kind: KindUptime, Points: u.Points, Uptime: &u}
}

// Engine scores runs against the catalog's limits. It is safe for
// concurrent use; per-pass state lives in a UsageLedger.
type Engine struct {
	catalog *refdata.Catalog
}

// NewEngine creates an Engine.
func NewEngine(catalog *refdata.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// ScoreConsumable scores a time-based consumable from the player's merged
// intervals over the whole report.
func (e *Engine) ScoreConsumable(run model.RaidRun, cons model.Consumable, merged *interval.Set) Record {
	points, coef, clipped := Uptime(run, merged, cons.PointsOverRaid, cons.Required)
	return NewUptime(UptimeUsage{
		ConsumableID: cons.ID,
		Periods:      clipped,
		Coefficient:  coef,
		Points:       points,
	})
}

// ScoreGroup scores a group from the union of its members' intervals.
func (e *Engine) ScoreGroup(run model.RaidRun, group model.ConsumableGroup, merged *interval.Set) Record {
	points, coef, clipped := Uptime(run, merged, group.Points, group.Required)
	return NewUptime(UptimeUsage{
		GroupID:     group.ID,
		Periods:     clipped,
		Coefficient: coef,
		Points:      points,
	})
}

// ScoreUsage scores uses of a consumable in run. used is the number of
// activations attributed to the run. The clamps apply in order: the raid's
// usage limit, one credit for world buffs, then the report-wide cap
// against the ledger's running total.
func (e *Engine) ScoreUsage(run model.RaidRun, cons model.Consumable, playerID int64, used int, ledger *UsageLedger) Record {
	amount := used
	if limit, ok := e.catalog.UsageLimit(run.RaidID, cons.ID); ok && amount > limit {
		amount = limit
	}
	if cons.WorldBuff && amount > 1 {
		amount = 1
	}
	if cons.LimitOverReport > 0 && ledger != nil {
		amount = ledger.credit(playerID, cons.ID, amount, cons.LimitOverReport)
	}
	return NewCounted(cons.ID, amount, cons.PointsForUsage*amount)
}

// Uptime computes the piecewise uptime score of merged within run, scaled
// by the run's points coefficient. It also returns the uptime coefficient
// and the periods clipped to the run window.
//
// With c the coefficient, r the required and m the minimum uptime (m is 0
// for optional items):
//
//	no period in the window  -points if required, else 0
//	c >= r                   points
//	m <= c < r               linear from 0 at m to points at r
//	c < m                    linear from -points at 0 to 0 at m
func Uptime(run model.RaidRun, merged *interval.Set, points int, required bool) (score int, coefficient float64, clipped []interval.Period) {
	clipped = merged.Clip(interval.Period{Begin: run.Begin, End: run.End})

	raw := points
	switch {
	case len(clipped) == 0:
		if required {
			raw = -points
		} else {
			raw = 0
		}
	default:
		coefficient = Coefficient(interval.Total(clipped), run.Duration())
		raw = piecewise(coefficient, run.RequiredUptime, minimumFor(run, required), points)
	}

	return int(math.Round(float64(raw) * run.PointsCoefficient)), coefficient, clipped
}

// Coefficient returns uptime/duration, or 0 for an empty run.
func Coefficient(uptime, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(uptime) / float64(duration)
}

func minimumFor(run model.RaidRun, required bool) float64 {
	if !required {
		return 0
	}
	return run.MinimumUptime
}

func piecewise(c, r, m float64, points int) int {
	p := float64(points)
	switch {
	case c >= r:
		return points
	case c >= m:
		a := p / (r - m)
		b := -a * m
		return int(math.Round(c*a + b))
	default:
		a := p / m
		b := -p
		return int(math.Round(c*a + b))
	}
}

// UsageLedger tracks, for one aggregation pass, the uses already credited
// per player and consumable. It is not safe for concurrent use.
type UsageLedger struct {
	running map[ledgerKey]int
}

type ledgerKey struct {
	player     int64
	consumable int
}

// NewUsageLedger creates an empty ledger.
func NewUsageLedger() *UsageLedger {
	return &UsageLedger{running: make(map[ledgerKey]int)}
}

// credit clamps amount to capacity-running and adds the unclamped amount
// to the running total. The result goes negative once earlier runs have
// already exceeded the cap; callers keep it as is.
func (l *UsageLedger) credit(player int64, consumable, amount, capacity int) int {
	key := ledgerKey{player: player, consumable: consumable}
	running := l.running[key]
	l.running[key] = running + amount
	if left := capacity - running; amount > left {
		return left
	}
	return amount
}
