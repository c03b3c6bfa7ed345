package ingest_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/okian/raidep/internal/domain/ingest"
	"github.com/okian/raidep/internal/domain/logparse"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
	"github.com/okian/raidep/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	spellFlask      = 17628
	spellSongflower = 15366
)

var base = time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func stamp(sec int) string { return at(sec).Format("1/2 15:04:05.000") }

func encounter(sec int, kind model.Kind, id int) string {
	return fmt.Sprintf("%s  %s,%d,\"Boss\",9,40", stamp(sec), kind, id)
}

func spell(sec int, kind model.Kind, guid, name string, spellID int) string {
	return fmt.Sprintf("%s  %s,%s,\"%s-Stormrage\",0x514,0x0,%s,\"%s-Stormrage\",0x514,0x0,%d,\"Spell\",0x1,BUFF",
		stamp(sec), kind, guid, name, guid, name, spellID)
}

func unitDied(sec int) string {
	return fmt.Sprintf("%s  UNIT_DIED,0000000000000000,nil,0x80000000,0x80000000,Creature-0-1,\"Core Hound\",0xa48,0x0", stamp(sec))
}

func combatantInfo(sec int, guid string, auras ...int) string {
	ids := make([]string, len(auras))
	for i, a := range auras {
		ids[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s  COMBATANT_INFO,%s,1,2,3,[(1,2)],[%s]", stamp(sec), guid, strings.Join(ids, ","))
}

type fakePlayers struct {
	byName map[string]model.Player
}

func (f *fakePlayers) GetOrCreatePlayer(_ context.Context, seed model.Player) (model.Player, error) {
	if p, ok := f.byName[seed.Name]; ok {
		return p, nil
	}
	seed.ID = int64(len(f.byName) + 1)
	f.byName[seed.Name] = seed
	return seed, nil
}

func testCatalog() *refdata.Catalog {
	cat, err := refdata.New(
		refdata.WithRaids(
			model.Raid{ID: 1, Name: "Molten Core", DefaultRequiredUptime: 0.85, DefaultMinimumUptime: 0.5, DefaultPointsCoefficient: 1},
			model.Raid{ID: 3, Name: "Blackwing Lair", DefaultRequiredUptime: 0.9, DefaultMinimumUptime: 0.4, DefaultPointsCoefficient: 2},
		),
		refdata.WithBosses(
			model.Boss{EncounterID: 663, RaidID: 1, Name: "Lucifron"},
			model.Boss{EncounterID: 672, RaidID: 1, Name: "Ragnaros", EndsRaid: true},
			model.Boss{EncounterID: 610, RaidID: 3, Name: "Razorgore the Untamed"},
			model.Boss{EncounterID: 617, RaidID: 3, Name: "Nefarian", EndsRaid: true},
		),
		refdata.WithConsumables(
			model.Consumable{ID: 1, Name: "Flask of Supreme Power", SpellID: spellFlask, PointsOverRaid: 100, Required: true},
			model.Consumable{ID: 2, Name: "Songflower Serenade", SpellID: spellSongflower, WorldBuff: true, UsageBased: true, PointsForUsage: 10},
		),
		refdata.WithPlayers(model.Player{Name: "Jaina", Class: "Mage", Role: "Caster"}),
	)
	if err != nil {
		panic(err)
	}
	return cat
}

func newImporter(players *fakePlayers) *ingest.Importer {
	n := 0
	return ingest.New(testCatalog(), players,
		ingest.WithParser(logparse.New(logparse.WithYear(2024), logparse.WithLocation(time.UTC))),
		ingest.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}),
	)
}

func run(lines ...string) (*ingest.Result, *fakePlayers, error) {
	players := &fakePlayers{byName: map[string]model.Player{}}
	res, err := newImporter(players).Import(context.Background(), "report-1", strings.NewReader(strings.Join(lines, "\n")))
	return res, players, err
}

func TestSegmentation(t *testing.T) {
	_ = logger.Init(logger.WithWriter(io.Discard))

	Convey("Given a log with one raid-ending encounter", t, func() {
		res, _, err := run(
			encounter(0, model.KindEncounterStart, 672),
			encounter(600, model.KindEncounterEnd, 672),
		)

		Convey("Then exactly one closed run is produced", func() {
			So(err, ShouldBeNil)
			So(len(res.Runs), ShouldEqual, 1)
			r := res.Runs[0]
			So(r.RaidID, ShouldEqual, 1)
			So(r.ReportID, ShouldEqual, "report-1")
			So(r.Begin.Equal(at(0)), ShouldBeTrue)
			So(r.End.Equal(at(600)), ShouldBeTrue)
			So(res.Stats.RunsKept, ShouldEqual, 1)
		})
	})

	Convey("Given a log that changes raid without a raid-ending kill", t, func() {
		res, _, err := run(
			encounter(0, model.KindEncounterStart, 663),
			encounter(100, model.KindEncounterEnd, 663),
			encounter(500, model.KindEncounterStart, 610),
			encounter(900, model.KindEncounterEnd, 617),
		)

		Convey("Then two runs are produced and the first closes at the second start", func() {
			So(err, ShouldBeNil)
			So(len(res.Runs), ShouldEqual, 2)
			So(res.Runs[0].RaidID, ShouldEqual, 1)
			So(res.Runs[0].End.Equal(at(500)), ShouldBeTrue)
			So(res.Runs[1].RaidID, ShouldEqual, 3)
			So(res.Runs[1].Begin.Equal(at(500)), ShouldBeTrue)
			So(res.Runs[1].End.Equal(at(900)), ShouldBeTrue)
		})

		Convey("Then the new run copies its raid's thresholds", func() {
			So(res.Runs[0].RequiredUptime, ShouldEqual, 0.85)
			So(res.Runs[1].RequiredUptime, ShouldEqual, 0.9)
			So(res.Runs[1].MinimumUptime, ShouldEqual, 0.4)
			So(res.Runs[1].PointsCoefficient, ShouldEqual, 2.0)
		})
	})

	Convey("Given a log that ends without a recognized raid", t, func() {
		res, _, err := run(
			spell(0, model.KindSpellAuraApplied, "Player-1", "Jaina", spellFlask),
			unitDied(30),
			encounter(60, model.KindEncounterStart, 9999),
		)

		Convey("Then the run and its intervals are discarded", func() {
			So(err, ShouldBeNil)
			So(res.Runs, ShouldBeEmpty)
			So(res.Intervals, ShouldBeEmpty)
			So(res.Stats.RunsDiscarded, ShouldEqual, 1)
			So(res.Stats.UnknownEncounters, ShouldEqual, 1)
		})
	})

	Convey("Given a raid-ending kill on a run that never saw a start", t, func() {
		res, _, err := run(
			spell(0, model.KindSpellAuraApplied, "Player-1", "Jaina", spellFlask),
			encounter(60, model.KindEncounterEnd, 672),
			encounter(100, model.KindEncounterStart, 663),
			encounter(400, model.KindEncounterEnd, 672),
		)

		Convey("Then only the bound run survives", func() {
			So(err, ShouldBeNil)
			So(len(res.Runs), ShouldEqual, 1)
			So(res.Runs[0].Begin.Equal(at(100)), ShouldBeTrue)
			So(res.Intervals, ShouldBeEmpty)
			So(res.Stats.RunsDiscarded, ShouldEqual, 1)
		})
	})

	Convey("Given a log whose last run is still open", t, func() {
		res, _, err := run(
			unitDied(0),
			encounter(50, model.KindEncounterStart, 663),
			spell(80, model.KindSpellAuraApplied, "Player-1", "Jaina", spellFlask),
			unitDied(300),
		)

		Convey("Then it closes at the last timestamp and open intervals finalize there", func() {
			So(err, ShouldBeNil)
			So(len(res.Runs), ShouldEqual, 1)
			So(res.Runs[0].Begin.Equal(at(0)), ShouldBeTrue)
			So(res.Runs[0].End.Equal(at(300)), ShouldBeTrue)
			So(len(res.Intervals), ShouldEqual, 1)
			So(res.Intervals[0].End.Equal(at(300)), ShouldBeTrue)
		})
	})

	Convey("Given encounters the catalog does not know", t, func() {
		res, _, err := run(
			encounter(0, model.KindEncounterStart, 999),
			encounter(30, model.KindEncounterStart, 663),
			encounter(60, model.KindEncounterEnd, 999),
			encounter(600, model.KindEncounterEnd, 672),
		)

		Convey("Then the run begins at the first known start", func() {
			So(err, ShouldBeNil)
			So(len(res.Runs), ShouldEqual, 1)
			So(res.Runs[0].RaidID, ShouldEqual, 1)
			So(res.Runs[0].Begin.Equal(at(30)), ShouldBeTrue)
		})

		Convey("Then an unknown end does not close the run", func() {
			So(res.Runs[0].End.Equal(at(600)), ShouldBeTrue)
			So(res.Stats.RunsKept, ShouldEqual, 1)
		})
	})
}

func TestUsageTracking(t *testing.T) {
	_ = logger.Init(logger.WithWriter(io.Discard))

	Convey("Given a raid with repeated flask applications", t, func() {
		res, players, err := run(
			encounter(0, model.KindEncounterStart, 663),
			spell(10, model.KindSpellAuraApplied, "Player-1", "Jaina", spellFlask),
			spell(20, model.KindSpellAuraApplied, "Player-1", "Jaina", spellFlask),
			spell(30, model.KindSpellAuraRemoved, "Player-1", "Jaina", spellFlask),
			spell(35, model.KindSpellAuraRemoved, "Player-1", "Jaina", spellFlask),
			spell(40, model.KindSpellCastStart, "Player-2", "Thrall", spellFlask),
			encounter(100, model.KindEncounterEnd, 672),
		)

		Convey("Then a re-application closes the open interval and opens a new one", func() {
			So(err, ShouldBeNil)
			So(len(res.Intervals), ShouldEqual, 3)

			jaina := players.byName["Jaina"]
			So(jaina.Role, ShouldEqual, "Caster")
			So(res.Intervals[0].PlayerID, ShouldEqual, jaina.ID)
			So(res.Intervals[0].Begin.Equal(at(10)), ShouldBeTrue)
			So(res.Intervals[0].End.Equal(at(20)), ShouldBeTrue)
			So(res.Intervals[1].Begin.Equal(at(20)), ShouldBeTrue)
			So(res.Intervals[1].End.Equal(at(30)), ShouldBeTrue)
		})

		Convey("Then intervals still open at the raid end close there", func() {
			thrall := players.byName["Thrall"]
			So(res.Intervals[2].PlayerID, ShouldEqual, thrall.ID)
			So(res.Intervals[2].Begin.Equal(at(40)), ShouldBeTrue)
			So(res.Intervals[2].End.Equal(at(100)), ShouldBeTrue)
			So(res.Intervals[2].RaidRunID, ShouldEqual, res.Runs[0].ID)
		})
	})

	Convey("Given combatant info world buff snapshots", t, func() {
		res, players, err := run(
			encounter(0, model.KindEncounterStart, 663),
			combatantInfo(1, "Player-1", spellSongflower, spellFlask),
			combatantInfo(1, "Player-9", spellSongflower),
			spell(5, model.KindSpellCastSuccess, "Player-1", "Jaina", 1),
			encounter(100, model.KindEncounterEnd, 672),
		)

		Convey("Then resolved GUIDs get zero-length world buff intervals", func() {
			So(err, ShouldBeNil)
			So(len(res.Intervals), ShouldEqual, 1)
			iv := res.Intervals[0]
			So(iv.PlayerID, ShouldEqual, players.byName["Jaina"].ID)
			So(iv.ConsumableID, ShouldEqual, 2)
			So(iv.Begin.Equal(at(1)), ShouldBeTrue)
			So(iv.End.Equal(at(1)), ShouldBeTrue)
			So(res.Stats.WorldBuffsDropped, ShouldEqual, 1)
		})
	})

	Convey("Given an aura removal without a prior application", t, func() {
		res, _, err := run(
			encounter(0, model.KindEncounterStart, 663),
			spell(10, model.KindSpellAuraRemoved, "Player-1", "Jaina", spellFlask),
			encounter(100, model.KindEncounterEnd, 672),
		)

		Convey("Then no interval is recorded", func() {
			So(err, ShouldBeNil)
			So(len(res.Runs), ShouldEqual, 1)
			So(res.Intervals, ShouldBeEmpty)
		})
	})

	Convey("Given noise in the log", t, func() {
		res, _, err := run(
			encounter(0, model.KindEncounterStart, 663),
			stamp(1)+"  SWING_DAMAGE,Player-1,\"Jaina\"",
			"garbage",
			"",
			stamp(2)+"  ENCOUNTER_END,notanumber",
			spell(3, model.KindSpellAuraApplied, "Player-1", "Jaina", 12345),
			encounter(100, model.KindEncounterEnd, 672),
		)

		Convey("Then bad lines are counted and skipped", func() {
			So(err, ShouldBeNil)
			So(res.Stats.LinesRead, ShouldEqual, 6)
			So(res.Stats.LinesSkipped, ShouldEqual, 3)
			So(res.Stats.Unsupported, ShouldEqual, 1)
			So(res.Stats.Malformed, ShouldEqual, 2)
			So(res.Stats.Events, ShouldEqual, 3)
			So(res.Intervals, ShouldBeEmpty)
			So(len(res.Runs), ShouldEqual, 1)
		})
	})
}
