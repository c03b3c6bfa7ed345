package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/raidep/internal/domain/interval"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
	scoring "github.com/okian/raidep/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func period(from, to int) interval.Period {
	return interval.Period{Begin: at(from), End: at(to)}
}

// thousandSecondRun spans 1000s with r=0.85 and m=0.5.
func thousandSecondRun() model.RaidRun {
	return model.RaidRun{
		ID:                "run-1",
		RaidID:            1,
		Begin:             at(0),
		End:               at(1000),
		RequiredUptime:    0.85,
		MinimumUptime:     0.5,
		PointsCoefficient: 1,
	}
}

func TestUptime(t *testing.T) {
	Convey("Given a 1000 second run with r=0.85 and m=0.5", t, func() {
		run := thousandSecondRun()

		Convey("When the item was active for 900 seconds", func() {
			score, coef, clipped := scoring.Uptime(run, interval.Merge(period(0, 900)), 100, true)

			Convey("Then it earns full points", func() {
				So(score, ShouldEqual, 100)
				So(coef, ShouldAlmostEqual, 0.9)
				So(clipped, ShouldHaveLength, 1)
			})
		})

		Convey("When the item was active for 400 seconds", func() {
			score, _, _ := scoring.Uptime(run, interval.Merge(period(0, 400)), 100, true)

			Convey("Then it falls on the negative slope", func() {
				So(score, ShouldEqual, -20)
			})
		})

		Convey("When the item was active for 700 seconds", func() {
			score, _, _ := scoring.Uptime(run, interval.Merge(period(0, 700)), 100, true)

			Convey("Then it falls on the positive slope", func() {
				So(score, ShouldEqual, 57)
			})
		})

		Convey("When the item was active for exactly the required share", func() {
			run.PointsCoefficient = 1.5
			score, coef, _ := scoring.Uptime(run, interval.Merge(period(0, 850)), 100, true)

			Convey("Then it earns points scaled by the coefficient", func() {
				So(coef, ShouldEqual, 0.85)
				So(score, ShouldEqual, 150)
			})
		})

		Convey("When the item never overlaps the run", func() {
			merged := interval.Merge(period(2000, 2100))

			Convey("Then a required item loses its points", func() {
				score, coef, clipped := scoring.Uptime(run, merged, 40, true)
				So(score, ShouldEqual, -40)
				So(coef, ShouldEqual, 0)
				So(clipped, ShouldBeEmpty)
			})

			Convey("And an optional item scores zero", func() {
				score, _, _ := scoring.Uptime(run, merged, 40, false)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When an optional item has low uptime", func() {
			score, _, _ := scoring.Uptime(run, interval.Merge(period(0, 100)), 85, false)

			Convey("Then the minimum is treated as zero and the score stays non-negative", func() {
				So(score, ShouldEqual, 10)
			})
		})

		Convey("When intervals extend past the run", func() {
			merged := interval.Merge(period(-500, 200), period(900, 1500))
			score, coef, clipped := scoring.Uptime(run, merged, 100, true)

			Convey("Then only the clipped share counts", func() {
				So(clipped, ShouldHaveLength, 2)
				So(clipped[0].Begin.Equal(at(0)), ShouldBeTrue)
				So(clipped[1].End.Equal(at(1000)), ShouldBeTrue)
				So(coef, ShouldAlmostEqual, 0.3)
				So(score, ShouldEqual, -40)
			})
		})
	})

	Convey("Given a run without a duration", t, func() {
		run := thousandSecondRun()
		run.End = run.Begin

		Convey("When an interval touches the run instant", func() {
			score, coef, clipped := scoring.Uptime(run, interval.Merge(period(0, 0)), 100, true)

			Convey("Then the coefficient is zero", func() {
				So(clipped, ShouldHaveLength, 1)
				So(coef, ShouldEqual, 0)
				So(score, ShouldEqual, -100)
			})
		})
	})
}

func TestCoefficient(t *testing.T) {
	Convey("Given uptime and a duration", t, func() {
		So(scoring.Coefficient(time.Minute, 2*time.Minute), ShouldEqual, 0.5)
		So(scoring.Coefficient(time.Minute, 0), ShouldEqual, 0)
		So(scoring.Coefficient(time.Minute, -time.Second), ShouldEqual, 0)
	})
}

func testCatalog() *refdata.Catalog {
	c, err := refdata.New(
		refdata.WithRaids(model.Raid{ID: 1, Name: "Molten Core"}),
		refdata.WithConsumables(
			model.Consumable{ID: 1, Name: "Major Mana Potion", SpellID: 17531, UsageBased: true, PointsForUsage: 4, Required: true},
			model.Consumable{ID: 2, Name: "Rallying Cry", SpellID: 22888, UsageBased: true, WorldBuff: true, PointsForUsage: 10, Required: true},
			model.Consumable{ID: 3, Name: "Greater Fire Protection Potion", SpellID: 17543, UsageBased: true, PointsForUsage: 5, Required: true, LimitOverReport: 3},
			model.Consumable{ID: 4, Name: "Flask of Supreme Power", SpellID: 17628, PointsOverRaid: 30, Required: true},
		),
		refdata.WithGroups(model.ConsumableGroup{ID: 1, Name: "Elixirs", Points: 20, Required: true, Consumables: []int{4}}),
		refdata.WithUsageLimits(model.UsageLimit{RaidID: 1, ConsumableID: 1, Limit: 3}),
	)
	So(err, ShouldBeNil)
	return c
}

func TestEngine(t *testing.T) {
	Convey("Given an engine with usage limits", t, func() {
		catalog := testCatalog()
		engine := scoring.NewEngine(catalog)
		run := thousandSecondRun()
		mana, _ := catalog.Consumable(1)
		rallying, _ := catalog.Consumable(2)
		fireProt, _ := catalog.Consumable(3)

		Convey("When a player used a limited item five times", func() {
			rec := engine.ScoreUsage(run, mana, 7, 5, scoring.NewUsageLedger())

			Convey("Then the amount is clamped to the raid limit", func() {
				So(rec.Kind, ShouldEqual, scoring.KindCounted)
				So(rec.Uptime, ShouldBeNil)
				So(rec.Counted.TimesUsed, ShouldEqual, 3)
				So(rec.Points, ShouldEqual, 12)
			})
		})

		Convey("When a world buff was applied twice", func() {
			rec := engine.ScoreUsage(run, rallying, 7, 2, scoring.NewUsageLedger())

			Convey("Then it is credited once", func() {
				So(rec.Counted.TimesUsed, ShouldEqual, 1)
				So(rec.Points, ShouldEqual, 10)
			})
		})

		Convey("When a capped item is used across two runs", func() {
			ledger := scoring.NewUsageLedger()
			first := engine.ScoreUsage(run, fireProt, 7, 5, ledger)
			second := engine.ScoreUsage(run, fireProt, 7, 2, ledger)
			other := engine.ScoreUsage(run, fireProt, 8, 2, ledger)

			Convey("Then the first run is clamped to the cap", func() {
				So(first.Counted.TimesUsed, ShouldEqual, 3)
				So(first.Points, ShouldEqual, 15)
			})

			Convey("And the second run keeps the negative remainder", func() {
				So(second.Counted.TimesUsed, ShouldEqual, -2)
				So(second.Points, ShouldEqual, -10)
			})

			Convey("And other players have their own running total", func() {
				So(other.Counted.TimesUsed, ShouldEqual, 2)
			})
		})

		Convey("When scoring a consumable and a group by uptime", func() {
			flask, _ := catalog.Consumable(4)
			group, _ := catalog.Group(1)
			merged := interval.Merge(period(0, 900))

			item := engine.ScoreConsumable(run, flask, merged)
			grp := engine.ScoreGroup(run, group, merged)

			Convey("Then both produce uptime records", func() {
				So(item.Kind, ShouldEqual, scoring.KindUptime)
				So(item.Counted, ShouldBeNil)
				So(item.Uptime.ConsumableID, ShouldEqual, 4)
				So(item.Points, ShouldEqual, 30)
				So(grp.Uptime.GroupID, ShouldEqual, 1)
				So(grp.Uptime.ConsumableID, ShouldEqual, 0)
				So(grp.Points, ShouldEqual, 20)
			})
		})
	})
}
