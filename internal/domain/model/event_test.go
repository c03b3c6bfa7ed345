package model_test

import (
	"testing"
	"time"

	"github.com/okian/raidep/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKind(t *testing.T) {
	Convey("Given event kinds", t, func() {
		Convey("Then encounter kinds are recognized", func() {
			So(model.KindEncounterStart.IsEncounter(), ShouldBeTrue)
			So(model.KindEncounterEnd.IsEncounter(), ShouldBeTrue)
			So(model.KindUnitDied.IsEncounter(), ShouldBeFalse)
		})

		Convey("Then spell kinds are recognized", func() {
			So(model.KindSpellAuraApplied.IsSpell(), ShouldBeTrue)
			So(model.KindSpellAuraRemoved.IsSpell(), ShouldBeTrue)
			So(model.KindSpellCastStart.IsSpell(), ShouldBeTrue)
			So(model.KindSpellCastSuccess.IsSpell(), ShouldBeTrue)
			So(model.KindCombatantInfo.IsSpell(), ShouldBeFalse)
		})
	})
}

func TestRaidRun(t *testing.T) {
	Convey("Given a new raid run", t, func() {
		run := model.NewRaidRun("run-1", "report-1")

		Convey("Then it starts open with default thresholds", func() {
			So(run.HasRaid(), ShouldBeFalse)
			So(run.RequiredUptime, ShouldEqual, 0.85)
			So(run.MinimumUptime, ShouldEqual, 0.5)
			So(run.PointsCoefficient, ShouldEqual, 1.0)
			So(run.Duration(), ShouldEqual, 0)
		})

		Convey("When bound to a raid", func() {
			run.BindRaid(model.Raid{
				ID:                       3,
				Name:                     "Blackwing Lair",
				DefaultRequiredUptime:    0.9,
				DefaultMinimumUptime:     0.4,
				DefaultPointsCoefficient: 2,
			})

			Convey("Then the raid thresholds are copied", func() {
				So(run.HasRaid(), ShouldBeTrue)
				So(run.RaidID, ShouldEqual, 3)
				So(run.RequiredUptime, ShouldEqual, 0.9)
				So(run.MinimumUptime, ShouldEqual, 0.4)
				So(run.PointsCoefficient, ShouldEqual, 2.0)
			})
		})

		Convey("When both bounds are set", func() {
			t0 := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
			run.Begin = t0
			run.End = t0.Add(90 * time.Minute)

			Convey("Then the duration is their difference", func() {
				So(run.Duration(), ShouldEqual, 90*time.Minute)
			})
		})
	})
}
