package loadtest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/raidep/internal/adapters/http/api"
	service "github.com/okian/raidep/internal/app"
	"github.com/okian/raidep/internal/domain/logparse"
	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
	"github.com/okian/raidep/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	spellFlask = 17628
	spellMana  = 17531
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func testCatalog() *refdata.Catalog {
	cat, err := refdata.New(
		refdata.WithRaids(model.Raid{ID: 1, Name: "Molten Core", DefaultRequiredUptime: 0.85, DefaultMinimumUptime: 0.5, DefaultPointsCoefficient: 1}),
		refdata.WithBosses(
			model.Boss{EncounterID: firstEncounterID, RaidID: 1, Name: firstEncounterName},
			model.Boss{EncounterID: lastEncounterID, RaidID: 1, Name: lastEncounterName, EndsRaid: true},
		),
		refdata.WithConsumables(
			model.Consumable{ID: 1, Name: "Flask of Supreme Power", SpellID: spellFlask, PointsOverRaid: 100, Required: true},
			model.Consumable{ID: 2, Name: "Major Mana Potion", SpellID: spellMana, UsageBased: true, PointsForUsage: 20},
		),
		refdata.WithSets(
			model.ConsumablesSet{Class: "Mage", Role: "Caster", Consumables: []int{1, 2}},
			model.ConsumablesSet{Class: "Shaman", Role: "Healer", Consumables: []int{1}},
		),
		refdata.WithPlayers(
			model.Player{Name: "Jaina", Class: "Mage", Role: "Caster"},
			model.Player{Name: "Thrall", Class: "Shaman", Role: "Healer"},
		),
	)
	if err != nil {
		panic(err)
	}
	return cat
}

func newTestServer(t *testing.T) *httptest.Server {
	svc := service.New(
		service.WithCatalog(testCatalog()),
		service.WithParser(logparse.New(logparse.WithYear(2024), logparse.WithLocation(time.UTC))),
		service.WithWorkerCount(4),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 100).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:      baseURL,
		NumReports:   12,
		Players:      []string{"Jaina", "Thrall"},
		Spells:       []int{spellFlask},
		CastSpells:   []int{spellMana},
		TopN:         10,
		Workers:      4,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newTestServer(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When a load test runs against it", func() {
			stats, err := Run(ctx, testConfig(srv.URL))

			Convey("Then every report is processed, flushed and verified", func() {
				So(err, ShouldBeNil)
				So(stats.LogsGenerated, ShouldEqual, 12)
				So(stats.ReportsAccepted, ShouldEqual, 12)
				So(stats.ReportsDone, ShouldEqual, 12)
				So(stats.ReportsFlushed, ShouldEqual, 12)
				So(stats.ReportsFailed, ShouldEqual, 0)
			})

			Convey("And a second run verifies against the moved baseline", func() {
				So(err, ShouldBeNil)
				cfg := testConfig(srv.URL)
				cfg.HardMode = true
				cfg.NumReports = 3
				_, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the configuration has no players", func() {
			cfg := testConfig(srv.URL)
			cfg.Players = nil
			_, err := Run(ctx, cfg)

			Convey("Then the run is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestGenerateSingleLog(t *testing.T) {
	Convey("Given a load test configuration", t, func() {
		cfg := testConfig("http://unused")
		parser := logparse.New(logparse.WithYear(2023), logparse.WithLocation(time.UTC))

		Convey("When a log is generated", func() {
			l := generateSingleLog(400, cfg)
			lines := strings.Split(strings.TrimSpace(string(l.Body)), "\n")

			Convey("Then every line parses in time order", func() {
				So(l.Name, ShouldEqual, "raid_00400.log")
				So(len(lines), ShouldBeGreaterThanOrEqualTo, 4)
				var last time.Time
				for _, line := range lines {
					ev, err := parser.Parse(line)
					So(err, ShouldBeNil)
					So(ev.TS.Before(last), ShouldBeFalse)
					last = ev.TS
				}
			})

			Convey("And logs with different indexes start at different times", func() {
				So(runStart(1).Equal(runStart(1+daysPerYear)), ShouldBeFalse)
				So(runStart(0).Equal(runStart(daysPerYear*startHours)), ShouldBeFalse)
			})
		})
	})
}

func TestParseExport(t *testing.T) {
	Convey("Given export text", t, func() {
		Convey("When it is well formed", func() {
			out, err := parseExport("Jaina,100\nThrall,-40\n")

			Convey("Then names map to points", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, map[string]int{"Jaina": 100, "Thrall": -40})
			})
		})

		Convey("When it is empty", func() {
			out, err := parseExport("")

			Convey("Then no players are returned", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When a line has no points", func() {
			_, err := parseExport("Jaina\n")

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestVerification(t *testing.T) {
	Convey("Given standings entries", t, func() {
		good := []Entry{
			{Rank: 1, Player: "Jaina", Points: 300},
			{Rank: 1, Player: "Varian", Points: 300},
			{Rank: 2, Player: "Thrall", Points: -40},
		}

		Convey("Then ordered dense ranks pass", func() {
			So(verifyStandingsOrder(good), ShouldBeNil)
		})

		Convey("Then a skipped rank fails", func() {
			bad := append([]Entry(nil), good...)
			bad[2].Rank = 3
			So(verifyStandingsOrder(bad), ShouldNotBeNil)
		})

		Convey("Then an unsorted ladder fails", func() {
			bad := []Entry{{Rank: 1, Player: "Thrall", Points: 1}, {Rank: 2, Player: "Jaina", Points: 5}}
			So(verifyStandingsOrder(bad), ShouldNotBeNil)
		})

		Convey("Then point deltas must match the credited totals", func() {
			before := map[string]Entry{"Jaina": {Points: 100}}
			after := map[string]Entry{"Jaina": {Points: 300}, "Thrall": {Points: -40}}
			So(verifyPointDeltas(before, after, map[string]int{"Jaina": 200, "Thrall": -40}), ShouldBeNil)
			So(verifyPointDeltas(before, after, map[string]int{"Jaina": 300}), ShouldNotBeNil)
			So(verifyPointDeltas(before, map[string]Entry{}, map[string]int{"Jaina": 1}), ShouldNotBeNil)
		})

		Convey("Then single lookups must agree with the ladder", func() {
			So(verifyRankConsistency(map[string]Entry{"Jaina": good[0]}, good), ShouldBeNil)
			So(verifyRankConsistency(map[string]Entry{"Jaina": {Rank: 2, Points: 300}}, good), ShouldNotBeNil)
		})
	})
}
