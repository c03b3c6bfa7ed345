package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/raidep/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1_024)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/Berlin")
				convey.So(cfg.DatabaseDSN, convey.ShouldBeEmpty)
			})

			convey.Convey("Then the built-in raids and bosses are applied", func() {
				convey.So(len(cfg.Raids), convey.ShouldEqual, 3)
				convey.So(len(cfg.Bosses), convey.ShouldEqual, 19)

				cat, err := config.Catalog(cfg)
				convey.So(err, convey.ShouldBeNil)
				rag, ok := cat.Boss(672)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rag.EndsRaid, convey.ShouldBeTrue)
				nef, ok := cat.Boss(617)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(nef.RaidID, convey.ShouldEqual, config.RaidBlackwingLair)
				raid, ok := cat.Raid(config.RaidOnyxia)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(raid.DefaultRequiredUptime, convey.ShouldEqual, 0.85)
				convey.So(raid.DefaultMinimumUptime, convey.ShouldEqual, 0.5)
				convey.So(raid.DefaultPointsCoefficient, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RAIDEP_ADDR", ":8080")
			_ = os.Setenv("RAIDEP_QUEUE_SIZE", "64")
			_ = os.Setenv("RAIDEP_WORKER_COUNT", "4")
			_ = os.Setenv("RAIDEP_LOG_YEAR", "2020")
			_ = os.Setenv("RAIDEP_DATABASE_DSN", "file:raidep.db")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.LogYear, convey.ShouldEqual, 2020)
				convey.So(cfg.DatabaseDSN, convey.ShouldEqual, "file:raidep.db")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 32
default_required_uptime: 0.9
raids:
  - id: 1
    name: "Molten Core"
    points_coefficient: 2
bosses:
  - encounter_id: 672
    raid_id: 1
    name: Ragnaros
    ends_raid: true
consumables:
  - id: 1
    name: "Flask of Supreme Power"
    spell_id: 17628
    points_over_raid: 100
  - id: 2
    name: "Elemental Sharpening Stone"
    spell_id: 22756
    usage_based: true
    points_for_usage: 100
    required: false
groups:
  - id: 1
    name: "Protection"
    points: 50
    consumables: [1]
sets:
  - class: Mage
    role: Caster
    consumables: [1, 2]
    groups: [1]
usage_limits:
  - raid_id: 1
    consumable_id: 2
    limit: 8
players:
  - name: Jaina
    role: Caster
    class: Mage
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RAIDEP_CONFIG", tmpFile)
			_ = os.Setenv("RAIDEP_QUEUE_SIZE", "16")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values load and env overrides them", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
				convey.So(len(cfg.Raids), convey.ShouldEqual, 1)
				convey.So(len(cfg.Bosses), convey.ShouldEqual, 1)
			})

			convey.Convey("Then the reference data builds a catalog", func() {
				convey.So(err, convey.ShouldBeNil)
				cat, err := config.Catalog(cfg)
				convey.So(err, convey.ShouldBeNil)

				raid, ok := cat.Raid(1)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(raid.DefaultRequiredUptime, convey.ShouldEqual, 0.9)
				convey.So(raid.DefaultPointsCoefficient, convey.ShouldEqual, 2.0)

				flask, ok := cat.ConsumableBySpell(17628)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(flask.Required, convey.ShouldBeTrue)

				stone, ok := cat.Consumable(2)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(stone.Required, convey.ShouldBeFalse)
				convey.So(stone.UsageBased, convey.ShouldBeTrue)

				limit, ok := cat.UsageLimit(1, 2)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(limit, convey.ShouldEqual, 8)

				group, ok := cat.Group(1)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(group.Required, convey.ShouldBeTrue)

				p, ok := cat.Roster("Jaina")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(p.Role, convey.ShouldEqual, "Caster")
			})
		})

		convey.Convey("When a set references an unknown consumable", func() {
			yamlContent := `
sets:
  - class: Warrior
    role: Tank
    consumables: [42]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.LoadFile(ctx, tmpFile)
			convey.So(err, convey.ShouldBeNil)

			_, err = config.Catalog(cfg)

			convey.Convey("Then building the catalog fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RAIDEP_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("RAIDEP_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("RAIDEP_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When the file sets an empty addr", func() {
			tmpFile := createTempConfigFile(`addr: ""`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.LoadFile(ctx, tmpFile)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When worker_count is zero", func() {
			_ = os.Setenv("RAIDEP_WORKER_COUNT", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the minimum uptime exceeds the required uptime", func() {
			_ = os.Setenv("RAIDEP_DEFAULT_MINIMUM_UPTIME", "0.9")
			_ = os.Setenv("RAIDEP_DEFAULT_REQUIRED_UPTIME", "0.8")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "minimum uptime")
			})
		})

		convey.Convey("When the timezone is unknown", func() {
			_ = os.Setenv("RAIDEP_TIMEZONE", "Mars/Olympus")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the timezone is valid", func() {
			cfg := config.New(ctx)
			loc, err := cfg.Location()

			convey.Convey("Then it resolves", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(loc.String(), convey.ShouldEqual, "Europe/Berlin")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"RAIDEP_CONFIG",
		"RAIDEP_ADDR",
		"RAIDEP_QUEUE_SIZE",
		"RAIDEP_WORKER_COUNT",
		"RAIDEP_LOG_YEAR",
		"RAIDEP_DATABASE_DSN",
		"RAIDEP_TIMEZONE",
		"RAIDEP_DEFAULT_MINIMUM_UPTIME",
		"RAIDEP_DEFAULT_REQUIRED_UPTIME",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "raidep-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
