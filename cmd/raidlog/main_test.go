package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/raidep/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
timezone: UTC
log_year: 2024
consumables:
  - id: 1
    name: Flask of Supreme Power
    spell_id: 17628
    points_over_raid: 100
sets:
  - class: Mage
    role: Caster
    consumables: [1]
players:
  - name: Jaina
    class: Mage
    role: Caster
`

const testLog = `3/14 20:00:00.000  SPELL_AURA_APPLIED,Player-1,"Jaina-Stormrage",0x514,0x0,Player-1,"Jaina-Stormrage",0x514,0x0,17628,"Flask of Supreme Power",0x1,BUFF
3/14 20:00:00.000  ENCOUNTER_START,663,"Lucifron",9,40
3/14 20:03:20.000  ENCOUNTER_END,663,"Lucifron",9,40
3/14 20:13:20.000  ENCOUNTER_START,672,"Ragnaros",9,40
3/14 20:16:40.000  ENCOUNTER_END,672,"Ragnaros",9,40
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatal(err)
	}

	Convey("Given a configuration and a one-run log", t, func() {
		opts := options{
			logPath:    writeFile(t, "raid.log", testLog),
			configPath: writeFile(t, "raidep.yaml", testConfig),
		}

		Convey("When the log is scored", func() {
			var out bytes.Buffer
			err := run(context.Background(), opts, &out)

			Convey("Then the export is printed", func() {
				So(err, ShouldBeNil)
				So(strings.TrimSpace(out.String()), ShouldEqual, "Jaina,100")
			})
		})

		Convey("When the log file is missing", func() {
			opts.logPath = filepath.Join(t.TempDir(), "missing.log")
			err := run(context.Background(), opts, io.Discard)

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
