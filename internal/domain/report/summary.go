package report

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
)

// Summarize returns the raid day and the display name of a report from its
// kept runs. The day is the begin of the earliest run; the name lists the
// distinct raid names in alphabetical order.
func Summarize(catalog *refdata.Catalog, runs []model.RaidRun) (day time.Time, name string) {
	seen := make(map[string]struct{})
	var names []string
	for _, run := range runs {
		if !run.Begin.IsZero() && (day.IsZero() || run.Begin.Before(day)) {
			day = run.Begin
		}
		raid, ok := catalog.Raid(run.RaidID)
		if !ok {
			continue
		}
		if _, dup := seen[raid.Name]; dup {
			continue
		}
		seen[raid.Name] = struct{}{}
		names = append(names, raid.Name)
	}
	sort.Strings(names)
	return day, strings.Join(names, ", ")
}
