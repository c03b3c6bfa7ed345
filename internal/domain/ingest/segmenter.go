package ingest

import (
	"time"

	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
)

// segmenter splits the event stream into raid runs. current is nil while
// no run is active.
type segmenter struct {
	catalog  *refdata.Catalog
	reportID string
	newID    func() string

	current   *model.RaidRun
	kept      []*model.RaidRun
	discarded map[string]struct{}

	// onClose is called after a run is closed or discarded. finalize is
	// true when the close also ends every open interval.
	onClose func(run *model.RaidRun, kept, finalize bool, at time.Time)
}

func newSegmenter(catalog *refdata.Catalog, reportID string, newID func() string) *segmenter {
	return &segmenter{
		catalog:   catalog,
		reportID:  reportID,
		newID:     newID,
		discarded: make(map[string]struct{}),
		onClose:   func(*model.RaidRun, bool, bool, time.Time) {},
	}
}

// run returns the active run, opening an unbound one when none is active.
func (s *segmenter) run() *model.RaidRun {
	if s.current == nil {
		s.current = model.NewRaidRun(s.newID(), s.reportID)
	}
	return s.current
}

func (s *segmenter) observe(ev model.Event) {
	run := s.run()

	switch ev.Kind {
	case model.KindEncounterStart:
		boss, ok := s.catalog.Boss(ev.EncounterID)
		if !ok {
			return
		}
		if run.Begin.IsZero() {
			run.Begin = ev.TS
		}
		raid, _ := s.catalog.Raid(boss.RaidID)
		switch {
		case !run.HasRaid():
			run.BindRaid(raid)
		case run.RaidID != boss.RaidID:
			s.close(ev.TS, false)
			next := s.run()
			next.Begin = ev.TS
			next.BindRaid(raid)
		}

	case model.KindUnitDied:
		if run.Begin.IsZero() {
			run.Begin = ev.TS
		}

	case model.KindEncounterEnd:
		boss, ok := s.catalog.Boss(ev.EncounterID)
		if !ok || !boss.EndsRaid {
			return
		}
		s.close(ev.TS, true)
	}
}

// close ends the active run at ts and returns to NoActiveRun. A run that
// never got a raid is discarded.
func (s *segmenter) close(ts time.Time, finalize bool) {
	run := s.current
	if run == nil {
		return
	}
	s.current = nil

	run.End = ts

	kept := run.HasRaid()
	if kept {
		s.kept = append(s.kept, run)
	} else {
		s.discarded[run.ID] = struct{}{}
	}
	s.onClose(run, kept, finalize, ts)
}

func (s *segmenter) isDiscarded(runID string) bool {
	_, ok := s.discarded[runID]
	return ok
}
