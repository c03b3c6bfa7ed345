package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
)

// nullGUID marks events without a source unit.
const nullGUID = "0000000000000000"

type openKey struct {
	player     int64
	consumable int
}

type openInterval struct {
	runID string
	begin time.Time
}

// worldBuffSnapshot is a COMBATANT_INFO aura waiting for its GUID to be
// resolved to a player name.
type worldBuffSnapshot struct {
	guid       string
	consumable int
	runID      string
	at         time.Time
}

// tracker turns activation and removal events into usage intervals.
type tracker struct {
	catalog  *refdata.Catalog
	players  *PlayerTable
	reportID string

	open       map[openKey]openInterval
	closed     []model.UsageInterval
	guids      map[string]string // source GUID -> canonical name
	worldBuffs []worldBuffSnapshot
}

func newTracker(catalog *refdata.Catalog, players *PlayerTable, reportID string) *tracker {
	return &tracker{
		catalog:  catalog,
		players:  players,
		reportID: reportID,
		open:     make(map[openKey]openInterval),
		guids:    make(map[string]string),
	}
}

func (t *tracker) observe(ctx context.Context, ev model.Event, run *model.RaidRun) error {
	if ev.Kind.IsSpell() && ev.Actor != "" && ev.GUID != "" && ev.GUID != nullGUID {
		t.guids[ev.GUID] = ev.Actor
	}

	switch ev.Kind {
	case model.KindSpellAuraApplied, model.KindSpellCastStart:
		cons, ok := t.catalog.ConsumableBySpell(ev.SpellID)
		if !ok || ev.Actor == "" {
			return nil
		}
		p, err := t.players.Resolve(ctx, ev.Actor)
		if err != nil {
			return err
		}
		key := openKey{player: p.ID, consumable: cons.ID}
		if prev, ok := t.open[key]; ok {
			t.closeAt(key, prev, ev.TS)
		}
		t.open[key] = openInterval{runID: run.ID, begin: ev.TS}

	case model.KindSpellAuraRemoved:
		cons, ok := t.catalog.ConsumableBySpell(ev.SpellID)
		if !ok || ev.Actor == "" {
			return nil
		}
		p, err := t.players.Resolve(ctx, ev.Actor)
		if err != nil {
			return err
		}
		key := openKey{player: p.ID, consumable: cons.ID}
		if prev, ok := t.open[key]; ok {
			t.closeAt(key, prev, ev.TS)
			delete(t.open, key)
		}

	case model.KindCombatantInfo:
		for _, aura := range ev.Auras {
			cons, ok := t.catalog.ConsumableBySpell(aura)
			if !ok || !cons.WorldBuff {
				continue
			}
			t.worldBuffs = append(t.worldBuffs, worldBuffSnapshot{
				guid:       ev.GUID,
				consumable: cons.ID,
				runID:      run.ID,
				at:         ev.TS,
			})
		}
	}
	return nil
}

func (t *tracker) closeAt(key openKey, iv openInterval, end time.Time) {
	t.closed = append(t.closed, model.UsageInterval{
		ReportID:     t.reportID,
		RaidRunID:    iv.runID,
		PlayerID:     key.player,
		ConsumableID: key.consumable,
		Begin:        iv.begin,
		End:          end,
	})
}

// finalize closes every open interval at ts. Intervals opened in a
// discarded run are dropped.
func (t *tracker) finalize(ts time.Time, discarded func(runID string) bool) {
	keys := make([]openKey, 0, len(t.open))
	for k := range t.open {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].player != keys[j].player {
			return keys[i].player < keys[j].player
		}
		return keys[i].consumable < keys[j].consumable
	})

	for _, k := range keys {
		iv := t.open[k]
		if !discarded(iv.runID) {
			t.closeAt(k, iv, ts)
		}
	}
	t.open = make(map[openKey]openInterval)
}

// resolveWorldBuffs records a zero-length interval for each snapshot whose
// GUID was seen on a spell event. Unresolved GUIDs are dropped.
func (t *tracker) resolveWorldBuffs(ctx context.Context, discarded func(runID string) bool) (dropped int, err error) {
	for _, wb := range t.worldBuffs {
		name, ok := t.guids[wb.guid]
		if !ok || discarded(wb.runID) {
			dropped++
			continue
		}
		p, err := t.players.Resolve(ctx, name)
		if err != nil {
			return dropped, err
		}
		t.closed = append(t.closed, model.UsageInterval{
			ReportID:     t.reportID,
			RaidRunID:    wb.runID,
			PlayerID:     p.ID,
			ConsumableID: wb.consumable,
			Begin:        wb.at,
			End:          wb.at,
		})
	}
	t.worldBuffs = nil
	return dropped, nil
}

// intervals returns the closed intervals of kept runs.
func (t *tracker) intervals(discarded func(runID string) bool) []model.UsageInterval {
	out := make([]model.UsageInterval, 0, len(t.closed))
	for _, iv := range t.closed {
		if !discarded(iv.RaidRunID) {
			out = append(out, iv)
		}
	}
	return out
}
