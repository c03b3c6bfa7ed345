// Package logparse turns raw combat log lines into typed events.
package logparse

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Berlin must resolve on hosts without zoneinfo

	"github.com/okian/raidep/internal/domain/model"
)

const (
	// DefaultLocation is the civil timezone logs are recorded in.
	DefaultLocation = "Europe/Berlin"

	// timestamp layout once the year is prefixed: "2024 3/14 21:19:14.526".
	tsLayout = "2006 1/2 15:04:05.000"

	// field 0 separates the timestamp and the event name with two spaces.
	headSeparator = "  "

	spellIDField = 9
)

var supportedKinds = map[model.Kind]struct{}{
	model.KindEncounterStart:   {},
	model.KindEncounterEnd:     {},
	model.KindUnitDied:         {},
	model.KindSpellAuraApplied: {},
	model.KindSpellAuraRemoved: {},
	model.KindSpellCastStart:   {},
	model.KindSpellCastSuccess: {},
	model.KindCombatantInfo:    {},
}

// Parser parses single log lines. A Parser is safe for concurrent use.
type Parser struct {
	year     int
	location *time.Location
	now      func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithYear fixes the calendar year of parsed timestamps. 0 uses the
// current year of the clock.
func WithYear(year int) Option {
	return func(p *Parser) {
		if year > 0 {
			p.year = year
		}
	}
}

// WithLocation sets the timezone timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithClock replaces time.Now when deriving the current year.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Parser. Without options it assumes the current year in
// Europe/Berlin.
func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	if loc, err := time.LoadLocation(DefaultLocation); err == nil {
		p.location = loc
	} else {
		p.location = time.UTC
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Year returns the year timestamps are placed in.
func (p *Parser) Year() int {
	if p.year > 0 {
		return p.year
	}
	return p.now().In(p.location).Year()
}

// Parse converts one raw line into an Event. Lines the ingestion pass
// cannot use return an error wrapping ErrMalformedLine or
// ErrUnsupportedEvent; callers skip them.
func (p *Parser) Parse(line string) (model.Event, error) {
	line = strings.TrimRight(line, "\r\n")
	fields, err := splitFields(line)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}

	head := strings.Split(fields[0], headSeparator)
	if len(head) != 2 {
		return model.Event{}, fmt.Errorf("%w: bad record head %q", ErrMalformedLine, fields[0])
	}

	kind := model.Kind(head[1])
	if _, ok := supportedKinds[kind]; !ok {
		return model.Event{}, fmt.Errorf("%w: %s", ErrUnsupportedEvent, head[1])
	}

	ts, err := p.parseTimestamp(head[0])
	if err != nil {
		return model.Event{}, err
	}

	ev := model.Event{TS: ts, Kind: kind, Fields: fields, Raw: line}

	switch {
	case kind.IsEncounter():
		if len(fields) < 2 {
			return model.Event{}, fmt.Errorf("%w: %s without encounter id", ErrMalformedLine, kind)
		}
		ev.EncounterID, err = strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return model.Event{}, fmt.Errorf("%w: encounter id %q", ErrMalformedLine, fields[1])
		}
	case kind.IsSpell():
		if len(fields) <= spellIDField {
			return model.Event{}, fmt.Errorf("%w: %s without spell id", ErrMalformedLine, kind)
		}
		ev.SpellID, err = strconv.Atoi(strings.TrimSpace(fields[spellIDField]))
		if err != nil {
			return model.Event{}, fmt.Errorf("%w: spell id %q", ErrMalformedLine, fields[spellIDField])
		}
		ev.GUID = fields[1]
		ev.Actor = CanonicalName(fields[2])
	case kind == model.KindCombatantInfo:
		if len(fields) < 2 {
			return model.Event{}, fmt.Errorf("%w: %s without guid", ErrMalformedLine, kind)
		}
		ev.GUID = fields[1]
		ev.Auras = combatantAuras(line)
	}

	return ev, nil
}

func (p *Parser) parseTimestamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(tsLayout, strconv.Itoa(p.Year())+" "+strings.TrimSpace(s), p.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedLine, s)
	}
	return ts, nil
}

// splitFields splits one record honoring quoted fields with embedded commas.
func splitFields(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// CanonicalName strips surrounding quotes and the realm suffix from an
// actor name: `"Jaina-Stormrage"` becomes `Jaina`.
func CanonicalName(actor string) string {
	name := strings.Trim(strings.TrimSpace(actor), `"`)
	if i := strings.IndexByte(name, '-'); i >= 0 {
		name = name[:i]
	}
	return name
}

// combatantAuras extracts aura ids from the last bracketed group of a
// COMBATANT_INFO line. Zero and non-numeric entries are skipped.
func combatantAuras(raw string) []int {
	i := strings.LastIndexByte(raw, '[')
	if i < 0 {
		return nil
	}
	group := raw[i+1:]
	if j := strings.IndexByte(group, ']'); j >= 0 {
		group = group[:j]
	}

	var auras []int
	for _, part := range strings.Split(group, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id == 0 {
			continue
		}
		auras = append(auras, id)
	}
	return auras
}
