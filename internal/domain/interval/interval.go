// Package interval keeps sorted sets of disjoint time periods.
package interval

import (
	"sort"
	"time"
)

// Period is a closed time span [Begin, End].
type Period struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// Duration returns End-Begin.
func (p Period) Duration() time.Duration { return p.End.Sub(p.Begin) }

// Touches reports whether p and o overlap or share an endpoint.
func (p Period) Touches(o Period) bool {
	return !p.Begin.After(o.End) && !o.Begin.After(p.End)
}

// Set is a list of periods sorted by Begin where no two periods overlap or
// touch. The zero value is an empty set.
type Set struct {
	periods []Period
}

// Merge builds a Set from periods in any order.
func Merge(periods ...Period) *Set {
	s := &Set{}
	for _, p := range periods {
		s.Insert(p)
	}
	return s
}

// Insert adds p, absorbing every period it overlaps or touches. Each
// absorbed period widens p, which may then reach further neighbours, so
// the scan repeats until a full pass absorbs nothing.
func (s *Set) Insert(p Period) {
	for {
		absorbed := false
		for i, e := range s.periods {
			if !p.Touches(e) {
				continue
			}
			s.periods = append(s.periods[:i], s.periods[i+1:]...)
			p = union(p, e)
			absorbed = true
			break
		}
		if !absorbed {
			break
		}
	}

	i := sort.Search(len(s.periods), func(i int) bool { return s.periods[i].Begin.After(p.Begin) })
	s.periods = append(s.periods, Period{})
	copy(s.periods[i+1:], s.periods[i:])
	s.periods[i] = p
}

// Periods returns a copy of the sorted periods.
func (s *Set) Periods() []Period {
	out := make([]Period, len(s.periods))
	copy(out, s.periods)
	return out
}

// Len returns the number of disjoint periods.
func (s *Set) Len() int { return len(s.periods) }

// Total returns the summed duration of all periods.
func (s *Set) Total() time.Duration {
	return Total(s.periods)
}

// Clip restricts the set to window: periods ending before window.Begin or
// starting after window.End are dropped and the rest are trimmed to it.
// A period touching the window at one instant is kept as a zero-length span.
func (s *Set) Clip(window Period) []Period {
	return Clip(s.periods, window)
}

// Clip applies Set.Clip to an arbitrary period list.
func Clip(periods []Period, window Period) []Period {
	var out []Period
	for _, p := range periods {
		if p.End.Before(window.Begin) || p.Begin.After(window.End) {
			continue
		}
		out = append(out, Period{
			Begin: latest(p.Begin, window.Begin),
			End:   earliest(p.End, window.End),
		})
	}
	return out
}

// Total sums the durations of periods.
func Total(periods []Period) time.Duration {
	var d time.Duration
	for _, p := range periods {
		d += p.Duration()
	}
	return d
}

func union(a, b Period) Period {
	return Period{Begin: earliest(a.Begin, b.Begin), End: latest(a.End, b.End)}
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
