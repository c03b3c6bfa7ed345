// Package refdata holds the read-only reference tables used while ingesting
// and scoring logs: raids, bosses, consumables and the required sets.
package refdata

import (
	"fmt"
	"sort"

	"github.com/okian/raidep/internal/domain/model"
)

// Catalog is an immutable set of lookup tables. It is safe for concurrent use.
type Catalog struct {
	raids       map[int]model.Raid
	bosses      map[int]model.Boss
	consumables map[int]model.Consumable
	bySpell     map[int]int // spell id -> consumable id
	groups      map[int]model.ConsumableGroup
	sets        map[setKey]model.ConsumablesSet
	limits      map[limitKey]int
	roster      map[string]model.Player
}

type setKey struct{ class, role string }

type limitKey struct{ raid, consumable int }

// Option adds reference rows to a Catalog under construction.
type Option func(*builder)

type builder struct {
	raids       []model.Raid
	bosses      []model.Boss
	consumables []model.Consumable
	groups      []model.ConsumableGroup
	sets        []model.ConsumablesSet
	limits      []model.UsageLimit
	players     []model.Player
}

// WithRaids adds raids.
func WithRaids(raids ...model.Raid) Option {
	return func(b *builder) { b.raids = append(b.raids, raids...) }
}

// WithBosses adds bosses.
func WithBosses(bosses ...model.Boss) Option {
	return func(b *builder) { b.bosses = append(b.bosses, bosses...) }
}

// WithConsumables adds tracked consumables.
func WithConsumables(cs ...model.Consumable) Option {
	return func(b *builder) { b.consumables = append(b.consumables, cs...) }
}

// WithGroups adds consumable groups.
func WithGroups(gs ...model.ConsumableGroup) Option {
	return func(b *builder) { b.groups = append(b.groups, gs...) }
}

// WithSets adds required consumable sets.
func WithSets(sets ...model.ConsumablesSet) Option {
	return func(b *builder) { b.sets = append(b.sets, sets...) }
}

// WithUsageLimits adds per-raid usage limits.
func WithUsageLimits(limits ...model.UsageLimit) Option {
	return func(b *builder) { b.limits = append(b.limits, limits...) }
}

// WithPlayers seeds the roster with known roles and classes.
func WithPlayers(players ...model.Player) Option {
	return func(b *builder) { b.players = append(b.players, players...) }
}

// New builds a Catalog and checks that every reference resolves.
func New(opts ...Option) (*Catalog, error) {
	var b builder
	for _, opt := range opts {
		opt(&b)
	}

	c := &Catalog{
		raids:       make(map[int]model.Raid, len(b.raids)),
		bosses:      make(map[int]model.Boss, len(b.bosses)),
		consumables: make(map[int]model.Consumable, len(b.consumables)),
		bySpell:     make(map[int]int, len(b.consumables)),
		groups:      make(map[int]model.ConsumableGroup, len(b.groups)),
		sets:        make(map[setKey]model.ConsumablesSet, len(b.sets)),
		limits:      make(map[limitKey]int, len(b.limits)),
		roster:      make(map[string]model.Player, len(b.players)),
	}

	for _, r := range b.raids {
		if r.ID <= 0 {
			return nil, fmt.Errorf("%w: raid %q has id %d", ErrInvalidReference, r.Name, r.ID)
		}
		if _, dup := c.raids[r.ID]; dup {
			return nil, fmt.Errorf("%w: raid %d", ErrDuplicate, r.ID)
		}
		c.raids[r.ID] = r
	}

	for _, boss := range b.bosses {
		if _, ok := c.raids[boss.RaidID]; !ok {
			return nil, fmt.Errorf("%w: boss %d references raid %d", ErrInvalidReference, boss.EncounterID, boss.RaidID)
		}
		if _, dup := c.bosses[boss.EncounterID]; dup {
			return nil, fmt.Errorf("%w: boss %d", ErrDuplicate, boss.EncounterID)
		}
		c.bosses[boss.EncounterID] = boss
	}

	for _, cons := range b.consumables {
		if _, dup := c.consumables[cons.ID]; dup {
			return nil, fmt.Errorf("%w: consumable %d", ErrDuplicate, cons.ID)
		}
		if other, dup := c.bySpell[cons.SpellID]; dup {
			return nil, fmt.Errorf("%w: spell %d used by consumables %d and %d", ErrDuplicate, cons.SpellID, other, cons.ID)
		}
		c.consumables[cons.ID] = cons
		c.bySpell[cons.SpellID] = cons.ID
	}

	for _, g := range b.groups {
		if _, dup := c.groups[g.ID]; dup {
			return nil, fmt.Errorf("%w: group %d", ErrDuplicate, g.ID)
		}
		for _, id := range g.Consumables {
			if _, ok := c.consumables[id]; !ok {
				return nil, fmt.Errorf("%w: group %d references consumable %d", ErrInvalidReference, g.ID, id)
			}
		}
		c.groups[g.ID] = g
	}

	for _, s := range b.sets {
		key := setKey{class: s.Class, role: s.Role}
		if _, dup := c.sets[key]; dup {
			return nil, fmt.Errorf("%w: set %s/%s", ErrDuplicate, s.Class, s.Role)
		}
		for _, id := range s.Consumables {
			if _, ok := c.consumables[id]; !ok {
				return nil, fmt.Errorf("%w: set %s/%s references consumable %d", ErrInvalidReference, s.Class, s.Role, id)
			}
		}
		for _, id := range s.Groups {
			if _, ok := c.groups[id]; !ok {
				return nil, fmt.Errorf("%w: set %s/%s references group %d", ErrInvalidReference, s.Class, s.Role, id)
			}
		}
		c.sets[key] = s
	}

	for _, l := range b.limits {
		if _, ok := c.raids[l.RaidID]; !ok {
			return nil, fmt.Errorf("%w: usage limit references raid %d", ErrInvalidReference, l.RaidID)
		}
		if _, ok := c.consumables[l.ConsumableID]; !ok {
			return nil, fmt.Errorf("%w: usage limit references consumable %d", ErrInvalidReference, l.ConsumableID)
		}
		c.limits[limitKey{raid: l.RaidID, consumable: l.ConsumableID}] = l.Limit
	}

	for _, p := range b.players {
		c.roster[p.Name] = p
	}

	return c, nil
}

// Raid returns the raid with id.
func (c *Catalog) Raid(id int) (model.Raid, bool) {
	r, ok := c.raids[id]
	return r, ok
}

// Boss returns the boss for an encounter id.
func (c *Catalog) Boss(encounterID int) (model.Boss, bool) {
	b, ok := c.bosses[encounterID]
	return b, ok
}

// Consumable returns the consumable with id.
func (c *Catalog) Consumable(id int) (model.Consumable, bool) {
	cons, ok := c.consumables[id]
	return cons, ok
}

// ConsumableBySpell resolves a trigger spell id.
func (c *Catalog) ConsumableBySpell(spellID int) (model.Consumable, bool) {
	id, ok := c.bySpell[spellID]
	if !ok {
		return model.Consumable{}, false
	}
	return c.consumables[id], true
}

// Group returns the consumable group with id.
func (c *Catalog) Group(id int) (model.ConsumableGroup, bool) {
	g, ok := c.groups[id]
	return g, ok
}

// Set returns the required set for a class and role.
func (c *Catalog) Set(class, role string) (model.ConsumablesSet, bool) {
	s, ok := c.sets[setKey{class: class, role: role}]
	return s, ok
}

// UsageLimit returns the per-run limit for a consumable in a raid.
func (c *Catalog) UsageLimit(raidID, consumableID int) (int, bool) {
	l, ok := c.limits[limitKey{raid: raidID, consumable: consumableID}]
	return l, ok
}

// Roster returns the configured role and class for a player name.
func (c *Catalog) Roster(name string) (model.Player, bool) {
	p, ok := c.roster[name]
	return p, ok
}

// Raids returns all raids ordered by id.
func (c *Catalog) Raids() []model.Raid {
	out := make([]model.Raid, 0, len(c.raids))
	for _, r := range c.raids {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Consumables returns all consumables ordered by id.
func (c *Catalog) Consumables() []model.Consumable {
	out := make([]model.Consumable, 0, len(c.consumables))
	for _, cons := range c.consumables {
		out = append(out, cons)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
