package config

import (
	"fmt"

	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
)

// Catalog converts the reference data sections into a lookup catalog.
func Catalog(c *Config) (*refdata.Catalog, error) {
	raids := make([]model.Raid, 0, len(c.Raids))
	for _, r := range c.Raids {
		req, minimum, coef := c.raidThresholds(r)
		raids = append(raids, model.Raid{
			ID:                       r.ID,
			Name:                     r.Name,
			DefaultRequiredUptime:    req,
			DefaultMinimumUptime:     minimum,
			DefaultPointsCoefficient: coef,
		})
	}

	bosses := make([]model.Boss, 0, len(c.Bosses))
	for _, b := range c.Bosses {
		bosses = append(bosses, model.Boss(b))
	}

	consumables := make([]model.Consumable, 0, len(c.Consumables))
	for _, cc := range c.Consumables {
		consumables = append(consumables, model.Consumable{
			ID:              cc.ID,
			Name:            cc.Name,
			ItemID:          cc.ItemID,
			SpellID:         cc.SpellID,
			UsageBased:      cc.UsageBased,
			WorldBuff:       cc.WorldBuff,
			PointsForUsage:  cc.PointsForUsage,
			PointsOverRaid:  cc.PointsOverRaid,
			Required:        boolOr(cc.Required, true),
			LimitOverReport: cc.LimitOverReport,
		})
	}

	groups := make([]model.ConsumableGroup, 0, len(c.Groups))
	for _, g := range c.Groups {
		groups = append(groups, model.ConsumableGroup{
			ID:          g.ID,
			Name:        g.Name,
			Points:      g.Points,
			Required:    boolOr(g.Required, true),
			Consumables: g.Consumables,
		})
	}

	sets := make([]model.ConsumablesSet, 0, len(c.Sets))
	for _, s := range c.Sets {
		sets = append(sets, model.ConsumablesSet(s))
	}

	limits := make([]model.UsageLimit, 0, len(c.UsageLimits))
	for _, l := range c.UsageLimits {
		limits = append(limits, model.UsageLimit(l))
	}

	players := make([]model.Player, 0, len(c.Players))
	for _, p := range c.Players {
		players = append(players, model.Player{Name: p.Name, Role: p.Role, Class: p.Class})
	}

	cat, err := refdata.New(
		refdata.WithRaids(raids...),
		refdata.WithBosses(bosses...),
		refdata.WithConsumables(consumables...),
		refdata.WithGroups(groups...),
		refdata.WithSets(sets...),
		refdata.WithUsageLimits(limits...),
		refdata.WithPlayers(players...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cat, nil
}

// raidThresholds returns the raid's thresholds with zero values replaced by
// the configured defaults.
func (c *Config) raidThresholds(r RaidConfig) (required, minimum, coefficient float64) {
	required, minimum, coefficient = r.RequiredUptime, r.MinimumUptime, r.PointsCoefficient
	if required == 0 {
		required = c.DefaultRequiredUptime
	}
	if minimum == 0 {
		minimum = c.DefaultMinimumUptime
	}
	if coefficient == 0 {
		coefficient = c.DefaultPointsCoefficient
	}
	return required, minimum, coefficient
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
