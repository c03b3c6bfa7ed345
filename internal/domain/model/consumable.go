package model

// Consumable is a buff, item or ability whose usage is tracked.
type Consumable struct {
	ID             int
	Name           string
	ItemID         int
	SpellID        int // trigger spell matched against field 9
	UsageBased     bool
	WorldBuff      bool
	PointsForUsage int
	PointsOverRaid int
	Required       bool
	// LimitOverReport caps the cumulative credited usages across runs of
	// one aggregation; 0 means no cap.
	LimitOverReport int
}

// ConsumableGroup credits a player when any member consumable is active.
type ConsumableGroup struct {
	ID          int
	Name        string
	Points      int
	Required    bool
	Consumables []int
}

// ConsumablesSet is the required set for a class and role.
type ConsumablesSet struct {
	Class       string
	Role        string
	Consumables []int
	Groups      []int
}

// UsageLimit caps the usages of one consumable credited per run of a raid.
type UsageLimit struct {
	RaidID       int
	ConsumableID int
	Limit        int
}
