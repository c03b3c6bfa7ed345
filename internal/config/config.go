// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Reference data (raids, bosses, consumables, sets) lives here and is
//   turned into a refdata.Catalog by Catalog.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ingestion job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the ingestion ledger; 0 keeps every digest.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// DatabaseDSN selects the SQLite store; empty keeps data in memory.
	DatabaseDSN string `koanf:"database_dsn"`

	// Timezone is the civil location log timestamps are recorded in.
	Timezone string `koanf:"timezone"`

	// LogYear is the calendar year log timestamps belong to; 0 uses the
	// current year at ingestion time.
	LogYear int `koanf:"log_year"`

	// Thresholds for raids that do not set their own.
	DefaultRequiredUptime    float64 `koanf:"default_required_uptime"`
	DefaultMinimumUptime     float64 `koanf:"default_minimum_uptime"`
	DefaultPointsCoefficient float64 `koanf:"default_points_coefficient"`

	Raids       []RaidConfig       `koanf:"raids"`
	Bosses      []BossConfig       `koanf:"bosses"`
	Consumables []ConsumableConfig `koanf:"consumables"`
	Groups      []GroupConfig      `koanf:"groups"`
	Sets        []SetConfig        `koanf:"sets"`
	UsageLimits []UsageLimitConfig `koanf:"usage_limits"`
	Players     []PlayerConfig     `koanf:"players"`
}

// RaidConfig describes a raid. Zero thresholds fall back to the defaults.
type RaidConfig struct {
	ID                int     `koanf:"id"`
	Name              string  `koanf:"name"`
	RequiredUptime    float64 `koanf:"required_uptime"`
	MinimumUptime     float64 `koanf:"minimum_uptime"`
	PointsCoefficient float64 `koanf:"points_coefficient"`
}

// BossConfig describes an encounter.
type BossConfig struct {
	EncounterID int    `koanf:"encounter_id"`
	RaidID      int    `koanf:"raid_id"`
	Name        string `koanf:"name"`
	EndsRaid    bool   `koanf:"ends_raid"`
}

// ConsumableConfig describes a tracked consumable. Required defaults to true.
type ConsumableConfig struct {
	ID              int    `koanf:"id"`
	Name            string `koanf:"name"`
	ItemID          int    `koanf:"item_id"`
	SpellID         int    `koanf:"spell_id"`
	UsageBased      bool   `koanf:"usage_based"`
	WorldBuff       bool   `koanf:"world_buff"`
	PointsForUsage  int    `koanf:"points_for_usage"`
	PointsOverRaid  int    `koanf:"points_over_raid"`
	Required        *bool  `koanf:"required"`
	LimitOverReport int    `koanf:"limit_over_report"`
}

// GroupConfig describes a consumable group. Required defaults to true.
type GroupConfig struct {
	ID          int    `koanf:"id"`
	Name        string `koanf:"name"`
	Points      int    `koanf:"points"`
	Required    *bool  `koanf:"required"`
	Consumables []int  `koanf:"consumables"`
}

// SetConfig maps a class and role to required consumables and groups.
type SetConfig struct {
	Class       string `koanf:"class"`
	Role        string `koanf:"role"`
	Consumables []int  `koanf:"consumables"`
	Groups      []int  `koanf:"groups"`
}

// UsageLimitConfig caps usages of a consumable per run of a raid.
type UsageLimitConfig struct {
	RaidID       int `koanf:"raid_id"`
	ConsumableID int `koanf:"consumable_id"`
	Limit        int `koanf:"limit"`
}

// PlayerConfig seeds a player's role and class.
type PlayerConfig struct {
	Name  string `koanf:"name"`
	Role  string `koanf:"role"`
	Class string `koanf:"class"`
}

// Raid ids of the built-in raids.
const (
	RaidMoltenCore    = 1
	RaidOnyxia        = 2
	RaidBlackwingLair = 3
)

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		QueueSize:                1_024,
		WorkerCount:              runtime.NumCPU(),
		DedupeSize:               10_000,
		MaxStandingsLimit:        100,
		Timezone:                 "Europe/Berlin",
		DefaultRequiredUptime:    0.85,
		DefaultMinimumUptime:     0.5,
		DefaultPointsCoefficient: 1,
	}
}

// DefaultRaids returns the raids used when the configuration lists none.
func DefaultRaids() []RaidConfig {
	return []RaidConfig{
		{ID: RaidMoltenCore, Name: "Molten Core"},
		{ID: RaidOnyxia, Name: "Onyxia's Lair"},
		{ID: RaidBlackwingLair, Name: "Blackwing Lair"},
	}
}

// DefaultBosses returns the encounters used when the configuration lists none.
func DefaultBosses() []BossConfig {
	return []BossConfig{
		{EncounterID: 663, RaidID: RaidMoltenCore, Name: "Lucifron"},
		{EncounterID: 664, RaidID: RaidMoltenCore, Name: "Magmadar"},
		{EncounterID: 665, RaidID: RaidMoltenCore, Name: "Gehennas"},
		{EncounterID: 666, RaidID: RaidMoltenCore, Name: "Garr"},
		{EncounterID: 667, RaidID: RaidMoltenCore, Name: "Shazzrah"},
		{EncounterID: 668, RaidID: RaidMoltenCore, Name: "Baron Geddon"},
		{EncounterID: 669, RaidID: RaidMoltenCore, Name: "Sulfuron Harbinger"},
		{EncounterID: 670, RaidID: RaidMoltenCore, Name: "Golemagg the Incinerator"},
		{EncounterID: 671, RaidID: RaidMoltenCore, Name: "Majordomo Executus"},
		{EncounterID: 672, RaidID: RaidMoltenCore, Name: "Ragnaros", EndsRaid: true},

		{EncounterID: 1084, RaidID: RaidOnyxia, Name: "Onyxia", EndsRaid: true},

		{EncounterID: 610, RaidID: RaidBlackwingLair, Name: "Razorgore the Untamed"},
		{EncounterID: 611, RaidID: RaidBlackwingLair, Name: "Vaelastrasz the Corrupt"},
		{EncounterID: 612, RaidID: RaidBlackwingLair, Name: "Broodlord Lashlayer"},
		{EncounterID: 613, RaidID: RaidBlackwingLair, Name: "Firemaw"},
		{EncounterID: 614, RaidID: RaidBlackwingLair, Name: "Ebonroc"},
		{EncounterID: 615, RaidID: RaidBlackwingLair, Name: "Flamegor"},
		{EncounterID: 616, RaidID: RaidBlackwingLair, Name: "Chromaggus"},
		{EncounterID: 617, RaidID: RaidBlackwingLair, Name: "Nefarian", EndsRaid: true},
	}
}
