// Package model contains domain models passed between layers.
package model

import "time"

// Kind names a combat log event type.
type Kind string

// Event kinds consumed by the ingestion pass.
const (
	KindEncounterStart   Kind = "ENCOUNTER_START"
	KindEncounterEnd     Kind = "ENCOUNTER_END"
	KindUnitDied         Kind = "UNIT_DIED"
	KindSpellAuraApplied Kind = "SPELL_AURA_APPLIED"
	KindSpellAuraRemoved Kind = "SPELL_AURA_REMOVED"
	KindSpellCastStart   Kind = "SPELL_CAST_START"
	KindSpellCastSuccess Kind = "SPELL_CAST_SUCCESS"
	KindCombatantInfo    Kind = "COMBATANT_INFO"
)

// IsEncounter reports whether k carries an encounter id in field 1.
func (k Kind) IsEncounter() bool {
	return k == KindEncounterStart || k == KindEncounterEnd
}

// IsSpell reports whether k carries a spell id in field 9.
func (k Kind) IsSpell() bool {
	switch k {
	case KindSpellAuraApplied, KindSpellAuraRemoved, KindSpellCastStart, KindSpellCastSuccess:
		return true
	default:
		return false
	}
}

// Event is one parsed combat log record. Events are immutable once parsed.
type Event struct {
	TS     time.Time // event timestamp in the configured location
	Kind   Kind
	Fields []string // raw CSV fields, field 0 included
	Raw    string   // the original line

	EncounterID int    // ENCOUNTER_* only
	GUID        string // source GUID on SPELL_* and COMBATANT_INFO
	Actor       string // canonical actor name on SPELL_*
	SpellID     int    // SPELL_* only
	Auras       []int  // COMBATANT_INFO only
}
