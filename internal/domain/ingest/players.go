package ingest

import (
	"context"
	"fmt"

	"github.com/okian/raidep/internal/domain/model"
	"github.com/okian/raidep/internal/domain/refdata"
)

// PlayerSource persists players. GetOrCreatePlayer returns the stored
// player named seed.Name, creating it from seed when absent.
type PlayerSource interface {
	GetOrCreatePlayer(ctx context.Context, seed model.Player) (model.Player, error)
}

// PlayerTable resolves canonical names to players for one ingestion pass.
// It is not safe for concurrent use; each pass owns its own table.
type PlayerTable struct {
	source  PlayerSource
	catalog *refdata.Catalog
	byName  map[string]model.Player
}

// NewPlayerTable creates an empty table backed by source. New players are
// seeded with the roster's role and class.
func NewPlayerTable(source PlayerSource, catalog *refdata.Catalog) *PlayerTable {
	return &PlayerTable{
		source:  source,
		catalog: catalog,
		byName:  make(map[string]model.Player),
	}
}

// Resolve returns the player for a canonical name.
func (t *PlayerTable) Resolve(ctx context.Context, name string) (model.Player, error) {
	if p, ok := t.byName[name]; ok {
		return p, nil
	}

	seed := model.Player{Name: name}
	if known, ok := t.catalog.Roster(name); ok {
		seed.Role = known.Role
		seed.Class = known.Class
	}

	p, err := t.source.GetOrCreatePlayer(ctx, seed)
	if err != nil {
		return model.Player{}, fmt.Errorf("resolve player %q: %w", name, err)
	}
	t.byName[name] = p
	return p, nil
}

// Len returns the number of players resolved so far.
func (t *PlayerTable) Len() int { return len(t.byName) }
