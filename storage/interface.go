package storage

import (
	"context"

	"faint-memory-server/catalog"
	"faint-memory-server/rules"
)

// DataStore abstracts persistence for the calculator's reference data: rule constants,
// combatants with their starting cards, and the reusable card catalog.
// Implementations can be swapped for testing (MemoryStore) or different backends.
type DataStore interface {
	// Read
	LoadRules(ctx context.Context) ([]rules.Entry, error)
	LoadCombatants(ctx context.Context) ([]catalog.Combatant, error)
	LoadCardCatalog(ctx context.Context) ([]catalog.CardTemplate, error)
	ListCards(ctx context.Context) ([]catalog.CardTemplate, error)

	// Write
	CreateCard(ctx context.Context, card catalog.CardTemplate) (catalog.CardTemplate, error)
	UpdateCard(ctx context.Context, card catalog.CardTemplate) (catalog.CardTemplate, error)
	DeleteCard(ctx context.Context, id int64) error
	CreateCombatant(ctx context.Context, c catalog.Combatant) (catalog.Combatant, error)
	UpdateCombatant(ctx context.Context, c catalog.Combatant) (catalog.Combatant, error)
	DeleteCombatant(ctx context.Context, id int64) error
	UpdateRule(ctx context.Context, key string, value int) (rules.Entry, error)
	UpsertRule(ctx context.Context, e rules.Entry) error
	Reset(ctx context.Context) error

	// Lifecycle
	Close()
}

// Ensure both backends implement DataStore at compile time.
var (
	_ DataStore = (*Store)(nil)
	_ DataStore = (*MemoryStore)(nil)
)
