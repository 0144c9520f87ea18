package storage

import (
	"context"
	"fmt"
	"log/slog"

	"faint-memory-server/catalog"
	"faint-memory-server/rules"
)

// Bundle is everything a calculator session needs, read in one go.
type Bundle struct {
	Combatants []catalog.Combatant    `json:"combatants"`
	Rules      []rules.Entry          `json:"rules"`
	MiscCards  []catalog.CardTemplate `json:"miscCards"`
}

// LoadBundle returns the initial-data bundle, from cache when possible. Cache
// failures are logged and fall through to the store.
func LoadBundle(ctx context.Context, store DataStore, cache *BundleCache) (Bundle, error) {
	if b, ok, err := cache.Get(ctx); err != nil {
		slog.Warn("bundle cache read failed", "tag", "storage", "err", err)
	} else if ok {
		return b, nil
	}

	var b Bundle
	var err error
	if b.Rules, err = store.LoadRules(ctx); err != nil {
		return Bundle{}, fmt.Errorf("load rules: %w", err)
	}
	if b.Combatants, err = store.LoadCombatants(ctx); err != nil {
		return Bundle{}, fmt.Errorf("load combatants: %w", err)
	}
	if b.MiscCards, err = store.LoadCardCatalog(ctx); err != nil {
		return Bundle{}, fmt.Errorf("load card catalog: %w", err)
	}

	if err := cache.Put(ctx, b); err != nil {
		slog.Warn("bundle cache write failed", "tag", "storage", "err", err)
	}
	return b, nil
}
