package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"faint-memory-server/catalog"
	"faint-memory-server/rules"
)

// SeedData is the content of a seed file: rule constants, combatants with their
// starting cards, and reusable catalog cards.
type SeedData struct {
	Rules      []rules.Entry          `yaml:"rules"`
	Combatants []catalog.Combatant    `yaml:"combatants"`
	Cards      []catalog.CardTemplate `yaml:"cards"`
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (SeedData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SeedData{}, err
	}
	return ParseSeed(b)
}

// ParseSeed decodes YAML and validates it. All problems are reported in one error.
func ParseSeed(b []byte) (SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return SeedData{}, fmt.Errorf("seed: decode: %w", err)
	}

	var problems []string
	if len(seed.Rules) == 0 {
		problems = append(problems, "rules: empty")
	}
	seenKeys := make(map[string]bool)
	for i, e := range seed.Rules {
		key := strings.TrimSpace(e.Key)
		switch {
		case key == "":
			problems = append(problems, fmt.Sprintf("rules[%d]: empty key", i))
		case seenKeys[key]:
			problems = append(problems, fmt.Sprintf("rules[%d]: duplicate key %q", i, key))
		}
		seenKeys[key] = true
	}
	if len(seed.Combatants) == 0 {
		problems = append(problems, "combatants: empty")
	}
	for i := range seed.Combatants {
		c := &seed.Combatants[i]
		if strings.TrimSpace(c.Name) == "" {
			problems = append(problems, fmt.Sprintf("combatants[%d]: empty name", i))
		}
		for j := range c.Cards {
			if p := normalizeSeedCard(&c.Cards[j]); p != "" {
				problems = append(problems, fmt.Sprintf("combatants[%d].cards[%d]: %s", i, j, p))
			}
		}
	}
	for i := range seed.Cards {
		if p := normalizeSeedCard(&seed.Cards[i]); p != "" {
			problems = append(problems, fmt.Sprintf("cards[%d]: %s", i, p))
		}
	}
	if len(problems) > 0 {
		return SeedData{}, errors.New("seed: " + strings.Join(problems, "; "))
	}
	return seed, nil
}

func normalizeSeedCard(card *catalog.CardTemplate) string {
	if strings.TrimSpace(card.Name) == "" {
		return "empty name"
	}
	t, err := catalog.ParseCardType(string(card.Type))
	if err != nil {
		return fmt.Sprintf("card %q has unknown type %q", card.Name, card.Type)
	}
	card.Type = t
	return ""
}

// Seed wipes store and fills it with seed. Starting cards are attached to the
// ids the store assigns to their combatants.
func Seed(ctx context.Context, store DataStore, seed SeedData) error {
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("seed: reset: %w", err)
	}
	for _, e := range seed.Rules {
		if err := store.UpsertRule(ctx, e); err != nil {
			return fmt.Errorf("seed: rule %q: %w", e.Key, err)
		}
	}
	for _, c := range seed.Combatants {
		created, err := store.CreateCombatant(ctx, c)
		if err != nil {
			return fmt.Errorf("seed: combatant %q: %w", c.Name, err)
		}
		for _, card := range c.Cards {
			owner := created.ID
			card.CombatantID = &owner
			if _, err := store.CreateCard(ctx, card); err != nil {
				return fmt.Errorf("seed: card %q: %w", card.Name, err)
			}
		}
	}
	for _, card := range seed.Cards {
		card.CombatantID = nil
		if _, err := store.CreateCard(ctx, card); err != nil {
			return fmt.Errorf("seed: card %q: %w", card.Name, err)
		}
	}
	slog.Info("database seeded", "tag", "storage",
		"rules", len(seed.Rules), "combatants", len(seed.Combatants), "cards", len(seed.Cards))
	return nil
}
