package catalog

import (
	"fmt"
	"strings"

	"faint-memory-server/calcerrors"
)

// CardType is the category of a card; it decides the card's Faint Memory base value.
type CardType string

const (
	Basic     CardType = "Basic"
	Unique    CardType = "Unique"
	Neutral   CardType = "Neutral"
	Monster   CardType = "Monster"
	Forbidden CardType = "Forbidden"
)

// AllCardTypes lists the known types in display order.
var AllCardTypes = []CardType{Basic, Unique, Neutral, Monster, Forbidden}

// Innate reports whether t is a combatant's own card kind (Basic or Unique).
func (t CardType) Innate() bool {
	return t == Basic || t == Unique
}

// Valid reports whether t is one of the known card types.
func (t CardType) Valid() bool {
	for _, k := range AllCardTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ParseCardType accepts any casing ("monster", "MONSTER") and returns the canonical type.
func ParseCardType(s string) (CardType, error) {
	s = strings.TrimSpace(s)
	for _, k := range AllCardTypes {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown card type %q: %w", s, calcerrors.ErrInvalidInput)
}

// CardTemplate is a card definition. CombatantID nil means a reusable catalog
// card; set means a starting card owned by that combatant.
type CardTemplate struct {
	ID          int64    `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Type        CardType `json:"type" yaml:"type"`
	ImageURL    string   `json:"imageUrl" yaml:"image_url"`
	Description string   `json:"description" yaml:"description"`
	Cost        int      `json:"cost" yaml:"cost"` // in-game energy cost, display only
	Tags        string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	CombatantID *int64   `json:"combatantId" yaml:"-"`
}

// Reusable reports whether the template belongs to the shared catalog.
func (c CardTemplate) Reusable() bool {
	return c.CombatantID == nil
}

// Combatant is a selectable character with its ordered starting cards.
type Combatant struct {
	ID       int64          `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	ImageURL string         `json:"imageUrl" yaml:"image_url"`
	Cards    []CardTemplate `json:"cards" yaml:"cards"`
}

// Clone returns a deep copy so callers cannot alias roster data.
func (c Combatant) Clone() Combatant {
	out := c
	out.Cards = make([]CardTemplate, len(c.Cards))
	copy(out.Cards, c.Cards)
	return out
}
