package catalog

import (
	"fmt"

	"faint-memory-server/calcerrors"
)

// Catalog is the read-only pool of reusable templates offered by Add and Convert.
type Catalog struct {
	cards []CardTemplate
	byID  map[int64]int
}

// NewCatalog keeps only reusable templates (nil CombatantID) in their given order.
// Templates with an unknown type are rejected.
func NewCatalog(cards []CardTemplate) (*Catalog, error) {
	c := &Catalog{byID: make(map[int64]int)}
	for _, card := range cards {
		if !card.Reusable() {
			continue
		}
		if !card.Type.Valid() {
			return nil, fmt.Errorf("catalog: card %d has type %q: %w", card.ID, card.Type, calcerrors.ErrIncompleteData)
		}
		if _, dup := c.byID[card.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate card id %d: %w", card.ID, calcerrors.ErrIncompleteData)
		}
		c.byID[card.ID] = len(c.cards)
		c.cards = append(c.cards, card)
	}
	return c, nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.cards)
}

// All returns a copy of the templates.
func (c *Catalog) All() []CardTemplate {
	if c == nil {
		return nil
	}
	out := make([]CardTemplate, len(c.cards))
	copy(out, c.cards)
	return out
}

// Get looks a template up by id.
func (c *Catalog) Get(id int64) (CardTemplate, bool) {
	if c == nil {
		return CardTemplate{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return CardTemplate{}, false
	}
	return c.cards[i], true
}

// Search returns templates whose name matches query, best match first.
func (c *Catalog) Search(query string) []CardTemplate {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.cards))
	for i, card := range c.cards {
		names[i] = card.Name
	}
	idx := rank(names, query)
	out := make([]CardTemplate, len(idx))
	for i, j := range idx {
		out[i] = c.cards[j]
	}
	return out
}
