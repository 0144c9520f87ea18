package catalog

import (
	"fmt"
	"sort"
	"strings"

	"faint-memory-server/calcerrors"
)

// Roster is the read-only list of selectable combatants, sorted by name.
type Roster struct {
	combatants []Combatant
	byID       map[int64]int
}

// NewRoster validates and sorts combatants A-Z. An empty roster is an error:
// there is nothing to calculate without at least one combatant.
func NewRoster(combatants []Combatant) (*Roster, error) {
	if len(combatants) == 0 {
		return nil, fmt.Errorf("roster: no combatants: %w", calcerrors.ErrIncompleteData)
	}
	sorted := make([]Combatant, len(combatants))
	for i, c := range combatants {
		sorted[i] = c.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	r := &Roster{combatants: sorted, byID: make(map[int64]int, len(sorted))}
	for i, c := range sorted {
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("roster: duplicate combatant id %d: %w", c.ID, calcerrors.ErrIncompleteData)
		}
		for _, card := range c.Cards {
			if !card.Type.Valid() {
				return nil, fmt.Errorf("roster: combatant %d card %d has type %q: %w", c.ID, card.ID, card.Type, calcerrors.ErrIncompleteData)
			}
		}
		r.byID[c.ID] = i
	}
	return r, nil
}

// All returns the combatants sorted by name.
func (r *Roster) All() []Combatant {
	if r == nil {
		return nil
	}
	out := make([]Combatant, len(r.combatants))
	for i, c := range r.combatants {
		out[i] = c.Clone()
	}
	return out
}

// Get looks a combatant up by id.
func (r *Roster) Get(id int64) (Combatant, bool) {
	if r == nil {
		return Combatant{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return Combatant{}, false
	}
	return r.combatants[i].Clone(), true
}

// Search filters combatants by name (substring or fuzzy), best match first.
func (r *Roster) Search(query string) []Combatant {
	if r == nil {
		return nil
	}
	if strings.TrimSpace(query) == "" {
		return r.All()
	}
	names := make([]string, len(r.combatants))
	for i, c := range r.combatants {
		names[i] = c.Name
	}
	idx := rank(names, query)
	out := make([]Combatant, len(idx))
	for i, j := range idx {
		out[i] = r.combatants[j].Clone()
	}
	return out
}

// SelectTeam resolves a team of 1..maxSize distinct combatant ids, in the given order.
func (r *Roster) SelectTeam(ids []int64, maxSize int) ([]Combatant, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("team is empty: %w", calcerrors.ErrInvalidTeam)
	}
	if maxSize > 0 && len(ids) > maxSize {
		return nil, fmt.Errorf("team has %d combatants, max is %d: %w", len(ids), maxSize, calcerrors.ErrInvalidTeam)
	}
	seen := make(map[int64]bool, len(ids))
	team := make([]Combatant, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("combatant %d selected twice: %w", id, calcerrors.ErrInvalidTeam)
		}
		seen[id] = true
		c, ok := r.Get(id)
		if !ok {
			return nil, fmt.Errorf("combatant %d: %w", id, calcerrors.ErrInvalidTeam)
		}
		team = append(team, c)
	}
	return team, nil
}
