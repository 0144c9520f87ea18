package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/rules"
)

// MemoryStore keeps reference data in process memory. It is used when no
// database is configured and in tests. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	rules      map[string]rules.Entry
	combatants map[int64]catalog.Combatant // Cards is always empty here; starting cards live in cards
	cards      map[int64]catalog.CardTemplate
	nextID     int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	m.clear()
	return m
}

func (m *MemoryStore) clear() {
	m.rules = make(map[string]rules.Entry)
	m.combatants = make(map[int64]catalog.Combatant)
	m.cards = make(map[int64]catalog.CardTemplate)
	m.nextID = 0
}

// Close is a no-op.
func (m *MemoryStore) Close() {}

// LoadRules returns every rule entry ordered by key.
func (m *MemoryStore) LoadRules(_ context.Context) ([]rules.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rules.Entry, 0, len(m.rules))
	for _, e := range m.rules {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// LoadCombatants returns combatants ordered by id, each with its starting cards ordered by id.
func (m *MemoryStore) LoadCombatants(_ context.Context) ([]catalog.Combatant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Combatant, 0, len(m.combatants))
	for _, c := range m.combatants {
		out = append(out, m.withCards(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) withCards(c catalog.Combatant) catalog.Combatant {
	c.Cards = []catalog.CardTemplate{}
	for _, card := range m.sortedCards(false) {
		if card.CombatantID != nil && *card.CombatantID == c.ID {
			c.Cards = append(c.Cards, card)
		}
	}
	return c
}

// LoadCardCatalog returns the reusable templates ordered by id.
func (m *MemoryStore) LoadCardCatalog(_ context.Context) ([]catalog.CardTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []catalog.CardTemplate{}
	for _, card := range m.sortedCards(false) {
		if card.Reusable() {
			out = append(out, card)
		}
	}
	return out, nil
}

// ListCards returns every card, newest first.
func (m *MemoryStore) ListCards(_ context.Context) ([]catalog.CardTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedCards(true), nil
}

func (m *MemoryStore) sortedCards(desc bool) []catalog.CardTemplate {
	out := make([]catalog.CardTemplate, 0, len(m.cards))
	for _, card := range m.cards {
		out = append(out, copyCard(card))
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// copyCard detaches the CombatantID pointer from the stored value.
func copyCard(card catalog.CardTemplate) catalog.CardTemplate {
	if card.CombatantID != nil {
		id := *card.CombatantID
		card.CombatantID = &id
	}
	return card
}

// CreateCard inserts a card. A nil CombatantID makes it a catalog card.
func (m *MemoryStore) CreateCard(_ context.Context, card catalog.CardTemplate) (catalog.CardTemplate, error) {
	card, err := validateCard(card)
	if err != nil {
		return catalog.CardTemplate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOwner(card.CombatantID); err != nil {
		return catalog.CardTemplate{}, err
	}
	m.nextID++
	card.ID = m.nextID
	m.cards[card.ID] = copyCard(card)
	return copyCard(card), nil
}

// UpdateCard overwrites the card with card.ID.
func (m *MemoryStore) UpdateCard(_ context.Context, card catalog.CardTemplate) (catalog.CardTemplate, error) {
	card, err := validateCard(card)
	if err != nil {
		return catalog.CardTemplate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[card.ID]; !ok {
		return catalog.CardTemplate{}, fmt.Errorf("card %d: %w", card.ID, calcerrors.ErrNotFound)
	}
	if err := m.checkOwner(card.CombatantID); err != nil {
		return catalog.CardTemplate{}, err
	}
	m.cards[card.ID] = copyCard(card)
	return copyCard(card), nil
}

func (m *MemoryStore) checkOwner(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := m.combatants[*id]; !ok {
		return fmt.Errorf("unknown combatant %d: %w", *id, calcerrors.ErrInvalidInput)
	}
	return nil
}

// DeleteCard removes one card.
func (m *MemoryStore) DeleteCard(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return fmt.Errorf("card %d: %w", id, calcerrors.ErrNotFound)
	}
	delete(m.cards, id)
	return nil
}

// CreateCombatant inserts a combatant without cards.
func (m *MemoryStore) CreateCombatant(_ context.Context, c catalog.Combatant) (catalog.Combatant, error) {
	if err := validateCombatant(c); err != nil {
		return catalog.Combatant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := catalog.Combatant{ID: m.nextID, Name: strings.TrimSpace(c.Name), ImageURL: c.ImageURL}
	m.combatants[stored.ID] = stored
	return m.withCards(stored), nil
}

// UpdateCombatant changes name and image; starting cards are left alone.
func (m *MemoryStore) UpdateCombatant(_ context.Context, c catalog.Combatant) (catalog.Combatant, error) {
	if err := validateCombatant(c); err != nil {
		return catalog.Combatant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.combatants[c.ID]; !ok {
		return catalog.Combatant{}, fmt.Errorf("combatant %d: %w", c.ID, calcerrors.ErrNotFound)
	}
	stored := catalog.Combatant{ID: c.ID, Name: strings.TrimSpace(c.Name), ImageURL: c.ImageURL}
	m.combatants[c.ID] = stored
	return m.withCards(stored), nil
}

// DeleteCombatant removes a combatant together with its starting cards.
func (m *MemoryStore) DeleteCombatant(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.combatants[id]; !ok {
		return fmt.Errorf("combatant %d: %w", id, calcerrors.ErrNotFound)
	}
	for cid, card := range m.cards {
		if card.CombatantID != nil && *card.CombatantID == id {
			delete(m.cards, cid)
		}
	}
	delete(m.combatants, id)
	return nil
}

// UpdateRule sets the value of an existing rule.
func (m *MemoryStore) UpdateRule(_ context.Context, key string, value int) (rules.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rules[key]
	if !ok {
		return rules.Entry{}, fmt.Errorf("rule %q: %w", key, calcerrors.ErrNotFound)
	}
	e.Value = value
	m.rules[key] = e
	return e, nil
}

// UpsertRule inserts a rule or replaces its value and description.
func (m *MemoryStore) UpsertRule(_ context.Context, e rules.Entry) error {
	e.Key = strings.TrimSpace(e.Key)
	if e.Key == "" {
		return fmt.Errorf("rule key is empty: %w", calcerrors.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[e.Key] = e
	return nil
}

// Reset deletes everything and restarts ids at 1.
func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	return nil
}
