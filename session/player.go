package session

import (
	"encoding/json"

	"faint-memory-server/catalog"
	"faint-memory-server/scoring"
)

// LiveCard is a card instance inside one session. UniqueID is never reused.
type LiveCard struct {
	UniqueID    string             `json:"uniqueId"`
	TemplateID  int64              `json:"templateId"`
	Name        string             `json:"name"`
	Type        catalog.CardType   `json:"type"`
	ImageURL    string             `json:"imageUrl"`
	Description string             `json:"description"`
	Cost        int                `json:"cost"`
	Tags        string             `json:"tags,omitempty"`
	Tier        scoring.Tier       `json:"currentTier"`
	Provenance  scoring.Provenance `json:"provenance"`
}

// IsStarting reports whether the card was dealt at session start and never converted.
func (c LiveCard) IsStarting() bool { return c.Provenance == scoring.Starting }

// IsCopy reports whether the card came from Copy.
func (c LiveCard) IsCopy() bool { return c.Provenance == scoring.Copied }

// IsConverted reports whether the card's identity was replaced by Convert.
func (c LiveCard) IsConverted() bool { return c.Provenance == scoring.Converted }

func (c LiveCard) scoringCard() scoring.Card {
	return scoring.Card{Type: c.Type, Tier: c.Tier, Provenance: c.Provenance}
}

type liveCardAlias LiveCard

type liveCardJSON struct {
	liveCardAlias
	IsStarting  bool `json:"isStarting"`
	IsCopy      bool `json:"isCopy"`
	IsConverted bool `json:"isConverted"`
}

// MarshalJSON adds the derived provenance flags for clients.
func (c LiveCard) MarshalJSON() ([]byte, error) {
	return json.Marshal(liveCardJSON{
		liveCardAlias: liveCardAlias(c),
		IsStarting:    c.IsStarting(),
		IsCopy:        c.IsCopy(),
		IsConverted:   c.IsConverted(),
	})
}

// UnmarshalJSON reads "provenance" when present and falls back to the flags.
func (c *LiveCard) UnmarshalJSON(data []byte) error {
	var raw struct {
		liveCardAlias
		Provenance  *scoring.Provenance `json:"provenance"`
		IsStarting  bool                `json:"isStarting"`
		IsCopy      bool                `json:"isCopy"`
		IsConverted bool                `json:"isConverted"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = LiveCard(raw.liveCardAlias)
	switch {
	case raw.Provenance != nil:
		c.Provenance = *raw.Provenance
	case raw.IsConverted:
		c.Provenance = scoring.Converted
	case raw.IsCopy:
		c.Provenance = scoring.Copied
	case raw.IsStarting:
		c.Provenance = scoring.Starting
	default:
		c.Provenance = scoring.Added
	}
	return nil
}

// Counters hold how many Copy and Remove actions the player has taken.
type Counters struct {
	Duplication int `json:"duplication"`
	Removal     int `json:"removal"`
}

// PlayerState is one combatant's slice of a session.
type PlayerState struct {
	CombatantID int64             `json:"combatantId"`
	Info        catalog.Combatant `json:"info"`
	LiveCards   []LiveCard        `json:"liveCards"`
	FaintMemory int               `json:"faintMemory"`
	Counters    Counters          `json:"counters"`
	HistoryLog  []string          `json:"historyLog"` // newest first
}

// initialPlayerState deals the combatant's starting cards at Normal tier,
// naming each card with cardID(index).
func initialPlayerState(c catalog.Combatant, cardID func(i int) string) PlayerState {
	cards := make([]LiveCard, len(c.Cards))
	for i, t := range c.Cards {
		cards[i] = fromTemplate(t, cardID(i), scoring.Starting)
	}
	return PlayerState{
		CombatantID: c.ID,
		Info:        c.Clone(),
		LiveCards:   cards,
		HistoryLog:  []string{},
	}
}

func fromTemplate(t catalog.CardTemplate, id string, p scoring.Provenance) LiveCard {
	return LiveCard{
		UniqueID:    id,
		TemplateID:  t.ID,
		Name:        t.Name,
		Type:        t.Type,
		ImageURL:    t.ImageURL,
		Description: t.Description,
		Cost:        t.Cost,
		Tags:        t.Tags,
		Tier:        scoring.Normal,
		Provenance:  p,
	}
}

// clone copies the slices so the result can be changed without touching p.
func (p PlayerState) clone() PlayerState {
	out := p
	out.Info = p.Info.Clone()
	out.LiveCards = make([]LiveCard, len(p.LiveCards))
	copy(out.LiveCards, p.LiveCards)
	out.HistoryLog = make([]string, len(p.HistoryLog))
	copy(out.HistoryLog, p.HistoryLog)
	return out
}

func (p PlayerState) cardIndex(uniqueID string) int {
	for i, c := range p.LiveCards {
		if c.UniqueID == uniqueID {
			return i
		}
	}
	return -1
}
