package session

import (
	"fmt"

	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/scoring"
)

// CardPreview lists what each action on a card would cost right now.
// Epiphany and Divine are nil when that upgrade is not legal.
type CardPreview struct {
	PlayerID   int64  `json:"playerId"`
	CardID     string `json:"cardId"`
	Copy       int    `json:"copy"`
	Remove     int    `json:"remove"`
	Epiphany   *int   `json:"epiphany,omitempty"`
	Divine     *int   `json:"divine,omitempty"`
	CanConvert bool   `json:"canConvert"`
}

// PreviewCard computes the pending costs for one card without changing anything.
func (s *Session) PreviewCard(playerID int64, cardID string) (CardPreview, error) {
	p, ok := s.players[playerID]
	if !ok {
		return CardPreview{}, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrPlayerNotFound)
	}
	i, err := findCard(&p, cardID)
	if err != nil {
		return CardPreview{}, err
	}
	c := p.LiveCards[i].scoringCard()
	e := s.ref.Engine
	out := CardPreview{
		PlayerID:   playerID,
		CardID:     cardID,
		Copy:       e.CopyCost(c, p.Counters.Duplication),
		Remove:     e.RemoveCost(c, p.Counters.Removal),
		CanConvert: scoring.CanConvert(c),
	}
	if scoring.CanUpgrade(c.Tier, scoring.Epiphany) {
		v := e.UpgradeCost(c, scoring.Epiphany)
		out.Epiphany = &v
	}
	if scoring.CanUpgrade(c.Tier, scoring.Divine) {
		v := e.UpgradeCost(c, scoring.Divine)
		out.Divine = &v
	}
	return out, nil
}

// PreviewConvert returns the delta Convert would apply.
func (s *Session) PreviewConvert(playerID int64, cardID string, templateID int64) (int, error) {
	p, ok := s.players[playerID]
	if !ok {
		return 0, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrPlayerNotFound)
	}
	i, err := findCard(&p, cardID)
	if err != nil {
		return 0, err
	}
	c := p.LiveCards[i].scoringCard()
	if !scoring.CanConvert(c) {
		return 0, fmt.Errorf("convert %s: %w", p.LiveCards[i].Name, calcerrors.ErrInvalidTransition)
	}
	target, err := s.template(templateID)
	if err != nil {
		return 0, err
	}
	return s.ref.Engine.ConvertCost(c, target.Type), nil
}

// PreviewAdd returns the delta Add would apply.
func (s *Session) PreviewAdd(templateID int64) (int, error) {
	target, err := s.template(templateID)
	if err != nil {
		return 0, err
	}
	return s.ref.Engine.AddCost(target.Type), nil
}

func (s *Session) template(id int64) (catalog.CardTemplate, error) {
	t, ok := s.ref.Catalog.Get(id)
	if !ok {
		return catalog.CardTemplate{}, fmt.Errorf("template %d: %w", id, calcerrors.ErrTemplateNotFound)
	}
	return t, nil
}
