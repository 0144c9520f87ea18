package session

import (
	"fmt"

	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/scoring"
)

// Action names a player operation.
type Action string

const (
	ActionUpgrade Action = "upgrade"
	ActionCopy    Action = "copy"
	ActionRemove  Action = "remove"
	ActionConvert Action = "convert"
	ActionAdd     Action = "add"
	ActionUndo    Action = "undo"
	ActionReset   Action = "reset"
	ActionSwap    Action = "swap"
)

// Outcome describes a committed action.
type Outcome struct {
	Action      Action `json:"action"`
	PlayerID    int64  `json:"playerId"`
	CardID      string `json:"cardId,omitempty"`
	Delta       int    `json:"delta"`
	FaintMemory int    `json:"faintMemory"`
	Log         string `json:"log,omitempty"`
}

// step computes the next state of one player. It gets a private copy of the
// current state and returns the card it touched, the point delta and the log line.
type step func(next *PlayerState) (cardID string, delta int, line string, err error)

// apply runs a step atomically: on error nothing changes; on success the old
// state is pushed on the undo stack, the log line is prepended and the new
// state replaces the old one.
func (s *Session) apply(playerID int64, action Action, fn step) (Outcome, error) {
	cur, ok := s.players[playerID]
	if !ok {
		return Outcome{}, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrPlayerNotFound)
	}
	next := cur.clone()
	cardID, delta, line, err := fn(&next)
	if err != nil {
		return Outcome{}, err
	}
	next.FaintMemory = cur.FaintMemory + delta
	next.HistoryLog = append([]string{line}, next.HistoryLog...)

	s.undo[playerID] = append(s.undo[playerID], cur)
	s.players[playerID] = next
	return Outcome{
		Action:      action,
		PlayerID:    playerID,
		CardID:      cardID,
		Delta:       delta,
		FaintMemory: next.FaintMemory,
		Log:         line,
	}, nil
}

func findCard(p *PlayerState, cardID string) (int, error) {
	i := p.cardIndex(cardID)
	if i < 0 {
		return -1, fmt.Errorf("card %q: %w", cardID, calcerrors.ErrCardNotFound)
	}
	return i, nil
}

func points(delta int) string {
	return fmt.Sprintf("%+d Pts", delta)
}

// Upgrade moves a card along Normal -> Epiphany -> Divine.
func (s *Session) Upgrade(playerID int64, cardID string, to scoring.Tier) (Outcome, error) {
	return s.apply(playerID, ActionUpgrade, func(next *PlayerState) (string, int, string, error) {
		i, err := findCard(next, cardID)
		if err != nil {
			return "", 0, "", err
		}
		card := next.LiveCards[i]
		if !scoring.CanUpgrade(card.Tier, to) {
			return "", 0, "", fmt.Errorf("upgrade %s from %s to %s: %w", card.Name, card.Tier, to, calcerrors.ErrInvalidTransition)
		}
		delta := s.ref.Engine.UpgradeCost(card.scoringCard(), to)
		next.LiveCards[i].Tier = to
		line := fmt.Sprintf("Upgrade: %s (%s -> %s): %s", card.Name, card.Tier, to, points(delta))
		return cardID, delta, line, nil
	})
}

// Copy duplicates a card, keeping its tier. The copy is never a starting card.
func (s *Session) Copy(playerID int64, cardID string) (Outcome, error) {
	return s.apply(playerID, ActionCopy, func(next *PlayerState) (string, int, string, error) {
		i, err := findCard(next, cardID)
		if err != nil {
			return "", 0, "", err
		}
		src := next.LiveCards[i]
		n := next.Counters.Duplication
		delta := s.ref.Engine.CopyCost(src.scoringCard(), n)

		dup := src
		dup.UniqueID = s.nextCardID(playerID, "copy")
		dup.Provenance = scoring.Copied
		next.LiveCards = append(next.LiveCards, dup)
		next.Counters.Duplication = n + 1

		line := fmt.Sprintf("Copy #%d (%s): %s", n+1, src.Name, points(delta))
		return dup.UniqueID, delta, line, nil
	})
}

// Remove takes a card out of the deck. Removing acquired cards refunds their base value.
func (s *Session) Remove(playerID int64, cardID string) (Outcome, error) {
	return s.apply(playerID, ActionRemove, func(next *PlayerState) (string, int, string, error) {
		i, err := findCard(next, cardID)
		if err != nil {
			return "", 0, "", err
		}
		card := next.LiveCards[i]
		n := next.Counters.Removal
		delta := s.ref.Engine.RemoveCost(card.scoringCard(), n)

		next.LiveCards = append(next.LiveCards[:i], next.LiveCards[i+1:]...)
		next.Counters.Removal = n + 1

		line := fmt.Sprintf("Remove #%d (%s): %s", n+1, card.Name, points(delta))
		return cardID, delta, line, nil
	})
}

// Convert permanently replaces a starting Basic/Unique card with a catalog card.
// The slot keeps its id, drops back to Normal tier and cannot be converted again.
func (s *Session) Convert(playerID int64, cardID string, templateID int64) (Outcome, error) {
	return s.apply(playerID, ActionConvert, func(next *PlayerState) (string, int, string, error) {
		i, err := findCard(next, cardID)
		if err != nil {
			return "", 0, "", err
		}
		src := next.LiveCards[i]
		if !scoring.CanConvert(src.scoringCard()) {
			return "", 0, "", fmt.Errorf("convert %s: %w", src.Name, calcerrors.ErrInvalidTransition)
		}
		target, err := s.template(templateID)
		if err != nil {
			return "", 0, "", err
		}
		delta := s.ref.Engine.ConvertCost(src.scoringCard(), target.Type)

		next.LiveCards[i] = fromTemplate(target, src.UniqueID, scoring.Converted)

		line := fmt.Sprintf("Convert (%s -> %s): %s", src.Name, target.Name, points(delta))
		return cardID, delta, line, nil
	})
}

// Add puts a catalog card into the deck at Normal tier.
func (s *Session) Add(playerID int64, templateID int64) (Outcome, error) {
	return s.apply(playerID, ActionAdd, func(next *PlayerState) (string, int, string, error) {
		target, err := s.template(templateID)
		if err != nil {
			return "", 0, "", err
		}
		delta := s.ref.Engine.AddCost(target.Type)
		card := fromTemplate(target, s.nextCardID(playerID, "add"), scoring.Added)
		next.LiveCards = append(next.LiveCards, card)

		line := fmt.Sprintf("Added Card: %s (%s)", target.Name, points(delta))
		return card.UniqueID, delta, line, nil
	})
}

// Undo restores the player's state from before their latest action.
func (s *Session) Undo(playerID int64) (Outcome, error) {
	cur, ok := s.players[playerID]
	if !ok {
		return Outcome{}, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrPlayerNotFound)
	}
	stack := s.undo[playerID]
	if len(stack) == 0 {
		return Outcome{}, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrNothingToUndo)
	}
	prev := stack[len(stack)-1]
	s.undo[playerID] = stack[:len(stack)-1]
	s.players[playerID] = prev
	return Outcome{
		Action:      ActionUndo,
		PlayerID:    playerID,
		Delta:       prev.FaintMemory - cur.FaintMemory,
		FaintMemory: prev.FaintMemory,
	}, nil
}

// ResetPlayer throws away everything for one player, undo history included,
// and deals the combatant's starting cards again.
func (s *Session) ResetPlayer(playerID int64) (Outcome, error) {
	cur, ok := s.players[playerID]
	if !ok {
		return Outcome{}, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrPlayerNotFound)
	}
	c, ok := s.ref.Roster.Get(playerID)
	if !ok {
		c = cur.Info
	}
	s.players[playerID] = s.deal(c)
	delete(s.undo, playerID)
	return Outcome{Action: ActionReset, PlayerID: playerID, Delta: -cur.FaintMemory}, nil
}

// SwapPlayer replaces one player with a fresh state for another combatant,
// keeping the other players untouched. The replaced player's undo stack is dropped.
func (s *Session) SwapPlayer(playerID, combatantID int64) (Outcome, error) {
	if _, ok := s.players[playerID]; !ok {
		return Outcome{}, fmt.Errorf("player %d: %w", playerID, calcerrors.ErrPlayerNotFound)
	}
	if _, taken := s.players[combatantID]; taken {
		return Outcome{}, fmt.Errorf("combatant %d already in session: %w", combatantID, calcerrors.ErrInvalidTeam)
	}
	c, ok := s.ref.Roster.Get(combatantID)
	if !ok {
		return Outcome{}, fmt.Errorf("combatant %d: %w", combatantID, calcerrors.ErrInvalidTeam)
	}
	for i, id := range s.order {
		if id == playerID {
			s.order[i] = combatantID
		}
	}
	delete(s.players, playerID)
	delete(s.undo, playerID)
	s.players[combatantID] = s.deal(c)
	return Outcome{Action: ActionSwap, PlayerID: combatantID}, nil
}

// deal gives c a fresh starting hand mid-session. The cards take new ids from
// the session sequence so ids handed out before a reset or swap stay dead.
func (s *Session) deal(c catalog.Combatant) PlayerState {
	return initialPlayerState(c, func(int) string { return s.nextCardID(c.ID, "deal") })
}

// ChangeTier sets the global Chaos Tier. Scores are not touched.
func (s *Session) ChangeTier(tier int) error {
	if err := checkTier(tier); err != nil {
		return err
	}
	s.tier = tier
	return nil
}
