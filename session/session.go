package session

import (
	"fmt"
	"strconv"
	"strings"

	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/rules"
	"faint-memory-server/scoring"
)

// Chaos Tier range and team size.
const (
	MinTier     = 1
	MaxTier     = 15
	MaxTeamSize = 3
)

// Reference is the read-only data a session is built from. It is loaded once
// per session and never changes while the session runs.
type Reference struct {
	Rules   *rules.Set
	Roster  *catalog.Roster
	Catalog *catalog.Catalog
	Engine  *scoring.Engine
}

// NewReference validates freshly loaded data. Empty or malformed rules or
// roster are refused so the engine never runs on zero-valued constants.
func NewReference(entries []rules.Entry, combatants []catalog.Combatant, cards []catalog.CardTemplate) (*Reference, error) {
	set, err := rules.New(entries)
	if err != nil {
		return nil, err
	}
	roster, err := catalog.NewRoster(combatants)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.NewCatalog(cards)
	if err != nil {
		return nil, err
	}
	return &Reference{
		Rules:   set,
		Roster:  roster,
		Catalog: cat,
		Engine:  scoring.NewEngine(set),
	}, nil
}

// Session is the mutable calculator state for one user: 1-3 players, a global
// Chaos Tier and a per-player undo stack. It is owned by a single goroutine.
type Session struct {
	ref     *Reference
	tier    int
	order   []int64
	players map[int64]PlayerState
	undo    map[int64][]PlayerState
	seq     uint64
}

// New starts a session from scratch for the given combatants.
func New(ref *Reference, combatantIDs []int64, tier int) (*Session, error) {
	if ref == nil {
		return nil, fmt.Errorf("no reference data: %w", calcerrors.ErrIncompleteData)
	}
	if err := checkTier(tier); err != nil {
		return nil, err
	}
	team, err := ref.Roster.SelectTeam(combatantIDs, MaxTeamSize)
	if err != nil {
		return nil, err
	}
	s := newSession(ref, tier)
	for _, c := range team {
		s.order = append(s.order, c.ID)
		id := c.ID
		s.players[c.ID] = initialPlayerState(c, func(i int) string { return fmt.Sprintf("%d_start_%d", id, i) })
	}
	return s, nil
}

// Snapshot is the serializable form of a session, used to carry player states
// across a navigation boundary.
type Snapshot struct {
	ChaosTier int           `json:"chaosTier"`
	Players   []PlayerState `json:"players"`
}

// Restore starts a session from previously exported player states. Undo
// stacks start empty. Combatant info is refreshed from the roster.
func Restore(ref *Reference, snap Snapshot) (*Session, error) {
	if ref == nil {
		return nil, fmt.Errorf("no reference data: %w", calcerrors.ErrIncompleteData)
	}
	if err := checkTier(snap.ChaosTier); err != nil {
		return nil, err
	}
	if len(snap.Players) == 0 || len(snap.Players) > MaxTeamSize {
		return nil, fmt.Errorf("restore needs 1-%d players, got %d: %w", MaxTeamSize, len(snap.Players), calcerrors.ErrInvalidTeam)
	}

	s := newSession(ref, snap.ChaosTier)
	seenCards := make(map[string]bool)
	for _, p := range snap.Players {
		if _, dup := s.players[p.CombatantID]; dup {
			return nil, fmt.Errorf("combatant %d restored twice: %w", p.CombatantID, calcerrors.ErrInvalidTeam)
		}
		info, ok := ref.Roster.Get(p.CombatantID)
		if !ok {
			return nil, fmt.Errorf("combatant %d: %w", p.CombatantID, calcerrors.ErrInvalidTeam)
		}
		if p.Counters.Duplication < 0 || p.Counters.Removal < 0 {
			return nil, fmt.Errorf("combatant %d has negative counters: %w", p.CombatantID, calcerrors.ErrInvalidInput)
		}
		for _, c := range p.LiveCards {
			if c.UniqueID == "" || seenCards[c.UniqueID] {
				return nil, fmt.Errorf("card id %q missing or repeated: %w", c.UniqueID, calcerrors.ErrInvalidInput)
			}
			if !c.Type.Valid() || !c.Tier.Valid() {
				return nil, fmt.Errorf("card %q has type %q tier %q: %w", c.UniqueID, c.Type, c.Tier, calcerrors.ErrInvalidInput)
			}
			seenCards[c.UniqueID] = true
			n := idSequence(c.UniqueID)
			if n > maxCardSequence {
				return nil, fmt.Errorf("card id %q counter above %d: %w", c.UniqueID, uint64(maxCardSequence), calcerrors.ErrInvalidInput)
			}
			if n > s.seq {
				s.seq = n
			}
		}
		state := p.clone()
		state.Info = info
		s.order = append(s.order, p.CombatantID)
		s.players[p.CombatantID] = state
	}
	return s, nil
}

func newSession(ref *Reference, tier int) *Session {
	return &Session{
		ref:     ref,
		tier:    tier,
		players: make(map[int64]PlayerState),
		undo:    make(map[int64][]PlayerState),
	}
}

// idSequence returns the trailing counter of a generated card id, 0 if none.
func idSequence(id string) uint64 {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// maxCardSequence bounds the counter of generated ids. Restored snapshots may
// not carry a larger counter, so the sequence can never wrap.
const maxCardSequence = 1 << 40

// nextCardID returns a session-unique id such as "3_copy_17".
func (s *Session) nextCardID(owner int64, kind string) string {
	s.seq++
	return fmt.Sprintf("%d_%s_%d", owner, kind, s.seq)
}

func checkTier(tier int) error {
	if tier < MinTier || tier > MaxTier {
		return fmt.Errorf("tier %d not in %d-%d: %w", tier, MinTier, MaxTier, calcerrors.ErrInvalidTier)
	}
	return nil
}

// Reference returns the data the session was built from.
func (s *Session) Reference() *Reference { return s.ref }

// Tier returns the current Chaos Tier.
func (s *Session) Tier() int { return s.tier }

// Cap returns the soft cap at the current tier.
func (s *Session) Cap() int { return s.ref.Engine.Cap(s.tier) }

// CapFor returns the soft cap at an arbitrary tier.
func (s *Session) CapFor(tier int) int { return s.ref.Engine.Cap(tier) }

// PlayerIDs returns combatant ids in selection order.
func (s *Session) PlayerIDs() []int64 {
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

// Players returns copies of all player states in selection order.
func (s *Session) Players() []PlayerState {
	out := make([]PlayerState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.players[id].clone())
	}
	return out
}

// Player returns a copy of one player's state.
func (s *Session) Player(id int64) (PlayerState, error) {
	p, ok := s.players[id]
	if !ok {
		return PlayerState{}, fmt.Errorf("player %d: %w", id, calcerrors.ErrPlayerNotFound)
	}
	return p.clone(), nil
}

// FaintMemory returns a player's running total.
func (s *Session) FaintMemory(id int64) (int, error) {
	p, ok := s.players[id]
	if !ok {
		return 0, fmt.Errorf("player %d: %w", id, calcerrors.ErrPlayerNotFound)
	}
	return p.FaintMemory, nil
}

// LiveCards returns a copy of a player's cards in insertion order.
func (s *Session) LiveCards(id int64) ([]LiveCard, error) {
	p, err := s.Player(id)
	if err != nil {
		return nil, err
	}
	return p.LiveCards, nil
}

// HistoryLog returns a player's log, newest first.
func (s *Session) HistoryLog(id int64) ([]string, error) {
	p, err := s.Player(id)
	if err != nil {
		return nil, err
	}
	return p.HistoryLog, nil
}

// CanUndo reports whether the player has an action to roll back.
func (s *Session) CanUndo(id int64) bool {
	return len(s.undo[id]) > 0
}

// OverCap reports whether a player's total exceeds the current cap. Exceeding
// the cap never blocks an action.
func (s *Session) OverCap(id int64) bool {
	p, ok := s.players[id]
	return ok && p.FaintMemory > s.Cap()
}

// Export returns a snapshot that Restore accepts.
func (s *Session) Export() Snapshot {
	return Snapshot{ChaosTier: s.tier, Players: s.Players()}
}
