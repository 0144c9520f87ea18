package session

// PlayerView is the client-facing representation of a player.
type PlayerView struct {
	PlayerState
	OverCap bool `json:"overCap"`
	CanUndo bool `json:"canUndo"`
}

// View is the full session state sent to the client after every change.
type View struct {
	ChaosTier int          `json:"chaosTier"`
	Cap       int          `json:"cap"`
	Players   []PlayerView `json:"players"`
}

// BuildView constructs the client-facing session view in selection order.
func BuildView(s *Session) View {
	v := View{
		ChaosTier: s.tier,
		Cap:       s.Cap(),
		Players:   make([]PlayerView, 0, len(s.order)),
	}
	for _, id := range s.order {
		v.Players = append(v.Players, PlayerView{
			PlayerState: s.players[id].clone(),
			OverCap:     s.OverCap(id),
			CanUndo:     s.CanUndo(id),
		})
	}
	return v
}
