package ws

import (
	"encoding/json"

	"faint-memory-server/session"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// Inbound message types.
const (
	MsgStartSession   = "start_session"
	MsgRestoreSession = "restore_session"
	MsgChangeTier     = "change_tier"
	MsgUpgrade        = "upgrade"
	MsgCopy           = "copy"
	MsgRemove         = "remove"
	MsgConvert        = "convert"
	MsgAdd            = "add"
	MsgUndo           = "undo"
	MsgReset          = "reset"
	MsgSwap           = "swap"
	MsgPreview        = "preview"
	MsgExport         = "export"
)

// Outbound message types.
const (
	MsgSessionState  = "session_state"
	MsgActionResult  = "action_result"
	MsgCardRemoved   = "card_removed"
	MsgPreviewResult = "preview"
	MsgSnapshot      = "snapshot"
	MsgNotice        = "notice"
	MsgError         = "error"
)

// --- Client-to-Server message payloads ---

// StartSessionMsg picks 1-3 combatants and the starting Chaos Tier.
type StartSessionMsg struct {
	CombatantIDs []int64 `json:"combatantIds"`
	ChaosTier    int     `json:"chaosTier"`
}

// RestoreSessionMsg rebuilds a session from a previously exported snapshot.
type RestoreSessionMsg struct {
	Snapshot session.Snapshot `json:"snapshot"`
}

// ChangeTierMsg sets the global Chaos Tier.
type ChangeTierMsg struct {
	Tier int `json:"tier"`
}

// CardMsg targets one live card of one player (copy, remove).
type CardMsg struct {
	PlayerID int64  `json:"playerId"`
	CardID   string `json:"cardId"`
}

// UpgradeMsg moves a card to Epiphany or Divine.
type UpgradeMsg struct {
	PlayerID int64  `json:"playerId"`
	CardID   string `json:"cardId"`
	Tier     string `json:"tier"`
}

// ConvertMsg replaces a starting card with a catalog template.
type ConvertMsg struct {
	PlayerID   int64  `json:"playerId"`
	CardID     string `json:"cardId"`
	TemplateID int64  `json:"templateId"`
}

// AddMsg adds a catalog template to a player's deck.
type AddMsg struct {
	PlayerID   int64 `json:"playerId"`
	TemplateID int64 `json:"templateId"`
}

// PlayerMsg targets one player (undo, reset).
type PlayerMsg struct {
	PlayerID int64 `json:"playerId"`
}

// SwapMsg replaces one player with another combatant.
type SwapMsg struct {
	PlayerID    int64 `json:"playerId"`
	CombatantID int64 `json:"combatantId"`
}

// PreviewMsg asks for pending costs. With cardId only it previews every card
// action; with templateId only it previews Add; with both it previews Convert.
type PreviewMsg struct {
	PlayerID   int64  `json:"playerId"`
	CardID     string `json:"cardId,omitempty"`
	TemplateID int64  `json:"templateId,omitempty"`
}

// --- Server-to-Client messages ---

// SessionStateMsg carries the full session view after every change.
type SessionStateMsg struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId"`
	State     session.View `json:"state"`
}

// ActionResultMsg reports a committed action.
type ActionResultMsg struct {
	Type    string          `json:"type"`
	Outcome session.Outcome `json:"outcome"`
}

// CardRemovedMsg is a cosmetic cue sent after a removal is already committed.
type CardRemovedMsg struct {
	Type     string `json:"type"`
	PlayerID int64  `json:"playerId"`
	CardID   string `json:"cardId"`
}

// PreviewResultMsg answers a PreviewMsg. Card is set for card previews, Delta for add/convert.
type PreviewResultMsg struct {
	Type  string               `json:"type"`
	Card  *session.CardPreview `json:"card,omitempty"`
	Delta *int                 `json:"delta,omitempty"`
}

// SnapshotMsg carries an exported session.
type SnapshotMsg struct {
	Type     string           `json:"type"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// NoticeMsg reports a declined action; the session is unchanged.
type NoticeMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorMsg is sent when a message cannot be processed at all.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
