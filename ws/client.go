package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"faint-memory-server/calcerrors"
	"faint-memory-server/scoring"
	"faint-memory-server/session"
	"faint-memory-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Restore snapshots carry full decks.
	maxMessageSize = 64 * 1024

	// Time allowed to load reference data when a session starts.
	loadTimeout = 10 * time.Second
)

// Client is a middleman between the websocket connection and the hub. It owns
// one calculator session; messages are handled one at a time in ReadPump, so
// the session never sees concurrent transitions.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	ID      string
	Session *session.Session
}

// ReadPump pumps messages from the websocket connection to the session.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "session", c.ID, "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	switch envelope.Type {
	case MsgStartSession:
		c.handleStartSession(envelope.Raw)
		return
	case MsgRestoreSession:
		c.handleRestoreSession(envelope.Raw)
		return
	}

	if c.Session == nil {
		switch envelope.Type {
		case MsgChangeTier, MsgUpgrade, MsgCopy, MsgRemove, MsgConvert, MsgAdd,
			MsgUndo, MsgReset, MsgSwap, MsgPreview, MsgExport:
			c.sendError("No session. Send start_session first.")
		default:
			c.sendError("Unknown message type: " + envelope.Type)
		}
		return
	}

	switch envelope.Type {
	case MsgChangeTier:
		c.handleChangeTier(envelope.Raw)
	case MsgUpgrade:
		c.handleUpgrade(envelope.Raw)
	case MsgCopy:
		if msg, ok := decode[CardMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.Copy(msg.PlayerID, msg.CardID))
		}
	case MsgRemove:
		if msg, ok := decode[CardMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.Remove(msg.PlayerID, msg.CardID))
		}
	case MsgConvert:
		if msg, ok := decode[ConvertMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.Convert(msg.PlayerID, msg.CardID, msg.TemplateID))
		}
	case MsgAdd:
		if msg, ok := decode[AddMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.Add(msg.PlayerID, msg.TemplateID))
		}
	case MsgUndo:
		if msg, ok := decode[PlayerMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.Undo(msg.PlayerID))
		}
	case MsgReset:
		if msg, ok := decode[PlayerMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.ResetPlayer(msg.PlayerID))
		}
	case MsgSwap:
		if msg, ok := decode[SwapMsg](c, envelope.Raw, envelope.Type); ok {
			c.commit(c.Session.SwapPlayer(msg.PlayerID, msg.CombatantID))
		}
	case MsgPreview:
		c.handlePreview(envelope.Raw)
	case MsgExport:
		c.send(SnapshotMsg{Type: MsgSnapshot, Snapshot: c.Session.Export()})
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

// decode unmarshals raw into T, sending an error to the client on failure.
func decode[T any](c *Client, raw json.RawMessage, name string) (T, bool) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid " + name + " message.")
		return msg, false
	}
	return msg, true
}

func (c *Client) loadReference() (*session.Reference, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	ref, err := c.Hub.LoadReference(ctx)
	if err != nil {
		slog.Error("reference data unavailable", "tag", "ws", "session", c.ID, "err", err)
		c.sendError("Calculator data is unavailable.")
		return nil, false
	}
	return ref, true
}

func (c *Client) handleStartSession(raw json.RawMessage) {
	msg, ok := decode[StartSessionMsg](c, raw, MsgStartSession)
	if !ok {
		return
	}
	if msg.ChaosTier == 0 {
		msg.ChaosTier = session.MinTier
	}
	ref, ok := c.loadReference()
	if !ok {
		return
	}
	s, err := session.New(ref, msg.CombatantIDs, msg.ChaosTier)
	if err != nil {
		c.decline(err)
		return
	}
	c.Session = s
	slog.Info("session started", "tag", "ws", "session", c.ID, "players", len(msg.CombatantIDs), "tier", msg.ChaosTier)
	c.sendState()
}

func (c *Client) handleRestoreSession(raw json.RawMessage) {
	msg, ok := decode[RestoreSessionMsg](c, raw, MsgRestoreSession)
	if !ok {
		return
	}
	ref, ok := c.loadReference()
	if !ok {
		return
	}
	s, err := session.Restore(ref, msg.Snapshot)
	if err != nil {
		c.decline(err)
		return
	}
	c.Session = s
	slog.Info("session restored", "tag", "ws", "session", c.ID, "players", len(msg.Snapshot.Players))
	c.sendState()
}

func (c *Client) handleChangeTier(raw json.RawMessage) {
	msg, ok := decode[ChangeTierMsg](c, raw, MsgChangeTier)
	if !ok {
		return
	}
	if err := c.Session.ChangeTier(msg.Tier); err != nil {
		c.decline(err)
		return
	}
	c.sendState()
}

func (c *Client) handleUpgrade(raw json.RawMessage) {
	msg, ok := decode[UpgradeMsg](c, raw, MsgUpgrade)
	if !ok {
		return
	}
	tier, err := scoring.ParseTier(msg.Tier)
	if err != nil {
		c.decline(err)
		return
	}
	c.commit(c.Session.Upgrade(msg.PlayerID, msg.CardID, tier))
}

func (c *Client) handlePreview(raw json.RawMessage) {
	msg, ok := decode[PreviewMsg](c, raw, MsgPreview)
	if !ok {
		return
	}
	out := PreviewResultMsg{Type: MsgPreviewResult}
	switch {
	case msg.CardID != "" && msg.TemplateID != 0:
		d, err := c.Session.PreviewConvert(msg.PlayerID, msg.CardID, msg.TemplateID)
		if err != nil {
			c.decline(err)
			return
		}
		out.Delta = &d
	case msg.TemplateID != 0:
		d, err := c.Session.PreviewAdd(msg.TemplateID)
		if err != nil {
			c.decline(err)
			return
		}
		out.Delta = &d
	default:
		p, err := c.Session.PreviewCard(msg.PlayerID, msg.CardID)
		if err != nil {
			c.decline(err)
			return
		}
		out.Card = &p
	}
	c.send(out)
}

// commit reports the result of a session transition. The removal cue is sent
// only after the new state, so the client animates an already-committed change.
func (c *Client) commit(o session.Outcome, err error) {
	if err != nil {
		c.decline(err)
		return
	}
	c.send(ActionResultMsg{Type: MsgActionResult, Outcome: o})
	c.sendState()
	if o.Action == session.ActionRemove {
		c.send(CardRemovedMsg{Type: MsgCardRemoved, PlayerID: o.PlayerID, CardID: o.CardID})
	}
}

// decline turns recoverable errors into notices and everything else into errors.
func (c *Client) decline(err error) {
	if calcerrors.Declined(err) || errors.Is(err, calcerrors.ErrInvalidInput) {
		c.send(NoticeMsg{Type: MsgNotice, Message: err.Error()})
		return
	}
	slog.Warn("session request failed", "tag", "ws", "session", c.ID, "err", err)
	c.sendError("Request failed.")
}

func (c *Client) sendState() {
	c.send(SessionStateMsg{Type: MsgSessionState, SessionID: c.ID, State: session.BuildView(c.Session)})
}

func (c *Client) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal outbound message", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

func (c *Client) sendError(message string) {
	c.send(ErrorMsg{Type: MsgError, Message: message})
}
