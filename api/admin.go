package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"faint-memory-server/auth"
	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/rules"
	"faint-memory-server/storage"
)

// Combatants serves the roster search (GET) and the admin writes (POST, PUT, DELETE ?id=).
func (h *Handler) Combatants(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		b, err := storage.LoadBundle(r.Context(), h.Store, h.Cache)
		if err != nil {
			writeError(w, err)
			return
		}
		out := []catalog.Combatant{}
		if roster, err := catalog.NewRoster(b.Combatants); err == nil {
			out = roster.Search(r.URL.Query().Get("q"))
		}
		writeData(w, out)
	case http.MethodPost, http.MethodPut:
		if !h.requireAdmin(w, r) {
			return
		}
		var c catalog.Combatant
		if err := decodeBody(w, r, &c); err != nil {
			writeError(w, err)
			return
		}
		var out catalog.Combatant
		var err error
		if r.Method == http.MethodPost {
			out, err = h.Store.CreateCombatant(r.Context(), c)
		} else {
			out, err = h.Store.UpdateCombatant(r.Context(), c)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		h.invalidate(r)
		writeData(w, out)
	case http.MethodDelete:
		if !h.requireAdmin(w, r) {
			return
		}
		id, err := queryID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.Store.DeleteCombatant(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		h.invalidate(r)
		writeJSON(w, http.StatusOK, envelope{Success: true})
	default:
		methodNotAllowed(w)
	}
}

// Cards serves the admin card list (GET, newest first) and card writes.
func (h *Handler) Cards(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		cards, err := h.Store.ListCards(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, cards)
	case http.MethodPost, http.MethodPut:
		var card catalog.CardTemplate
		if err := decodeBody(w, r, &card); err != nil {
			writeError(w, err)
			return
		}
		// Owner id 0 from a cleared form field means "reusable".
		if card.CombatantID != nil && *card.CombatantID == 0 {
			card.CombatantID = nil
		}
		var out catalog.CardTemplate
		var err error
		if r.Method == http.MethodPost {
			out, err = h.Store.CreateCard(r.Context(), card)
		} else {
			out, err = h.Store.UpdateCard(r.Context(), card)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		h.invalidate(r)
		writeData(w, out)
	case http.MethodDelete:
		id, err := queryID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.Store.DeleteCard(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		h.invalidate(r)
		writeJSON(w, http.StatusOK, envelope{Success: true})
	default:
		methodNotAllowed(w)
	}
}

// ruleUpdate accepts the value as a JSON number or string; it is parsed as a whole number.
type ruleUpdate struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Rules updates one rule value (PUT, admin only).
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}
	var req ruleUpdate
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		writeError(w, fmt.Errorf("%w: rule key is empty", calcerrors.ErrInvalidInput))
		return
	}
	value, err := rules.ParseValue(string(req.Value))
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := h.Store.UpdateRule(r.Context(), key, value)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r)
	slog.Info("rule updated", "tag", "api", "key", e.Key, "value", e.Value)
	writeData(w, e)
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login checks the admin password and sets the session cookie. Wrong passwords
// are answered only after a fixed delay.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !auth.CheckPassword(h.Config.AdminPassword, req.Password) {
		h.sleep(h.Config.LoginFailureDelay())
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "wrong password"})
		return
	}
	tok, err := h.Tokens.Issue()
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.Tokens.TTL().Seconds()),
	})
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, envelope{Success: true})
}
