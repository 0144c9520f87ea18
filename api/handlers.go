package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"faint-memory-server/auth"
	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/config"
	"faint-memory-server/rules"
	"faint-memory-server/scoring"
	"faint-memory-server/session"
	"faint-memory-server/storage"
)

const (
	bearerPrefix      = "Bearer "
	sessionCookieName = "admin_session"
	maxBodyBytes      = 1 << 20
)

// Handler holds dependencies for API handlers.
type Handler struct {
	Config *config.Config
	Store  storage.DataStore
	Cache  *storage.BundleCache
	Tokens *auth.AdminTokens
	JWKS   *auth.JWKSValidator

	// sleep is replaced in tests to skip the wrong-password delay.
	sleep func(time.Duration)
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, store storage.DataStore, cache *storage.BundleCache, tokens *auth.AdminTokens, jwks *auth.JWKSValidator) *Handler {
	return &Handler{
		Config: cfg,
		Store:  store,
		Cache:  cache,
		Tokens: tokens,
		JWKS:   jwks,
		sleep:  time.Sleep,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/initial-data", h.InitialData)
	mux.HandleFunc("/api/combatants", h.Combatants)
	mux.HandleFunc("/api/cards", h.Cards)
	mux.HandleFunc("/api/cards/search", h.SearchCards)
	mux.HandleFunc("/api/rules", h.Rules)
	mux.HandleFunc("/api/cap", h.Cap)
	mux.HandleFunc("/api/auth/login", h.Login)
	mux.HandleFunc("/api/auth/logout", h.Logout)
}

// CORS sets CORS headers on the response. Call before writing body.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("encode response failed", "tag", "api", "err", err)
	}
}

// writeError maps calculator errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, calcerrors.ErrInvalidInput), errors.Is(err, calcerrors.ErrInvalidTier):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, calcerrors.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "authorization required"
	case errors.Is(err, calcerrors.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	default:
		slog.Error("request failed", "tag", "api", "err", err)
	}
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Error: "method not allowed"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", calcerrors.ErrInvalidInput, err)
	}
	return nil
}

func queryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: missing or invalid id", calcerrors.ErrInvalidInput)
	}
	return id, nil
}

// InitialData returns combatants (sorted A-Z), rules and the reusable card catalog.
func (h *Handler) InitialData(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	b, err := storage.LoadBundle(r.Context(), h.Store, h.Cache)
	if err != nil {
		writeError(w, err)
		return
	}
	if roster, err := catalog.NewRoster(b.Combatants); err == nil {
		b.Combatants = roster.All()
	}
	writeData(w, b)
}

// SearchCards returns catalog templates matching ?q= by substring or fuzzy name.
func (h *Handler) SearchCards(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	b, err := storage.LoadBundle(r.Context(), h.Store, h.Cache)
	if err != nil {
		writeError(w, err)
		return
	}
	cat, err := catalog.NewCatalog(b.MiscCards)
	if err != nil {
		writeError(w, err)
		return
	}
	out := cat.Search(r.URL.Query().Get("q"))
	if out == nil {
		out = []catalog.CardTemplate{}
	}
	writeData(w, out)
}

// CapResponse is the body of /api/cap.
type CapResponse struct {
	Tier int `json:"tier"`
	Cap  int `json:"cap"`
}

// Cap returns the soft Faint Memory cap for ?tier= using the stored rules.
func (h *Handler) Cap(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tier, err := strconv.Atoi(r.URL.Query().Get("tier"))
	if err != nil || tier < session.MinTier || tier > session.MaxTier {
		writeError(w, fmt.Errorf("%w: tier must be %d-%d", calcerrors.ErrInvalidTier, session.MinTier, session.MaxTier))
		return
	}
	b, err := storage.LoadBundle(r.Context(), h.Store, h.Cache)
	if err != nil {
		writeError(w, err)
		return
	}
	// Missing rules fall back to the engine defaults.
	set, err := rules.New(b.Rules)
	if err != nil {
		slog.Warn("rule set unusable, using defaults", "tag", "api", "err", err)
	}
	writeData(w, CapResponse{Tier: tier, Cap: scoring.NewEngine(set).Cap(tier)})
}

// isAdmin accepts either the admin session cookie or a bearer token from the identity provider.
func (h *Handler) isAdmin(r *http.Request) bool {
	if c, err := r.Cookie(sessionCookieName); err == nil && h.Tokens != nil {
		if h.Tokens.Validate(c.Value) == nil {
			return true
		}
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) || h.JWKS == nil {
		return false
	}
	claims, err := h.JWKS.Validate(strings.TrimSpace(authHeader[len(bearerPrefix):]))
	if err != nil {
		return false
	}
	return auth.SubjectFromClaims(claims) != ""
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.isAdmin(r) {
		return true
	}
	writeError(w, calcerrors.ErrUnauthorized)
	return false
}

// invalidate drops the cached bundle after an admin write.
func (h *Handler) invalidate(r *http.Request) {
	if err := h.Cache.Invalidate(r.Context()); err != nil {
		slog.Warn("bundle cache invalidate failed", "tag", "api", "err", err)
	}
}
