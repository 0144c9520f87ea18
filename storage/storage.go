package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/rules"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS game_rules (
	id          BIGSERIAL PRIMARY KEY,
	key         TEXT NOT NULL UNIQUE,
	value       INT  NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS combatants (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS card_templates (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL,
	image_url    TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	cost         INT  NOT NULL DEFAULT 0,
	tags         TEXT NOT NULL DEFAULT '',
	combatant_id BIGINT REFERENCES combatants(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_card_templates_combatant_id ON card_templates(combatant_id);
`

const cardColumns = `id, name, type, image_url, description, cost, tags, combatant_id`

// Store persists reference data in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil); the caller should fall back to a MemoryStore.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

var errNoDatabase = errors.New("storage: no database configured")

func (s *Store) ready() error {
	if s == nil || s.pool == nil {
		return errNoDatabase
	}
	return nil
}

// LoadRules returns every rule entry ordered by key.
func (s *Store) LoadRules(ctx context.Context) ([]rules.Entry, error) {
	if s == nil || s.pool == nil {
		return []rules.Entry{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT key, value, description FROM game_rules ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []rules.Entry{}
	for rows.Next() {
		var e rules.Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Description); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadCombatants returns combatants ordered by id, each with its starting cards ordered by id.
func (s *Store) LoadCombatants(ctx context.Context) ([]catalog.Combatant, error) {
	if s == nil || s.pool == nil {
		return []catalog.Combatant{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, image_url FROM combatants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []catalog.Combatant{}
	index := make(map[int64]int)
	for rows.Next() {
		var c catalog.Combatant
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL); err != nil {
			return nil, err
		}
		c.Cards = []catalog.CardTemplate{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cards, err := s.queryCards(ctx, `SELECT `+cardColumns+` FROM card_templates WHERE combatant_id IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, card := range cards {
		if i, ok := index[*card.CombatantID]; ok {
			out[i].Cards = append(out[i].Cards, card)
		}
	}
	return out, nil
}

// LoadCardCatalog returns the reusable templates (no owner) ordered by id.
func (s *Store) LoadCardCatalog(ctx context.Context) ([]catalog.CardTemplate, error) {
	if s == nil || s.pool == nil {
		return []catalog.CardTemplate{}, nil
	}
	return s.queryCards(ctx, `SELECT `+cardColumns+` FROM card_templates WHERE combatant_id IS NULL ORDER BY id`)
}

// ListCards returns every card, newest first, for the admin screen.
func (s *Store) ListCards(ctx context.Context) ([]catalog.CardTemplate, error) {
	if s == nil || s.pool == nil {
		return []catalog.CardTemplate{}, nil
	}
	return s.queryCards(ctx, `SELECT `+cardColumns+` FROM card_templates ORDER BY id DESC`)
}

func (s *Store) queryCards(ctx context.Context, query string, args ...any) ([]catalog.CardTemplate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []catalog.CardTemplate{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

func scanCard(row pgx.Row) (catalog.CardTemplate, error) {
	var c catalog.CardTemplate
	var typ string
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.ImageURL, &c.Description, &c.Cost, &c.Tags, &c.CombatantID); err != nil {
		return catalog.CardTemplate{}, err
	}
	c.Type = catalog.CardType(typ)
	return c, nil
}

// CreateCard inserts a card. A nil CombatantID makes it a catalog card.
func (s *Store) CreateCard(ctx context.Context, card catalog.CardTemplate) (catalog.CardTemplate, error) {
	if err := s.ready(); err != nil {
		return catalog.CardTemplate{}, err
	}
	card, err := validateCard(card)
	if err != nil {
		return catalog.CardTemplate{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO card_templates (name, type, image_url, description, cost, tags, combatant_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+cardColumns,
		card.Name, string(card.Type), card.ImageURL, card.Description, card.Cost, card.Tags, card.CombatantID)
	out, err := scanCard(row)
	if err != nil {
		return catalog.CardTemplate{}, mapErr(err)
	}
	return out, nil
}

// UpdateCard overwrites the card with card.ID.
func (s *Store) UpdateCard(ctx context.Context, card catalog.CardTemplate) (catalog.CardTemplate, error) {
	if err := s.ready(); err != nil {
		return catalog.CardTemplate{}, err
	}
	card, err := validateCard(card)
	if err != nil {
		return catalog.CardTemplate{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE card_templates
		SET name = $1, type = $2, image_url = $3, description = $4, cost = $5, tags = $6, combatant_id = $7
		WHERE id = $8
		RETURNING `+cardColumns,
		card.Name, string(card.Type), card.ImageURL, card.Description, card.Cost, card.Tags, card.CombatantID, card.ID)
	out, err := scanCard(row)
	if err != nil {
		return catalog.CardTemplate{}, mapErr(err)
	}
	return out, nil
}

// DeleteCard removes one card.
func (s *Store) DeleteCard(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM card_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %d: %w", id, calcerrors.ErrNotFound)
	}
	return nil
}

// CreateCombatant inserts a combatant. Starting cards are added separately with CreateCard.
func (s *Store) CreateCombatant(ctx context.Context, c catalog.Combatant) (catalog.Combatant, error) {
	if err := s.ready(); err != nil {
		return catalog.Combatant{}, err
	}
	if err := validateCombatant(c); err != nil {
		return catalog.Combatant{}, err
	}
	out := catalog.Combatant{Cards: []catalog.CardTemplate{}}
	err := s.pool.QueryRow(ctx, `INSERT INTO combatants (name, image_url) VALUES ($1, $2) RETURNING id, name, image_url`,
		strings.TrimSpace(c.Name), c.ImageURL).Scan(&out.ID, &out.Name, &out.ImageURL)
	if err != nil {
		return catalog.Combatant{}, err
	}
	return out, nil
}

// UpdateCombatant changes name and image; starting cards are left alone.
func (s *Store) UpdateCombatant(ctx context.Context, c catalog.Combatant) (catalog.Combatant, error) {
	if err := s.ready(); err != nil {
		return catalog.Combatant{}, err
	}
	if err := validateCombatant(c); err != nil {
		return catalog.Combatant{}, err
	}
	var out catalog.Combatant
	err := s.pool.QueryRow(ctx, `UPDATE combatants SET name = $1, image_url = $2 WHERE id = $3 RETURNING id, name, image_url`,
		strings.TrimSpace(c.Name), c.ImageURL, c.ID).Scan(&out.ID, &out.Name, &out.ImageURL)
	if err != nil {
		return catalog.Combatant{}, mapErr(err)
	}
	out.Cards, err = s.queryCards(ctx, `SELECT `+cardColumns+` FROM card_templates WHERE combatant_id = $1 ORDER BY id`, out.ID)
	if err != nil {
		return catalog.Combatant{}, err
	}
	return out, nil
}

// DeleteCombatant removes a combatant together with its starting cards.
func (s *Store) DeleteCombatant(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM card_templates WHERE combatant_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM combatants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("combatant %d: %w", id, calcerrors.ErrNotFound)
	}
	return tx.Commit(ctx)
}

// UpdateRule sets the value of an existing rule.
func (s *Store) UpdateRule(ctx context.Context, key string, value int) (rules.Entry, error) {
	if err := s.ready(); err != nil {
		return rules.Entry{}, err
	}
	var e rules.Entry
	err := s.pool.QueryRow(ctx, `UPDATE game_rules SET value = $1 WHERE key = $2 RETURNING key, value, description`,
		value, key).Scan(&e.Key, &e.Value, &e.Description)
	if err != nil {
		return rules.Entry{}, mapErr(err)
	}
	return e, nil
}

// UpsertRule inserts a rule or replaces its value and description.
func (s *Store) UpsertRule(ctx context.Context, e rules.Entry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("rule key is empty: %w", calcerrors.ErrInvalidInput)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_rules (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`,
		strings.TrimSpace(e.Key), e.Value, e.Description)
	return err
}

// Reset deletes all reference data and restarts id sequences.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `TRUNCATE card_templates, combatants, game_rules RESTART IDENTITY`)
	return err
}

// foreignKeyViolation is the Postgres SQLSTATE for a dangling combatant_id.
const foreignKeyViolation = "23503"

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return calcerrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("unknown combatant: %w", calcerrors.ErrInvalidInput)
	}
	return err
}

// validateCard trims the name and canonicalizes the type.
func validateCard(card catalog.CardTemplate) (catalog.CardTemplate, error) {
	card.Name = strings.TrimSpace(card.Name)
	if card.Name == "" {
		return catalog.CardTemplate{}, fmt.Errorf("card name is empty: %w", calcerrors.ErrInvalidInput)
	}
	t, err := catalog.ParseCardType(string(card.Type))
	if err != nil {
		return catalog.CardTemplate{}, err
	}
	card.Type = t
	return card, nil
}

func validateCombatant(c catalog.Combatant) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("combatant name is empty: %w", calcerrors.ErrInvalidInput)
	}
	return nil
}
