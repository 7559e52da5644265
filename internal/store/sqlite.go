package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/risk-enrichment/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	base        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entity_fields (
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (entity_id, field)
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReadBase(ctx context.Context, id string) (*model.Entity, error) {
	var (
		e        model.Entity
		typ      string
		baseJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, entity_type, base, created_at, updated_at FROM entities WHERE id = ?`, id,
	).Scan(&e.ID, &typ, &baseJSON, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read entity %s", id)
	}
	e.Type = model.EntityType(typ)
	if err := json.Unmarshal([]byte(baseJSON), &e.Base); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode base %s", id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM entity_fields WHERE entity_id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read fields %s", id)
	}
	defer rows.Close() //nolint:errcheck

	e.Enrichment = make(model.Record)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field")
		}
		e.Enrichment[model.Field(field)] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate fields")
	}
	return &e, nil
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error) {
	if err := validateEntity(e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	baseJSON, err := json.Marshal(e.Base)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal base")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, entity_type, base, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET base = excluded.base, updated_at = excluded.updated_at`,
		e.ID, string(e.Type), string(baseJSON), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create entity %s", e.ID)
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertField(ctx context.Context, id string, field model.Field, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_fields (entity_id, field, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (entity_id, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		id, string(field), string(value), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert %s/%s", id, field)
	}
	return nil
}

func (s *SQLiteStore) CountExisting(ctx context.Context, id string, field model.Field) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM entity_fields WHERE entity_id = ? AND field = ?`,
		id, string(field),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s/%s", id, field)
	}
	return n, nil
}
