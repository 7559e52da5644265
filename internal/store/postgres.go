package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-enrichment/internal/db"
	"github.com/sells-group/risk-enrichment/internal/model"
)

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres wraps an open pool. Close closes the pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// OpenPostgres connects to connString and returns a PostgresStore.
func OpenPostgres(ctx context.Context, connString string, cfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return NewPostgres(pool), nil
}

// Pool returns the underlying pool for subsystems that share it, such as
// quota counters.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	base        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_fields (
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	field      TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity_id, field)
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
`

var (
	entityUpsert = db.UpsertConfig{
		Table:        "entities",
		Columns:      []string{"id", "entity_type", "base", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"base", "updated_at"},
	}
	fieldUpsert = db.UpsertConfig{
		Table:        "entity_fields",
		Columns:      []string{"entity_id", "field", "value", "updated_at"},
		ConflictKeys: []string{"entity_id", "field"},
	}
)

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ReadBase(ctx context.Context, id string) (*model.Entity, error) {
	var (
		e        model.Entity
		typ      string
		baseJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_type, base, created_at, updated_at FROM entities WHERE id = $1`, id,
	).Scan(&e.ID, &typ, &baseJSON, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read entity %s", id)
	}
	e.Type = model.EntityType(typ)
	if err := json.Unmarshal(baseJSON, &e.Base); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode base %s", id)
	}

	rows, err := s.pool.Query(ctx, `SELECT field, value FROM entity_fields WHERE entity_id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read fields %s", id)
	}
	defer rows.Close()

	e.Enrichment = make(model.Record)
	for rows.Next() {
		var (
			field string
			value []byte
		)
		if err := rows.Scan(&field, &value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		e.Enrichment[model.Field(field)] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate fields")
	}
	return &e, nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal base")
	}
	if _, err := db.Upsert(ctx, s.pool, entityUpsert,
		e.ID, string(e.Type), baseJSON, e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: create entity %s", e.ID)
	}
	return &e, nil
}

func (s *PostgresStore) UpsertField(ctx context.Context, id string, field model.Field, value json.RawMessage) error {
	if _, err := db.Upsert(ctx, s.pool, fieldUpsert,
		id, string(field), []byte(value), time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: upsert %s/%s", id, field)
	}
	return nil
}

func (s *PostgresStore) CountExisting(ctx context.Context, id string, field model.Field) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM entity_fields WHERE entity_id = $1 AND field = $2`,
		id, string(field),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s/%s", id, field)
	}
	return n, nil
}
