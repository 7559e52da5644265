package quota

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-enrichment/internal/db"
)

const postgresMigration = `
CREATE TABLE IF NOT EXISTS api_usage (
	source     TEXT NOT NULL,
	period     TEXT NOT NULL,
	lookups    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source, period)
);
`

var usageUpsert = db.UpsertConfig{
	Table:         "api_usage",
	Columns:       []string{"source", "period", "lookups"},
	ConflictKeys:  []string{"source", "period"},
	IncrementCols: []string{"lookups"},
}

// PostgresStore keeps counters in the api_usage table.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a PostgresStore over pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the api_usage table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "quota: migrate")
}

// Usage implements Store.
func (s *PostgresStore) Usage(ctx context.Context, source, period string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT lookups FROM api_usage WHERE source = $1 AND period = $2`,
		source, period,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "quota: select usage %s", source)
	}
	return n, nil
}

// Increment implements Store.
func (s *PostgresStore) Increment(ctx context.Context, source, period string) error {
	_, err := db.Upsert(ctx, s.pool, usageUpsert, source, period, 1)
	return err
}
