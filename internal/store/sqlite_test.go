package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/risk-enrichment/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndReadEntity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e, err := st.CreateEntity(ctx, model.Entity{
		Type: model.EntityPerson,
		Base: model.Attributes{Name: "Jane Doe", State: "TX"},
	})
	require.NoError(t, err)
	assert.Len(t, e.ID, 36, "assigned a UUID")

	got, err := st.ReadBase(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityPerson, got.Type)
	assert.Equal(t, "Jane Doe", got.Base.Name)
	assert.Empty(t, got.Enrichment)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_CreateEntity_RefreshesBase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateEntity(ctx, model.Entity{ID: "p-1", Type: model.EntityPerson, Base: model.Attributes{Name: "Jane Doe"}})
	require.NoError(t, err)
	_, err = st.CreateEntity(ctx, model.Entity{ID: "p-1", Type: model.EntityPerson, Base: model.Attributes{Name: "Jane Doe", Email: "jane@acme.com"}})
	require.NoError(t, err)

	got, err := st.ReadBase(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", got.Base.Email)
}

func TestSQLite_CreateEntity_InvalidType(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.CreateEntity(context.Background(), model.Entity{Type: "robot"})
	assert.Error(t, err)
}

func TestSQLite_ReadBase_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.ReadBase(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpsertFieldAndCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateEntity(ctx, model.Entity{ID: "p-1", Type: model.EntityPerson, Base: model.Attributes{Name: "Jane Doe"}})
	require.NoError(t, err)

	n, err := st.CountExisting(ctx, "p-1", model.FieldPhone)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, st.UpsertField(ctx, "p-1", model.FieldPhone, json.RawMessage(`"7135550100"`)))
	require.NoError(t, st.UpsertField(ctx, "p-1", model.FieldPhone, json.RawMessage(`"7135550199"`)))
	require.NoError(t, st.UpsertField(ctx, "p-1", model.FieldBankruptcy, json.RawMessage(`{"has_bankruptcy":false,"cases":[]}`)))

	n, err = st.CountExisting(ctx, "p-1", model.FieldPhone)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "upsert keeps one row per field")

	got, err := st.ReadBase(ctx, "p-1")
	require.NoError(t, err)
	assert.JSONEq(t, `"7135550199"`, string(got.Enrichment[model.FieldPhone]))
	assert.Contains(t, got.Enrichment, model.FieldBankruptcy)
}

func TestSQLite_UpsertField_UnknownEntity(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.UpsertField(context.Background(), "ghost", model.FieldPhone, json.RawMessage(`"1"`))
	assert.Error(t, err)
}
