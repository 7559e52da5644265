// Package store persists entities and their durable enrichment fields.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-enrichment/internal/model"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = eris.New("store: entity not found")

// Store defines the persistence interface used by the orchestrator.
type Store interface {
	// ReadBase returns the entity's base attributes and stored
	// enrichment fields, or ErrNotFound.
	ReadBase(ctx context.Context, id string) (*model.Entity, error)
	// CreateEntity inserts or refreshes e. An empty ID is assigned a UUID.
	CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error)
	UpsertField(ctx context.Context, id string, field model.Field, value json.RawMessage) error
	// CountExisting returns how many stored values exist for the field.
	CountExisting(ctx context.Context, id string, field model.Field) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

func validateEntity(e model.Entity) error {
	if !e.Type.Valid() {
		return eris.Errorf("store: invalid entity type %q", e.Type)
	}
	return nil
}
