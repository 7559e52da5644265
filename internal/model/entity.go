// Package model defines the entity, base attributes, and enrichment record
// shared by the orchestrator, source adapters, and persistence layers.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// EntityType distinguishes people from businesses.
type EntityType string

const (
	EntityPerson   EntityType = "person"
	EntityBusiness EntityType = "business"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityPerson || t == EntityBusiness
}

// Attributes is the base record an entity was created with.
type Attributes struct {
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	LegalName string `json:"legal_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	DOB       string `json:"dob,omitempty"`
}

// DisplayName returns the best available name for matching.
func (a Attributes) DisplayName() string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(a.FirstName + " " + a.LastName); n != "" {
		return n
	}
	return strings.TrimSpace(a.LegalName)
}

// Record maps enrichment fields to their JSON-encoded values.
type Record map[Field]json.RawMessage

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Entity is a person or business identified by a canonical ID.
type Entity struct {
	ID         string     `json:"id"`
	Type       EntityType `json:"entity_type"`
	Base       Attributes `json:"base"`
	Enrichment Record     `json:"enrichment,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
