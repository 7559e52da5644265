package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field names one enrichment output. The set is fixed.
type Field string

const (
	FieldPhone                Field = "phone"
	FieldEmail                Field = "email"
	FieldBankruptcy           Field = "bankruptcy"
	FieldFederalCases         Field = "federal_cases"
	FieldSECFilings           Field = "sec_filings"
	FieldBreachCount          Field = "breach_count"
	FieldDomains              Field = "domains"
	FieldVehicles             Field = "vehicles"
	FieldBoat                 Field = "boat"
	FieldAircraft             Field = "aircraft"
	FieldEvictionCount        Field = "eviction_count"
	FieldRelativesDeep        Field = "relatives_deep"
	FieldProfessionalLicenses Field = "professional_licenses"
	FieldEducation            Field = "education"
	FieldEmploymentDeep       Field = "employment_deep"
	FieldSocialDeep           Field = "social_deep"
	FieldFirmographics        Field = "firmographics"
)

// Presence decides when a stored value counts as already enriched.
type Presence int

const (
	// PresenceNonEmpty treats null, "", [] and {} as missing.
	PresenceNonEmpty Presence = iota
	// PresenceSet treats any non-null value as present, including zero counts.
	PresenceSet
)

// Policy is the per-field enrichment policy.
type Policy struct {
	Field    Field
	Source   string
	Presence Presence
	Durable  bool
	// DurableFlag, when set, names a top-level boolean that must be true
	// for a value to be persisted. Other values live in the cache only.
	DurableFlag string
	TTL         time.Duration
	Types       []EntityType
}

// AppliesTo reports whether the field is enriched for entities of type t.
func (p Policy) AppliesTo(t EntityType) bool {
	for _, et := range p.Types {
		if et == t {
			return true
		}
	}
	return false
}

// Present reports whether raw satisfies the field's presence rule.
func (p Policy) Present(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return false
	}
	if p.Presence == PresenceSet {
		return true
	}
	switch string(v) {
	case `""`, "[]", "{}":
		return false
	}
	// Whitespace inside empty containers, e.g. "[ ]".
	if len(v) >= 2 && (v[0] == '[' || v[0] == '{') && len(bytes.TrimSpace(v[1:len(v)-1])) == 0 {
		return false
	}
	return true
}

// Persists reports whether raw is written to the durable store.
func (p Policy) Persists(raw json.RawMessage) bool {
	if !p.Durable || !p.Present(raw) {
		return false
	}
	if p.DurableFlag == "" {
		return true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return bytes.Equal(bytes.TrimSpace(obj[p.DurableFlag]), []byte("true"))
}

var (
	both   = []EntityType{EntityPerson, EntityBusiness}
	person = []EntityType{EntityPerson}
)

var policies = []Policy{
	{Field: FieldPhone, Source: "a_leads", Presence: PresenceNonEmpty, Durable: true, TTL: 24 * time.Hour, Types: both},
	{Field: FieldEmail, Source: "a_leads", Presence: PresenceNonEmpty, Durable: true, TTL: 24 * time.Hour, Types: both},
	{Field: FieldBankruptcy, Source: "courtlistener", Presence: PresenceSet, Durable: true, DurableFlag: "has_bankruptcy", TTL: 24 * time.Hour, Types: both},
	{Field: FieldFederalCases, Source: "courtlistener", TTL: 12 * time.Hour, Types: person},
	{Field: FieldSECFilings, Source: "sec_edgar", TTL: time.Hour, Types: person},
	{Field: FieldBreachCount, Source: "hibp", Presence: PresenceSet, TTL: 24 * time.Hour, Types: person},
	{Field: FieldDomains, Source: "whoisxml", TTL: 24 * time.Hour, Types: both},
	{Field: FieldVehicles, Source: "opendatanation", TTL: 24 * time.Hour, Types: person},
	{Field: FieldBoat, Source: "uscg_psix", TTL: 24 * time.Hour, Types: person},
	{Field: FieldAircraft, Source: "faa_registry", TTL: 24 * time.Hour, Types: person},
	{Field: FieldEvictionCount, Source: "harris_county", Presence: PresenceSet, TTL: 24 * time.Hour, Types: person},
	{Field: FieldRelativesDeep, Source: "a_leads", TTL: 24 * time.Hour, Types: person},
	{Field: FieldProfessionalLicenses, Source: "license_bulk", TTL: 24 * time.Hour, Types: person},
	{Field: FieldEducation, Source: "nsc_bulk", TTL: 24 * time.Hour, Types: person},
	{Field: FieldEmploymentDeep, Source: "data_axle", TTL: 24 * time.Hour, Types: person},
	{Field: FieldSocialDeep, Source: "a_leads", TTL: 12 * time.Hour, Types: person},
	{Field: FieldFirmographics, Source: "data_axle", Presence: PresenceSet, Durable: true, TTL: 24 * time.Hour, Types: []EntityType{EntityBusiness}},
}

var policyByField = func() map[Field]Policy {
	m := make(map[Field]Policy, len(policies))
	for _, p := range policies {
		m[p.Field] = p
	}
	return m
}()

// AllFields returns every field in declaration order.
func AllFields() []Field {
	out := make([]Field, len(policies))
	for i, p := range policies {
		out[i] = p.Field
	}
	return out
}

// FieldsFor returns the fields enriched for entity type t, in declaration order.
func FieldsFor(t EntityType) []Field {
	var out []Field
	for _, p := range policies {
		if p.AppliesTo(t) {
			out = append(out, p.Field)
		}
	}
	return out
}

// PolicyFor returns the policy for f. ok is false for unknown fields.
func PolicyFor(f Field) (Policy, bool) {
	p, ok := policyByField[f]
	return p, ok
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	_, ok := policyByField[f]
	return ok
}
