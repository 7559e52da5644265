package source

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/risk-enrichment/internal/model"
)

func TestVehiclesAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/opendatanation/search", r.URL.Path)
		assert.Equal(t, "Bearer odn-key", r.Header.Get("Authorization"))
		if r.URL.Query().Get("last_name") == "Nobody" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "Jane", r.URL.Query().Get("first_name"))
		_, _ = w.Write([]byte(`{"vehicles":[
			{"year":2019,"make":"Toyota","model":"Camry","vin":"4t1b11hk5ku000001","license_plate":"ABC1234","state":"TX","owner_name":"JANE DOE"},
			{"year":"2008","make":"Ford","model":"F-150"}
		]}`))
	}))
	a := newVehiclesAdapter(deps)

	assert.False(t, a.Eligible(person("Doe")), "needs first and last name")

	r := a.Fetch(context.Background(), person("Jane Doe"))
	require.True(t, r.HasData())
	vs := r.Value.([]model.Vehicle)
	require.Len(t, vs, 2)
	assert.Equal(t, model.Vehicle{
		Year: "2019", Make: "Toyota", Model: "Camry", VIN: "4T1B11HK5KU000001",
		LicensePlate: "ABC1234", RegistrationState: "TX", OwnerName: "JANE DOE",
	}, vs[0])
	assert.Equal(t, "2008", vs[1].Year)

	r = a.Fetch(context.Background(), person("Jane Nobody"))
	assert.False(t, r.HasData())
	assert.NoError(t, r.Err)
}

func TestBoatAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uscg_psix/vessels", r.URL.Path)
		assert.Equal(t, "Doe Jane", r.URL.Query().Get("owner_name"))
		assert.Equal(t, "TX", r.URL.Query().Get("state"))
		_, _ = w.Write([]byte(`{"vessels":[{"vessel_id":"1234567","vessel_name":"SEA DOE","year_built":2015,"registration_date":"2016-04-01","hailing_port_state":"TX"}]}`))
	}))
	a := newBoatAdapter(deps)

	s := person("Jane Doe")
	assert.False(t, a.Eligible(s), "needs a state")
	s.State = " tx "
	require.True(t, a.Eligible(s))

	r := a.Fetch(context.Background(), s)
	require.True(t, r.HasData())
	boats := r.Value.([]model.Boat)
	require.Len(t, boats, 1)
	assert.Equal(t, model.Boat{HullID: "1234567", VesselName: "SEA DOE", Year: "2015", RegDate: "2016-04-01", State: "TX", Source: USCG}, boats[0])
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1999,"b":"2001","c":null}`), &v))
	assert.Equal(t, flexString("1999"), v.A)
	assert.Equal(t, flexString("2001"), v.B)
	assert.Equal(t, flexString(""), v.C)
}
