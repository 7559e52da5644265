package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/resilience"
)

const (
	maxVehicles = 20
	maxBoats    = 20
)

type vehiclesAdapter struct {
	base
	http    *fetcher.Client
	baseURL string
	apiKey  string
}

func newVehiclesAdapter(d Deps) Adapter {
	return &vehiclesAdapter{
		base:    base{field: model.FieldVehicles, source: OpenDataNation},
		http:    d.HTTP,
		baseURL: strings.TrimRight(d.Catalog.baseURL(OpenDataNation), "/"),
		apiKey:  d.Keys.OpenDataNation,
	}
}

// Eligible needs both name parts; the registry search rejects partial names.
func (a *vehiclesAdapter) Eligible(s Subject) bool {
	n := s.PersonName()
	return n.First != "" && n.Last != ""
}

func (a *vehiclesAdapter) Fetch(ctx context.Context, s Subject) Result {
	n := s.PersonName()
	req := fetcher.Request{
		Source: OpenDataNation,
		URL:    a.baseURL + "/search",
		Query:  url.Values{"first_name": {n.First}, "last_name": {n.Last}},
	}
	if a.apiKey != "" {
		req.Header = map[string]string{"Authorization": "Bearer " + a.apiKey}
	}

	var resp struct {
		Vehicles []struct {
			Year         flexString `json:"year"`
			Make         string     `json:"make"`
			Model        string     `json:"model"`
			VIN          string     `json:"vin"`
			LicensePlate string     `json:"license_plate"`
			State        string     `json:"state"`
			OwnerName    string     `json:"owner_name"`
		} `json:"vehicles"`
	}
	err := a.http.JSON(ctx, req, &resp)
	if resilience.IsNotFound(err) {
		return NoData(true)
	}
	if err != nil {
		return Failed(err)
	}

	var out []model.Vehicle
	for _, v := range resp.Vehicles {
		if len(out) == maxVehicles {
			break
		}
		out = append(out, model.Vehicle{
			Year:              string(v.Year),
			Make:              v.Make,
			Model:             v.Model,
			VIN:               strings.ToUpper(v.VIN),
			LicensePlate:      v.LicensePlate,
			RegistrationState: v.State,
			OwnerName:         v.OwnerName,
		})
	}
	if len(out) == 0 {
		return NoData(true)
	}
	return Found(out)
}

type boatAdapter struct {
	base
	http    *fetcher.Client
	baseURL string
}

func newBoatAdapter(d Deps) Adapter {
	return &boatAdapter{
		base:    base{field: model.FieldBoat, source: USCG},
		http:    d.HTTP,
		baseURL: strings.TrimRight(d.Catalog.baseURL(USCG), "/"),
	}
}

func (a *boatAdapter) Eligible(s Subject) bool {
	return s.PersonName().Valid() && strings.TrimSpace(s.State) != ""
}

func (a *boatAdapter) Fetch(ctx context.Context, s Subject) Result {
	var resp struct {
		Vessels []struct {
			VesselID   string     `json:"vessel_id"`
			HullID     string     `json:"hull_id"`
			VesselName string     `json:"vessel_name"`
			YearBuilt  flexString `json:"year_built"`
			RegDate    string     `json:"registration_date"`
			State      string     `json:"hailing_port_state"`
		} `json:"vessels"`
	}
	err := a.http.JSON(ctx, fetcher.Request{
		Source: USCG,
		URL:    a.baseURL + "/vessels",
		Query: url.Values{
			"owner_name": {s.PersonName().Reversed()},
			"state":      {strings.ToUpper(strings.TrimSpace(s.State))},
		},
	}, &resp)
	if resilience.IsNotFound(err) {
		return NoData(true)
	}
	if err != nil {
		return Failed(err)
	}

	var out []model.Boat
	for _, v := range resp.Vessels {
		if len(out) == maxBoats {
			break
		}
		id := v.HullID
		if id == "" {
			id = v.VesselID
		}
		out = append(out, model.Boat{
			HullID:     id,
			VesselName: v.VesselName,
			Year:       string(v.YearBuilt),
			RegDate:    v.RegDate,
			State:      v.State,
			Source:     USCG,
		})
	}
	if len(out) == 0 {
		return NoData(true)
	}
	return Found(out)
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.Trim(s, `"`))
	return nil
}
