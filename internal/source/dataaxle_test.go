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

func TestEmploymentAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data_axle/employment/search", r.URL.Path)
		assert.Equal(t, "Bearer da-key", r.Header.Get("Authorization"))
		var body struct {
			Names []string `json:"names"`
			Limit int      `json:"limit"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"Jane Doe"}, body.Names)
		assert.Equal(t, 20, body.Limit)
		_, _ = w.Write([]byte(`{"results":[
			{"job_title":"CFO","employer_name":"Acme Corp","start_date":"2019-01","industry":"Manufacturing"},
			{"job_title":"Intern","employer_name":" "}
		]}`))
	}))
	r := newEmploymentAdapter(newDataAxleClient(deps)).Fetch(context.Background(), person("Doe, Jane"))
	require.True(t, r.HasData())
	assert.Equal(t, []model.Employment{{
		JobTitle: "CFO", Employer: "Acme Corp", StartDate: "2019-01", Industry: "Manufacturing", Source: "data_axle_employment",
	}}, r.Value)
}

func TestFirmographicsAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data_axle/businesses/search", r.URL.Path)
		var body struct {
			Name []string `json:"name"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Name[0] == "Ghost LLC" {
			_, _ = w.Write([]byte(`{"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"name":"ACME WIDGETS LLC","employees":42,"sales_volume":12500000,"sic_code":"3599","naics_code":"332710","year_established":1987}]}`))
	}))
	a := newFirmographicsAdapter(newDataAxleClient(deps))

	assert.False(t, a.Eligible(person("Jane Doe")), "businesses only")

	biz := Subject{EntityID: "b-1", Type: model.EntityBusiness, Attributes: model.Attributes{LegalName: "Acme Widgets LLC"}}
	require.True(t, a.Eligible(biz))
	r := a.Fetch(context.Background(), biz)
	require.True(t, r.HasData())
	assert.Equal(t, model.Firmographics{
		LegalName: "ACME WIDGETS LLC", Employees: 42, SalesVolume: 12500000,
		SICCode: "3599", NAICSCode: "332710", YearFounded: 1987, Source: DataAxle,
	}, r.Value)

	biz.LegalName = "Ghost LLC"
	r = a.Fetch(context.Background(), biz)
	assert.False(t, r.HasData())
	assert.True(t, r.Billable)
}

func TestDefaultRegistry(t *testing.T) {
	deps := newTestDeps(t, http.NotFoundHandler())
	reg := NewDefaultRegistry(deps)

	fields := reg.Fields()
	assert.Len(t, fields, len(model.AllFields()))
	for _, f := range model.AllFields() {
		a, ok := reg.Get(f)
		require.True(t, ok, "missing adapter for %s", f)
		p, _ := model.PolicyFor(f)
		assert.Equal(t, p.Source, a.Source(), "source for %s", f)
	}

	_, ok := reg.Get("unknown")
	assert.False(t, ok)
}

func TestResultHelpers(t *testing.T) {
	assert.True(t, Found(1).HasData())
	assert.True(t, Found(1).Billable)
	assert.False(t, NoData(true).HasData())
	assert.True(t, NoData(true).Billable)
	assert.True(t, Scanned(1).HasData())
	assert.False(t, Scanned(1).Billable)
	f := Failed(assert.AnError)
	assert.False(t, f.HasData())
	assert.False(t, f.Billable)
	assert.ErrorIs(t, f.Err, assert.AnError)
}
