package source

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/risk-enrichment/internal/model"
)

func TestBankruptcyAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courtlistener/dockets/", r.URL.Path)
		assert.Equal(t, "Token cl-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "bk", q.Get("type"))
		assert.Equal(t, "dateFiled desc", q.Get("order_by"))
		assert.Equal(t, "20", q.Get("page_size"))

		if q.Get("q") == `debtor:"Clean"` {
			_, _ = w.Write([]byte(`{"count":0,"results":[]}`))
			return
		}
		assert.Equal(t, `debtor:"Doe"`, q.Get("q"))
		_, _ = w.Write([]byte(`{"results":[
			{"docket_number":"4:24-bk-1001","case_name":"In re Jane Doe","court":{"short_name":"S.D. Tex.","full_name":"Southern District of Texas"},"date_filed":"2024-03-01"},
			{"docket_number":"19-2002","case_name":"In re J. Doe","court":"txsb","date_filed":"2019-06-10"}
		]}`))
	}))
	a := newBankruptcyAdapter(newCourtListenerClient(deps))

	r := a.Fetch(context.Background(), person("Jane Doe"))
	require.True(t, r.HasData())
	rec := r.Value.(model.BankruptcyRecord)
	assert.True(t, rec.HasBankruptcy)
	require.Len(t, rec.Cases, 2)
	assert.Equal(t, "S.D. Tex.", rec.Cases[0].Court)
	assert.Equal(t, "txsb", rec.Cases[1].Court)
	assert.Equal(t, 8, rec.Cases[0].Severity)

	// A clean search is still an answer.
	r = a.Fetch(context.Background(), person("Jane Clean"))
	require.True(t, r.HasData())
	rec = r.Value.(model.BankruptcyRecord)
	assert.False(t, rec.HasBankruptcy)
	assert.Empty(t, rec.Cases)
}

func TestBankruptcyAdapter_Business(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `debtor:"Acme Widgets LLC"`, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	a := newBankruptcyAdapter(newCourtListenerClient(deps))

	s := Subject{Type: model.EntityBusiness, Attributes: model.Attributes{LegalName: `Acme "Widgets" LLC`}}
	require.True(t, a.Eligible(s))
	r := a.Fetch(context.Background(), s)
	assert.True(t, r.HasData())
}

func TestBankruptcyAdapter_ServerError(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	r := newBankruptcyAdapter(newCourtListenerClient(deps)).Fetch(context.Background(), person("Jane Doe"))
	assert.False(t, r.HasData())
	assert.False(t, r.Billable)
	assert.Error(t, r.Err)
}

func TestFederalCasesAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Jane Doe", q.Get("name"))
		assert.Equal(t, "federal", q.Get("court__jurisdiction"))
		assert.Equal(t, "50", q.Get("page_size"))
		_, _ = w.Write([]byte(`{"results":[
			{"docket_number":"1:23-cv-0042","case_name":"Doe v. Acme","court":{"short_name":"N.D. Ill."},"date_filed":"2023-01-05","nature_of_suit":"Contract"},
			{"docket_number":"","case_name":"missing number"},
			{"docket_number":"2:22-cr-0099","case_name":"USA v. Doe","court":null}
		]}`))
	}))
	r := newFederalCasesAdapter(newCourtListenerClient(deps)).Fetch(context.Background(), person("Doe, Jane"))
	require.True(t, r.HasData())
	cases := r.Value.([]model.FederalCase)
	require.Len(t, cases, 2)
	assert.Equal(t, "N.D. Ill.", cases[0].Court)
	assert.Equal(t, "Contract", cases[0].NatureSuit)
	assert.Equal(t, "", cases[1].Court)
	assert.Equal(t, "courtlistener_federal", cases[1].Source)
}

func TestFederalCasesAdapter_None(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	r := newFederalCasesAdapter(newCourtListenerClient(deps)).Fetch(context.Background(), person("Jane Doe"))
	assert.False(t, r.HasData())
	assert.True(t, r.Billable)
}
