package source

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testKeys = Credentials{
	ALeads:         "al-key",
	DataAxle:       "da-key",
	HIBP:           "hibp-key",
	WhoisXML:       "whois-key",
	OpenDataNation: "odn-key",
	CourtListener:  "cl-token",
	SocrataToken:   "soda-token",
}

// newTestDeps points every source at srv.
func newTestDeps(t *testing.T, handler http.Handler) Deps {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cat := DefaultCatalog()
	for name, s := range cat {
		s.BaseURL = srv.URL + "/" + name
		cat[name] = s
	}
	client := fetcher.New(fetcher.Options{
		Timeout: 5 * time.Second,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
	return Deps{
		HTTP:    client,
		Bulk:    fetcher.NewBulk(client, time.Hour),
		Catalog: cat,
		Keys:    testKeys,
		LicenseFiles: map[string]string{
			"cpa":   srv.URL + "/license_bulk/cpa.csv",
			"nurse": srv.URL + "/license_bulk/nurse.csv",
		},
		Now: func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func person(name string) Subject {
	return Subject{
		EntityID:   "p-1",
		Type:       model.EntityPerson,
		Attributes: model.Attributes{Name: name},
	}
}
