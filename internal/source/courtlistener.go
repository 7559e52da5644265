package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
)

const (
	maxBankruptcyCases = 20
	maxFederalCases    = 50
	bankruptcySeverity = 8
)

type courtListenerClient struct {
	http    *fetcher.Client
	baseURL string
	token   string
}

func newCourtListenerClient(d Deps) *courtListenerClient {
	return &courtListenerClient{
		http:    d.HTTP,
		baseURL: strings.TrimRight(d.Catalog.baseURL(CourtListener), "/"),
		token:   d.Keys.CourtListener,
	}
}

type docket struct {
	DocketNumber string          `json:"docket_number"`
	CaseName     string          `json:"case_name"`
	Court        json.RawMessage `json:"court"`
	DateFiled    string          `json:"date_filed"`
	CaseType     string          `json:"case_type"`
	NatureOfSuit string          `json:"nature_of_suit"`
}

// courtName accepts both the expanded court object and a bare court id.
func (d docket) courtName() string {
	raw := strings.TrimSpace(string(d.Court))
	if raw == "" || raw == "null" {
		return ""
	}
	if strings.HasPrefix(raw, "{") {
		var c struct {
			ShortName string `json:"short_name"`
			FullName  string `json:"full_name"`
		}
		if json.Unmarshal(d.Court, &c) == nil {
			if c.ShortName != "" {
				return c.ShortName
			}
			return c.FullName
		}
		return ""
	}
	var s string
	if json.Unmarshal(d.Court, &s) == nil {
		return s
	}
	return ""
}

func (c *courtListenerClient) dockets(ctx context.Context, q url.Values) ([]docket, error) {
	req := fetcher.Request{
		Source: CourtListener,
		URL:    c.baseURL + "/dockets/",
		Query:  q,
	}
	if c.token != "" {
		req.Header = map[string]string{"Authorization": "Token " + c.token}
	}
	var resp struct {
		Results []docket `json:"results"`
	}
	if err := c.http.JSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

type bankruptcyAdapter struct {
	base
	client *courtListenerClient
}

func newBankruptcyAdapter(c *courtListenerClient) Adapter {
	return &bankruptcyAdapter{base: base{field: model.FieldBankruptcy, source: CourtListener}, client: c}
}

func (a *bankruptcyAdapter) Eligible(s Subject) bool {
	return debtorName(s) != ""
}

// debtorName is the last name for people and the legal name for businesses.
func debtorName(s Subject) string {
	if s.Type == model.EntityBusiness {
		return strings.TrimSpace(s.DisplayName())
	}
	return s.PersonName().Last
}

func (a *bankruptcyAdapter) Fetch(ctx context.Context, s Subject) Result {
	name := strings.ReplaceAll(debtorName(s), `"`, "")
	results, err := a.client.dockets(ctx, url.Values{
		"q":         {`debtor:"` + name + `"`},
		"type":      {"bk"},
		"order_by":  {"dateFiled desc"},
		"page_size": {strconv.Itoa(maxBankruptcyCases)},
	})
	if err != nil {
		return Failed(err)
	}

	rec := model.BankruptcyRecord{Cases: make([]model.BankruptcyCase, 0, len(results))}
	for _, d := range results {
		if len(rec.Cases) == maxBankruptcyCases {
			break
		}
		rec.Cases = append(rec.Cases, model.BankruptcyCase{
			DocketNumber: d.DocketNumber,
			CaseName:     d.CaseName,
			Court:        d.courtName(),
			FiledDate:    d.DateFiled,
			Severity:     bankruptcySeverity,
		})
	}
	rec.HasBankruptcy = len(rec.Cases) > 0
	return Found(rec)
}

type federalCasesAdapter struct {
	base
	client *courtListenerClient
}

func newFederalCasesAdapter(c *courtListenerClient) Adapter {
	return &federalCasesAdapter{base: base{field: model.FieldFederalCases, source: CourtListener}, client: c}
}

func (a *federalCasesAdapter) Eligible(s Subject) bool {
	return s.PersonName().Valid()
}

func (a *federalCasesAdapter) Fetch(ctx context.Context, s Subject) Result {
	results, err := a.client.dockets(ctx, url.Values{
		"name":                {s.PersonName().Full()},
		"court__jurisdiction": {"federal"},
		"page_size":           {strconv.Itoa(maxFederalCases)},
	})
	if err != nil {
		return Failed(err)
	}

	var cases []model.FederalCase
	for _, d := range results {
		if len(cases) == maxFederalCases {
			break
		}
		if d.DocketNumber == "" {
			continue
		}
		cases = append(cases, model.FederalCase{
			CaseNumber: d.DocketNumber,
			CaseTitle:  d.CaseName,
			Court:      d.courtName(),
			FiledDate:  d.DateFiled,
			CaseType:   d.CaseType,
			NatureSuit: d.NatureOfSuit,
			Source:     "courtlistener_federal",
		})
	}
	if len(cases) == 0 {
		return NoData(true)
	}
	return Found(cases)
}
