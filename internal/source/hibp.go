package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/resilience"
)

const maxBreaches = 50

type breachAdapter struct {
	base
	http    *fetcher.Client
	baseURL string
	apiKey  string
}

func newBreachAdapter(d Deps) Adapter {
	return &breachAdapter{
		base:    base{field: model.FieldBreachCount, source: HIBP},
		http:    d.HTTP,
		baseURL: strings.TrimRight(d.Catalog.baseURL(HIBP), "/"),
		apiKey:  d.Keys.HIBP,
	}
}

func (a *breachAdapter) Eligible(s Subject) bool {
	return s.EmailAddress() != ""
}

type hibpBreach struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Domain      string   `json:"Domain"`
	BreachDate  string   `json:"BreachDate"`
	DataClasses []string `json:"DataClasses"`
	PwnCount    int64    `json:"PwnCount"`
	IsVerified  bool     `json:"IsVerified"`
	IsSensitive bool     `json:"IsSensitive"`
}

func (a *breachAdapter) Fetch(ctx context.Context, s Subject) Result {
	req := fetcher.Request{
		Source: HIBP,
		URL:    a.baseURL + "/breachedaccount/" + url.PathEscape(s.EmailAddress()),
		Query:  url.Values{"truncateResponse": {"false"}},
	}
	if a.apiKey != "" {
		req.Header = map[string]string{"hibp-api-key": a.apiKey}
	}

	var breaches []hibpBreach
	err := a.http.JSON(ctx, req, &breaches)
	if resilience.IsNotFound(err) {
		// 404 is HIBP's answer for an address with no breaches.
		return Found(model.BreachSummary{Count: 0, Breaches: []model.Breach{}})
	}
	if err != nil {
		return Failed(err)
	}

	sum := model.BreachSummary{Count: len(breaches), Breaches: make([]model.Breach, 0, min(len(breaches), maxBreaches))}
	for _, b := range breaches {
		if len(sum.Breaches) == maxBreaches {
			break
		}
		sum.Breaches = append(sum.Breaches, model.Breach{
			Name:        b.Name,
			Title:       b.Title,
			Domain:      b.Domain,
			BreachDate:  b.BreachDate,
			DataClasses: b.DataClasses,
			PwnCount:    b.PwnCount,
			Verified:    b.IsVerified,
			Sensitive:   b.IsSensitive,
		})
	}
	return Found(sum)
}
