package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
)

const maxEvictionRows = 100

type evictionAdapter struct {
	base
	http     *fetcher.Client
	resource string
	appToken string
}

func newEvictionAdapter(d Deps) Adapter {
	return &evictionAdapter{
		base:     base{field: model.FieldEvictionCount, source: HarrisCounty},
		http:     d.HTTP,
		resource: d.Catalog.baseURL(HarrisCounty),
		appToken: d.Keys.SocrataToken,
	}
}

func (a *evictionAdapter) Eligible(s Subject) bool {
	return s.PersonName().Valid()
}

// soqlLike escapes s for use inside a SoQL single-quoted LIKE pattern.
func soqlLike(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("'", "''", "%", "", "_", "").Replace(s)
	return "'%" + s + "%'"
}

func (a *evictionAdapter) Fetch(ctx context.Context, s Subject) Result {
	n := s.PersonName()
	where := "lower(defendant) LIKE " + soqlLike(n.Last)
	if n.First != "" {
		where += " AND lower(defendant) LIKE " + soqlLike(n.First)
	}

	req := fetcher.Request{
		Source: HarrisCounty,
		URL:    a.resource,
		Query: url.Values{
			"$select": {"case_number, filed_date, defendant"},
			"$where":  {where},
			"$order":  {"filed_date DESC"},
			"$limit":  {strconv.Itoa(maxEvictionRows)},
		},
	}
	if a.appToken != "" {
		req.Header = map[string]string{"X-App-Token": a.appToken}
	}

	var rows []struct {
		CaseNumber string `json:"case_number"`
		FiledDate  string `json:"filed_date"`
	}
	if err := a.http.JSON(ctx, req, &rows); err != nil {
		return Failed(err)
	}

	sum := model.EvictionSummary{Count: len(rows), Dates: make([]string, 0, len(rows))}
	for _, r := range rows {
		d := r.FiledDate
		if len(d) > 10 {
			d = d[:10]
		}
		if d != "" {
			sum.Dates = append(sum.Dates, d)
		}
	}
	return Found(sum)
}
