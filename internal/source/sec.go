package source

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
)

const (
	maxSECFilings = 20
	// officerMatchThreshold is the minimum name similarity for a fuzzy match.
	officerMatchThreshold = 0.8
)

type secAdapter struct {
	base
	http    *fetcher.Client
	baseURL string
	now     func() time.Time
}

func newSECAdapter(d Deps) Adapter {
	return &secAdapter{
		base:    base{field: model.FieldSECFilings, source: SECEdgar},
		http:    d.HTTP,
		baseURL: d.Catalog.baseURL(SECEdgar),
		now:     d.Now,
	}
}

func (a *secAdapter) Eligible(s Subject) bool {
	return s.PersonName().Valid()
}

type secEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

func (a *secAdapter) Fetch(ctx context.Context, s Subject) Result {
	// The feed lags by a day.
	day := a.now().UTC().AddDate(0, 0, -1).Format("20060102")
	body, err := a.http.Do(ctx, fetcher.Request{
		Source: SECEdgar,
		URL:    a.baseURL,
		Query: url.Values{
			"action": {"getcompany"},
			"type":   {"3,4,5"},
			"dateb":  {day},
			"owner":  {"include"},
			"count":  {"100"},
			"output": {"atom"},
		},
		Header: map[string]string{"Accept": "application/atom+xml"},
	})
	if err != nil {
		return Failed(err)
	}

	n := s.PersonName()
	var filings []model.SECFiling
	err = fetcher.DecodeXML(ctx, bytes.NewReader(body), "entry", func(e secEntry) error {
		f, ok := parseSECEntry(e)
		if !ok || !officerMatches(f.Officer, n) {
			return nil
		}
		filings = append(filings, f)
		if len(filings) == maxSECFilings {
			return fetcher.ErrStop
		}
		return nil
	})
	if err != nil {
		return Failed(eris.Wrap(err, "sec_edgar: parse feed"))
	}
	if len(filings) == 0 {
		return NoData(true)
	}
	return Found(filings)
}

var (
	secCompanyRe = regexp.MustCompile(`Company:\s*(.+?)\s+Form`)
	secCIKRe     = regexp.MustCompile(`\((\d{10})\)`)
)

// parseSECEntry reads titles of the form "4 - DOE JANE (0001234567) (Reporting)".
func parseSECEntry(e secEntry) (model.SECFiling, bool) {
	title := strings.TrimSpace(e.Title)
	form, rest, ok := strings.Cut(title, " - ")
	if !ok {
		return model.SECFiling{}, false
	}
	form = strings.TrimSpace(strings.TrimPrefix(form, "Form "))
	switch strings.TrimSuffix(form, "/A") {
	case "3", "4", "5":
	default:
		return model.SECFiling{}, false
	}

	officer := rest
	if i := strings.Index(rest, " ("); i >= 0 {
		officer = rest[:i]
	}

	f := model.SECFiling{
		FormType: form,
		Officer:  strings.TrimSpace(officer),
		Title:    title,
		URL:      e.Link.Href,
	}
	if m := secCompanyRe.FindStringSubmatch(e.Summary); m != nil {
		f.CompanyName = m[1]
	}
	if f.CompanyName == "" {
		f.CompanyName = "Unknown"
	}
	if date, _, ok := strings.Cut(e.Updated, "T"); ok {
		f.FiledDate = date
	}
	if u, err := url.Parse(e.Link.Href); err == nil {
		q := u.Query()
		f.CIK = q.Get("CIK")
		f.AccessionNumber = q.Get("accession_number")
	}
	if f.CIK == "" {
		if m := secCIKRe.FindStringSubmatch(rest); m != nil {
			f.CIK = m[1]
		}
	}
	return f, true
}

// officerMatches compares an EDGAR reporting-owner name (usually
// "LAST FIRST MIDDLE") against n in both word orders.
func officerMatches(officer string, n Name) bool {
	o := Fold(officer)
	if o == "" || !n.Valid() {
		return false
	}
	for _, candidate := range []string{Fold(n.Full()), Fold(n.Reversed())} {
		if candidate == "" {
			continue
		}
		if o == candidate || strings.Contains(o, candidate) || strings.Contains(candidate, o) {
			return true
		}
		if levenshtein.Similarity(o, candidate, nil) >= officerMatchThreshold {
			return true
		}
	}
	return false
}
