package source

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
)

const maxDomains = 10

type domainsAdapter struct {
	base
	http    *fetcher.Client
	baseURL string
	apiKey  string
}

func newDomainsAdapter(d Deps) Adapter {
	return &domainsAdapter{
		base:    base{field: model.FieldDomains, source: WhoisXML},
		http:    d.HTTP,
		baseURL: d.Catalog.baseURL(WhoisXML),
		apiKey:  d.Keys.WhoisXML,
	}
}

func (a *domainsAdapter) Eligible(s Subject) bool {
	return a.apiKey != "" && s.EmailAddress() != ""
}

func (a *domainsAdapter) Fetch(ctx context.Context, s Subject) Result {
	email := s.EmailAddress()
	domain := email[strings.LastIndex(email, "@")+1:]

	var resp struct {
		WhoisRecord struct {
			RawText      string `json:"rawText"`
			RegistryData struct {
				RawText string `json:"rawText"`
			} `json:"registryData"`
		} `json:"WhoisRecord"`
	}
	err := a.http.JSON(ctx, fetcher.Request{
		Source: WhoisXML,
		URL:    a.baseURL,
		Query: url.Values{
			"apiKey":       {a.apiKey},
			"domainName":   {domain},
			"outputFormat": {"JSON"},
		},
	}, &resp)
	if err != nil {
		return Failed(err)
	}

	raw := resp.WhoisRecord.RawText
	if raw == "" {
		raw = resp.WhoisRecord.RegistryData.RawText
	}
	domains := RegisteredDomains(raw, maxDomains)
	if len(domains) == 0 {
		return NoData(true)
	}
	return Found(domains)
}

// RegisteredDomains extracts distinct registrable domains (eTLD+1) from
// free text in order of first appearance, up to limit.
func RegisteredDomains(text string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(text) {
		if len(out) == limit {
			break
		}
		host := hostFromToken(tok)
		if host == "" {
			continue
		}
		if _, icann := publicsuffix.PublicSuffix(host); !icann {
			continue
		}
		reg, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil || seen[reg] {
			continue
		}
		seen[reg] = true
		out = append(out, reg)
	}
	return out
}

// hostFromToken reduces a WHOIS token (URL, email or bare name) to a
// lowercase hostname, or "" when it cannot be one.
func hostFromToken(tok string) string {
	tok = strings.ToLower(strings.Trim(tok, `"'()<>[],;:`))
	if i := strings.Index(tok, "://"); i >= 0 {
		tok = tok[i+3:]
	}
	if i := strings.LastIndex(tok, "@"); i >= 0 {
		tok = tok[i+1:]
	}
	if i := strings.IndexAny(tok, "/?#"); i >= 0 {
		tok = tok[:i]
	}
	tok = strings.TrimSuffix(tok, ".")
	if !strings.Contains(tok, ".") || strings.HasPrefix(tok, ".") {
		return ""
	}
	for _, r := range tok {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.') {
			return ""
		}
	}
	return tok
}
