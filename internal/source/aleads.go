package source

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/resilience"
)

// aLeadsClient talks to the A-Leads contact, family and social endpoints.
type aLeadsClient struct {
	http    *fetcher.Client
	baseURL string
	apiKey  string
	// contacts shares one /search call between the phone and email
	// adapters when both run for the same name.
	contacts singleflight.Group
}

func newALeadsClient(d Deps) *aLeadsClient {
	return &aLeadsClient{
		http:    d.HTTP,
		baseURL: strings.TrimRight(d.Catalog.baseURL(ALeads), "/"),
		apiKey:  d.Keys.ALeads,
	}
}

type aLeadsContact struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (c *aLeadsClient) post(ctx context.Context, path string, body, out any) error {
	return c.http.JSON(ctx, fetcher.Request{
		Source: ALeads,
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Header: map[string]string{"X-API-Key": c.apiKey},
		Body:   body,
	}, out)
}

// contactAnswer is one /search result shared by concurrent callers. The
// first caller to claim it bills the lookup.
type contactAnswer struct {
	contact *aLeadsContact
	claimed atomic.Bool
}

func (a *contactAnswer) claim() bool { return a.claimed.CompareAndSwap(false, true) }

// contact returns the best contact match for name.
func (c *aLeadsClient) contact(ctx context.Context, name string) (*contactAnswer, error) {
	v, err, _ := c.contacts.Do(strings.ToLower(name), func() (any, error) {
		var resp struct {
			Results []aLeadsContact `json:"results"`
		}
		err := c.post(ctx, "/search", map[string]any{
			"names":  []string{name},
			"fields": []string{"phone", "email"},
			"limit":  1,
		}, &resp)
		if err != nil {
			return nil, err
		}
		ans := &contactAnswer{}
		if len(resp.Results) > 0 {
			ans.contact = &resp.Results[0]
		}
		return ans, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*contactAnswer), nil
}

// NormalizePhone keeps the last ten digits of a phone number.
func NormalizePhone(raw string) string {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) < 10 {
		return ""
	}
	return string(digits[len(digits)-10:])
}

// NormalizeEmail lowercases an address and rejects values without a domain.
func NormalizeEmail(raw string) string {
	return Subject{Attributes: model.Attributes{Email: raw}}.EmailAddress()
}

type contactAdapter struct {
	base
	client  *aLeadsClient
	extract func(aLeadsContact) string
}

// newPhoneAdapter enriches phone from A-Leads contact search.
func newPhoneAdapter(c *aLeadsClient) Adapter {
	return &contactAdapter{
		base:    base{field: model.FieldPhone, source: ALeads},
		client:  c,
		extract: func(ct aLeadsContact) string { return NormalizePhone(ct.Phone) },
	}
}

// newEmailAdapter enriches email from A-Leads contact search.
func newEmailAdapter(c *aLeadsClient) Adapter {
	return &contactAdapter{
		base:    base{field: model.FieldEmail, source: ALeads},
		client:  c,
		extract: func(ct aLeadsContact) string { return NormalizeEmail(ct.Email) },
	}
}

func (a *contactAdapter) Eligible(s Subject) bool {
	return a.client.apiKey != "" && s.DisplayName() != ""
}

func (a *contactAdapter) Fetch(ctx context.Context, s Subject) Result {
	ans, err := a.client.contact(ctx, s.DisplayName())
	if err != nil {
		return Failed(err)
	}
	billable := ans.claim()
	if ans.contact == nil {
		return NoData(billable)
	}
	v := a.extract(*ans.contact)
	if v == "" {
		return NoData(billable)
	}
	return Result{Value: v, Billable: billable}
}

type relativesAdapter struct {
	base
	client *aLeadsClient
}

// newRelativesAdapter enriches relatives_deep from the A-Leads family graph.
func newRelativesAdapter(c *aLeadsClient) Adapter {
	return &relativesAdapter{base: base{field: model.FieldRelativesDeep, source: ALeads}, client: c}
}

func (a *relativesAdapter) Eligible(s Subject) bool {
	return a.client.apiKey != "" && s.PersonName().Valid()
}

type aLeadsPerson struct {
	Relationship string `json:"relationship"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

const maxRelatives = 50

func (a *relativesAdapter) Fetch(ctx context.Context, s Subject) Result {
	n := s.PersonName()
	var resp struct {
		Results []struct {
			Family     []aLeadsPerson `json:"family"`
			Associates []aLeadsPerson `json:"associates"`
		} `json:"results"`
	}
	err := a.client.post(ctx, "/family", map[string]string{"first_name": n.First, "last_name": n.Last}, &resp)
	if resilience.IsNotFound(err) {
		return NoData(false)
	}
	if err != nil {
		return Failed(err)
	}
	if len(resp.Results) == 0 {
		return NoData(true)
	}

	var out []model.Relative
	add := func(people []aLeadsPerson, rel, src string) {
		for _, p := range people {
			if len(out) == maxRelatives {
				return
			}
			if strings.TrimSpace(p.Name) == "" {
				continue
			}
			r := model.Relative{
				Relationship: p.Relationship,
				Name:         strings.TrimSpace(p.Name),
				Age:          p.Age,
				Address:      p.Address,
				Phone:        NormalizePhone(p.Phone),
				Email:        NormalizeEmail(p.Email),
				Source:       src,
			}
			if r.Relationship == "" {
				r.Relationship = rel
			}
			out = append(out, r)
		}
	}
	add(resp.Results[0].Family, "relative", "a_leads_family")
	add(resp.Results[0].Associates, "associate", "a_leads_associates")

	if len(out) == 0 {
		return NoData(true)
	}
	return Found(out)
}

type socialAdapter struct {
	base
	client *aLeadsClient
}

// newSocialAdapter enriches social_deep from A-Leads social lookup by email.
func newSocialAdapter(c *aLeadsClient) Adapter {
	return &socialAdapter{base: base{field: model.FieldSocialDeep, source: ALeads}, client: c}
}

func (a *socialAdapter) Eligible(s Subject) bool {
	return a.client.apiKey != "" && s.EmailAddress() != ""
}

func (a *socialAdapter) Fetch(ctx context.Context, s Subject) Result {
	var resp struct {
		Results []struct {
			Twitter   string `json:"twitter"`
			LinkedIn  string `json:"linkedin"`
			Instagram string `json:"instagram"`
			Facebook  string `json:"facebook"`
			TikTok    string `json:"tiktok"`
		} `json:"results"`
	}
	err := a.client.post(ctx, "/social", map[string]string{"email": s.EmailAddress()}, &resp)
	if resilience.IsNotFound(err) {
		return NoData(false)
	}
	if err != nil {
		return Failed(err)
	}
	if len(resp.Results) == 0 {
		return NoData(true)
	}

	r := resp.Results[0]
	p := model.SocialProfile{
		TwitterHandle:   handle(r.Twitter),
		LinkedInURL:     strings.TrimSpace(r.LinkedIn),
		InstagramHandle: handle(r.Instagram),
		FacebookURL:     strings.TrimSpace(r.Facebook),
		TikTokHandle:    handle(r.TikTok),
	}
	if p.Empty() {
		return NoData(true)
	}
	return Found(p)
}

// handle strips a leading @ and any profile URL prefix.
func handle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimPrefix(s, "@")
}
