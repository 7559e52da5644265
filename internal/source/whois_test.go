package source

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredDomains(t *testing.T) {
	raw := `Domain Name: EXAMPLE.COM
Registrar WHOIS Server: whois.godaddy.com
Registrar URL: http://www.godaddy.com/whois
Registrant Email: owner@example.co.uk
Name Server: NS1.EXAMPLE.COM.
Version: 1.2
Updated: 2024.01.02
Blog: https://blog.example.org/path?x=1`

	assert.Equal(t, []string{"example.com", "godaddy.com", "example.co.uk", "example.org"}, RegisteredDomains(raw, 10))
	assert.Equal(t, []string{"example.com", "godaddy.com"}, RegisteredDomains(raw, 2))
	assert.Empty(t, RegisteredDomains("no domains here", 10))
}

func TestDomainsAdapter(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "whois-key", q.Get("apiKey"))
		assert.Equal(t, "JSON", q.Get("outputFormat"))
		if q.Get("domainName") == "empty.com" {
			_, _ = w.Write([]byte(`{"WhoisRecord":{}}`))
			return
		}
		assert.Equal(t, "acme.com", q.Get("domainName"))
		_, _ = w.Write([]byte(`{"WhoisRecord":{"registryData":{"rawText":"Domain Name: ACME.COM\nRegistrant Email: ops@acme-holdings.net"}}}`))
	}))
	a := newDomainsAdapter(deps)

	s := person("Jane Doe")
	s.Email = "jane@acme.com"
	require.True(t, a.Eligible(s))

	r := a.Fetch(context.Background(), s)
	require.True(t, r.HasData())
	assert.Equal(t, []string{"acme.com", "acme-holdings.net"}, r.Value)

	s.Email = "jane@empty.com"
	r = a.Fetch(context.Background(), s)
	assert.False(t, r.HasData())
	assert.True(t, r.Billable)
}
