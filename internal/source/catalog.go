package source

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/risk-enrichment/internal/ratelimit"
)

// Source names.
const (
	ALeads         = "a_leads"
	DataAxle       = "data_axle"
	HIBP           = "hibp"
	WhoisXML       = "whoisxml"
	CourtListener  = "courtlistener"
	SECEdgar       = "sec_edgar"
	OpenDataNation = "opendatanation"
	USCG           = "uscg_psix"
	HarrisCounty   = "harris_county"
	FAARegistry    = "faa_registry"
	LicenseBulk    = "license_bulk"
	NSCBulk        = "nsc_bulk"
)

// Spec holds the per-source limits and endpoint.
type Spec struct {
	Name string `yaml:"-"`
	// MonthlyLimit is the free-tier allowance. Zero means unmetered.
	MonthlyLimit int           `yaml:"monthly_limit"`
	Concurrency  int           `yaml:"concurrency"`
	Cooldown     time.Duration `yaml:"cooldown"`
	RatePerSec   float64       `yaml:"rate_per_sec"`
	Timeout      time.Duration `yaml:"timeout"`
	BaseURL      string        `yaml:"base_url"`
}

// Catalog is the set of known sources keyed by name.
type Catalog map[string]Spec

// DefaultCatalog returns the built-in source settings.
func DefaultCatalog() Catalog {
	specs := []Spec{
		{Name: ALeads, MonthlyLimit: 60000, Concurrency: 10, Cooldown: 100 * time.Millisecond, Timeout: 15 * time.Second, BaseURL: "https://app.a-leads.co/api/v2"},
		{Name: DataAxle, MonthlyLimit: 6000, Concurrency: 5, Cooldown: 100 * time.Millisecond, Timeout: 15 * time.Second, BaseURL: "https://api.data-axle.com/v2"},
		{Name: HIBP, MonthlyLimit: 500, Concurrency: 1, Cooldown: 700 * time.Millisecond, Timeout: 10 * time.Second, BaseURL: "https://haveibeenpwned.com/api/v3"},
		{Name: WhoisXML, MonthlyLimit: 500, Concurrency: 2, Cooldown: 200 * time.Millisecond, Timeout: 15 * time.Second, BaseURL: "https://www.whoisxmlapi.com/whoisserver/WhoisService"},
		{Name: CourtListener, Concurrency: 5, Cooldown: 200 * time.Millisecond, Timeout: 15 * time.Second, BaseURL: "https://www.courtlistener.com/api/rest/v3"},
		{Name: SECEdgar, Concurrency: 10, Cooldown: 100 * time.Millisecond, RatePerSec: 10, Timeout: 10 * time.Second, BaseURL: "https://www.sec.gov/cgi-bin/browse-edgar"},
		{Name: OpenDataNation, Concurrency: 50, Cooldown: 10 * time.Millisecond, Timeout: 10 * time.Second, BaseURL: "https://api.opendatanation.com/vehicle"},
		{Name: USCG, Concurrency: 5, Cooldown: 100 * time.Millisecond, Timeout: 15 * time.Second, BaseURL: "https://cgmix.uscg.mil/api/psix"},
		{Name: HarrisCounty, Concurrency: 5, Timeout: 15 * time.Second, BaseURL: "https://data.harriscountytx.gov/resource/3bgt-xf3c.json"},
		{Name: FAARegistry, Concurrency: 2, Timeout: 60 * time.Second, BaseURL: "https://registry.faa.gov/database/ReleasableAircraft.zip"},
		{Name: LicenseBulk, Concurrency: 2, Timeout: 60 * time.Second},
		{Name: NSCBulk, Concurrency: 2, Timeout: 60 * time.Second, BaseURL: "https://www.studentclearinghouse.org/data/nsc_enrollment_file.csv"},
	}
	c := make(Catalog, len(specs))
	for _, s := range specs {
		c[s.Name] = s
	}
	return c
}

// specOverride distinguishes unset YAML keys from zero values.
type specOverride struct {
	MonthlyLimit *int           `yaml:"monthly_limit"`
	Concurrency  *int           `yaml:"concurrency"`
	Cooldown     *time.Duration `yaml:"cooldown"`
	RatePerSec   *float64       `yaml:"rate_per_sec"`
	Timeout      *time.Duration `yaml:"timeout"`
	BaseURL      *string        `yaml:"base_url"`
}

// LoadCatalog returns the default catalog with overrides from the YAML file
// at path applied. An empty path returns the defaults.
//
//	sources:
//	  hibp:
//	    monthly_limit: 1000
//	    cooldown: 1s
func LoadCatalog(path string) (Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read catalog %s", path)
	}
	var wrapper struct {
		Sources map[string]specOverride `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "source: parse catalog")
	}

	for name, o := range wrapper.Sources {
		s, ok := c[name]
		if !ok {
			return nil, eris.Errorf("source: unknown source %q in catalog", name)
		}
		if o.MonthlyLimit != nil {
			s.MonthlyLimit = *o.MonthlyLimit
		}
		if o.Concurrency != nil {
			s.Concurrency = *o.Concurrency
		}
		if o.Cooldown != nil {
			s.Cooldown = *o.Cooldown
		}
		if o.RatePerSec != nil {
			s.RatePerSec = *o.RatePerSec
		}
		if o.Timeout != nil {
			s.Timeout = *o.Timeout
		}
		if o.BaseURL != nil {
			s.BaseURL = *o.BaseURL
		}
		c[name] = s
	}
	return c, c.Validate()
}

// Validate rejects negative limits and timeouts.
func (c Catalog) Validate() error {
	for _, name := range c.Names() {
		s := c[name]
		if s.MonthlyLimit < 0 || s.Concurrency < 0 || s.Cooldown < 0 || s.RatePerSec < 0 || s.Timeout < 0 {
			return eris.Errorf("source: %s has a negative setting", name)
		}
	}
	return nil
}

// Names returns source names, sorted.
func (c Catalog) Names() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Limits returns monthly limits for the quota tracker.
func (c Catalog) Limits() map[string]int {
	out := make(map[string]int, len(c))
	for name, s := range c {
		out[name] = s.MonthlyLimit
	}
	return out
}

// RatePolicies returns limiter policies for the rate limiter registry.
func (c Catalog) RatePolicies() map[string]ratelimit.Policy {
	out := make(map[string]ratelimit.Policy, len(c))
	for name, s := range c {
		out[name] = ratelimit.Policy{
			Concurrency: s.Concurrency,
			Cooldown:    s.Cooldown,
			RatePerSec:  s.RatePerSec,
		}
	}
	return out
}

// Timeout returns the per-call timeout for source, or def when unset.
func (c Catalog) Timeout(source string, def time.Duration) time.Duration {
	if s, ok := c[source]; ok && s.Timeout > 0 {
		return s.Timeout
	}
	return def
}

func (c Catalog) baseURL(source string) string {
	return c[source].BaseURL
}
