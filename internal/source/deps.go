package source

import (
	"time"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
)

// Credentials holds provider API keys. Adapters whose key is required and
// empty report every subject as ineligible.
type Credentials struct {
	ALeads         string
	DataAxle       string
	HIBP           string
	WhoisXML       string
	OpenDataNation string
	CourtListener  string
	SocrataToken   string
}

// Deps are the shared capabilities adapters are built from.
type Deps struct {
	HTTP    *fetcher.Client
	Bulk    *fetcher.Bulk
	Catalog Catalog
	Keys    Credentials
	// LicenseFiles maps license type to bulk CSV URL.
	// Default: DefaultLicenseFiles().
	LicenseFiles map[string]string
	Now          func() time.Time
}

// NewDefaultRegistry registers an adapter for every enrichment field.
func NewDefaultRegistry(d Deps) *Registry {
	if d.Catalog == nil {
		d.Catalog = DefaultCatalog()
	}
	if d.LicenseFiles == nil {
		d.LicenseFiles = DefaultLicenseFiles()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	al := newALeadsClient(d)
	da := newDataAxleClient(d)
	cl := newCourtListenerClient(d)

	r := NewRegistry()
	r.Register(newPhoneAdapter(al))
	r.Register(newEmailAdapter(al))
	r.Register(newRelativesAdapter(al))
	r.Register(newSocialAdapter(al))
	r.Register(newBankruptcyAdapter(cl))
	r.Register(newFederalCasesAdapter(cl))
	r.Register(newSECAdapter(d))
	r.Register(newBreachAdapter(d))
	r.Register(newDomainsAdapter(d))
	r.Register(newVehiclesAdapter(d))
	r.Register(newBoatAdapter(d))
	r.Register(newAircraftAdapter(d))
	r.Register(newEvictionAdapter(d))
	r.Register(newLicensesAdapter(d))
	r.Register(newEducationAdapter(d))
	r.Register(newEmploymentAdapter(da))
	r.Register(newFirmographicsAdapter(da))
	return r
}
