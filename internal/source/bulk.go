package source

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
)

const (
	maxAircraft  = 20
	maxLicenses  = 50
	maxEducation = 20
)

// DefaultLicenseFiles returns the nationwide professional license datasets.
func DefaultLicenseFiles() map[string]string {
	return map[string]string{
		"medical":     "https://www.fsmb.org/siteassets/adirectory/download/national_physician_file.csv",
		"legal":       "https://www.nicar.org/data-library/download/attorney-licenses-nationwide.csv",
		"real_estate": "https://www.arello.org/download/national-licensee-file.csv",
		"contractor":  "https://www.nicar.org/data-library/download/contractor-licenses-nationwide.csv",
		"cpa":         "https://www.nicar.org/data-library/download/cpa-licenses-nationwide.csv",
		"nurse":       "https://www.nicar.org/data-library/download/nurse-licenses-nationwide.csv",
		"pilot":       "https://www.nicar.org/data-library/download/pilot-licenses-nationwide.csv",
		"teacher":     "https://www.nicar.org/data-library/download/teacher-licenses-nationwide.csv",
	}
}

// rowMatches checks a bulk row's name columns against n. Rows carrying a
// single full-name column are matched in any word order.
func rowMatches(r fetcher.Row, n Name) bool {
	if last := r.Get("last_name", "lastname", "surname"); last != "" {
		if Fold(last) != Fold(n.Last) {
			return false
		}
		first := Fold(r.Get("first_name", "firstname", "given_name"))
		want := Fold(n.First)
		if want == "" || first == "" || first == want {
			return true
		}
		// An initial on either side matches any name with that initial.
		return (len(first) == 1 || len(want) == 1) && first[0] == want[0]
	}
	if full := r.Get("name", "full_name", "registrant_name"); full != "" {
		return matchesName(full, n)
	}
	return false
}

type aircraftAdapter struct {
	base
	bulk *fetcher.Bulk
	file fetcher.BulkFile
}

func newAircraftAdapter(d Deps) Adapter {
	return &aircraftAdapter{
		base: base{field: model.FieldAircraft, source: FAARegistry},
		bulk: d.Bulk,
		file: fetcher.BulkFile{
			Source: FAARegistry,
			URL:    d.Catalog.baseURL(FAARegistry),
			Entry:  "MASTER.txt",
			CSV:    fetcher.CSVOptions{LazyQuotes: true},
		},
	}
}

func (a *aircraftAdapter) Eligible(s Subject) bool {
	return a.bulk != nil && a.file.URL != "" && s.PersonName().Valid()
}

func (a *aircraftAdapter) Fetch(ctx context.Context, s Subject) Result {
	n := s.PersonName()
	var out []model.Aircraft
	err := a.bulk.Scan(ctx, a.file, func(r fetcher.Row) error {
		// MASTER stores registrants as "LAST FIRST MIDDLE".
		if !matchesName(r["name"], n) {
			return nil
		}
		out = append(out, model.Aircraft{
			NNumber: "N" + strings.TrimPrefix(r["n_number"], "N"),
			Model:   r["mfr_mdl_code"],
			Year:    r["year_mfr"],
			RegDate: r.Get("cert_issue_date", "last_action_date"),
			State:   r["state"],
			Source:  FAARegistry,
		})
		if len(out) == maxAircraft {
			return fetcher.ErrStop
		}
		return nil
	})
	if err != nil {
		return Failed(err)
	}
	if len(out) == 0 {
		return NoData(false)
	}
	return Scanned(out)
}

type licensesAdapter struct {
	base
	bulk  *fetcher.Bulk
	files []fetcher.BulkFile
	types []string
}

func newLicensesAdapter(d Deps) Adapter {
	a := &licensesAdapter{
		base: base{field: model.FieldProfessionalLicenses, source: LicenseBulk},
		bulk: d.Bulk,
	}
	for t := range d.LicenseFiles {
		a.types = append(a.types, t)
	}
	sort.Strings(a.types)
	for _, t := range a.types {
		a.files = append(a.files, fetcher.BulkFile{Source: LicenseBulk, URL: d.LicenseFiles[t], CSV: fetcher.CSVOptions{LazyQuotes: true}})
	}
	return a
}

func (a *licensesAdapter) Eligible(s Subject) bool {
	return a.bulk != nil && len(a.files) > 0 && s.PersonName().Valid()
}

func (a *licensesAdapter) Fetch(ctx context.Context, s Subject) Result {
	n := s.PersonName()
	var out []model.License
	var failed int
	var lastErr error

	for i, file := range a.files {
		if len(out) == maxLicenses {
			break
		}
		licType := a.types[i]
		err := a.bulk.Scan(ctx, file, func(r fetcher.Row) error {
			if !rowMatches(r, n) {
				return nil
			}
			status := r["status"]
			if status == "" {
				status = "active"
			}
			violations, _ := strconv.Atoi(r["violations"])
			out = append(out, model.License{
				LicenseType: licType,
				Status:      status,
				IssueDate:   r["issue_date"],
				ExpiryDate:  r["expiry_date"],
				State:       r["state"],
				Violations:  violations,
				Source:      "bulk_" + licType,
			})
			if len(out) == maxLicenses {
				return fetcher.ErrStop
			}
			return nil
		})
		if err != nil {
			// One unreachable dataset does not hide matches in the others.
			failed++
			lastErr = err
			zap.L().Warn("licenses: dataset unavailable",
				zap.String("license_type", licType),
				zap.Error(err),
			)
		}
	}

	if failed == len(a.files) {
		return Failed(eris.Wrap(lastErr, "license_bulk: all datasets failed"))
	}
	if len(out) == 0 {
		return NoData(false)
	}
	return Scanned(out)
}

type educationAdapter struct {
	base
	bulk *fetcher.Bulk
	file fetcher.BulkFile
}

func newEducationAdapter(d Deps) Adapter {
	return &educationAdapter{
		base: base{field: model.FieldEducation, source: NSCBulk},
		bulk: d.Bulk,
		file: fetcher.BulkFile{Source: NSCBulk, URL: d.Catalog.baseURL(NSCBulk), CSV: fetcher.CSVOptions{LazyQuotes: true}},
	}
}

func (a *educationAdapter) Eligible(s Subject) bool {
	return a.bulk != nil && a.file.URL != "" && s.PersonName().Valid()
}

func (a *educationAdapter) Fetch(ctx context.Context, s Subject) Result {
	n := s.PersonName()
	var out []model.Education
	err := a.bulk.Scan(ctx, a.file, func(r fetcher.Row) error {
		if !rowMatches(r, n) {
			return nil
		}
		school := r["institution_name"]
		if school == "" {
			return nil
		}
		out = append(out, model.Education{
			School:   school,
			Degree:   r["degree_level"],
			Major:    r["major"],
			GradYear: r["graduation_year"],
			State:    r["institution_state"],
			Source:   NSCBulk,
		})
		if len(out) == maxEducation {
			return fetcher.ErrStop
		}
		return nil
	})
	if err != nil {
		return Failed(err)
	}
	if len(out) == 0 {
		return NoData(false)
	}
	return Scanned(out)
}
