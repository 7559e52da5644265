package source

import (
	"context"
	"net/http"
	"strings"

	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/model"
)

const maxEmployment = 20

type dataAxleClient struct {
	http    *fetcher.Client
	baseURL string
	apiKey  string
}

func newDataAxleClient(d Deps) *dataAxleClient {
	return &dataAxleClient{
		http:    d.HTTP,
		baseURL: strings.TrimRight(d.Catalog.baseURL(DataAxle), "/"),
		apiKey:  d.Keys.DataAxle,
	}
}

func (c *dataAxleClient) search(ctx context.Context, path string, body, out any) error {
	return c.http.JSON(ctx, fetcher.Request{
		Source: DataAxle,
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Header: map[string]string{"Authorization": "Bearer " + c.apiKey},
		Body:   body,
	}, out)
}

type employmentAdapter struct {
	base
	client *dataAxleClient
}

func newEmploymentAdapter(c *dataAxleClient) Adapter {
	return &employmentAdapter{base: base{field: model.FieldEmploymentDeep, source: DataAxle}, client: c}
}

func (a *employmentAdapter) Eligible(s Subject) bool {
	return a.client.apiKey != "" && s.PersonName().Valid()
}

func (a *employmentAdapter) Fetch(ctx context.Context, s Subject) Result {
	var resp struct {
		Results []struct {
			JobTitle     string `json:"job_title"`
			EmployerName string `json:"employer_name"`
			StartDate    string `json:"start_date"`
			EndDate      string `json:"end_date"`
			Industry     string `json:"industry"`
		} `json:"results"`
	}
	err := a.client.search(ctx, "/employment/search", map[string]any{
		"names":  []string{s.PersonName().Full()},
		"select": "job_title,employer_name,start_date,end_date,industry",
		"limit":  maxEmployment,
	}, &resp)
	if err != nil {
		return Failed(err)
	}

	var out []model.Employment
	for _, j := range resp.Results {
		if len(out) == maxEmployment {
			break
		}
		if strings.TrimSpace(j.EmployerName) == "" {
			continue
		}
		out = append(out, model.Employment{
			JobTitle:  j.JobTitle,
			Employer:  j.EmployerName,
			StartDate: j.StartDate,
			EndDate:   j.EndDate,
			Industry:  j.Industry,
			Source:    "data_axle_employment",
		})
	}
	if len(out) == 0 {
		return NoData(true)
	}
	return Found(out)
}

type firmographicsAdapter struct {
	base
	client *dataAxleClient
}

func newFirmographicsAdapter(c *dataAxleClient) Adapter {
	return &firmographicsAdapter{base: base{field: model.FieldFirmographics, source: DataAxle}, client: c}
}

func (a *firmographicsAdapter) Eligible(s Subject) bool {
	return a.client.apiKey != "" && s.Type == model.EntityBusiness && legalName(s) != ""
}

func legalName(s Subject) string {
	if n := strings.TrimSpace(s.LegalName); n != "" {
		return n
	}
	return strings.TrimSpace(s.Name)
}

func (a *firmographicsAdapter) Fetch(ctx context.Context, s Subject) Result {
	var resp struct {
		Results []struct {
			Name            string `json:"name"`
			Employees       int    `json:"employees"`
			SalesVolume     int64  `json:"sales_volume"`
			SICCode         string `json:"sic_code"`
			NAICSCode       string `json:"naics_code"`
			YearEstablished int    `json:"year_established"`
		} `json:"results"`
	}
	err := a.client.search(ctx, "/businesses/search", map[string]any{
		"name":   []string{legalName(s)},
		"select": "name,employees,sales_volume,sic_code,naics_code,year_established",
		"limit":  1,
	}, &resp)
	if err != nil {
		return Failed(err)
	}
	if len(resp.Results) == 0 {
		return NoData(true)
	}

	b := resp.Results[0]
	return Found(model.Firmographics{
		LegalName:   b.Name,
		Employees:   b.Employees,
		SalesVolume: b.SalesVolume,
		SICCode:     b.SICCode,
		NAICSCode:   b.NAICSCode,
		YearFounded: b.YearEstablished,
		Source:      DataAxle,
	})
}
