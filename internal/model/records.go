package model

// Normalized adapter outputs. Each field's JSON value is one of these
// shapes (or a slice of them).

// BankruptcyRecord summarizes bankruptcy dockets filed against a debtor.
type BankruptcyRecord struct {
	HasBankruptcy bool             `json:"has_bankruptcy"`
	Cases         []BankruptcyCase `json:"cases"`
}

// BankruptcyCase is one bankruptcy docket.
type BankruptcyCase struct {
	DocketNumber string `json:"docket_number,omitempty"`
	CaseName     string `json:"case_name"`
	Court        string `json:"court,omitempty"`
	FiledDate    string `json:"filed_date,omitempty"`
	Severity     int    `json:"severity"`
}

// FederalCase is one federal court docket naming the subject.
type FederalCase struct {
	CaseNumber string `json:"case_number"`
	CaseTitle  string `json:"case_title"`
	Court      string `json:"court,omitempty"`
	FiledDate  string `json:"filed_date,omitempty"`
	CaseType   string `json:"case_type,omitempty"`
	NatureSuit string `json:"nature_suit,omitempty"`
	Source     string `json:"source"`
}

// SECFiling is an insider ownership filing (Form 3, 4 or 5).
type SECFiling struct {
	FormType        string `json:"form_type"`
	CompanyName     string `json:"company_name"`
	FiledDate       string `json:"filed_date,omitempty"`
	CIK             string `json:"cik,omitempty"`
	AccessionNumber string `json:"accession_number,omitempty"`
	URL             string `json:"url,omitempty"`
	Title           string `json:"title,omitempty"`
	Officer         string `json:"officer,omitempty"`
}

// BreachSummary counts known data breaches involving an email address.
type BreachSummary struct {
	Count    int      `json:"count"`
	Breaches []Breach `json:"breaches"`
}

// Breach is a single breach listing.
type Breach struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	BreachDate  string   `json:"breach_date,omitempty"`
	DataClasses []string `json:"data_classes,omitempty"`
	PwnCount    int64    `json:"pwn_count,omitempty"`
	Verified    bool     `json:"verified"`
	Sensitive   bool     `json:"sensitive"`
}

// Vehicle is a registered motor vehicle.
type Vehicle struct {
	Year              string `json:"year,omitempty"`
	Make              string `json:"make,omitempty"`
	Model             string `json:"model,omitempty"`
	VIN               string `json:"vin,omitempty"`
	LicensePlate      string `json:"license_plate,omitempty"`
	RegistrationState string `json:"registration_state,omitempty"`
	OwnerName         string `json:"owner_name,omitempty"`
}

// Boat is a registered vessel.
type Boat struct {
	HullID     string `json:"hull_id,omitempty"`
	VesselName string `json:"vessel_name,omitempty"`
	Year       string `json:"year,omitempty"`
	RegDate    string `json:"reg_date,omitempty"`
	State      string `json:"state,omitempty"`
	Source     string `json:"source"`
}

// Aircraft is a registered aircraft.
type Aircraft struct {
	NNumber string `json:"n_number"`
	Model   string `json:"model,omitempty"`
	Year    string `json:"year,omitempty"`
	RegDate string `json:"reg_date,omitempty"`
	State   string `json:"state,omitempty"`
	Source  string `json:"source"`
}

// EvictionSummary counts eviction filings against the subject.
type EvictionSummary struct {
	Count int      `json:"count"`
	Dates []string `json:"dates"`
}

// Relative is a family member or associate.
type Relative struct {
	Relationship string `json:"relationship,omitempty"`
	Name         string `json:"name"`
	Age          int    `json:"age,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Source       string `json:"source"`
}

// License is a professional license.
type License struct {
	LicenseType string `json:"license_type"`
	Status      string `json:"status,omitempty"`
	IssueDate   string `json:"issue_date,omitempty"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
	State       string `json:"state,omitempty"`
	Violations  int    `json:"violations"`
	Source      string `json:"source"`
}

// Education is a degree record.
type Education struct {
	School   string `json:"school"`
	Degree   string `json:"degree,omitempty"`
	Major    string `json:"major,omitempty"`
	GradYear string `json:"grad_year,omitempty"`
	State    string `json:"state,omitempty"`
	Source   string `json:"source"`
}

// Employment is a position held.
type Employment struct {
	JobTitle  string `json:"job_title,omitempty"`
	Employer  string `json:"employer"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Source    string `json:"source"`
}

// SocialProfile lists social media handles.
type SocialProfile struct {
	TwitterHandle   string `json:"twitter_handle,omitempty"`
	LinkedInURL     string `json:"linkedin_url,omitempty"`
	InstagramHandle string `json:"instagram_handle,omitempty"`
	FacebookURL     string `json:"facebook_url,omitempty"`
	TikTokHandle    string `json:"tiktok_handle,omitempty"`
}

// Empty reports whether no handle is set.
func (s SocialProfile) Empty() bool {
	return s == SocialProfile{}
}

// Firmographics describes a business.
type Firmographics struct {
	LegalName   string `json:"legal_name,omitempty"`
	Employees   int    `json:"employees,omitempty"`
	SalesVolume int64  `json:"sales_volume,omitempty"`
	SICCode     string `json:"sic_code,omitempty"`
	NAICSCode   string `json:"naics_code,omitempty"`
	YearFounded int    `json:"year_founded,omitempty"`
	Source      string `json:"source"`
}
