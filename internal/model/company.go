package model

import (
	"encoding/json"
	"time"
)

// CompanyStatus tracks a staged company through the enrichment stage.
type CompanyStatus string

const (
	CompanyStatusPending    CompanyStatus = "pending"
	CompanyStatusIDResolved CompanyStatus = "id_resolved"
	CompanyStatusIDNotFound CompanyStatus = "id_not_found"
	CompanyStatusError      CompanyStatus = "error"
)

// StagedCompany is a company discovered by the segmentation stage. The
// organization number is the natural key; re-discovery upserts by it.
type StagedCompany struct {
	OrgNumber        string        `json:"orgnr"`
	Name             string        `json:"company_name"`
	CompanyID        string        `json:"company_id,omitempty"`
	CompanyIDHint    string        `json:"company_id_hint,omitempty"`
	Homepage         string        `json:"homepage,omitempty"`
	NACECategories   []string      `json:"nace_categories,omitempty"`
	SegmentName      string        `json:"segment_name,omitempty"`
	RevenueSEK       *int64        `json:"revenue_sek,omitempty"`
	ProfitSEK        *int64        `json:"profit_sek,omitempty"`
	FoundationYear   *int          `json:"foundation_year,omitempty"`
	AccountsLastYear string        `json:"company_accounts_last_year,omitempty"`
	Status           CompanyStatus `json:"status"`
	LastError        string        `json:"last_error,omitempty"`
	ScrapedAt        time.Time     `json:"scraped_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ResolutionStatus tracks a company ID resolution through the financial
// fetch stage. The not-found variants are legitimate terminal outcomes, not
// errors.
type ResolutionStatus string

const (
	ResolutionStatusPending           ResolutionStatus = "pending"
	ResolutionStatusFinancialsFetched ResolutionStatus = "financials_fetched"
	ResolutionStatusNoFinancials      ResolutionStatus = "no_financials"
	ResolutionStatusNoCompanyData     ResolutionStatus = "no_company_data"
	ResolutionStatusError             ResolutionStatus = "error"
)

// Resolution sources, in order of strength.
const (
	ResolutionSourceOrgNumber  = "orgnr_search"
	ResolutionSourceNameSearch = "name_search"
)

// CompanyIDResolution maps an organization number to the registry's canonical
// company ID. One active mapping per org number per job; a re-resolution
// replaces the prior mapping (last-resolved-wins).
type CompanyIDResolution struct {
	OrgNumber  string           `json:"orgnr"`
	CompanyID  string           `json:"company_id"`
	Source     string           `json:"source"`
	Confidence float64          `json:"confidence_score"`
	Status     ResolutionStatus `json:"status"`
	LastError  string           `json:"last_error,omitempty"`
	ScrapedAt  time.Time        `json:"scraped_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ValidationStatus is set by the external validation pass over financial
// records. Ingestion always lands records as pending.
type ValidationStatus string

const (
	ValidationStatusPending ValidationStatus = "pending"
	ValidationStatusValid   ValidationStatus = "valid"
	ValidationStatusWarning ValidationStatus = "warning"
	ValidationStatusInvalid ValidationStatus = "invalid"
)

// MetricCodes is the fixed set of standardized financial line item codes as
// published by the registry. SDI is net revenue, DR is net result for the
// year, EK is total equity; the remainder are the registry's coded balance
// sheet and income statement items.
var MetricCodes = []string{
	"sdi", "dr", "ors", "ek", "adi", "adk", "adr", "ak", "ant", "fi",
	"fk", "gg", "kbp", "lg", "rg", "sap", "sed", "si", "sek", "sf",
	"sfa", "sge", "sia", "sik", "skg", "skgki", "sko", "slg", "som",
	"sub", "sv", "svd", "utr", "fsd", "kb", "awa", "iac", "min", "be", "tr",
}

// FinancialRecord is one fiscal period of standardized financials for a
// resolved company. Identity is (CompanyID, Year, Period); a re-fetch
// replaces the record for that tuple.
type FinancialRecord struct {
	CompanyID        string             `json:"company_id"`
	OrgNumber        string             `json:"orgnr"`
	Year             int                `json:"year"`
	Period           string             `json:"period"`
	PeriodStart      string             `json:"period_start,omitempty"`
	PeriodEnd        string             `json:"period_end,omitempty"`
	Currency         string             `json:"currency"`
	Metrics          map[string]float64 `json:"metrics"`
	Raw              json.RawMessage    `json:"raw_data,omitempty"`
	ValidationStatus ValidationStatus   `json:"validation_status"`
	ScrapedAt        time.Time          `json:"scraped_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Revenue returns the SDI line item (net revenue), or false when absent.
func (r *FinancialRecord) Revenue() (float64, bool) {
	v, ok := r.Metrics["sdi"]
	return v, ok
}

// NetResult returns the DR line item (net result for the year), or false
// when absent.
func (r *FinancialRecord) NetResult() (float64, bool) {
	v, ok := r.Metrics["dr"]
	return v, ok
}

// Equity returns the EK line item (total equity), or false when absent.
func (r *FinancialRecord) Equity() (float64, bool) {
	v, ok := r.Metrics["ek"]
	return v, ok
}
