package allabolag

import "encoding/json"

// SegmentFilter bounds a segmentation crawl. Monetary values are in SEK.
type SegmentFilter struct {
	RevenueFrom int64
	RevenueTo   int64
	ProfitFrom  int64
	ProfitTo    int64
	CompanyType string
}

// Company is one listing row from a segmentation page.
type Company struct {
	OrgNumber        string
	Name             string
	ListingID        string
	Homepage         string
	NACECategories   []string
	SegmentName      string
	RevenueSEK       *int64
	ProfitSEK        *int64
	FoundationYear   *int
	AccountsLastYear string
}

// Candidate is one search hit with its canonical company ID.
type Candidate struct {
	CompanyID string
	OrgNumber string
	Name      string
}

// FinancialLine is one accounting period for a company. Metrics is keyed by
// the registry's short metric codes (sdi, dr, ek, ...).
type FinancialLine struct {
	Year        int
	Period      string
	PeriodStart string
	PeriodEnd   string
	Currency    string
	Metrics     map[string]float64
	Raw         json.RawMessage
}

// wireCompany covers the shapes company rows take across registry payloads.
// Older pages use orgnr/listingId, newer ones organisationNumber/companyId.
type wireCompany struct {
	CompanyID          string          `json:"companyId"`
	ListingID          string          `json:"listingId"`
	Orgnr              string          `json:"orgnr"`
	OrganisationNumber string          `json:"organisationNumber"`
	Name               string          `json:"name"`
	Homepage           string          `json:"homepage"`
	NACECategories     []string        `json:"naceCategories"`
	SegmentName        string          `json:"segmentName"`
	Revenue            *int64          `json:"revenue"`
	Profit             *int64          `json:"profit"`
	FoundationYear     *int            `json:"foundationYear"`
	AccountsLastYear   string          `json:"companyAccountsLastUpdatedYear"`
}

// id returns the canonical company ID, companyId first then listingId.
func (w wireCompany) id() string {
	if w.CompanyID != "" {
		return w.CompanyID
	}
	return w.ListingID
}

// orgNumber returns the org number, orgnr first then organisationNumber.
func (w wireCompany) orgNumber() string {
	if w.Orgnr != "" {
		return w.Orgnr
	}
	return w.OrganisationNumber
}

func (w wireCompany) toCompany() Company {
	return Company{
		OrgNumber:        NormalizeOrgNumber(w.orgNumber()),
		Name:             w.Name,
		ListingID:        w.id(),
		Homepage:         w.Homepage,
		NACECategories:   w.NACECategories,
		SegmentName:      w.SegmentName,
		RevenueSEK:       w.Revenue,
		ProfitSEK:        w.Profit,
		FoundationYear:   w.FoundationYear,
		AccountsLastYear: w.AccountsLastYear,
	}
}

// segmentEnvelope is a segmentation data page.
type segmentEnvelope struct {
	PageProps struct {
		Companies []wireCompany `json:"companies"`
		HydrationData struct {
			SegmentStore struct {
				Companies []wireCompany `json:"companies"`
			} `json:"segmentStore"`
		} `json:"hydrationData"`
	} `json:"pageProps"`
}

func (e segmentEnvelope) companies() []wireCompany {
	if len(e.PageProps.HydrationData.SegmentStore.Companies) > 0 {
		return e.PageProps.HydrationData.SegmentStore.Companies
	}
	return e.PageProps.Companies
}

// searchEnvelope is a search data page. Hits live at
// pageProps.hydrationData.searchStore.companies.companies, with
// pageProps.companies as the fallback.
type searchEnvelope struct {
	PageProps struct {
		Companies []wireCompany `json:"companies"`
		HydrationData struct {
			SearchStore struct {
				Companies struct {
					Companies []wireCompany `json:"companies"`
				} `json:"companies"`
			} `json:"searchStore"`
		} `json:"hydrationData"`
	} `json:"pageProps"`
}

func (e searchEnvelope) companies() []wireCompany {
	if len(e.PageProps.HydrationData.SearchStore.Companies.Companies) > 0 {
		return e.PageProps.HydrationData.SearchStore.Companies.Companies
	}
	return e.PageProps.Companies
}

// financialEnvelope is a company data page carrying accounting periods.
// Periods are kept raw so each stored record can carry its source payload.
type financialEnvelope struct {
	PageProps struct {
		Company struct {
			CompanyAccounts []json.RawMessage `json:"companyAccounts"`
		} `json:"company"`
	} `json:"pageProps"`
}

type wireAccountPeriod struct {
	Year        int               `json:"year"`
	Period      string            `json:"period"`
	PeriodStart string            `json:"periodStart"`
	PeriodEnd   string            `json:"periodEnd"`
	Currency    string            `json:"currency"`
	Accounts    []wireAccountLine `json:"accounts"`
}

type wireAccountLine struct {
	Code   string   `json:"code"`
	Amount *float64 `json:"amount"`
}

func (p wireAccountPeriod) toLine(raw json.RawMessage) FinancialLine {
	metrics := make(map[string]float64, len(p.Accounts))
	for _, a := range p.Accounts {
		if a.Code != "" && a.Amount != nil {
			metrics[a.Code] = *a.Amount
		}
	}
	currency := p.Currency
	if currency == "" {
		currency = "SEK"
	}
	return FinancialLine{
		Year:        p.Year,
		Period:      p.Period,
		PeriodStart: p.PeriodStart,
		PeriodEnd:   p.PeriodEnd,
		Currency:    currency,
		Metrics:     metrics,
		Raw:         raw,
	}
}
