package extract

// FAQEntry is one question/answer pair from the help page.
type FAQEntry struct {
	FAQID    string `json:"faq_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AgencyEntry is one agency card from the agencies listing. The
// ministry and department links are filled in during finalisation by
// matching name hashes against the ministry page data.
type AgencyEntry struct {
	AgencyID          string `json:"agency_id"`
	AgencyNameHash    string `json:"agency_name_hash"`
	MinistryID        string `json:"ministry_id"`
	DepartmentID      string `json:"department_id"`
	AgencyName        string `json:"agency_name"`
	AgencyDescription string `json:"agency_description"`
	LogoURL           string `json:"logo_url"`
	AgencyURL         string `json:"agency_url"`
	ServicesURL       string `json:"ministry_departments_agencies_url"`
}

// MinistryEntry is one ministry from the national ministries list,
// enriched during the detail-page phase with the description and
// reported counts, and during finalisation with observed counts.
type MinistryEntry struct {
	MinistryID           string `json:"ministry_id"`
	MinistryName         string `json:"ministry_name"`
	MinistryDescription  string `json:"ministry_description"`
	MinistryURL          string `json:"ministry_url"`
	ReportedAgencyCount  *int   `json:"reported_agency_count"`
	ReportedServiceCount *int   `json:"reported_service_count"`
	ObservedAgencyCount  *int   `json:"observed_agency_count"`
	ObservedServiceCount *int   `json:"observed_service_count"`
	ObservedDeptCount    *int   `json:"observed_department_count"`
}

// DepartmentEntry is one department discovered on a ministry page.
type DepartmentEntry struct {
	DepartmentID        string `json:"department_id"`
	MinistryID          string `json:"ministry_id"`
	DepartmentName      string `json:"department_name"`
	ObservedAgencyCount int    `json:"observed_agency_count"`
	DepartmentsURL      string `json:"ministry_departments_url"`
}

// PageAgency is one agency as listed under a department on a ministry
// page, with the URL of its services listing.
type PageAgency struct {
	AgencyID       string `json:"agency_id"`
	AgencyNameHash string `json:"agency_name_hash"`
	MinistryID     string `json:"ministry_id"`
	DepartmentID   string `json:"department_id"`
	AgencyName     string `json:"agency_name"`
	ServicesURL    string `json:"ministry_departments_agencies_url"`
}

// ServiceEntry is one service offered by an agency.
type ServiceEntry struct {
	ServiceID    string `json:"service_id"`
	MinistryID   string `json:"ministry_id"`
	DepartmentID string `json:"department_id"`
	AgencyID     string `json:"agency_id"`
	ServiceName  string `json:"service_name"`
	ServiceURL   string `json:"service_url"`
}

// MinistryOverview is the data parsed from a ministry page's overview
// section. Counts are nil when the page does not report them.
type MinistryOverview struct {
	ReportedAgencyCount  *int
	ReportedServiceCount *int
	Description          string
}
