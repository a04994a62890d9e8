package model

import "encoding/json"

// Discovered is the closed union of data an executed task can hand back
// to the scheduler. Exactly one variant is legal per operation.
type Discovered interface {
	discoveredKind() string
}

// EmptyDiscovered is returned by tasks that discover nothing.
type EmptyDiscovered struct{}

// MinistryIDs carries the ministry ids found on the ministries list, in
// the order they appeared on the page.
type MinistryIDs struct {
	IDs []string `json:"ministry_ids"`
}

// AgencyRef is one agency found on a ministry's departments listing,
// with the URL of its services page.
type AgencyRef struct {
	AgencyID    string `json:"agency_id"`
	ServicesURL string `json:"ministry_departments_agencies_url"`
}

// DepartmentHierarchy is one department with its agencies, in page order.
type DepartmentHierarchy struct {
	DepartmentID string      `json:"department_id"`
	Agencies     []AgencyRef `json:"agencies"`
}

// MinistryHierarchy is everything discovered on one ministry's detail
// page: its departments and their agencies, in page order.
type MinistryHierarchy struct {
	MinistryID  string                `json:"ministry_id"`
	Departments []DepartmentHierarchy `json:"departments"`
}

// ServiceScraped identifies the single agency whose services page a
// scrape task fetched.
type ServiceScraped struct {
	MinistryID   string `json:"ministry_id"`
	DepartmentID string `json:"department_id"`
	AgencyID     string `json:"agency_id"`
}

// ServicesProcessed reports which agencies had their services processed
// in one batch, grouped by department, for a single ministry.
type ServicesProcessed struct {
	MinistryID         string              `json:"ministry_id"`
	DepartmentAgencies map[string][]string `json:"department_agencies"`
}

func (EmptyDiscovered) discoveredKind() string    { return "empty" }
func (MinistryIDs) discoveredKind() string        { return "ministry_ids" }
func (MinistryHierarchy) discoveredKind() string  { return "ministry_hierarchy" }
func (ServiceScraped) discoveredKind() string     { return "service_scraped" }
func (ServicesProcessed) discoveredKind() string  { return "services_processed" }

var expectedDiscovered = map[Operation]string{
	OpFAQScrape:             "empty",
	OpFAQProcess:            "empty",
	OpAgenciesListScrape:    "empty",
	OpAgenciesListProcess:   "empty",
	OpMinistriesListScrape:  "empty",
	OpMinistriesListProcess: "ministry_ids",
	OpMinistryPageScrape:    "ministry_hierarchy",
	OpMinistryPageProcess:   "ministry_ids",
	OpServiceScrape:         "service_scraped",
	OpServicesProcess:       "services_processed",
	OpFinalisationChecks:    "empty",
}

// ExpectedDiscovered names the discovered-data variant an operation must
// return on success.
func ExpectedDiscovered(op Operation) string {
	return expectedDiscovered[op]
}

// DiscoveredKind names the variant of a discovered value, or "nil".
func DiscoveredKind(d Discovered) string {
	if d == nil {
		return "nil"
	}
	return d.discoveredKind()
}

// Result is the outcome of an executed task. Executor failures are
// encoded here, never raised across the executor boundary.
type Result struct {
	Task         Task
	Success      bool
	ErrorMessage string
	Discovered   Discovered
}

// MarshalJSON mirrors Task's envelope form for logging.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Task         Task       `json:"task"`
		Success      bool       `json:"success"`
		ErrorMessage string     `json:"error_message,omitempty"`
		Kind         string     `json:"discovered_kind"`
		Discovered   Discovered `json:"discovered"`
	}{r.Task, r.Success, r.ErrorMessage, DiscoveredKind(r.Discovered), r.Discovered})
}
