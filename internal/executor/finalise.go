package executor

import (
	"path/filepath"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/fileio"
)

// summary is the insights report written at the end of a run: dataset
// totals plus the reported-versus-observed count mismatches worth a
// human look.
type summary struct {
	Ministries  int `json:"ministries"`
	Departments int `json:"departments"`
	Agencies    int `json:"agencies"`
	Services    int `json:"services"`
	FAQEntries  int `json:"faq_entries"`

	LinkedAgencyCards   int `json:"linked_agency_cards"`
	UnlinkedAgencyCards int `json:"unlinked_agency_cards"`

	CountMismatches []countMismatch `json:"count_mismatches"`
}

type countMismatch struct {
	MinistryID string `json:"ministry_id"`
	Field      string `json:"field"`
	Reported   int    `json:"reported"`
	Observed   int    `json:"observed"`
}

// finalise runs the closing checks: observed counts are written back
// onto the ministry entries, agency cards from the listing are linked
// to their ministry and department via name hashes, and the summary
// report lands in the insights directory.
func (e *Executor) finalise() error {
	m := e.ministries
	m.mu.Lock()
	defer m.mu.Unlock()

	observedDepts := make(map[string]int)
	observedAgencies := make(map[string]int)
	for _, d := range m.departments {
		observedDepts[d.MinistryID]++
	}
	for _, a := range m.pageAgencies {
		observedAgencies[a.MinistryID]++
	}
	observedServices := make(map[string]int)
	observedAgencyServices := make(map[string]int)
	for _, svc := range m.services {
		observedServices[svc.MinistryID]++
		observedAgencyServices[svc.AgencyID]++
	}

	var mismatches []countMismatch
	for id, entry := range m.ministries {
		deptCount := observedDepts[id]
		agencyCount := observedAgencies[id]
		serviceCount := observedServices[id]
		entry.ObservedDeptCount = &deptCount
		entry.ObservedAgencyCount = &agencyCount
		entry.ObservedServiceCount = &serviceCount
		m.ministries[id] = entry

		if entry.ReportedAgencyCount != nil && *entry.ReportedAgencyCount != agencyCount {
			mismatches = append(mismatches, countMismatch{
				MinistryID: id,
				Field:      "agency_count",
				Reported:   *entry.ReportedAgencyCount,
				Observed:   agencyCount,
			})
		}
		if entry.ReportedServiceCount != nil && *entry.ReportedServiceCount != serviceCount {
			mismatches = append(mismatches, countMismatch{
				MinistryID: id,
				Field:      "service_count",
				Reported:   *entry.ReportedServiceCount,
				Observed:   serviceCount,
			})
		}
	}

	// Agency cards from the listing carry no ids of their own; the
	// name hash ties them back to the page data.
	pageByNameHash := make(map[string]string, len(m.pageAgencies))
	for id, a := range m.pageAgencies {
		pageByNameHash[a.AgencyNameHash] = id
	}
	linked, unlinked := 0, 0
	for hash, card := range e.agencies.entries {
		pageID, ok := pageByNameHash[hash]
		if !ok {
			unlinked++
			continue
		}
		page := m.pageAgencies[pageID]
		card.AgencyID = page.AgencyID
		card.MinistryID = page.MinistryID
		card.DepartmentID = page.DepartmentID
		card.ServicesURL = page.ServicesURL
		e.agencies.entries[hash] = card
		linked++
	}

	report := summary{
		Ministries:          len(m.ministries),
		Departments:         len(m.departments),
		Agencies:            len(m.pageAgencies),
		Services:            len(m.services),
		FAQEntries:          len(e.faq.entries),
		LinkedAgencyCards:   linked,
		UnlinkedAgencyCards: unlinked,
		CountMismatches:     mismatches,
	}
	if err := fileio.WriteJSON(filepath.Join(e.cfg.InsightsDir(), "summary.json"), report); err != nil {
		return err
	}
	e.logger.Printf("finalisation: %d ministries, %d departments, %d agencies, %d services, %d mismatches",
		report.Ministries, report.Departments, report.Agencies, report.Services, len(mismatches))
	return nil
}
