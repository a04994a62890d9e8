package scheduler

import "github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"

// serviceQueue is one registry entry: a ministry and its agencies whose
// services pages still need scraping, in discovery order.
type serviceQueue struct {
	MinistryID string
	Pending    []model.ServicePayload
}

// buildPageQueue derives the detail-page scrape queue from state:
// ministries that are not complete and whose page has not been scraped.
// Deterministic for a given state, which is what makes the scheduler
// resumable: a rebuilt queue always points at the same next task.
func buildPageQueue(state *model.PipelineState) []string {
	var queue []string
	for _, m := range state.MinistriesInOrder() {
		if !m.Complete && !m.Page.Scraped {
			queue = append(queue, m.MinistryID)
		}
	}
	return queue
}

// buildServiceRegistry derives the per-ministry service queues from
// state: ministries with unfinished services, each carrying the
// agencies whose pages are still unscraped. A ministry whose inner
// queue is empty stays in the registry until its processing batch
// succeeds.
func buildServiceRegistry(state *model.PipelineState) []serviceQueue {
	var registry []serviceQueue
	for _, m := range state.MinistriesInOrder() {
		if m.Complete || (m.Services.Scraped && m.Services.Processed) {
			continue
		}
		entry := serviceQueue{MinistryID: m.MinistryID}
		for _, d := range m.DepartmentsInOrder() {
			for _, a := range d.AgenciesInOrder() {
				if !a.State.Scraped {
					entry.Pending = append(entry.Pending, model.ServicePayload{
						MinistryID:   m.MinistryID,
						DepartmentID: d.DepartmentID,
						AgencyID:     a.AgencyID,
						ServicesURL:  a.ServicesURL,
					})
				}
			}
		}
		registry = append(registry, entry)
	}
	return registry
}
