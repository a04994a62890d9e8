package scheduler

import (
	"fmt"
	"log"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/progress"
)

// Scheduler decides the next task from persisted state and folds task
// results back into it. NextTask never mutates anything: a task stays
// at the head of its queue until its result arrives, so a crash between
// the two re-issues the same task on restart.
type Scheduler struct {
	store  *progress.Store
	logger *log.Logger

	pageQueue       []string
	serviceRegistry []serviceQueue

	reducers map[model.Phase]func(model.Result) error
}

// New builds a scheduler over the given store. Queues are derived from
// state up front and kept in sync by the reducers afterwards.
func New(store *progress.Store, logger *log.Logger) *Scheduler {
	s := &Scheduler{
		store:           store,
		logger:          logger,
		pageQueue:       buildPageQueue(store.State()),
		serviceRegistry: buildServiceRegistry(store.State()),
	}
	s.reducers = map[model.Phase]func(model.Result) error{
		model.PhaseFAQ:              s.reduceFAQ,
		model.PhaseAgenciesList:     s.reduceAgenciesList,
		model.PhaseMinistriesList:   s.reduceMinistriesList,
		model.PhaseMinistryPages:    s.reduceMinistryPages,
		model.PhaseMinistryServices: s.reduceMinistryServices,
		model.PhaseFinalisation:     s.reduceFinalisation,
	}
	return s
}

// NextTask returns the next pending task in phase order, or nil when
// the pipeline is complete. Calling it repeatedly without applying a
// result returns the same task each time.
func (s *Scheduler) NextTask() (*model.Task, error) {
	st := s.store.State()

	if t := simplePhaseTask(model.PhaseFAQ, st.FAQ, model.OpFAQScrape, model.OpFAQProcess); t != nil {
		return t, nil
	}
	if t := simplePhaseTask(model.PhaseAgenciesList, st.AgenciesList, model.OpAgenciesListScrape, model.OpAgenciesListProcess); t != nil {
		return t, nil
	}
	if t := simplePhaseTask(model.PhaseMinistriesList, st.MinistriesList, model.OpMinistriesListScrape, model.OpMinistriesListProcess); t != nil {
		return t, nil
	}

	if !st.MinistryPages.Scraped {
		if t, err := s.nextPageTask(); t != nil || err != nil {
			return t, err
		}
	}
	if !st.MinistryPages.Processed {
		if t := s.pageProcessTask(); t != nil {
			return t, nil
		}
	}

	if !st.MinistryServices.Scraped || !st.MinistryServices.Processed {
		if t, err := s.nextServiceTask(); t != nil || err != nil {
			return t, err
		}
	}

	if !st.FinalisationChecks {
		return &model.Task{
			Scope:     model.PhaseFinalisation,
			Operation: model.OpFinalisationChecks,
			Payload:   model.EmptyPayload{},
		}, nil
	}
	return nil, nil
}

// simplePhaseTask handles the three list phases, where scrape strictly
// precedes process and both are single tasks.
func simplePhaseTask(scope model.Phase, step model.StepCheck, scrape, process model.Operation) *model.Task {
	switch {
	case !step.Scraped:
		return &model.Task{Scope: scope, Operation: scrape, Payload: model.EmptyPayload{}}
	case !step.Processed:
		return &model.Task{Scope: scope, Operation: process, Payload: model.EmptyPayload{}}
	}
	return nil
}

// nextPageTask peeks the page queue. An empty queue with the aggregate
// flag still unset means every page was scraped without the recompute
// having run yet; the pending work is then the processing batch, so we
// fall through to it rather than treating the state as corrupt.
func (s *Scheduler) nextPageTask() (*model.Task, error) {
	if len(s.pageQueue) > 0 {
		return &model.Task{
			Scope:     model.PhaseMinistryPages,
			Operation: model.OpMinistryPageScrape,
			Payload:   model.MinistryPayload{MinistryID: s.pageQueue[0]},
		}, nil
	}
	if t := s.pageProcessTask(); t != nil {
		return t, nil
	}
	return nil, nil
}

// pageProcessTask builds the batch over every ministry whose page is
// scraped but not yet processed. A nil return means no pages are
// waiting on processing.
func (s *Scheduler) pageProcessTask() *model.Task {
	var batch []model.MinistryPayload
	for _, m := range s.store.State().MinistriesInOrder() {
		if !m.Complete && m.Page.Scraped && !m.Page.Processed {
			batch = append(batch, model.MinistryPayload{MinistryID: m.MinistryID})
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return &model.Task{
		Scope:     model.PhaseMinistryPages,
		Operation: model.OpMinistryPageProcess,
		Payload:   model.MinistryListPayload{Ministries: batch},
	}
}

// nextServiceTask works the registry head: scrape its pending agencies
// one at a time, then emit the ministry's processing batch once the
// inner queue drains. An empty registry means the services phase has
// nothing left.
func (s *Scheduler) nextServiceTask() (*model.Task, error) {
	if len(s.serviceRegistry) == 0 {
		return nil, nil
	}
	head := s.serviceRegistry[0]
	if len(head.Pending) > 0 {
		payload := head.Pending[0]
		return &model.Task{
			Scope:     model.PhaseMinistryServices,
			Operation: model.OpServiceScrape,
			Payload:   payload,
		}, nil
	}
	return s.servicesProcessTask(head.MinistryID)
}

// servicesProcessTask builds the all-or-nothing processing batch for
// one ministry: every agency scraped but not yet processed.
func (s *Scheduler) servicesProcessTask(ministryID string) (*model.Task, error) {
	m, ok := s.store.State().Ministries[ministryID]
	if !ok {
		return nil, &ProcessFailureError{
			Message: fmt.Sprintf("service registry references unknown ministry %q", ministryID),
		}
	}
	var batch []model.ServicePayload
	for _, a := range m.AgencyStates() {
		if a.State.Scraped && !a.State.Processed {
			batch = append(batch, servicePayloadFor(m, a))
		}
	}
	return &model.Task{
		Scope:     model.PhaseMinistryServices,
		Operation: model.OpServicesProcess,
		Payload:   model.ServiceListPayload{MinistryID: ministryID, Services: batch},
	}, nil
}

func servicePayloadFor(m *model.MinistryState, a *model.AgencyState) model.ServicePayload {
	for _, d := range m.DepartmentsInOrder() {
		if _, ok := d.Agencies[a.AgencyID]; ok {
			return model.ServicePayload{
				MinistryID:   m.MinistryID,
				DepartmentID: d.DepartmentID,
				AgencyID:     a.AgencyID,
				ServicesURL:  a.ServicesURL,
			}
		}
	}
	return model.ServicePayload{MinistryID: m.MinistryID, AgencyID: a.AgencyID, ServicesURL: a.ServicesURL}
}

// ApplyResult folds a result into state and persists the new snapshot.
// Failed results and contract violations return one of the fatal error
// types without mutating anything.
func (s *Scheduler) ApplyResult(res model.Result) error {
	reduce, ok := s.reducers[res.Task.Scope]
	if !ok {
		return &ProcessFailureError{
			Message: fmt.Sprintf("no reducer for scope %q", res.Task.Scope),
			Task:    res.Task,
		}
	}
	if !res.Success {
		return &PhaseFailureError{Message: "task reported failure", Result: res}
	}
	want := model.ExpectedDiscovered(res.Task.Operation)
	if got := model.DiscoveredKind(res.Discovered); got != want {
		return &DiscoveryTypeMismatchError{
			Message:  "result carries wrong discovered data",
			Expected: want,
			Observed: got,
			Result:   res,
		}
	}
	if err := reduce(res); err != nil {
		return err
	}
	if err := s.store.Save(); err != nil {
		return fmt.Errorf("persist state after %s: %w", res.Task.Log(), err)
	}
	return nil
}

func (s *Scheduler) reduceFAQ(res model.Result) error {
	switch res.Task.Operation {
	case model.OpFAQScrape:
		s.store.MarkFAQScraped()
	case model.OpFAQProcess:
		s.store.MarkFAQProcessed()
	default:
		return unexpectedOperation(res.Task)
	}
	return nil
}

func (s *Scheduler) reduceAgenciesList(res model.Result) error {
	switch res.Task.Operation {
	case model.OpAgenciesListScrape:
		s.store.MarkAgenciesListScraped()
	case model.OpAgenciesListProcess:
		s.store.MarkAgenciesListProcessed()
	default:
		return unexpectedOperation(res.Task)
	}
	return nil
}

func (s *Scheduler) reduceMinistriesList(res model.Result) error {
	switch res.Task.Operation {
	case model.OpMinistriesListScrape:
		s.store.MarkMinistriesListScraped()
	case model.OpMinistriesListProcess:
		ids, ok := res.Discovered.(model.MinistryIDs)
		if !ok {
			return unexpectedDiscovered(res)
		}
		s.store.MarkMinistriesListProcessed()
		s.store.MergeMinistryIDs(ids.IDs)
		s.pageQueue = buildPageQueue(s.store.State())
		s.logger.Printf("ministries list processed: %d ministries discovered", len(ids.IDs))
	default:
		return unexpectedOperation(res.Task)
	}
	return nil
}

func (s *Scheduler) reduceMinistryPages(res model.Result) error {
	switch res.Task.Operation {
	case model.OpMinistryPageScrape:
		h, ok := res.Discovered.(model.MinistryHierarchy)
		if !ok {
			return unexpectedDiscovered(res)
		}
		payload, ok := res.Task.Payload.(model.MinistryPayload)
		if !ok {
			return unexpectedOperation(res.Task)
		}
		if h.MinistryID != payload.MinistryID {
			return &ProcessFailureError{
				Message: fmt.Sprintf("page scrape for %q returned hierarchy for %q", payload.MinistryID, h.MinistryID),
				Task:    res.Task,
			}
		}
		if err := s.store.MarkMinistryPageScraped(h.MinistryID); err != nil {
			return &ProcessFailureError{Message: err.Error(), Task: res.Task}
		}
		if err := s.store.MergeMinistryHierarchy(h); err != nil {
			return &ProcessFailureError{Message: err.Error(), Task: res.Task}
		}
		if err := s.popPageQueue(h.MinistryID, res.Task); err != nil {
			return err
		}
		if len(s.pageQueue) == 0 && s.store.RecomputePagesScraped() {
			s.logger.Printf("all ministry pages scraped")
		}
	case model.OpMinistryPageProcess:
		payload, ok := res.Task.Payload.(model.MinistryListPayload)
		if !ok {
			return unexpectedOperation(res.Task)
		}
		ids := make([]string, 0, len(payload.Ministries))
		for _, m := range payload.Ministries {
			ids = append(ids, m.MinistryID)
		}
		if err := s.store.MarkMinistryPagesProcessed(ids); err != nil {
			return &ProcessFailureError{Message: err.Error(), Task: res.Task}
		}
		if s.store.RecomputePagesProcessed() {
			s.serviceRegistry = buildServiceRegistry(s.store.State())
			s.logger.Printf("all ministry pages processed: %d service queues built", len(s.serviceRegistry))
		}
	default:
		return unexpectedOperation(res.Task)
	}
	return nil
}

func (s *Scheduler) reduceMinistryServices(res model.Result) error {
	switch res.Task.Operation {
	case model.OpServiceScrape:
		sc, ok := res.Discovered.(model.ServiceScraped)
		if !ok {
			return unexpectedDiscovered(res)
		}
		if err := s.store.MarkServiceScraped(sc.MinistryID, sc.DepartmentID, sc.AgencyID); err != nil {
			return &ProcessFailureError{Message: err.Error(), Task: res.Task}
		}
		if err := s.popServicePending(sc, res.Task); err != nil {
			return err
		}
	case model.OpServicesProcess:
		sp, ok := res.Discovered.(model.ServicesProcessed)
		if !ok {
			return unexpectedDiscovered(res)
		}
		payload, ok := res.Task.Payload.(model.ServiceListPayload)
		if !ok {
			return unexpectedOperation(res.Task)
		}
		if sp.MinistryID != payload.MinistryID {
			return &ProcessFailureError{
				Message: fmt.Sprintf("services batch for %q returned results for %q", payload.MinistryID, sp.MinistryID),
				Task:    res.Task,
			}
		}
		if err := s.store.MarkServicesProcessed(sp.MinistryID, sp.DepartmentAgencies); err != nil {
			return &ProcessFailureError{Message: err.Error(), Task: res.Task}
		}
		if err := s.popServiceRegistry(sp.MinistryID, res.Task); err != nil {
			return err
		}
		if len(s.serviceRegistry) == 0 {
			scraped := s.store.RecomputeServicesScraped()
			processed := s.store.RecomputeServicesProcessed()
			if scraped && processed {
				s.logger.Printf("all ministry services scraped and processed")
			}
		}
	default:
		return unexpectedOperation(res.Task)
	}
	return nil
}

func (s *Scheduler) reduceFinalisation(res model.Result) error {
	if res.Task.Operation != model.OpFinalisationChecks {
		return unexpectedOperation(res.Task)
	}
	s.store.MarkFinalisationDone()
	return nil
}

// popPageQueue removes the queue head after its scrape succeeds. The
// head must match the reduced ministry; anything else means a result
// arrived for a task the scheduler never issued.
func (s *Scheduler) popPageQueue(ministryID string, task model.Task) error {
	if len(s.pageQueue) == 0 || s.pageQueue[0] != ministryID {
		return &ProcessFailureError{
			Message: fmt.Sprintf("page scrape result for %q does not match queue head", ministryID),
			Task:    task,
		}
	}
	s.pageQueue = s.pageQueue[1:]
	return nil
}

// popServicePending removes the head of the current ministry's pending
// queue after its scrape succeeds.
func (s *Scheduler) popServicePending(sc model.ServiceScraped, task model.Task) error {
	if len(s.serviceRegistry) == 0 {
		return &ProcessFailureError{
			Message: "service scrape result with empty registry",
			Task:    task,
		}
	}
	head := &s.serviceRegistry[0]
	if head.MinistryID != sc.MinistryID || len(head.Pending) == 0 {
		return &ProcessFailureError{
			Message: fmt.Sprintf("service scrape result for ministry %q does not match registry head %q", sc.MinistryID, head.MinistryID),
			Task:    task,
		}
	}
	p := head.Pending[0]
	if p.DepartmentID != sc.DepartmentID || p.AgencyID != sc.AgencyID {
		return &ProcessFailureError{
			Message: fmt.Sprintf("service scrape result for %s/%s does not match pending head %s/%s",
				sc.DepartmentID, sc.AgencyID, p.DepartmentID, p.AgencyID),
			Task: task,
		}
	}
	head.Pending = head.Pending[1:]
	return nil
}

// popServiceRegistry removes the registry head after its processing
// batch succeeds.
func (s *Scheduler) popServiceRegistry(ministryID string, task model.Task) error {
	if len(s.serviceRegistry) == 0 || s.serviceRegistry[0].MinistryID != ministryID {
		return &ProcessFailureError{
			Message: fmt.Sprintf("services batch result for %q does not match registry head", ministryID),
			Task:    task,
		}
	}
	s.serviceRegistry = s.serviceRegistry[1:]
	return nil
}

func unexpectedOperation(task model.Task) error {
	return &ProcessFailureError{
		Message: fmt.Sprintf("operation %q is not valid in scope %q", task.Operation, task.Scope),
		Task:    task,
	}
}

func unexpectedDiscovered(res model.Result) error {
	return &DiscoveryTypeMismatchError{
		Message:  "discovered data has wrong concrete type",
		Expected: model.ExpectedDiscovered(res.Task.Operation),
		Observed: model.DiscoveredKind(res.Discovered),
		Result:   res,
	}
}
