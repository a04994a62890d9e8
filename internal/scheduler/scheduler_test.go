package scheduler

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/progress"
)

func newTestScheduler(t *testing.T) (*Scheduler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler_state.json")
	return reopenScheduler(t, path), path
}

func reopenScheduler(t *testing.T, path string) *Scheduler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store, err := progress.NewStore(path, logger)
	require.NoError(t, err)
	return New(store, logger)
}

func succeed(task model.Task, d model.Discovered) model.Result {
	return model.Result{Task: task, Success: true, Discovered: d}
}

// step pulls the next task, checks it is the expected operation, and
// applies a successful result carrying the given discovered data.
func step(t *testing.T, s *Scheduler, op model.Operation, d model.Discovered) model.Task {
	t.Helper()
	task, err := s.NextTask()
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, op, task.Operation)
	require.NoError(t, model.ValidateTask(*task))
	require.NoError(t, s.ApplyResult(succeed(*task, d)))
	return *task
}

// advanceListPhases drives a fresh scheduler through FAQ, agencies and
// the ministries list, discovering the given ministry ids.
func advanceListPhases(t *testing.T, s *Scheduler, ids []string) {
	t.Helper()
	step(t, s, model.OpFAQScrape, model.EmptyDiscovered{})
	step(t, s, model.OpFAQProcess, model.EmptyDiscovered{})
	step(t, s, model.OpAgenciesListScrape, model.EmptyDiscovered{})
	step(t, s, model.OpAgenciesListProcess, model.EmptyDiscovered{})
	step(t, s, model.OpMinistriesListScrape, model.EmptyDiscovered{})
	step(t, s, model.OpMinistriesListProcess, model.MinistryIDs{IDs: ids})
}

func singleAgencyHierarchy(ministryID string) model.MinistryHierarchy {
	return model.MinistryHierarchy{
		MinistryID: ministryID,
		Departments: []model.DepartmentHierarchy{{
			DepartmentID: ministryID + "-dept",
			Agencies: []model.AgencyRef{{
				AgencyID:    ministryID + "-agency",
				ServicesURL: "https://accounts.ecitizen.go.ke/en/services?d=" + ministryID,
			}},
		}},
	}
}

func TestFreshPipelineStartsWithFAQScrape(t *testing.T) {
	s, _ := newTestScheduler(t)

	task, err := s.NextTask()
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, model.PhaseFAQ, task.Scope)
	require.Equal(t, model.OpFAQScrape, task.Operation)
	require.Equal(t, model.EmptyPayload{}, task.Payload)
}

func TestNextTaskPeeksWithoutPopping(t *testing.T) {
	s, _ := newTestScheduler(t)
	advanceListPhases(t, s, []string{"a", "b"})

	first, err := s.NextTask()
	require.NoError(t, err)
	second, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, model.MinistryPayload{MinistryID: "a"}, first.Payload)
}

func TestDiscoveredOrderFixesPageQueueOrder(t *testing.T) {
	s, _ := newTestScheduler(t)
	advanceListPhases(t, s, []string{"c-ministry", "a-ministry", "b-ministry"})

	for _, want := range []string{"c-ministry", "a-ministry", "b-ministry"} {
		task := step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy(want))
		require.Equal(t, model.MinistryPayload{MinistryID: want}, task.Payload)
	}
}

func TestPagesScrapeIndividuallyThenProcessAsBatch(t *testing.T) {
	s, _ := newTestScheduler(t)
	ids := []string{"a", "b", "c"}
	advanceListPhases(t, s, ids)

	for _, id := range ids {
		step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy(id))
	}

	task, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.OpMinistryPageProcess, task.Operation)
	batch := task.Payload.(model.MinistryListPayload)
	require.Len(t, batch.Ministries, 3)
	for i, id := range ids {
		require.Equal(t, id, batch.Ministries[i].MinistryID)
	}

	require.NoError(t, s.ApplyResult(succeed(*task, model.MinistryIDs{IDs: ids})))

	next, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.OpServiceScrape, next.Operation)
	require.Equal(t, "a", next.Payload.(model.ServicePayload).MinistryID)
}

func TestServicesScrapePerAgencyThenProcessPerMinistry(t *testing.T) {
	s, _ := newTestScheduler(t)
	ids := []string{"m1", "m2"}
	advanceListPhases(t, s, ids)
	for _, id := range ids {
		step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy(id))
	}
	step(t, s, model.OpMinistryPageProcess, model.MinistryIDs{IDs: ids})

	for _, id := range ids {
		scrape := step(t, s, model.OpServiceScrape, model.ServiceScraped{
			MinistryID:   id,
			DepartmentID: id + "-dept",
			AgencyID:     id + "-agency",
		})
		require.Equal(t, id+"-agency", scrape.Payload.(model.ServicePayload).AgencyID)

		process, err := s.NextTask()
		require.NoError(t, err)
		require.Equal(t, model.OpServicesProcess, process.Operation)
		payload := process.Payload.(model.ServiceListPayload)
		require.Equal(t, id, payload.MinistryID)
		require.Len(t, payload.Services, 1)

		require.NoError(t, s.ApplyResult(succeed(*process, model.ServicesProcessed{
			MinistryID:         id,
			DepartmentAgencies: map[string][]string{id + "-dept": {id + "-agency"}},
		})))
	}

	st := s.store.State()
	require.True(t, st.MinistryServices.Scraped)
	require.True(t, st.MinistryServices.Processed)
	require.True(t, st.Ministries["m1"].Complete)
	require.True(t, st.Ministries["m2"].Complete)

	task, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.OpFinalisationChecks, task.Operation)
}

func TestCompletedPipelineReturnsNilForever(t *testing.T) {
	s, _ := newTestScheduler(t)
	advanceListPhases(t, s, []string{"m1"})
	step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy("m1"))
	step(t, s, model.OpMinistryPageProcess, model.MinistryIDs{IDs: []string{"m1"}})
	step(t, s, model.OpServiceScrape, model.ServiceScraped{
		MinistryID: "m1", DepartmentID: "m1-dept", AgencyID: "m1-agency",
	})
	step(t, s, model.OpServicesProcess, model.ServicesProcessed{
		MinistryID:         "m1",
		DepartmentAgencies: map[string][]string{"m1-dept": {"m1-agency"}},
	})
	step(t, s, model.OpFinalisationChecks, model.EmptyDiscovered{})

	for i := 0; i < 3; i++ {
		task, err := s.NextTask()
		require.NoError(t, err)
		require.Nil(t, task)
	}
}

func TestFailedResultIsFatalAndLeavesStateUntouched(t *testing.T) {
	s, _ := newTestScheduler(t)

	task, err := s.NextTask()
	require.NoError(t, err)

	err = s.ApplyResult(model.Result{Task: *task, Success: false, ErrorMessage: "fetch timed out"})
	var pf *PhaseFailureError
	require.ErrorAs(t, err, &pf)
	require.Contains(t, pf.Error(), "fetch timed out")

	require.False(t, s.store.State().FAQ.Scraped)
	again, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, task, again)
}

func TestDiscoveryMismatchNeverMutatesState(t *testing.T) {
	s, _ := newTestScheduler(t)
	step(t, s, model.OpFAQScrape, model.EmptyDiscovered{})
	step(t, s, model.OpFAQProcess, model.EmptyDiscovered{})
	step(t, s, model.OpAgenciesListScrape, model.EmptyDiscovered{})
	step(t, s, model.OpAgenciesListProcess, model.EmptyDiscovered{})
	step(t, s, model.OpMinistriesListScrape, model.EmptyDiscovered{})

	task, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.OpMinistriesListProcess, task.Operation)

	err = s.ApplyResult(succeed(*task, model.EmptyDiscovered{}))
	var mismatch *DiscoveryTypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "ministry_ids", mismatch.Expected)
	require.Equal(t, "empty", mismatch.Observed)

	require.False(t, s.store.State().MinistriesList.Processed)
	require.Empty(t, s.store.State().Ministries)
}

func TestServicesBatchForWrongMinistryIsProcessFailure(t *testing.T) {
	s, _ := newTestScheduler(t)
	advanceListPhases(t, s, []string{"m1"})
	step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy("m1"))
	step(t, s, model.OpMinistryPageProcess, model.MinistryIDs{IDs: []string{"m1"}})
	step(t, s, model.OpServiceScrape, model.ServiceScraped{
		MinistryID: "m1", DepartmentID: "m1-dept", AgencyID: "m1-agency",
	})

	task, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.OpServicesProcess, task.Operation)

	err = s.ApplyResult(succeed(*task, model.ServicesProcessed{
		MinistryID:         "m2",
		DepartmentAgencies: map[string][]string{"m1-dept": {"m1-agency"}},
	}))
	var pf *ProcessFailureError
	require.ErrorAs(t, err, &pf)
	require.False(t, s.store.State().Ministries["m1"].Services.Processed)
}

func TestSchedulerResumesFromPersistedState(t *testing.T) {
	s, path := newTestScheduler(t)
	ids := []string{"m1", "m2", "m3"}
	advanceListPhases(t, s, ids)
	step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy("m1"))

	before, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.MinistryPayload{MinistryID: "m2"}, before.Payload)

	resumed := reopenScheduler(t, path)
	after, err := resumed.NextTask()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestResumeMidServicesRebuildsRegistry(t *testing.T) {
	s, path := newTestScheduler(t)
	ids := []string{"m1", "m2"}
	advanceListPhases(t, s, ids)
	for _, id := range ids {
		step(t, s, model.OpMinistryPageScrape, singleAgencyHierarchy(id))
	}
	step(t, s, model.OpMinistryPageProcess, model.MinistryIDs{IDs: ids})
	step(t, s, model.OpServiceScrape, model.ServiceScraped{
		MinistryID: "m1", DepartmentID: "m1-dept", AgencyID: "m1-agency",
	})

	resumed := reopenScheduler(t, path)
	task, err := resumed.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.OpServicesProcess, task.Operation)
	require.Equal(t, "m1", task.Payload.(model.ServiceListPayload).MinistryID)
}

func TestPageScrapeForWrongMinistryIsProcessFailure(t *testing.T) {
	s, _ := newTestScheduler(t)
	advanceListPhases(t, s, []string{"m1", "m2"})

	task, err := s.NextTask()
	require.NoError(t, err)
	require.Equal(t, model.MinistryPayload{MinistryID: "m1"}, task.Payload)

	err = s.ApplyResult(succeed(*task, singleAgencyHierarchy("m2")))
	require.Error(t, err)
	var pf *ProcessFailureError
	require.True(t, errors.As(err, &pf))
	require.False(t, s.store.State().Ministries["m1"].Page.Scraped)
}
