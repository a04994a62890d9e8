// Package progress owns the durable pipeline snapshot: loading, saving,
// and every typed mutation the scheduler's reducers apply to it.
package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/fileio"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
)

// Store holds the pipeline state and persists it to a JSON file. It is
// owned exclusively by the scheduler; all mutation goes through the
// typed helpers below.
type Store struct {
	path   string
	logger *log.Logger
	state  *model.PipelineState
}

// NewStore loads the snapshot at path. A missing file initialises an
// empty state; a present file is decoded strictly and fails loudly on
// any shape mismatch.
func NewStore(path string, logger *log.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Printf("no existing state at %s, initialising new state", path)
		s.state = model.NewPipelineState()
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	state := model.NewPipelineState()
	if err := dec.Decode(state); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", path, err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("state file %s is inconsistent: %w", path, err)
	}
	if state.Ministries == nil {
		state.Ministries = make(map[string]*model.MinistryState)
	}

	logger.Printf("loaded existing state from %s (%d ministries)", path, len(state.Ministries))
	s.state = state
	return s, nil
}

// State exposes the live snapshot for reading and queue building.
func (s *Store) State() *model.PipelineState {
	return s.state
}

// Save persists the snapshot atomically. Called synchronously after
// every successfully applied result, so a crash between tasks loses at
// most the in-flight task.
func (s *Store) Save() error {
	if err := fileio.WriteJSON(s.path, s.state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// --- Simple phase StepChecks ---

func (s *Store) MarkFAQScraped()               { s.state.FAQ.Scraped = true }
func (s *Store) MarkFAQProcessed()             { s.state.FAQ.Processed = true }
func (s *Store) MarkAgenciesListScraped()      { s.state.AgenciesList.Scraped = true }
func (s *Store) MarkAgenciesListProcessed()    { s.state.AgenciesList.Processed = true }
func (s *Store) MarkMinistriesListScraped()    { s.state.MinistriesList.Scraped = true }
func (s *Store) MarkMinistriesListProcessed()  { s.state.MinistriesList.Processed = true }
func (s *Store) MarkFinalisationDone()         { s.state.FinalisationChecks = true }

// --- Structural merges ---

// MergeMinistryIDs adds newly discovered ministries in discovery order.
// Re-applying the same ids is a no-op; the tree is append-only.
func (s *Store) MergeMinistryIDs(ids []string) {
	for _, id := range ids {
		if _, ok := s.state.Ministries[id]; ok {
			continue
		}
		s.state.Ministries[id] = model.NewMinistryState(id, len(s.state.Ministries))
	}
}

// MergeMinistryHierarchy instantiates the departments and agencies
// discovered on one ministry's detail page. Idempotent for existing
// ids; positions follow page order for new nodes.
func (s *Store) MergeMinistryHierarchy(h model.MinistryHierarchy) error {
	m, ok := s.state.Ministries[h.MinistryID]
	if !ok {
		return fmt.Errorf("ministry %q not found in state", h.MinistryID)
	}

	for _, dh := range h.Departments {
		d, ok := m.Departments[dh.DepartmentID]
		if !ok {
			d = &model.DepartmentState{
				DepartmentID: dh.DepartmentID,
				Position:     len(m.Departments),
				Agencies:     make(map[string]*model.AgencyState),
			}
			m.Departments[dh.DepartmentID] = d
		}
		for _, ref := range dh.Agencies {
			if _, ok := d.Agencies[ref.AgencyID]; ok {
				continue
			}
			d.Agencies[ref.AgencyID] = &model.AgencyState{
				AgencyID:    ref.AgencyID,
				ServicesURL: ref.ServicesURL,
				Position:    len(d.Agencies),
			}
		}
	}
	return nil
}

// --- Ministry page steps ---

// MarkMinistryPageScraped marks one ministry's detail page as scraped.
func (s *Store) MarkMinistryPageScraped(ministryID string) error {
	m, ok := s.state.Ministries[ministryID]
	if !ok {
		return fmt.Errorf("ministry %q not found in state", ministryID)
	}
	m.Page.Scraped = true
	return nil
}

// MarkMinistryPagesProcessed marks a batch of ministry pages processed.
func (s *Store) MarkMinistryPagesProcessed(ministryIDs []string) error {
	for _, id := range ministryIDs {
		m, ok := s.state.Ministries[id]
		if !ok {
			return fmt.Errorf("ministry %q not found in state", id)
		}
		m.Page.Processed = true
	}
	return nil
}

// RecomputePagesScraped recomputes the phase-level scraped flag from
// scratch: true only when every ministry's page is scraped. An empty
// tree never counts as complete. The flag only moves false→true.
func (s *Store) RecomputePagesScraped() bool {
	all := len(s.state.Ministries) > 0
	for _, m := range s.state.Ministries {
		if !m.Page.Scraped {
			all = false
			break
		}
	}
	if all {
		s.state.MinistryPages.Scraped = true
		s.logger.Printf("all ministry pages scraped, phase flag set")
	}
	return s.state.MinistryPages.Scraped
}

// RecomputePagesProcessed is the processed-side counterpart of
// RecomputePagesScraped.
func (s *Store) RecomputePagesProcessed() bool {
	all := len(s.state.Ministries) > 0
	for _, m := range s.state.Ministries {
		if !m.Page.Processed {
			all = false
			break
		}
	}
	if all {
		s.state.MinistryPages.Processed = true
		s.logger.Printf("all ministry pages processed, phase flag set")
	}
	return s.state.MinistryPages.Processed
}

// --- Service steps ---

// MarkServiceScraped marks one agency's services page scraped and lifts
// the ministry-level services.scraped flag once every agency under the
// ministry is scraped.
func (s *Store) MarkServiceScraped(ministryID, departmentID, agencyID string) error {
	m, ok := s.state.Ministries[ministryID]
	if !ok {
		return fmt.Errorf("ministry %q not found in state", ministryID)
	}
	d, ok := m.Departments[departmentID]
	if !ok {
		return fmt.Errorf("department %q not found under ministry %q", departmentID, ministryID)
	}
	a, ok := d.Agencies[agencyID]
	if !ok {
		return fmt.Errorf("agency %q not found under ministry %q department %q", agencyID, ministryID, departmentID)
	}
	a.State.Scraped = true

	agencies := m.AgencyStates()
	all := len(agencies) > 0
	for _, ag := range agencies {
		if !ag.State.Scraped {
			all = false
			break
		}
	}
	if all {
		m.Services.Scraped = true
	}
	return nil
}

// MarkServicesProcessed marks a batch of agencies (grouped by
// department) as processed for one ministry, lifts the ministry-level
// services.processed flag once every agency is processed, and derives
// the ministry's complete flag.
func (s *Store) MarkServicesProcessed(ministryID string, departmentAgencies map[string][]string) error {
	m, ok := s.state.Ministries[ministryID]
	if !ok {
		return fmt.Errorf("ministry %q not found in state", ministryID)
	}

	for departmentID, agencyIDs := range departmentAgencies {
		d, ok := m.Departments[departmentID]
		if !ok {
			return fmt.Errorf("department %q not found under ministry %q", departmentID, ministryID)
		}
		for _, agencyID := range agencyIDs {
			a, ok := d.Agencies[agencyID]
			if !ok {
				return fmt.Errorf("agency %q not found under ministry %q department %q", agencyID, ministryID, departmentID)
			}
			a.State.Processed = true
		}
	}

	agencies := m.AgencyStates()
	all := len(agencies) > 0
	for _, a := range agencies {
		if !a.State.Processed {
			all = false
			break
		}
	}
	if all {
		m.Services.Processed = true
	}

	if m.Page.Processed && m.Services.Processed {
		m.Complete = true
		s.logger.Printf("ministry %s marked complete", ministryID)
	}
	return nil
}

// RecomputeServicesScraped recomputes the phase-level services scraped
// flag over all ministries.
func (s *Store) RecomputeServicesScraped() bool {
	all := len(s.state.Ministries) > 0
	for _, m := range s.state.Ministries {
		if !m.Services.Scraped {
			all = false
			break
		}
	}
	if all {
		s.state.MinistryServices.Scraped = true
		s.logger.Printf("all ministry services scraped, phase flag set")
	}
	return s.state.MinistryServices.Scraped
}

// RecomputeServicesProcessed recomputes the phase-level services
// processed flag over all ministries.
func (s *Store) RecomputeServicesProcessed() bool {
	all := len(s.state.Ministries) > 0
	for _, m := range s.state.Ministries {
		if !m.Services.Processed {
			all = false
			break
		}
	}
	if all {
		s.state.MinistryServices.Processed = true
		s.logger.Printf("all ministry services processed, phase flag set")
	}
	return s.state.MinistryServices.Processed
}
