package model

import (
	"fmt"
	"sort"
)

// StepCheck tracks whether one unit's scrape and process steps are done.
type StepCheck struct {
	Scraped   bool `json:"scraped"`
	Processed bool `json:"processed"`
}

// AgencyState tracks one agency's services page. Position is the order
// the agency was discovered in, and fixes queue ordering across runs.
type AgencyState struct {
	AgencyID    string    `json:"agency_id"`
	ServicesURL string    `json:"ministry_departments_agencies_url"`
	Position    int       `json:"position"`
	State       StepCheck `json:"state"`
}

// DepartmentState groups the agencies discovered under one department.
type DepartmentState struct {
	DepartmentID string                  `json:"department_id"`
	Position     int                     `json:"position"`
	Agencies     map[string]*AgencyState `json:"agencies"`
}

// MinistryState tracks one ministry through the detail-page and
// services phases. Complete is derived, set once, and never reset.
type MinistryState struct {
	MinistryID  string                      `json:"ministry_id"`
	Position    int                         `json:"position"`
	Departments map[string]*DepartmentState `json:"departments"`
	Page        StepCheck                   `json:"page"`
	Services    StepCheck                   `json:"services"`
	Complete    bool                        `json:"complete"`
}

// PipelineState is the persisted snapshot of the whole pipeline: one
// StepCheck per simple phase, the finalisation flag, and the ministry
// tree. It is mutated only by the scheduler's reducers via the
// progress store.
type PipelineState struct {
	FAQ                StepCheck                 `json:"faq"`
	AgenciesList       StepCheck                 `json:"agencies_list"`
	MinistriesList     StepCheck                 `json:"ministries_list"`
	MinistryPages      StepCheck                 `json:"ministry_pages"`
	MinistryServices   StepCheck                 `json:"ministry_services"`
	FinalisationChecks bool                      `json:"finalisation_checks"`
	Ministries         map[string]*MinistryState `json:"ministries_detail"`
}

// NewPipelineState returns an empty state with no phase started.
func NewPipelineState() *PipelineState {
	return &PipelineState{Ministries: make(map[string]*MinistryState)}
}

// NewMinistryState returns a fresh ministry node at the given discovery
// position.
func NewMinistryState(ministryID string, position int) *MinistryState {
	return &MinistryState{
		MinistryID:  ministryID,
		Position:    position,
		Departments: make(map[string]*DepartmentState),
	}
}

// MinistriesInOrder returns the ministries sorted by discovery position,
// with the id as tiebreak. JSON maps carry no order, so this is the
// canonical iteration order everywhere a queue or batch is built.
func (s *PipelineState) MinistriesInOrder() []*MinistryState {
	out := make([]*MinistryState, 0, len(s.Ministries))
	for _, m := range s.Ministries {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].MinistryID < out[j].MinistryID
	})
	return out
}

// DepartmentsInOrder returns the ministry's departments in discovery order.
func (m *MinistryState) DepartmentsInOrder() []*DepartmentState {
	out := make([]*DepartmentState, 0, len(m.Departments))
	for _, d := range m.Departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].DepartmentID < out[j].DepartmentID
	})
	return out
}

// AgenciesInOrder returns the department's agencies in discovery order.
func (d *DepartmentState) AgenciesInOrder() []*AgencyState {
	out := make([]*AgencyState, 0, len(d.Agencies))
	for _, a := range d.Agencies {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].AgencyID < out[j].AgencyID
	})
	return out
}

// AgencyStates returns every agency under the ministry, in order.
func (m *MinistryState) AgencyStates() []*AgencyState {
	var out []*AgencyState
	for _, d := range m.DepartmentsInOrder() {
		out = append(out, d.AgenciesInOrder()...)
	}
	return out
}

// Validate checks structural consistency after a strict decode: map keys
// must match embedded ids and every node needs a non-empty id. Loading
// fails loudly on any violation rather than recovering partially.
func (s *PipelineState) Validate() error {
	for id, m := range s.Ministries {
		if m == nil {
			return fmt.Errorf("ministry %q: nil entry", id)
		}
		if m.MinistryID == "" {
			return fmt.Errorf("ministry %q: empty ministry_id", id)
		}
		if m.MinistryID != id {
			return fmt.Errorf("ministry %q: key does not match ministry_id %q", id, m.MinistryID)
		}
		for did, d := range m.Departments {
			if d == nil {
				return fmt.Errorf("ministry %q department %q: nil entry", id, did)
			}
			if d.DepartmentID == "" || d.DepartmentID != did {
				return fmt.Errorf("ministry %q department %q: key does not match department_id %q", id, did, d.DepartmentID)
			}
			for aid, a := range d.Agencies {
				if a == nil {
					return fmt.Errorf("ministry %q agency %q: nil entry", id, aid)
				}
				if a.AgencyID == "" || a.AgencyID != aid {
					return fmt.Errorf("ministry %q agency %q: key does not match agency_id %q", id, aid, a.AgencyID)
				}
				if a.ServicesURL == "" {
					return fmt.Errorf("ministry %q agency %q: empty services URL", id, aid)
				}
			}
		}
	}
	return nil
}
