package model

import (
	"encoding/json"
	"fmt"
)

// Payload is the closed union of task payload variants. Exactly one
// variant is legal per operation; ValidateTask enforces the pairing.
type Payload interface {
	payloadKind() string
}

// EmptyPayload is used by operations that need no input beyond their
// operation kind (simple list phases and finalisation).
type EmptyPayload struct{}

// MinistryPayload addresses a single ministry by id.
type MinistryPayload struct {
	MinistryID string `json:"ministry_id"`
}

// MinistryListPayload is the batch payload covering several ministries.
type MinistryListPayload struct {
	Ministries []MinistryPayload `json:"ministry_ids"`
}

// ServicePayload addresses one agency's services page. The URL carries
// the department/agency query parameters needed to reach the page.
type ServicePayload struct {
	MinistryID   string `json:"ministry_id"`
	DepartmentID string `json:"department_id"`
	AgencyID     string `json:"agency_id"`
	ServicesURL  string `json:"ministry_departments_agencies_url"`
}

// ServiceListPayload is the batch payload covering all pending services
// under one ministry. MinistryID records the originating context so the
// reducer can reject cross-wired batch results.
type ServiceListPayload struct {
	MinistryID string           `json:"ministry_id"`
	Services   []ServicePayload `json:"service_tasks"`
}

func (EmptyPayload) payloadKind() string        { return "empty" }
func (MinistryPayload) payloadKind() string     { return "ministry" }
func (MinistryListPayload) payloadKind() string { return "ministry_list" }
func (ServicePayload) payloadKind() string      { return "service" }
func (ServiceListPayload) payloadKind() string  { return "service_list" }

var expectedPayloads = map[Operation]string{
	OpFAQScrape:             "empty",
	OpFAQProcess:            "empty",
	OpAgenciesListScrape:    "empty",
	OpAgenciesListProcess:   "empty",
	OpMinistriesListScrape:  "empty",
	OpMinistriesListProcess: "empty",
	OpMinistryPageScrape:    "ministry",
	OpMinistryPageProcess:   "ministry_list",
	OpServiceScrape:         "service",
	OpServicesProcess:       "service_list",
	OpFinalisationChecks:    "empty",
}

// Task is one unit of work handed to the executor.
type Task struct {
	Scope     Phase
	Operation Operation
	Payload   Payload
}

// ValidateTask checks the scope/operation pairing and the payload
// variant. Violations indicate contract drift, not runtime conditions.
func ValidateTask(t Task) error {
	if err := ValidateScope(t.Scope, t.Operation); err != nil {
		return err
	}
	if t.Payload == nil {
		return fmt.Errorf("task %s has nil payload", t.Operation)
	}
	want := expectedPayloads[t.Operation]
	if got := t.Payload.payloadKind(); got != want {
		return fmt.Errorf("task %s expects %q payload, got %q", t.Operation, want, got)
	}
	return nil
}

// Log renders a short single-line description for log output.
func (t Task) Log() string {
	return fmt.Sprintf("scope=%s op=%s", t.Scope, t.Operation)
}

// MarshalJSON emits an envelope with a kind discriminator so tasks can
// be logged and inspected as JSON.
func (t Task) MarshalJSON() ([]byte, error) {
	kind := ""
	if t.Payload != nil {
		kind = t.Payload.payloadKind()
	}
	return json.Marshal(struct {
		Scope     Phase     `json:"scope"`
		Operation Operation `json:"operation"`
		Kind      string    `json:"payload_kind"`
		Payload   Payload   `json:"payload"`
	}{t.Scope, t.Operation, kind, t.Payload})
}
