package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPhaseOfCoversEveryOperation(t *testing.T) {
	ops := []Operation{
		OpFAQScrape, OpFAQProcess,
		OpAgenciesListScrape, OpAgenciesListProcess,
		OpMinistriesListScrape, OpMinistriesListProcess,
		OpMinistryPageScrape, OpMinistryPageProcess,
		OpServiceScrape, OpServicesProcess,
		OpFinalisationChecks,
	}
	for _, op := range ops {
		if _, ok := PhaseOf(op); !ok {
			t.Errorf("PhaseOf(%s): no phase registered", op)
		}
		if expectedDiscovered[op] == "" {
			t.Errorf("no discovered variant registered for %s", op)
		}
		if expectedPayloads[op] == "" {
			t.Errorf("no payload variant registered for %s", op)
		}
	}
}

func TestValidateScope(t *testing.T) {
	if err := ValidateScope(PhaseFAQ, OpFAQScrape); err != nil {
		t.Fatalf("ValidateScope: %v", err)
	}
	if err := ValidateScope(PhaseFAQ, OpServiceScrape); err == nil {
		t.Fatal("expected error for cross-phase operation")
	}
	if err := ValidateScope(PhaseFAQ, Operation("BOGUS")); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestValidateTaskPayloadPairing(t *testing.T) {
	ok := Task{Scope: PhaseMinistryPages, Operation: OpMinistryPageScrape, Payload: MinistryPayload{MinistryID: "m1"}}
	if err := ValidateTask(ok); err != nil {
		t.Fatalf("ValidateTask: %v", err)
	}

	wrongVariant := Task{Scope: PhaseMinistryPages, Operation: OpMinistryPageScrape, Payload: EmptyPayload{}}
	if err := ValidateTask(wrongVariant); err == nil {
		t.Fatal("expected error for wrong payload variant")
	}

	nilPayload := Task{Scope: PhaseFAQ, Operation: OpFAQScrape}
	if err := ValidateTask(nilPayload); err == nil {
		t.Fatal("expected error for nil payload")
	}
}

func TestDiscoveredKind(t *testing.T) {
	if got := DiscoveredKind(nil); got != "nil" {
		t.Errorf("DiscoveredKind(nil) = %q", got)
	}
	if got := DiscoveredKind(MinistryIDs{}); got != "ministry_ids" {
		t.Errorf("DiscoveredKind = %q, want ministry_ids", got)
	}
	if want := ExpectedDiscovered(OpMinistryPageScrape); want != "ministry_hierarchy" {
		t.Errorf("ExpectedDiscovered = %q", want)
	}
}

func TestMinistriesInOrder(t *testing.T) {
	s := NewPipelineState()
	s.Ministries["c"] = NewMinistryState("c", 2)
	s.Ministries["a"] = NewMinistryState("a", 0)
	s.Ministries["b"] = NewMinistryState("b", 1)

	var ids []string
	for _, m := range s.MinistriesInOrder() {
		ids = append(ids, m.MinistryID)
	}
	if got := strings.Join(ids, ","); got != "a,b,c" {
		t.Errorf("order = %s, want a,b,c", got)
	}
}

func TestAgencyStatesTraversalOrder(t *testing.T) {
	m := NewMinistryState("m1", 0)
	m.Departments["d2"] = &DepartmentState{
		DepartmentID: "d2", Position: 1,
		Agencies: map[string]*AgencyState{
			"a3": {AgencyID: "a3", ServicesURL: "u3", Position: 0},
		},
	}
	m.Departments["d1"] = &DepartmentState{
		DepartmentID: "d1", Position: 0,
		Agencies: map[string]*AgencyState{
			"a2": {AgencyID: "a2", ServicesURL: "u2", Position: 1},
			"a1": {AgencyID: "a1", ServicesURL: "u1", Position: 0},
		},
	}

	var ids []string
	for _, a := range m.AgencyStates() {
		ids = append(ids, a.AgencyID)
	}
	if got := strings.Join(ids, ","); got != "a1,a2,a3" {
		t.Errorf("traversal = %s, want a1,a2,a3", got)
	}
}

func TestPipelineStateValidate(t *testing.T) {
	s := NewPipelineState()
	s.Ministries["m1"] = NewMinistryState("m1", 0)
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	s.Ministries["m2"] = NewMinistryState("other", 1)
	if err := s.Validate(); err == nil {
		t.Fatal("expected key/id mismatch error")
	}
	delete(s.Ministries, "m2")

	s.Ministries["m1"].Departments["d1"] = &DepartmentState{
		DepartmentID: "d1",
		Agencies: map[string]*AgencyState{
			"a1": {AgencyID: "a1"},
		},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected empty services URL error")
	}
}

func TestTaskJSONEnvelope(t *testing.T) {
	task := Task{
		Scope:     PhaseMinistryServices,
		Operation: OpServiceScrape,
		Payload: ServicePayload{
			MinistryID:   "m1",
			DepartmentID: "d1",
			AgencyID:     "a1",
			ServicesURL:  "https://example.go.ke/en/ministries/m1?department=d1&agency=a1",
		},
	}
	raw, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["payload_kind"] != "service" {
		t.Errorf("payload_kind = %v", decoded["payload_kind"])
	}
	if decoded["operation"] != string(OpServiceScrape) {
		t.Errorf("operation = %v", decoded["operation"])
	}

	res := Result{Task: task, Success: false, ErrorMessage: "boom", Discovered: EmptyDiscovered{}}
	raw, err = json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal result: %v", err)
	}
	if !strings.Contains(string(raw), `"discovered_kind":"empty"`) {
		t.Errorf("result envelope missing discovered_kind: %s", raw)
	}
}
