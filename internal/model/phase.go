// Package model defines the pipeline's progress state tree and the
// task/result contract exchanged between the scheduler and the executor.
package model

import "fmt"

// Phase is one ordered stage of the scraping pipeline. Phases run
// strictly in the order listed by Phases().
type Phase string

const (
	PhaseFAQ              Phase = "FAQ"
	PhaseAgenciesList     Phase = "AGENCIES_LIST"
	PhaseMinistriesList   Phase = "MINISTRIES_LIST"
	PhaseMinistryPages    Phase = "MINISTRIES_PAGES"
	PhaseMinistryServices Phase = "MINISTRIES_SERVICES"
	PhaseFinalisation     Phase = "FINALISATION"
)

// Phases returns all phases in execution order.
func Phases() []Phase {
	return []Phase{
		PhaseFAQ,
		PhaseAgenciesList,
		PhaseMinistriesList,
		PhaseMinistryPages,
		PhaseMinistryServices,
		PhaseFinalisation,
	}
}

// Operation identifies the concrete unit of work the executor performs
// for a task. Each operation belongs to exactly one phase.
type Operation string

const (
	OpFAQScrape  Operation = "FAQ_SCRAPE"
	OpFAQProcess Operation = "FAQ_PROCESS"

	OpAgenciesListScrape  Operation = "AGENCIES_LIST_SCRAPE"
	OpAgenciesListProcess Operation = "AGENCIES_LIST_PROCESS"

	OpMinistriesListScrape  Operation = "MINISTRIES_LIST_SCRAPE"
	OpMinistriesListProcess Operation = "MINISTRIES_LIST_PROCESS"

	OpMinistryPageScrape  Operation = "MINISTRIES_PAGE_SCRAPE"
	OpMinistryPageProcess Operation = "MINISTRIES_PAGE_PROCESS"

	OpServiceScrape   Operation = "MINISTRIES_SERVICES_SCRAPE"
	OpServicesProcess Operation = "MINISTRIES_SERVICES_PROCESS"

	OpFinalisationChecks Operation = "FINALISATION_CHECKS"
)

var operationPhases = map[Operation]Phase{
	OpFAQScrape:             PhaseFAQ,
	OpFAQProcess:            PhaseFAQ,
	OpAgenciesListScrape:    PhaseAgenciesList,
	OpAgenciesListProcess:   PhaseAgenciesList,
	OpMinistriesListScrape:  PhaseMinistriesList,
	OpMinistriesListProcess: PhaseMinistriesList,
	OpMinistryPageScrape:    PhaseMinistryPages,
	OpMinistryPageProcess:   PhaseMinistryPages,
	OpServiceScrape:         PhaseMinistryServices,
	OpServicesProcess:       PhaseMinistryServices,
	OpFinalisationChecks:    PhaseFinalisation,
}

// PhaseOf returns the phase an operation belongs to.
func PhaseOf(op Operation) (Phase, bool) {
	p, ok := operationPhases[op]
	return p, ok
}

// ValidateScope checks that an operation is legal under the given phase.
// A mismatch is a programming error, never a transient condition.
func ValidateScope(scope Phase, op Operation) error {
	p, ok := operationPhases[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	if p != scope {
		return fmt.Errorf("operation %q belongs to phase %q, not %q", op, p, scope)
	}
	return nil
}
