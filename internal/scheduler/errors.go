package scheduler

import (
	"fmt"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
)

// PhaseFailureError reports a task the executor ran and failed. It is
// fatal to the run; retry policy, if any, lives below the executor.
type PhaseFailureError struct {
	Message string
	Result  model.Result
}

func (e *PhaseFailureError) Error() string {
	msg := fmt.Sprintf("phase failure: %s (%s)", e.Message, e.Result.Task.Log())
	if e.Result.ErrorMessage != "" {
		msg += ": " + e.Result.ErrorMessage
	}
	return msg
}

// ProcessFailureError reports a violated scheduler precondition, such
// as a referenced entity missing from the progress store or a result
// that contradicts its originating task. It indicates a bug or external
// data inconsistency and is always fatal.
type ProcessFailureError struct {
	Message string
	Task    model.Task
}

func (e *ProcessFailureError) Error() string {
	return fmt.Sprintf("process failure: %s (%s)", e.Message, e.Task.Log())
}

// DiscoveryTypeMismatchError reports a result whose discovered-data
// variant does not match what its operation promises. It points at
// contract drift between scheduler and executor and is never retried.
type DiscoveryTypeMismatchError struct {
	Message  string
	Expected string
	Observed string
	Result   model.Result
}

func (e *DiscoveryTypeMismatchError) Error() string {
	return fmt.Sprintf("discovery type mismatch: %s: expected %q, observed %q (%s)",
		e.Message, e.Expected, e.Observed, e.Result.Task.Log())
}
