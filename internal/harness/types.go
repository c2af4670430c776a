package harness

import (
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// Step outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeError         = "error"
	OutcomeApplied       = "applied"
	OutcomeDuplicate     = "duplicate"
	OutcomeLeveledUp     = "leveled_up"
	OutcomeGranted       = "granted"
	OutcomeSkipped       = "skipped"
	OutcomeVoided        = "voided"
	OutcomeAlreadyVoided = "already_voided"
	OutcomeClean         = "clean"
	OutcomeDrift         = "drift"
)

// StepTrace is what one executed step did.
type StepTrace struct {
	Index   int
	Op      string
	Entity  string
	Outcome string
	// Error is the engine error code when Outcome is OutcomeError.
	Error string
	// Granted is the gift amount, set only for a granted gift.
	Granted string
	// State is the display state returned by the step, in canonical form.
	// Nil for advance and parallel steps and for failed steps.
	State map[string]any
	// Children holds the traces of a parallel step's sub-steps.
	Children []StepTrace
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool

	// Steps traces setup and flow steps in order.
	Steps []StepTrace

	// Events is the full event log after the flow, before assertions ran.
	Events []ledger.Event

	// Errors contains expectation and assertion failures.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
