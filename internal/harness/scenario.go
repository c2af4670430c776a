package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStart is the clock reading a scenario starts at when it names none.
var DefaultStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Scenario is a scripted sequence of engine operations with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial manual clock reading. Zero means DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	// Config is an optional config file path. Relative paths are resolved
	// against the scenario file. Empty means the embedded defaults.
	Config string `yaml:"config,omitempty"`

	// GiftOncePerCampaign enables the once-per-campaign gift policy.
	GiftOncePerCampaign bool `yaml:"gift_once_per_campaign,omitempty"`

	// PerEntityLocks switches the guard to per-entity locks.
	PerEntityLocks bool `yaml:"per_entity_locks,omitempty"`

	// Setup steps establish initial state. They must not fail.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of steps.
	Flow []Step `yaml:"flow"`

	// Assertions validate the event log and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine operation. Which fields apply depends on Op.
type Step struct {
	Op     string `yaml:"op"`
	Entity string `yaml:"entity,omitempty"`

	// Amount is a decimal currency string, parsed with round-half-up.
	Amount string `yaml:"amount,omitempty"`
	Key    string `yaml:"key,omitempty"`
	Source string `yaml:"source,omitempty"`

	Population *int64 `yaml:"population,omitempty"`
	EntityType string `yaml:"entity_type,omitempty"`
	Campaign   string `yaml:"campaign,omitempty"`
	Target     int64  `yaml:"target,omitempty"`
	Reason     string `yaml:"reason,omitempty"`

	Days  int `yaml:"days,omitempty"`
	Hours int `yaml:"hours,omitempty"`

	// Steps are the concurrent sub-steps of a parallel step.
	Steps []Step `yaml:"steps,omitempty"`

	// Expect, if set, is checked against the step's result.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies what a step should produce. Empty fields are not checked.
type Expect struct {
	Outcome string `yaml:"outcome,omitempty"`
	// Error is the expected engine error code, e.g. INVALID_AMOUNT.
	Error string `yaml:"error,omitempty"`
	// Granted is the expected gift amount, e.g. "2.00".
	Granted string `yaml:"granted,omitempty"`
	// State is a subset match against the canonical display state.
	State map[string]any `yaml:"state,omitempty"`
}

// Assertion validates the event log or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Event is the event type (event_count, event_contains).
	Event string `yaml:"event,omitempty"`

	// Entity restricts event_count to one entity and names the entity for
	// final_state and rebuild_clean.
	Entity string `yaml:"entity,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Consecutive requires adjacent sequence numbers (event_count).
	Consecutive bool `yaml:"consecutive,omitempty"`

	// Events is the expected order of event types (event_order).
	Events []string `yaml:"events,omitempty"`

	// Payload is a subset match against an event payload (event_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Expect is a subset match against the display state (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount    = "event_count"
	AssertEventOrder    = "event_order"
	AssertEventContains = "event_contains"
	AssertFinalState    = "final_state"
	AssertRebuildClean  = "rebuild_clean"
)

// Operation names.
const (
	OpContribute = "contribute"
	OpPopulation = "population"
	OpEntityType = "entity_type"
	OpGift       = "gift"
	OpTick       = "tick"
	OpState      = "state"
	OpVoid       = "void"
	OpReset      = "reset"
	OpRebuild    = "rebuild"
	OpAdvance    = "advance"
	OpParallel   = "parallel"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}
	if scenario.Config != "" {
		if _, err := os.Stat(scenario.Config); err != nil {
			return nil, fmt.Errorf("invalid scenario: config file: %w", err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step, false); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step, false); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the fields an operation needs. Nested parallel
// steps are not allowed.
func validateStep(step Step, nested bool) error {
	switch step.Op {
	case "":
		return fmt.Errorf("op is required")
	case OpAdvance:
		if step.Days < 0 || step.Hours < 0 || step.Days+step.Hours == 0 {
			return fmt.Errorf("advance needs positive days or hours")
		}
		return nil
	case OpParallel:
		if nested {
			return fmt.Errorf("parallel steps cannot nest")
		}
		if len(step.Steps) < 2 {
			return fmt.Errorf("parallel needs at least two steps")
		}
		for i, sub := range step.Steps {
			if sub.Op == OpAdvance {
				return fmt.Errorf("steps[%d]: advance cannot run in parallel", i)
			}
			if err := validateStep(sub, true); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
		return nil
	case OpContribute, OpGift, OpTick, OpState, OpVoid, OpReset, OpRebuild, OpPopulation, OpEntityType:
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Entity == "" {
		return fmt.Errorf("%s: entity is required", step.Op)
	}
	switch step.Op {
	case OpContribute:
		if step.Amount == "" {
			return fmt.Errorf("contribute: amount is required")
		}
	case OpPopulation:
		if step.Population == nil {
			return fmt.Errorf("population: population is required")
		}
	case OpGift:
		if step.Campaign == "" {
			return fmt.Errorf("gift: campaign is required")
		}
	case OpVoid:
		if step.Target == 0 {
			return fmt.Errorf("void: target is required")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertFinalState:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRebuildClean:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for rebuild_clean", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
