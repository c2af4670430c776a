package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// summaryFields are the display-state fields kept in golden traces. Version
// and timestamps are left out so goldens survive unrelated persistence
// changes.
var summaryFields = []string{"level", "progress", "progress_max", "power", "offline", "lifetime_total"}

// TraceSnapshot returns the canonical JSON trace of a result: the step
// outcomes with a state summary, then the event log without ids, hashes,
// timestamps, or idempotency keys.
func TraceSnapshot(name string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		steps[i] = stepMap(s)
	}

	events := make([]any, len(result.Events))
	for i, ev := range result.Events {
		payload := ev.Payload.Canonical()
		delete(payload, "idempotency_key")
		events[i] = map[string]any{
			"seq":       ev.Sequence,
			"type":      string(ev.Type),
			"entity_id": ev.EntityID,
			"payload":   payload,
		}
	}

	return ledger.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"steps":         steps,
		"events":        events,
	})
}

func stepMap(s StepTrace) map[string]any {
	m := map[string]any{
		"index":   s.Index,
		"op":      s.Op,
		"outcome": s.Outcome,
	}
	if s.Entity != "" {
		m["entity"] = s.Entity
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	if s.Granted != "" {
		m["granted"] = s.Granted
	}
	if s.State != nil {
		summary := make(map[string]any, len(summaryFields))
		for _, k := range summaryFields {
			summary[k] = s.State[k]
		}
		m["state"] = summary
	}
	if len(s.Children) > 0 {
		children := make([]any, len(s.Children))
		for i, c := range s.Children {
			children[i] = stepMap(c)
		}
		m["steps"] = children
	}
	return m
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
