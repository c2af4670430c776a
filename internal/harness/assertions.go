package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/engine"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Events   []ledger.Event // Event log for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvent log:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Sequence, ev.EntityID, ev.Type)
		}
	}

	return buf.String()
}

// AssertionContext provides what state-reading assertions need.
type AssertionContext struct {
	Engine *engine.Engine
	Ctx    context.Context
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertEventCount:
			err = assertEventCount(result.Events, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Events, a)
		case AssertEventContains:
			err = assertEventContains(result.Events, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertRebuildClean:
			err = assertRebuildClean(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertEventCount checks that the event type occurs exactly Count times,
// and with Consecutive that the occurrences have adjacent sequences.
func assertEventCount(events []ledger.Event, a Assertion) error {
	var seqs []int64
	for _, ev := range events {
		if string(ev.Type) != a.Event {
			continue
		}
		if a.Entity != "" && ev.EntityID != a.Entity {
			continue
		}
		seqs = append(seqs, ev.Sequence)
	}

	if len(seqs) != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d events at sequences %v", len(seqs), seqs),
			Events:   events,
		}
	}
	if a.Consecutive {
		for i := 1; i < len(seqs); i++ {
			if seqs[i] != seqs[i-1]+1 {
				return &AssertionError{
					Type:     AssertEventCount,
					Expected: fmt.Sprintf("consecutive sequences for %s", a.Event),
					Actual:   fmt.Sprintf("sequences %v", seqs),
					Events:   events,
				}
			}
		}
	}
	return nil
}

// assertEventOrder checks that the event types appear in the given order.
// Intervening events are allowed.
func assertEventOrder(events []ledger.Event, a Assertion) error {
	next := 0
	for _, ev := range events {
		if next < len(a.Events) && string(ev.Type) == a.Events[next] {
			next++
		}
	}
	if next < len(a.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events in order: %v", a.Events),
			Actual:   fmt.Sprintf("matched %v, then no %s", a.Events[:next], a.Events[next]),
			Events:   events,
		}
	}
	return nil
}

// assertEventContains checks that some event of the type has a payload
// matching every field of a.Payload.
func assertEventContains(events []ledger.Event, a Assertion) error {
	for _, ev := range events {
		if string(ev.Type) != a.Event {
			continue
		}
		if matchFields(a.Payload, ev.Payload.Canonical()) == "" {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("%s with payload %s", a.Event, formatFields(a.Payload)),
		Actual:   "not found in event log",
		Events:   events,
	}
}

// assertFinalState reads the entity's state and matches it against Expect.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	st, err := actx.Engine.GetState(actx.Ctx, a.Entity)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("state of %s", a.Entity),
			Actual:   fmt.Sprintf("error: %v", err),
		}
	}
	if msg := matchFields(a.Expect, st.Canonical()); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: formatFields(a.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertRebuildClean rebuilds the entity from its log and requires no drift.
func assertRebuildClean(actx *AssertionContext, a Assertion) error {
	res, err := actx.Engine.Rebuild(actx.Ctx, a.Entity)
	if err != nil {
		return &AssertionError{
			Type:     AssertRebuildClean,
			Expected: fmt.Sprintf("rebuild of %s", a.Entity),
			Actual:   fmt.Sprintf("error: %v", err),
		}
	}
	if res.Drift {
		return &AssertionError{
			Type:     AssertRebuildClean,
			Expected: "rebuilt snapshot equal to the stored one",
			Actual:   fmt.Sprintf("drift after folding %d events", res.Events),
		}
	}
	return nil
}

// matchFields checks that every expected key is present in actual with
// the same value. Values compare by their printed form, so YAML 2 matches
// int64(2) and "1.00" matches a fixed money string. It returns "" on a
// match and a description of the first mismatch otherwise.
func matchFields(expected, actual map[string]any) string {
	for _, k := range sortedKeys(expected) {
		got, ok := actual[k]
		if !ok {
			return fmt.Sprintf("field %q missing", k)
		}
		if fmt.Sprint(got) != fmt.Sprint(expected[k]) {
			return fmt.Sprintf("field %q = %v, expected %v", k, got, expected[k])
		}
	}
	return ""
}

func formatFields(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
