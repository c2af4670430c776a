// Package harness runs YAML-scripted scenarios against a real engine.
//
// Each scenario gets a fresh in-memory store, a manual clock, and sequential
// event ids, so a run is fully deterministic and its trace can be compared
// against a golden file.
//
// # Scenario Format
//
//	name: exact_hit_levels_up
//	description: "What this scenario validates"
//	start: 2026-03-01T12:00:00Z      # optional clock start
//	config: ../config/strict.yaml    # optional, relative to the scenario file
//	gift_once_per_campaign: false    # optional engine option
//	setup:
//	  - op: population
//	    entity: mech-1
//	    population: 30
//	flow:
//	  - op: contribute
//	    entity: mech-1
//	    amount: "10.00"
//	    key: k1
//	    expect:
//	      outcome: leveled_up
//	      state: { level: 2, power: "1.00" }
//	  - op: advance
//	    days: 3
//	assertions:
//	  - type: event_order
//	    events: [GoalEstablished, ContributionAdded, LevelUpCommitted]
//	  - type: final_state
//	    entity: mech-1
//	    expect: { level: 2 }
//
// # Operations
//
//   - contribute: entity, amount (decimal string), key, source
//   - population: entity, population
//   - entity_type: entity, entity_type
//   - gift: entity, campaign
//   - tick, state, rebuild: entity
//   - void: entity, target (sequence), reason
//   - reset: entity, reason
//   - advance: days and/or hours on the manual clock
//   - parallel: steps, run concurrently
//
// # Outcomes
//
// Every step reports an outcome: applied, duplicate, or leveled_up for
// contributions; granted or skipped for gifts; voided or already_voided for
// voids; clean or drift for rebuilds; ok otherwise; error when the engine
// returned an error, with the error code alongside.
//
// # Assertion Types
//
//   - event_count: events of a type (optionally one entity) occur count times;
//     consecutive additionally requires their sequences to be adjacent
//   - event_order: event types appear in order (gaps allowed)
//   - event_contains: some event of a type has a payload superset of payload
//   - final_state: the entity's display state matches expect (subset)
//   - rebuild_clean: rebuilding the entity from its log finds no drift
//
// # Golden Files
//
// RunWithGolden compares the trace (step outcomes with a state summary, then
// the event log) against testdata/golden/<name>.golden as canonical JSON.
// Idempotency keys and event ids are left out of the trace so concurrent
// steps render identically on every run. Regenerate with:
//
//	go test ./internal/harness -update
package harness
