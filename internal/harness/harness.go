package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/engine"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/testutil"
)

// Harness is the scenario execution environment.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.ManualClock
	logger *slog.Logger
}

// defaultConfig serves the embedded defaults.
type defaultConfig struct{}

func (defaultConfig) Current() (config.Config, error) {
	return config.Default(), nil
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Setup
// failures abort the run with an error; expectation and assertion
// failures are collected in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}

	var configs engine.ConfigSource = defaultConfig{}
	if scenario.Config != "" {
		configs = config.NewProvider(scenario.Config)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewManualClock(start),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	opts := []engine.EngineOption{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("evt")),
		engine.WithLogger(h.logger),
	}
	if scenario.GiftOncePerCampaign {
		opts = append(opts, engine.WithGiftOncePerCampaign())
	}
	if scenario.PerEntityLocks {
		opts = append(opts, engine.WithPerEntityLocks())
	}
	h.engine = engine.New(st, st, configs, opts...)

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		trace := h.execute(ctx, len(result.Steps), step)
		if trace.Outcome == OutcomeError {
			return nil, fmt.Errorf("failed to execute setup step %d (%s): %s", i, step.Op, trace.Error)
		}
		result.Steps = append(result.Steps, trace)
	}

	for i, step := range scenario.Flow {
		trace := h.execute(ctx, len(result.Steps), step)
		result.Steps = append(result.Steps, trace)
		for _, msg := range checkExpect(fmt.Sprintf("flow[%d]", i), step, trace) {
			result.AddError(msg)
		}
	}

	for ev, err := range st.ReadAll(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to read event log: %w", err)
		}
		result.Events = append(result.Events, ev)
	}

	actx := &AssertionContext{
		Engine: h.engine,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// execute runs one step and records what it did. Engine errors become an
// OutcomeError trace rather than aborting the run.
func (h *Harness) execute(ctx context.Context, index int, step Step) StepTrace {
	trace := StepTrace{Index: index, Op: step.Op, Entity: step.Entity, Outcome: OutcomeOK}

	var (
		state engine.DisplayState
		err   error
	)
	switch step.Op {
	case OpAdvance:
		h.clock.Advance(time.Duration(step.Days)*24*time.Hour + time.Duration(step.Hours)*time.Hour)
		return trace

	case OpParallel:
		trace.Children = make([]StepTrace, len(step.Steps))
		var wg sync.WaitGroup
		for i, sub := range step.Steps {
			wg.Add(1)
			go func() {
				defer wg.Done()
				child := h.execute(ctx, i, sub)
				child.State = nil // completion order decides intermediate states
				trace.Children[i] = child
			}()
		}
		wg.Wait()
		return trace

	case OpContribute:
		var amount ledger.Cents
		amount, err = ledger.ParseCents(step.Amount)
		if err != nil {
			// Parsing is the boundary; the engine never sees the input.
			trace.Outcome = OutcomeError
			trace.Error = string(engine.CodeInvalidAmount)
			return trace
		}
		var res engine.ContributionResult
		res, err = h.engine.RecordContribution(ctx, engine.Contribution{
			EntityID:       step.Entity,
			AmountCents:    amount,
			IdempotencyKey: step.Key,
			Source:         step.Source,
		})
		state = res.State
		switch {
		case res.Duplicate:
			trace.Outcome = OutcomeDuplicate
		case res.LeveledUp:
			trace.Outcome = OutcomeLeveledUp
		default:
			trace.Outcome = OutcomeApplied
		}

	case OpPopulation:
		state, err = h.engine.UpdatePopulationSample(ctx, step.Entity, *step.Population)

	case OpEntityType:
		state, err = h.engine.SetEntityType(ctx, step.Entity, step.EntityType)

	case OpGift:
		var res engine.GiftResult
		res, err = h.engine.GrantMonthlyGiftIfIdle(ctx, step.Entity, step.Campaign)
		state = res.State
		trace.Outcome = OutcomeSkipped
		if res.Granted {
			trace.Outcome = OutcomeGranted
			trace.Granted = res.AmountCents.String()
		}

	case OpTick:
		state, err = h.engine.TickDecay(ctx, step.Entity)

	case OpState:
		state, err = h.engine.GetState(ctx, step.Entity)

	case OpVoid:
		var res engine.VoidResult
		res, err = h.engine.VoidContribution(ctx, step.Entity, step.Target, step.Reason)
		state = res.State
		trace.Outcome = OutcomeVoided
		if res.AlreadyVoided {
			trace.Outcome = OutcomeAlreadyVoided
		}

	case OpReset:
		state, err = h.engine.Reset(ctx, step.Entity, step.Reason)

	case OpRebuild:
		var res engine.RebuildResult
		res, err = h.engine.Rebuild(ctx, step.Entity)
		state = res.State
		trace.Outcome = OutcomeClean
		if res.Drift {
			trace.Outcome = OutcomeDrift
		}
	}

	if err != nil {
		trace.Outcome = OutcomeError
		trace.Granted = ""
		trace.Error = errorCode(err)
		h.logger.Info("step failed", "op", step.Op, "entity_id", step.Entity, "error", err)
		return trace
	}
	trace.State = state.Canonical()
	h.logger.Info("step completed", "op", step.Op, "entity_id", step.Entity, "outcome", trace.Outcome)
	return trace
}

func errorCode(err error) string {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return "UNKNOWN"
}

// checkExpect compares a step's trace against its expect clause.
func checkExpect(where string, step Step, trace StepTrace) []string {
	var errs []string
	if step.Op == OpParallel {
		for i, sub := range step.Steps {
			errs = append(errs, checkExpect(fmt.Sprintf("%s.steps[%d]", where, i), sub, trace.Children[i])...)
		}
		return errs
	}
	exp := step.Expect
	if exp == nil {
		if trace.Outcome == OutcomeError {
			errs = append(errs, fmt.Sprintf("%s: %s failed with %s", where, step.Op, trace.Error))
		}
		return errs
	}

	wantOutcome := exp.Outcome
	if wantOutcome == "" && exp.Error != "" {
		wantOutcome = OutcomeError
	}
	if wantOutcome != "" && trace.Outcome != wantOutcome {
		errs = append(errs, fmt.Sprintf("%s: outcome %q, expected %q (error %q)", where, trace.Outcome, wantOutcome, trace.Error))
	}
	if exp.Error != "" && trace.Error != exp.Error {
		errs = append(errs, fmt.Sprintf("%s: error %q, expected %q", where, trace.Error, exp.Error))
	}
	if exp.Granted != "" && trace.Granted != exp.Granted {
		errs = append(errs, fmt.Sprintf("%s: granted %q, expected %q", where, trace.Granted, exp.Granted))
	}
	if msg := matchFields(exp.State, trace.State); msg != "" {
		errs = append(errs, fmt.Sprintf("%s: state %s", where, msg))
	}
	return errs
}
