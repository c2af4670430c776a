package engine

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/store"
)

// EventLog is the durable, append-only record the engine writes to.
// Implemented by *store.Store.
type EventLog interface {
	Append(ctx context.Context, ev ledger.Event) (ledger.Event, error)
	ReadAll(ctx context.Context) iter.Seq2[ledger.Event, error]
	ReadEntity(ctx context.Context, entityID string, afterSeq int64) iter.Seq2[ledger.Event, error]
	ReadEvent(ctx context.Context, seq int64) (ledger.Event, error)
	FindDuplicate(ctx context.Context, entityID, idempotencyKey string) (ledger.Event, bool, error)
	FindByKey(ctx context.Context, entityID string, typ ledger.EventType, key string) (ledger.Event, bool, error)
	LastSequence(ctx context.Context, entityID string) (int64, error)
}

// SnapshotStore holds the latest materialized state per entity.
// Implemented by *store.Store.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, entityID string) (ledger.Snapshot, error)
	PersistSnapshot(ctx context.Context, snap ledger.Snapshot) error
	SnapshotVersion(ctx context.Context, entityID string) (int64, error)
}

// ConfigSource supplies the configuration in effect for an operation.
// Implemented by *config.Provider.
type ConfigSource interface {
	Current() (config.Config, error)
}

// Engine is the progress engine for one storage root.
//
// Construct one per storage root and share it by reference; there is no
// package-level instance.
//
// Thread-safety: all methods are safe for concurrent use. Mutations are
// serialized by the Guard.
type Engine struct {
	events    EventLog
	snapshots SnapshotStore
	configs   ConfigSource

	clock   Clock
	ids     IDGenerator
	logger  *slog.Logger
	metrics *Metrics
	guard   *Guard

	perEntityLocks      bool
	giftOncePerCampaign bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the wall clock. Default: SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the event id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithGiftOncePerCampaign makes GrantMonthlyGiftIfIdle pay each campaign at
// most once per entity, ever. By default a campaign pays again whenever
// power has decayed back to zero.
func WithGiftOncePerCampaign() EngineOption {
	return func(e *Engine) {
		e.giftOncePerCampaign = true
	}
}

// WithPerEntityLocks replaces the single storage-root lock with one lock per
// entity id.
func WithPerEntityLocks() EngineOption {
	return func(e *Engine) {
		e.perEntityLocks = true
	}
}

// New creates an Engine over the given log, snapshot store, and config source.
func New(events EventLog, snapshots SnapshotStore, configs ConfigSource, opts ...EngineOption) *Engine {
	e := &Engine{
		events:    events,
		snapshots: snapshots,
		configs:   configs,
		clock:     SystemClock{},
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.guard = NewGuard(e.perEntityLocks)
	e.guard.onWait = e.metrics.observeGuardWait
	return e
}

// Atomically runs fn while holding the guard for entityID. Engine operations
// called with the context passed to fn re-enter the guard instead of
// deadlocking, so fn can compose several operations into one critical
// section.
func (e *Engine) Atomically(ctx context.Context, entityID string, fn func(ctx context.Context) error) error {
	id, err := ledger.NormalizeEntityID(entityID)
	if err != nil {
		return validationError(entityID, err)
	}
	ctx, release, err := e.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (e *Engine) acquire(ctx context.Context, entityID string) (context.Context, func(), error) {
	ctx, release, err := e.guard.Acquire(ctx, entityID)
	if err != nil {
		return ctx, release, classify("acquire guard", entityID, err)
	}
	return ctx, release, nil
}

// op is the working state of one mutating operation.
type op struct {
	e     *Engine
	ctx   context.Context
	cfg   config.Config
	now   time.Time
	today ledger.Day
	snap  ledger.Snapshot
	// stored is the version currently persisted, zero if none.
	stored int64
}

// begin loads the configuration and the caught-up snapshot of entityID.
// The caller must hold the guard.
func (e *Engine) begin(ctx context.Context, entityID string) (*op, error) {
	cfg, err := e.configs.Current()
	if err != nil {
		return nil, classify("load config", entityID, err)
	}
	now := e.clock.Now().UTC()
	o := &op{
		e:     e,
		ctx:   ctx,
		cfg:   cfg,
		now:   now,
		today: cfg.Today(now),
	}
	if err := o.load(entityID); err != nil {
		return nil, err
	}
	return o, nil
}

// load reads the persisted snapshot and folds any events it is missing. A
// missing snapshot with no events gets a level-1 baseline goal. A caught-up
// snapshot that can advance commits the pending level-up. Any change is
// persisted before load returns.
func (o *op) load(entityID string) error {
	e := o.e
	snap, err := e.snapshots.LoadSnapshot(o.ctx, entityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap = ledger.Snapshot{EntityID: entityID}
	case err != nil:
		return classify("load snapshot", entityID, err)
	default:
		last, err := e.events.LastSequence(o.ctx, entityID)
		if err != nil {
			return classify("read log tail", entityID, err)
		}
		if snap.LastEventSequence > last {
			return newError(CodeIntegrity, entityID, "snapshot is ahead of the event log", nil)
		}
	}
	o.snap = snap
	o.stored = snap.Version

	caughtUp := 0
	for ev, err := range e.events.ReadEntity(o.ctx, entityID, snap.LastEventSequence) {
		if err != nil {
			return classify("replay events", entityID, err)
		}
		if err := o.snap.Apply(ev); err != nil {
			return classify("replay events", entityID, err)
		}
		caughtUp++
	}
	dirty := caughtUp > 0
	if dirty && o.stored > 0 {
		e.metrics.recovery()
		e.logger.Warn("snapshot behind event log, recovered",
			"entity_id", entityID,
			"events", caughtUp,
			"seq", o.snap.LastEventSequence,
			"version", o.stored,
		)
	}

	if o.snap.Level == 0 {
		goal := o.cfg.GoalFor(0, config.DefaultDecayKey)
		if err := o.establishGoal(1, goal, false, ""); err != nil {
			return err
		}
		dirty = true
	}

	if o.snap.CanAdvance() {
		if err := o.commitLevelUp(); err != nil {
			return err
		}
		dirty = true
	}

	if dirty {
		return o.persist()
	}
	return nil
}

// append writes one event and folds it into the working snapshot.
func (o *op) append(typ ledger.EventType, p ledger.Payload) (ledger.Event, error) {
	ev, err := o.e.events.Append(o.ctx, ledger.Event{
		ID:        o.e.ids.Generate(),
		Timestamp: o.now,
		Type:      typ,
		EntityID:  o.snap.EntityID,
		Payload:   p,
	})
	if err != nil {
		return ledger.Event{}, err
	}
	if err := o.snap.Apply(ev); err != nil {
		return ledger.Event{}, classify("apply "+string(typ), o.snap.EntityID, err)
	}
	return ev, nil
}

func (o *op) mustAppend(typ ledger.EventType, p ledger.Payload) (ledger.Event, error) {
	ev, err := o.append(typ, p)
	if err != nil {
		return ledger.Event{}, classify("append "+string(typ), o.snap.EntityID, err)
	}
	return ev, nil
}

// establishGoal freezes goal as the current one at level.
func (o *op) establishGoal(level int, goal config.Goal, reset bool, reason string) error {
	_, err := o.mustAppend(ledger.EventGoalEstablished, ledger.Payload{
		Level:            level,
		RequirementCents: goal.RequirementCents,
		DifficultyBin:    goal.Bin,
		DecayPerDayCents: goal.DecayPerDayCents,
		Population:       goal.Population,
		EntityType:       goal.EntityType,
		Day:              o.today,
		Reset:            reset,
		Reason:           reason,
	})
	return err
}

// commitLevelUp advances one level. Surplus progress is discarded and power
// becomes the exact-hit bonus or zero. Below the terminal level the next
// goal is frozen from the latest population sample.
func (o *op) commitLevelUp() error {
	s := o.snap
	exact := s.ProgressCents == s.GoalRequirementCents
	var powerAfter ledger.Cents
	if exact {
		powerAfter = o.cfg.ExactHitBonusCents
	}

	_, err := o.mustAppend(ledger.EventLevelUpCommitted, ledger.Payload{
		LevelBefore:      s.Level,
		LevelAfter:       s.Level + 1,
		RequirementCents: s.GoalRequirementCents,
		ExactHit:         exact,
		PowerAfterCents:  powerAfter,
		Day:              o.today,
	})
	if err != nil {
		return err
	}
	o.e.metrics.levelUp(exact)
	o.e.logger.Info("level up",
		"entity_id", s.EntityID,
		"level", o.snap.Level,
		"exact_hit", exact,
		"seq", o.snap.LastEventSequence,
	)

	if o.snap.AtMaxLevel() {
		return nil
	}
	goal := o.cfg.GoalFor(o.snap.LastPopulationSample, o.snap.EntityType)
	return o.establishGoal(o.snap.Level, goal, false, "")
}

// decay applies pending decay to the working snapshot.
func (o *op) decay() (bool, error) {
	changed, err := o.snap.DecayTo(o.today)
	if err != nil {
		return false, classify("decay", o.snap.EntityID, err)
	}
	return changed, nil
}

// persist writes the working snapshot as the next version.
func (o *op) persist() error {
	next := o.snap
	next.Version = o.stored + 1
	if err := o.e.snapshots.PersistSnapshot(o.ctx, next); err != nil {
		o.e.metrics.persistError()
		o.e.logger.Error("snapshot persist failed",
			"entity_id", next.EntityID,
			"seq", next.LastEventSequence,
			"version", next.Version,
			"error", err,
		)
		return classify("persist snapshot", next.EntityID, err)
	}
	o.snap = next
	o.stored = next.Version
	return nil
}

// state projects the working snapshot for display.
func (o *op) state() DisplayState {
	return Project(o.snap, o.cfg)
}
