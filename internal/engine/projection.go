package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/config"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// DisplayState is the read-only projection of a snapshot for collaborators.
// Money fields are currency units with two decimals.
type DisplayState struct {
	EntityID string
	Level    int
	MaxLevel int

	Progress    decimal.Decimal
	ProgressMax decimal.Decimal
	// ProgressPercent is floored to basis points, so it stays below 100
	// until the threshold is reached. It is 100 at the terminal level.
	ProgressPercent decimal.Decimal

	Power       decimal.Decimal
	PowerMax    decimal.Decimal
	DecayPerDay decimal.Decimal
	Offline     bool

	DifficultyBin    int
	TierLabel        string
	PopulationSample int64
	EntityType       string

	LifetimeTotal decimal.Decimal
	VoidedTotal   decimal.Decimal

	CanAdvance        bool
	GoalStartedAt     time.Time
	LastDecayDay      ledger.Day
	Version           int64
	LastEventSequence int64
}

// Project derives the display state of snap under cfg. It never mutates.
func Project(snap ledger.Snapshot, cfg config.Config) DisplayState {
	st := DisplayState{
		EntityID:          snap.EntityID,
		Level:             snap.Level,
		MaxLevel:          ledger.MaxLevel,
		Progress:          snap.ProgressCents.Decimal(),
		ProgressMax:       snap.GoalRequirementCents.Decimal(),
		Power:             snap.PowerCents.Decimal(),
		PowerMax:          snap.GoalRequirementCents.Decimal(),
		DecayPerDay:       snap.DecayPerDayCents.Decimal(),
		Offline:           snap.Offline(),
		DifficultyBin:     snap.DifficultyBin,
		TierLabel:         cfg.TierLabel(snap.DifficultyBin),
		PopulationSample:  snap.LastPopulationSample,
		EntityType:        snap.EntityType,
		LifetimeTotal:     snap.CumulativeTotalCents.Decimal(),
		VoidedTotal:       snap.VoidedTotalCents.Decimal(),
		CanAdvance:        snap.CanAdvance(),
		GoalStartedAt:     snap.GoalStartedAt,
		LastDecayDay:      snap.LastDecayDay,
		Version:           snap.Version,
		LastEventSequence: snap.LastEventSequence,
	}

	switch {
	case snap.AtMaxLevel():
		st.ProgressPercent = decimal.NewFromInt(100)
		st.PowerMax = snap.PowerCents.Decimal()
	case snap.GoalRequirementCents > 0:
		bps := int64(snap.ProgressCents) * 10_000 / int64(snap.GoalRequirementCents)
		if bps > 10_000 {
			bps = 10_000
		}
		st.ProgressPercent = decimal.New(bps, -2)
	default:
		st.ProgressPercent = decimal.Zero
	}
	return st
}

// Canonical returns the state as a canonical JSON object with fixed
// two-decimal money strings.
func (s DisplayState) Canonical() map[string]any {
	fixed := func(d decimal.Decimal) string { return d.StringFixed(2) }
	m := map[string]any{
		"entity_id":           s.EntityID,
		"level":               int64(s.Level),
		"max_level":           int64(s.MaxLevel),
		"progress":            fixed(s.Progress),
		"progress_max":        fixed(s.ProgressMax),
		"progress_percent":    fixed(s.ProgressPercent),
		"power":               fixed(s.Power),
		"power_max":           fixed(s.PowerMax),
		"decay_per_day":       fixed(s.DecayPerDay),
		"offline":             s.Offline,
		"difficulty_bin":      int64(s.DifficultyBin),
		"tier_label":          s.TierLabel,
		"population_sample":   s.PopulationSample,
		"entity_type":         s.EntityType,
		"lifetime_total":      fixed(s.LifetimeTotal),
		"voided_total":        fixed(s.VoidedTotal),
		"can_advance":         s.CanAdvance,
		"last_decay_day":      string(s.LastDecayDay),
		"version":             s.Version,
		"last_event_sequence": s.LastEventSequence,
	}
	if !s.GoalStartedAt.IsZero() {
		m["goal_started_at"] = s.GoalStartedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// MarshalJSON encodes the canonical form.
func (s DisplayState) MarshalJSON() ([]byte, error) {
	return ledger.MarshalCanonical(s.Canonical())
}
