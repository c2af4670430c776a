package ledger

import "time"

// MaxLevel is the terminal level. Past it contributions still accrue power and
// the lifetime total, but no goal is set.
const MaxLevel = 11

// MaxPopulation caps external population samples.
const MaxPopulation int64 = 1_000_000_000

// EventType identifies the kind of a ledger event.
type EventType string

const (
	// EventContributionAdded records one applied contribution.
	EventContributionAdded EventType = "ContributionAdded"
	// EventLevelUpCommitted records a level transition.
	EventLevelUpCommitted EventType = "LevelUpCommitted"
	// EventGiftGranted records a deterministic idle reward.
	EventGiftGranted EventType = "GiftGranted"
	// EventContributionVoided is a tombstone for an earlier contribution.
	EventContributionVoided EventType = "ContributionVoided"
	// EventGoalEstablished freezes a new goal, either after a level-up, for a
	// fresh entity, or as a reset baseline.
	EventGoalEstablished EventType = "GoalEstablished"
	// EventGoalInputsUpdated records a new population sample or entity type.
	EventGoalInputsUpdated EventType = "GoalInputsUpdated"
)

// Known reports whether t is one of the defined event types.
func (t EventType) Known() bool {
	switch t {
	case EventContributionAdded, EventLevelUpCommitted, EventGiftGranted,
		EventContributionVoided, EventGoalEstablished, EventGoalInputsUpdated:
		return true
	}
	return false
}

// Event is an immutable entry in the event log.
type Event struct {
	// Sequence is assigned by the log on append. Global across entities.
	Sequence int64 `json:"sequence"`
	// ID is a unique event identifier (UUIDv7 in production).
	ID string `json:"id"`
	// Timestamp is the creation time in UTC.
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	EntityID  string    `json:"entity_id"`
	Payload   Payload   `json:"payload"`
	// Hash is the content hash over the canonical event. Assigned on append.
	Hash string `json:"hash,omitempty"`
}

// Key returns the lookup key the log indexes this event by: the idempotency
// key for contributions, the target sequence for voids, and the campaign for
// gifts. Other events have no key.
func (e Event) Key() string {
	switch e.Type {
	case EventContributionAdded:
		return e.Payload.IdempotencyKey
	case EventContributionVoided:
		return VoidKey(e.Payload.TargetSequence)
	case EventGiftGranted:
		return e.Payload.CampaignID
	}
	return ""
}

// Payload holds the type-specific fields of an event. Fields irrelevant to
// an event type stay at their zero value and are omitted from JSON.
type Payload struct {
	AmountCents    Cents  `json:"amount_cents,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Source         string `json:"source,omitempty"`
	CampaignID     string `json:"campaign_id,omitempty"`
	// Day is the entity-local day the event was applied on.
	Day Day `json:"day,omitempty"`

	LevelBefore      int   `json:"level_before,omitempty"`
	LevelAfter       int   `json:"level_after,omitempty"`
	RequirementCents Cents `json:"requirement_cents,omitempty"`
	ExactHit         bool  `json:"exact_hit,omitempty"`
	PowerAfterCents  Cents `json:"power_after_cents,omitempty"`

	Level            int    `json:"level,omitempty"`
	DifficultyBin    int    `json:"difficulty_bin,omitempty"`
	DecayPerDayCents Cents  `json:"decay_per_day_cents,omitempty"`
	Population       int64  `json:"population,omitempty"`
	EntityType       string `json:"entity_type,omitempty"`
	Reset            bool   `json:"reset,omitempty"`

	TargetSequence int64  `json:"target_sequence,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Canonical returns the non-zero payload fields as a canonical JSON object.
func (p Payload) Canonical() map[string]any {
	m := map[string]any{}
	putString := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	putInt := func(k string, v int64) {
		if v != 0 {
			m[k] = v
		}
	}
	putBool := func(k string, v bool) {
		if v {
			m[k] = true
		}
	}
	putInt("amount_cents", int64(p.AmountCents))
	putString("idempotency_key", p.IdempotencyKey)
	putString("source", p.Source)
	putString("campaign_id", p.CampaignID)
	putString("day", string(p.Day))
	putInt("level_before", int64(p.LevelBefore))
	putInt("level_after", int64(p.LevelAfter))
	putInt("requirement_cents", int64(p.RequirementCents))
	putBool("exact_hit", p.ExactHit)
	putInt("power_after_cents", int64(p.PowerAfterCents))
	putInt("level", int64(p.Level))
	putInt("difficulty_bin", int64(p.DifficultyBin))
	putInt("decay_per_day_cents", int64(p.DecayPerDayCents))
	putInt("population", p.Population)
	putString("entity_type", p.EntityType)
	putBool("reset", p.Reset)
	putInt("target_sequence", p.TargetSequence)
	putString("reason", p.Reason)
	return m
}

// Snapshot is the materialized ledger state of one entity.
type Snapshot struct {
	EntityID string `json:"entity_id"`
	// Level is in [1, MaxLevel]. Zero only before the baseline goal is folded.
	Level                int       `json:"level"`
	ProgressCents        Cents     `json:"progress_cents"`
	PowerCents           Cents     `json:"power_cents"`
	GoalRequirementCents Cents     `json:"goal_requirement_cents"`
	DifficultyBin        int       `json:"difficulty_bin"`
	GoalStartedAt        time.Time `json:"goal_started_at"`
	// GoalSequence is the sequence of the GoalEstablished event of the current goal.
	GoalSequence         int64  `json:"goal_sequence"`
	LastDecayDay         Day    `json:"last_decay_day"`
	DecayPerDayCents     Cents  `json:"decay_per_day_cents"`
	EntityType           string `json:"entity_type"`
	LastPopulationSample int64  `json:"last_population_sample"`
	CumulativeTotalCents Cents  `json:"cumulative_total_cents"`
	VoidedTotalCents     Cents  `json:"voided_total_cents"`

	// Version is the optimistic-concurrency counter, bumped on every persist.
	Version int64 `json:"version"`
	// LastEventSequence is the replay checkpoint.
	LastEventSequence int64 `json:"last_event_sequence"`
}

// AtMaxLevel reports whether the snapshot is in the terminal state.
func (s Snapshot) AtMaxLevel() bool {
	return s.Level >= MaxLevel
}

// CanAdvance reports whether progress has reached the requirement. Only true
// transiently: a contribution that reaches the threshold commits a level-up.
func (s Snapshot) CanAdvance() bool {
	return !s.AtMaxLevel() && s.GoalRequirementCents > 0 && s.ProgressCents >= s.GoalRequirementCents
}

// Offline reports whether power has fully decayed.
func (s Snapshot) Offline() bool {
	return s.PowerCents == 0
}
