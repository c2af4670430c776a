package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidEvent is returned when an event cannot be folded into a snapshot.
var ErrInvalidEvent = errors.New("invalid event")

// DecayTo applies pending decay up to today and reports whether anything
// changed. Whole elapsed days d = today - LastDecayDay reduce power by
// d * DecayPerDayCents, floored at zero. A negative d (clock skew) is treated
// as zero and never moves LastDecayDay backward. Calling DecayTo twice on the
// same day is a no-op.
func (s *Snapshot) DecayTo(today Day) (bool, error) {
	if today == "" {
		return false, nil
	}
	if s.LastDecayDay == "" {
		s.LastDecayDay = today
		return true, nil
	}
	d, err := s.LastDecayDay.DaysUntil(today)
	if err != nil {
		return false, fmt.Errorf("decay: %w", err)
	}
	if d <= 0 {
		return false, nil
	}
	loss := Cents(d) * s.DecayPerDayCents
	if s.DecayPerDayCents != 0 && loss/s.DecayPerDayCents != Cents(d) {
		// Overflowed; anything this large floors power at zero anyway.
		loss = s.PowerCents
	}
	s.PowerCents = s.PowerCents.SubFloor(loss)
	s.LastDecayDay = today
	return true, nil
}

// Apply folds one event into the snapshot. It is the only state transition
// function: live operations and replay both go through it.
func (s *Snapshot) Apply(ev Event) error {
	if ev.EntityID != s.EntityID {
		return fmt.Errorf("%w: event %d belongs to %q, snapshot is %q", ErrInvalidEvent, ev.Sequence, ev.EntityID, s.EntityID)
	}
	if ev.Sequence <= s.LastEventSequence {
		return fmt.Errorf("%w: event %d is not after checkpoint %d", ErrInvalidEvent, ev.Sequence, s.LastEventSequence)
	}
	if s.Level == 0 && ev.Type != EventGoalEstablished {
		return fmt.Errorf("%w: %s before baseline goal", ErrInvalidEvent, ev.Type)
	}

	p := ev.Payload
	if p.Day != "" && !p.Day.Valid() {
		return fmt.Errorf("%w: event %d: malformed day %q", ErrInvalidEvent, ev.Sequence, p.Day)
	}
	switch ev.Type {
	case EventGoalEstablished:
		if p.Reset || s.Level == 0 {
			s.Level = 1
			s.ProgressCents = 0
			s.PowerCents = 0
		}
		if p.Level != 0 {
			s.Level = p.Level
		}
		s.GoalRequirementCents = p.RequirementCents
		s.DifficultyBin = p.DifficultyBin
		s.DecayPerDayCents = p.DecayPerDayCents
		s.LastPopulationSample = p.Population
		s.EntityType = p.EntityType
		s.GoalStartedAt = ev.Timestamp
		s.GoalSequence = ev.Sequence
		if s.LastDecayDay == "" || p.Reset {
			s.LastDecayDay = p.Day
		}

	case EventContributionAdded:
		if err := ValidateContribution(p.AmountCents); err != nil {
			return fmt.Errorf("%w: event %d: %v", ErrInvalidEvent, ev.Sequence, err)
		}
		if _, err := s.DecayTo(p.Day); err != nil {
			return err
		}
		s.CumulativeTotalCents += p.AmountCents
		s.PowerCents += p.AmountCents
		if !s.AtMaxLevel() {
			s.ProgressCents += p.AmountCents
		}

	case EventLevelUpCommitted:
		if p.LevelAfter != s.Level+1 || p.LevelAfter > MaxLevel {
			return fmt.Errorf("%w: event %d: level %d -> %d from level %d", ErrInvalidEvent, ev.Sequence, p.LevelBefore, p.LevelAfter, s.Level)
		}
		s.Level = p.LevelAfter
		s.ProgressCents = 0
		s.PowerCents = p.PowerAfterCents
		if s.AtMaxLevel() {
			s.GoalRequirementCents = 0
		}

	case EventGiftGranted:
		if p.AmountCents <= 0 {
			return fmt.Errorf("%w: event %d: gift amount %d", ErrInvalidEvent, ev.Sequence, p.AmountCents)
		}
		if _, err := s.DecayTo(p.Day); err != nil {
			return err
		}
		s.PowerCents += p.AmountCents

	case EventContributionVoided:
		if p.AmountCents <= 0 || p.TargetSequence <= 0 {
			return fmt.Errorf("%w: event %d: void of %d for %d", ErrInvalidEvent, ev.Sequence, p.TargetSequence, p.AmountCents)
		}
		if _, err := s.DecayTo(p.Day); err != nil {
			return err
		}
		s.VoidedTotalCents += p.AmountCents
		s.PowerCents = s.PowerCents.SubFloor(p.AmountCents)
		if !s.AtMaxLevel() && p.TargetSequence > s.GoalSequence {
			s.ProgressCents = s.ProgressCents.SubFloor(p.AmountCents)
		}

	case EventGoalInputsUpdated:
		s.LastPopulationSample = p.Population
		if p.EntityType != "" {
			s.EntityType = p.EntityType
		}

	default:
		return fmt.Errorf("%w: unknown type %q at %d", ErrInvalidEvent, ev.Type, ev.Sequence)
	}

	s.LastEventSequence = ev.Sequence
	return nil
}

// Fold applies events in order to s and stops at the first error.
func (s *Snapshot) Fold(events []Event) error {
	for _, ev := range events {
		if err := s.Apply(ev); err != nil {
			return err
		}
	}
	return nil
}
