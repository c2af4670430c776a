package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/engine"
	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// stateView renders a display state.
type stateView struct {
	engine.DisplayState
}

func (v stateView) RenderText(w io.Writer) error {
	return renderState(w, v.DisplayState)
}

func renderState(w io.Writer, s engine.DisplayState) error {
	status := "online"
	if s.Offline {
		status = "offline"
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tlevel %d/%d\t%s\n", s.EntityID, s.Level, s.MaxLevel, s.TierLabel)
	fmt.Fprintf(tw, "  progress\t%s / %s\t%s%%\n",
		s.Progress.StringFixed(2), s.ProgressMax.StringFixed(2), s.ProgressPercent.StringFixed(2))
	fmt.Fprintf(tw, "  power\t%s / %s\t%s, decay %s/day\n",
		s.Power.StringFixed(2), s.PowerMax.StringFixed(2), status, s.DecayPerDay.StringFixed(2))
	fmt.Fprintf(tw, "  lifetime\t%s\tvoided %s\n", s.LifetimeTotal.StringFixed(2), s.VoidedTotal.StringFixed(2))
	return tw.Flush()
}

type contributionView struct {
	State     engine.DisplayState `json:"state"`
	Sequence  int64               `json:"sequence"`
	Duplicate bool                `json:"duplicate"`
	LeveledUp bool                `json:"leveled_up"`
}

func newContributionView(r engine.ContributionResult) contributionView {
	return contributionView{
		State:     r.State,
		Sequence:  r.Event.Sequence,
		Duplicate: r.Duplicate,
		LeveledUp: r.LeveledUp,
	}
}

func (v contributionView) RenderText(w io.Writer) error {
	switch {
	case v.Duplicate:
		fmt.Fprintf(w, "duplicate of event %d, nothing changed\n", v.Sequence)
	case v.LeveledUp:
		fmt.Fprintf(w, "recorded event %d, leveled up\n", v.Sequence)
	default:
		fmt.Fprintf(w, "recorded event %d\n", v.Sequence)
	}
	return renderState(w, v.State)
}

type giftView struct {
	State   engine.DisplayState `json:"state"`
	Granted bool                `json:"granted"`
	Amount  string              `json:"amount,omitempty"`
}

func (v giftView) RenderText(w io.Writer) error {
	if v.Granted {
		fmt.Fprintf(w, "granted %s\n", v.Amount)
	} else {
		fmt.Fprintln(w, "skipped, no gift granted")
	}
	return renderState(w, v.State)
}

type voidView struct {
	State         engine.DisplayState `json:"state"`
	AlreadyVoided bool                `json:"already_voided"`
}

func (v voidView) RenderText(w io.Writer) error {
	if v.AlreadyVoided {
		fmt.Fprintln(w, "already voided, nothing changed")
	} else {
		fmt.Fprintln(w, "voided")
	}
	return renderState(w, v.State)
}

type rebuildEntry struct {
	State  engine.DisplayState `json:"state"`
	Events int                 `json:"events"`
	Drift  bool                `json:"drift"`
}

type rebuildView struct {
	Entities []rebuildEntry `json:"entities"`
}

func (v rebuildView) drifted() int {
	n := 0
	for _, e := range v.Entities {
		if e.Drift {
			n++
		}
	}
	return n
}

func (v rebuildView) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tEVENTS\tLEVEL\tPOWER\tSTATUS")
	for _, e := range v.Entities {
		status := "clean"
		if e.Drift {
			status = "repaired"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			e.State.EntityID, e.Events, e.State.Level, e.State.Power.StringFixed(2), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d rebuilt, %d drifted\n", len(v.Entities), v.drifted())
	return nil
}

// eventView is the external form of a log event.
type eventView struct {
	Sequence  int64            `json:"sequence"`
	ID        string           `json:"id"`
	Timestamp string           `json:"timestamp"`
	Type      ledger.EventType `json:"type"`
	EntityID  string           `json:"entity_id"`
	Payload   json.RawMessage  `json:"payload"`
	Hash      string           `json:"hash"`
}

func newEventView(ev ledger.Event) (eventView, error) {
	payload, err := ledger.MarshalCanonical(ev.Payload.Canonical())
	if err != nil {
		return eventView{}, fmt.Errorf("encode event %d: %w", ev.Sequence, err)
	}
	return eventView{
		Sequence:  ev.Sequence,
		ID:        ev.ID,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Type:      ev.Type,
		EntityID:  ev.EntityID,
		Payload:   payload,
		Hash:      ev.Hash,
	}, nil
}

type eventsView struct {
	Events []eventView `json:"events"`
}

func (v eventsView) RenderText(w io.Writer) error {
	if len(v.Events) == 0 {
		fmt.Fprintln(w, "no events")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tENTITY\tTYPE\tPAYLOAD")
	for _, e := range v.Events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Sequence, e.Timestamp, e.EntityID, e.Type, e.Payload)
	}
	return tw.Flush()
}

type verifyEntity struct {
	EntityID string `json:"entity_id"`
	Level    int    `json:"level"`
	Lifetime string `json:"lifetime_total"`
	LastSeq  int64  `json:"last_event_sequence"`
}

type verifyView struct {
	Events       int            `json:"events"`
	LastSequence int64          `json:"last_sequence"`
	Entities     []verifyEntity `json:"entities"`
}

func newVerifyView(r engine.LogReport) verifyView {
	v := verifyView{Events: r.Events, LastSequence: r.LastSequence, Entities: []verifyEntity{}}
	for _, id := range r.EntityIDs() {
		snap := r.Entities[id]
		v.Entities = append(v.Entities, verifyEntity{
			EntityID: id,
			Level:    snap.Level,
			Lifetime: snap.CumulativeTotalCents.String(),
			LastSeq:  snap.LastEventSequence,
		})
	}
	return v
}

func (v verifyView) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "log ok: %d events, last sequence %d, %d entities\n",
		v.Events, v.LastSequence, len(v.Entities))
	return nil
}
