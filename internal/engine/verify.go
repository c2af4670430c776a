package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/ledger"
)

// LogReport summarizes a full scan of the event log.
type LogReport struct {
	Events       int
	LastSequence int64
	// Entities maps each entity id to the snapshot folded from its events.
	Entities map[string]ledger.Snapshot
}

// EntityIDs returns the scanned entity ids in byte order.
func (r LogReport) EntityIDs() []string {
	ids := make([]string, 0, len(r.Entities))
	for id := range r.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VerifyLog reads the whole log in order and folds every entity in memory.
// It fails on the first corrupt row, out-of-order sequence, or event the
// fold rejects. Snapshots are neither read nor written, so it does not
// take the guard.
func (e *Engine) VerifyLog(ctx context.Context) (LogReport, error) {
	report := LogReport{Entities: make(map[string]ledger.Snapshot)}
	for ev, err := range e.events.ReadAll(ctx) {
		if err != nil {
			return report, classify("read log", "", err)
		}
		if ev.Sequence <= report.LastSequence {
			return report, newError(CodeIntegrity, ev.EntityID,
				fmt.Sprintf("sequence %d after %d", ev.Sequence, report.LastSequence), nil)
		}
		snap, ok := report.Entities[ev.EntityID]
		if !ok {
			snap = ledger.Snapshot{EntityID: ev.EntityID}
		}
		if err := snap.Apply(ev); err != nil {
			return report, classify(fmt.Sprintf("fold event %d", ev.Sequence), ev.EntityID, err)
		}
		report.Entities[ev.EntityID] = snap
		report.LastSequence = ev.Sequence
		report.Events++
	}
	return report, nil
}
