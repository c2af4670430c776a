package engine

import "time"

// Clock supplies wall time for event timestamps and the entity-local day.
//
// Sequence order, not wall time, orders events. Wall time only decides
// which calendar day decay runs up to, so tests inject a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
