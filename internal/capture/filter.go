// Package capture records the overlay data shown alongside the edited replay:
// periodic leaderboards and fastest lap notices.
package capture

import (
	"time"

	"replay-director/internal/domain/race"
)

// SampleFilter lets a processor run at most once per interval of session time.
type SampleFilter struct {
	interval time.Duration
	next     time.Duration
	seen     bool
}

func NewSampleFilter(interval time.Duration) *SampleFilter {
	return &SampleFilter{interval: interval}
}

// Due reports whether the sample should be processed and, if so, schedules
// the next one.
func (f *SampleFilter) Due(sample race.TelemetrySample) bool {
	t := sample.Time()
	if f.seen && t < f.next {
		return false
	}
	f.seen = true
	f.next = t + f.interval
	return true
}
