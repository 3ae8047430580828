package capture

import (
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
)

// FastestLapNoticeDelay is how long after a new fastest lap it is shown.
const FastestLapNoticeDelay = 20 * time.Second

// FastestLaps notes every change of the session's fastest lap and publishes
// a notice once the delay has passed. A lap set while a notice is pending
// replaces its content but not its timing.
type FastestLaps struct {
	delay time.Duration
	log   zerolog.Logger

	last    *race.FastLap
	showAt  time.Duration
	pending bool
	notices []race.FastestLapNotice
}

func NewFastestLaps(log zerolog.Logger) *FastestLaps {
	return &FastestLaps{delay: FastestLapNoticeDelay, log: log}
}

func (f *FastestLaps) Process(sample race.TelemetrySample) {
	f.showPending(sample)

	fl := sample.FastestLap
	if fl == nil || (f.last != nil && *f.last == *fl) {
		return
	}
	t := sample.Time()
	if !f.pending {
		f.pending = true
		f.showAt = t + f.delay
	}
	lap := *fl
	f.last = &lap

	f.log.Info().
		Dur("session_time", t).
		Str("driver", lap.DriverName).
		Float64("lap_time", lap.Time).
		Msg("new fastest lap")
}

func (f *FastestLaps) showPending(sample race.TelemetrySample) {
	t := sample.Time()
	if !f.pending || t <= f.showAt {
		return
	}
	f.notices = append(f.notices, race.FastestLapNotice{
		StartTime:  t,
		CarNumber:  f.last.CarNumber,
		DriverName: f.last.DriverName,
		Time:       f.last.Time,
	})
	f.pending = false

	f.log.Debug().
		Dur("session_time", t).
		Str("driver", f.last.DriverName).
		Msg("showing fastest lap")
}

func (f *FastestLaps) Notices() []race.FastestLapNotice {
	out := make([]race.FastestLapNotice, len(f.notices))
	copy(out, f.notices)
	return out
}
