package direction

import (
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

// FirstLapPeriod follows the leader from the green flag for a fixed period.
type FirstLapPeriod struct {
	cameras *CameraControl
	marker  *edits.EditMarker
	period  time.Duration
	log     zerolog.Logger

	tick        tick
	raceStarted bool
	raceStart   time.Duration
	started     bool
	completed   bool
	reselectAt  time.Duration
	selected    bool
}

func NewFirstLapPeriod(cameras *CameraControl, tracker *edits.Tracker, period time.Duration, log zerolog.Logger) *FirstLapPeriod {
	return &FirstLapPeriod{
		cameras: cameras,
		marker:  tracker.For(race.InterestFirstLap),
		period:  period,
		log:     log,
	}
}

func (r *FirstLapPeriod) Name() string { return "first_lap_period" }

func (r *FirstLapPeriod) IsActive(sample race.TelemetrySample) bool {
	return r.tick.once(sample, func() bool {
		t := sample.Time()
		if !r.raceStarted {
			if sample.SessionState != race.SessionRacing {
				return false
			}
			r.raceStarted = true
			r.raceStart = t
		}

		inPeriod := t < r.raceStart+r.period
		switch {
		case inPeriod && !r.started:
			r.started = true
			r.marker.Start(t, 0)
			r.log.Info().
				Dur("session_time", t).
				Dur("period", r.period).
				Msg("tracking leader from race start")
		case !inPeriod && r.started && !r.completed:
			r.completed = true
			r.marker.Stop(t)
			r.log.Info().
				Dur("session_time", t).
				Msg("leader has completed first lap period")
		}
		return inPeriod
	})
}

func (r *FirstLapPeriod) Direct(sample race.TelemetrySample) {
	t := sample.Time()
	if r.selected && t < r.reselectAt {
		return
	}
	leader, ok := leaderOnTrack(sample, true)
	if !ok {
		return
	}
	r.cameras.CameraOnDriver(t, leader, r.cameras.RaceStartCamera())
	r.selected = true
	r.reselectAt = t + leaderReselectInterval
}

func (r *FirstLapPeriod) Redirect(sample race.TelemetrySample) {
	r.selected = false
	r.Direct(sample)
}

// leaderOnTrack returns the best placed car, optionally skipping cars in the pits.
// When every car is in the pits the leader is returned anyway.
func leaderOnTrack(sample race.TelemetrySample, skipPits bool) (race.Car, bool) {
	cars := sample.ByPosition()
	if len(cars) == 0 {
		return race.Car{}, false
	}
	if skipPits {
		for _, c := range cars {
			if !c.IsInPits() {
				return c, true
			}
		}
	}
	return cars[0], true
}
