package direction

import (
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

// PaceLaps follows the leader while the field runs behind the pace car and
// for a restart window after the green flag, which is recorded as a Restart.
type PaceLaps struct {
	cameras       *CameraControl
	marker        *edits.EditMarker
	restartPeriod time.Duration
	log           zerolog.Logger

	tick         tick
	underCaution bool
	restarting   bool
	restartUntil time.Duration
	reselectAt   time.Duration
	selected     bool
}

func NewPaceLaps(cameras *CameraControl, tracker *edits.Tracker, restartPeriod time.Duration, log zerolog.Logger) *PaceLaps {
	return &PaceLaps{
		cameras:       cameras,
		marker:        tracker.For(race.InterestRestart),
		restartPeriod: restartPeriod,
		log:           log,
	}
}

func (r *PaceLaps) Name() string { return "pace_laps" }

func (r *PaceLaps) IsActive(sample race.TelemetrySample) bool {
	return r.tick.once(sample, func() bool {
		t := sample.Time()
		if sample.SessionState != race.SessionRacing {
			return false
		}

		if sample.UnderPaceCar {
			if !r.underCaution {
				r.underCaution = true
				r.endRestart(t)
				r.log.Info().Dur("session_time", t).Msg("field is under the pace car")
			}
			return true
		}

		if r.underCaution {
			r.underCaution = false
			r.restarting = true
			r.restartUntil = t + r.restartPeriod
			r.marker.Start(t, 0)
			r.log.Info().Dur("session_time", t).Msg("restart")
		}
		if r.restarting && t < r.restartUntil {
			return true
		}
		r.endRestart(t)
		return false
	})
}

func (r *PaceLaps) endRestart(t time.Duration) {
	if !r.restarting {
		return
	}
	r.restarting = false
	r.marker.Stop(t)
}

func (r *PaceLaps) Direct(sample race.TelemetrySample) {
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

func (r *PaceLaps) Redirect(sample race.TelemetrySample) {
	r.selected = false
	r.Direct(sample)
}
