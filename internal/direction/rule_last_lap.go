package direction

import (
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

// LastLapPeriod frames the finish. It latches on once the leader takes the
// checkered flag, or once the leader is on the final lap and expected to
// finish within the configured period.
type LastLapPeriod struct {
	cameras *CameraControl
	marker  *edits.EditMarker
	period  time.Duration
	log     zerolog.Logger

	tick       tick
	active     bool
	reselectAt time.Duration
	selected   bool
}

func NewLastLapPeriod(cameras *CameraControl, tracker *edits.Tracker, period time.Duration, log zerolog.Logger) *LastLapPeriod {
	return &LastLapPeriod{
		cameras: cameras,
		marker:  tracker.For(race.InterestLastLap),
		period:  period,
		log:     log,
	}
}

func (r *LastLapPeriod) Name() string { return "last_lap_period" }

func (r *LastLapPeriod) IsActive(sample race.TelemetrySample) bool {
	return r.tick.once(sample, func() bool {
		if r.active {
			return true
		}
		if !sample.LeaderHasFinished && !r.finishingSoon(sample) {
			return false
		}
		r.active = true
		r.marker.Start(sample.Time(), 0)
		r.log.Info().
			Dur("session_time", sample.Time()).
			Bool("leader_finished", sample.LeaderHasFinished).
			Msg("tracking finishers")
		return true
	})
}

func (r *LastLapPeriod) finishingSoon(sample race.TelemetrySample) bool {
	if sample.SessionLaps <= 0 || sample.AverageLapTime <= 0 || sample.RaceLaps < sample.SessionLaps-1 {
		return false
	}
	leader, ok := leaderOnTrack(sample, false)
	if !ok || !leader.Valid() {
		return false
	}
	remaining := race.Seconds((1 - leader.LapDistance) * sample.AverageLapTime)
	return remaining <= r.period
}

func (r *LastLapPeriod) Direct(sample race.TelemetrySample) {
	t := sample.Time()
	if r.selected && t < r.reselectAt {
		return
	}
	car, ok := nextFinisher(sample)
	if !ok {
		return
	}
	r.cameras.CameraOnDriver(t, car, r.cameras.LastLapCamera())
	r.selected = true
	r.reselectAt = t + leaderReselectInterval
}

func (r *LastLapPeriod) Redirect(sample race.TelemetrySample) {
	r.selected = false
	r.Direct(sample)
}

// nextFinisher is the best placed car still racing towards the flag,
// or the leader once every car is done.
func nextFinisher(sample race.TelemetrySample) (race.Car, bool) {
	cars := sample.ByPosition()
	if len(cars) == 0 {
		return race.Car{}, false
	}
	for _, c := range cars {
		if !c.HasSeenCheckeredFlag && !c.HasRetired && !c.IsInPits() && c.TrackSurface != race.SurfaceNotInWorld {
			return c, true
		}
	}
	return cars[0], true
}
