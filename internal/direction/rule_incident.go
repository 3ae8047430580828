package direction

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

// IncidentSource answers which incidents are in progress at a session time.
type IncidentSource interface {
	Inside(t time.Duration) []race.Incident
}

// IncidentMarker is the Incident interval shared by the incident rules of a
// director. It remembers which rule opened the interval; only that rule
// closes it.
type IncidentMarker struct {
	marker *edits.EditMarker
	owner  *IncidentRule
}

func NewIncidentMarker(tracker *edits.Tracker) *IncidentMarker {
	return &IncidentMarker{marker: tracker.For(race.InterestIncident)}
}

func (m *IncidentMarker) open(r *IncidentRule, at time.Duration, carIdx int) {
	m.marker.Start(at, carIdx)
	m.owner = r
}

// close stops the interval if r opened it and reports whether it did.
func (m *IncidentMarker) close(r *IncidentRule, at time.Duration) bool {
	if m.owner != r {
		return false
	}
	m.marker.Stop(at)
	m.owner = nil
	return true
}

// IncidentRule shows incidents in progress for cars placed at or above the
// position cutoff.
type IncidentRule struct {
	cameras   *CameraControl
	incidents IncidentSource
	marker    *IncidentMarker
	cutoff    int
	log       zerolog.Logger

	tick     tick
	current  race.Incident
	has      bool
	directed bool
}

func NewIncidentRule(cameras *CameraControl, incidents IncidentSource, marker *IncidentMarker, cutoff int, log zerolog.Logger) *IncidentRule {
	if cutoff <= 0 {
		cutoff = UnlimitedPosition
	}
	return &IncidentRule{
		cameras:   cameras,
		incidents: incidents,
		marker:    marker,
		cutoff:    cutoff,
		log:       log,
	}
}

func (r *IncidentRule) Name() string {
	if r.cutoff >= UnlimitedPosition {
		return "incident"
	}
	return fmt.Sprintf("incident(position<=%d)", r.cutoff)
}

func (r *IncidentRule) IsActive(sample race.TelemetrySample) bool {
	return r.tick.once(sample, func() bool {
		t := sample.Time()
		pick, ok := r.pick(sample)
		if !ok {
			if r.marker.close(r, t) {
				r.log.Debug().
					Dur("session_time", t).
					Int("car_idx", r.current.CarIdx).
					Msg("incident finished")
			}
			r.has, r.directed = false, false
			return false
		}
		if !r.has || pick.CarIdx != r.current.CarIdx {
			r.directed = false
		}
		r.current, r.has = pick, true
		return true
	})
}

// pick keeps the incident already shown when it is still in progress, then
// prefers the car the camera is on, then the earliest incident.
func (r *IncidentRule) pick(sample race.TelemetrySample) (race.Incident, bool) {
	var qualifying []race.Incident
	for _, inc := range r.incidents.Inside(sample.Time()) {
		if r.qualifies(sample, inc) {
			qualifying = append(qualifying, inc)
		}
	}
	if len(qualifying) == 0 {
		return race.Incident{}, false
	}
	if r.has {
		for _, inc := range qualifying {
			if inc.CarIdx == r.current.CarIdx {
				return inc, true
			}
		}
	}
	for _, inc := range qualifying {
		if inc.CarIdx == sample.CamCarIdx {
			return inc, true
		}
	}
	return qualifying[0], true
}

func (r *IncidentRule) qualifies(sample race.TelemetrySample, inc race.Incident) bool {
	car, ok := sample.Car(inc.CarIdx)
	if !ok {
		return false
	}
	if r.cutoff >= UnlimitedPosition {
		return true
	}
	return car.Position > 0 && car.Position <= r.cutoff
}

func (r *IncidentRule) Direct(sample race.TelemetrySample) {
	if !r.has || r.directed {
		return
	}
	car, ok := sample.Car(r.current.CarIdx)
	if !ok {
		return
	}
	t := sample.Time()
	r.cameras.CameraOnDriver(t, car, r.cameras.IncidentCamera())
	r.marker.open(r, t, car.CarIdx)
	r.directed = true

	r.log.Info().
		Dur("session_time", t).
		Str("driver", car.DriverName).
		Int("position", car.Position).
		Dur("incident_end", r.current.End).
		Msg("showing incident")
}

func (r *IncidentRule) Redirect(sample race.TelemetrySample) {
	r.directed = false
	r.Direct(sample)
}
