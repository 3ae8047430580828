package analysis

import (
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
)

const (
	incidentLeadIn    = 1 * time.Second
	incidentLeadOut   = 8 * time.Second
	incidentMergeSpan = 15 * time.Second
)

// Incidents accumulates incident windows from a pre-filtered sample stream in
// which the camera subject is the car involved.
type Incidents struct {
	preferred Preferred
	incidents []race.Incident
	log       zerolog.Logger
}

func NewIncidents(preferred Preferred, log zerolog.Logger) *Incidents {
	return &Incidents{
		preferred: preferred,
		log:       log,
	}
}

func (d *Incidents) Process(sample race.TelemetrySample) {
	car, ok := sample.CamCar()
	if !ok {
		return
	}

	switch car.TrackSurface {
	case race.SurfaceInPitStall, race.SurfaceNotInWorld, race.SurfaceApproachingPits:
		d.log.Debug().
			Dur("session_time", sample.Time()).
			Int("lap", sample.RaceLaps).
			Int("car_idx", car.CarIdx).
			Msg("ignoring incident in the pits")
		return
	}

	if !d.preferred.Allows(car) {
		d.log.Debug().
			Dur("session_time", sample.Time()).
			Str("driver", car.DriverName).
			Msg("ignoring incident of non preferred driver")
		return
	}

	t := sample.Time()
	candidate := race.Incident{
		CarIdx:     car.CarIdx,
		CarNumber:  car.CarNumber,
		DriverName: car.DriverName,
		LapNumber:  sample.RaceLaps,
		Start:      t - incidentLeadIn,
		End:        t + incidentLeadOut,
	}

	last := d.lastFor(car.CarIdx)
	if last == nil || last.End+incidentMergeSpan < candidate.Start {
		d.incidents = append(d.incidents, candidate)
		d.log.Info().
			Str("driver", candidate.DriverName).
			Int("lap", candidate.LapNumber).
			Dur("start", candidate.Start).
			Dur("end", candidate.End).
			Msg("noting incident")
		return
	}

	last.End = candidate.End
	d.log.Debug().
		Str("driver", last.DriverName).
		Int("lap", last.LapNumber).
		Dur("start", last.Start).
		Dur("end", last.End).
		Msg("extending incident")
}

func (d *Incidents) lastFor(carIdx int) *race.Incident {
	for i := len(d.incidents) - 1; i >= 0; i-- {
		if d.incidents[i].CarIdx == carIdx {
			return &d.incidents[i]
		}
	}
	return nil
}

// All returns a copy of the incidents in the order they were noted.
func (d *Incidents) All() []race.Incident {
	out := make([]race.Incident, len(d.incidents))
	copy(out, d.incidents)
	return out
}

// Inside returns the incidents whose window contains t.
func (d *Incidents) Inside(t time.Duration) []race.Incident {
	var out []race.Incident
	for _, i := range d.incidents {
		if i.IsInside(t) {
			out = append(out, i)
		}
	}
	return out
}

func (d *Incidents) Len() int {
	return len(d.incidents)
}
