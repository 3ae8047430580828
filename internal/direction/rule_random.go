package direction

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/analysis"
	"replay-director/internal/domain/race"
)

// RandomDriver is the fallback rule: it is always active and shows a random
// car for at least the camera sticky period.
type RandomDriver struct {
	cameras   *CameraControl
	sticky    time.Duration
	preferred analysis.Preferred
	rng       *rand.Rand
	log       zerolog.Logger

	car   race.Car
	has   bool
	until time.Duration
}

func NewRandomDriver(cameras *CameraControl, settings Settings, src rand.Source, log zerolog.Logger) *RandomDriver {
	return &RandomDriver{
		cameras:   cameras,
		sticky:    settings.CameraStickyPeriod,
		preferred: analysis.NewPreferred(settings.FocusOnPreferredDriver, settings.PreferredDrivers),
		rng:       rand.New(src),
		log:       log,
	}
}

func (r *RandomDriver) Name() string { return "random_driver" }

func (r *RandomDriver) IsActive(race.TelemetrySample) bool { return true }

func (r *RandomDriver) Direct(sample race.TelemetrySample) {
	t := sample.Time()
	if r.has && t < r.until {
		return
	}

	cars := r.eligible(sample)
	if len(cars) == 0 {
		return
	}
	next := cars[r.rng.IntN(len(cars))]
	if r.has && len(cars) > 1 && next.CarIdx == r.car.CarIdx {
		next = cars[(r.indexOf(cars, next.CarIdx)+1+r.rng.IntN(len(cars)-1))%len(cars)]
	}

	r.cameras.CameraOnDriver(t, next, r.cameras.RandomCamera())
	r.car, r.has = next, true
	r.until = t + r.sticky

	r.log.Debug().
		Dur("session_time", t).
		Str("driver", next.DriverName).
		Dur("until", r.until).
		Msg("random driver selected")
}

// Redirect points the camera back at the held car without starting a new dwell.
func (r *RandomDriver) Redirect(sample race.TelemetrySample) {
	if !r.has || sample.Time() >= r.until {
		r.Direct(sample)
		return
	}
	if car, ok := sample.Car(r.car.CarIdx); ok {
		r.cameras.CameraOnDriver(sample.Time(), car, r.cameras.RandomCamera())
	}
}

// Current returns the car being shown and when it may change.
func (r *RandomDriver) Current() (race.Car, time.Duration, bool) {
	return r.car, r.until, r.has
}

func (r *RandomDriver) eligible(sample race.TelemetrySample) []race.Car {
	var cars []race.Car
	for _, c := range sample.RaceCars() {
		if !c.Valid() || c.IsInPits() || c.HasRetired {
			continue
		}
		cars = append(cars, c)
	}
	return r.preferred.Filter(cars)
}

func (r *RandomDriver) indexOf(cars []race.Car, carIdx int) int {
	for i, c := range cars {
		if c.CarIdx == carIdx {
			return i
		}
	}
	return 0
}
