package direction

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/analysis"
	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

// BattleRule holds a close battle for the battle sticky period and cuts
// between the two cars every camera sticky period.
type BattleRule struct {
	cameras      *CameraControl
	marker       *edits.EditMarker
	gap          time.Duration
	factor       float64
	battleSticky time.Duration
	cameraSticky time.Duration
	preferred    analysis.Preferred
	src          rand.Source
	log          zerolog.Logger

	tick         tick
	battle       race.BattleCandidate
	has          bool
	until        time.Duration
	directed     bool
	nextCameraAt time.Duration
	onAhead      bool
}

func NewBattleRule(cameras *CameraControl, tracker *edits.Tracker, settings Settings, src rand.Source, log zerolog.Logger) *BattleRule {
	return &BattleRule{
		cameras:      cameras,
		marker:       tracker.For(race.InterestBattle),
		gap:          settings.BattleGap,
		factor:       settings.BattleFactor,
		battleSticky: settings.BattleStickyPeriod,
		cameraSticky: settings.CameraStickyPeriod,
		preferred:    analysis.NewPreferred(settings.FocusOnPreferredDriver, settings.PreferredDrivers),
		src:          src,
		log:          log,
	}
}

func (r *BattleRule) Name() string { return "battle" }

func (r *BattleRule) IsActive(sample race.TelemetrySample) bool {
	return r.tick.once(sample, func() bool {
		t := sample.Time()
		if sample.UnderPaceCar || sample.SessionState != race.SessionRacing {
			r.end(t)
			return false
		}
		if r.has && t < r.until {
			return true
		}

		b, ok := analysis.FindBattle(sample, r.gap, r.factor, r.preferred, r.src)
		if !ok {
			r.end(t)
			return false
		}
		if !r.has || b.CarIdx != r.battle.CarIdx || b.AheadCarIdx != r.battle.AheadCarIdx {
			r.marker.Start(t, b.CarIdx)
			r.directed = false
			r.onAhead = false
			r.log.Info().
				Dur("session_time", t).
				Int("car_idx", b.CarIdx).
				Int("ahead_car_idx", b.AheadCarIdx).
				Int("position", b.Position).
				Dur("gap", b.Gap).
				Msg("new battle selected")
		}
		r.battle, r.has = b, true
		r.until = t + r.battleSticky
		return true
	})
}

func (r *BattleRule) end(t time.Duration) {
	if !r.has {
		return
	}
	r.marker.Stop(t)
	r.has, r.directed = false, false
	r.log.Debug().Dur("session_time", t).Msg("battle finished")
}

// Current returns the battle being held, if any.
func (r *BattleRule) Current() (race.BattleCandidate, bool) {
	return r.battle, r.has
}

func (r *BattleRule) Direct(sample race.TelemetrySample) {
	if !r.has {
		return
	}
	t := sample.Time()
	if r.directed && t < r.nextCameraAt {
		return
	}

	carIdx := r.battle.CarIdx
	if r.onAhead {
		carIdx = r.battle.AheadCarIdx
	}
	car, ok := sample.Car(carIdx)
	if !ok {
		return
	}
	r.cameras.CameraOnDriver(t, car, r.cameras.RandomCamera())
	r.directed = true
	r.nextCameraAt = t + r.cameraSticky
	r.onAhead = !r.onAhead
}

func (r *BattleRule) Redirect(sample race.TelemetrySample) {
	r.directed = false
	r.Direct(sample)
}
