// Package direction decides, sample by sample, which car and camera the
// replay shows.
//
// A Director holds a fixed priority list of rules, some wrapped in vetoes.
// The rule that directed the previous sample keeps control for as long as it
// stays active; otherwise the list is scanned from the top and the first
// active rule takes over. The random driver rule closes the list and is never
// held, so higher priority rules are reconsidered on every sample while it
// is showing a car.
package direction

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

type Option func(*options)

type options struct {
	src      rand.Source
	log      zerolog.Logger
	onSwitch func(from, to string)
}

// WithRandSource fixes the randomness used for battle, driver and camera draws.
func WithRandSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithSwitchObserver is called whenever a different rule takes control.
func WithSwitchObserver(fn func(from, to string)) Option {
	return func(o *options) { o.onSwitch = fn }
}

type Director struct {
	rules    []Rule
	fallback Rule
	current  Rule
	last     Rule
	cameras  *CameraControl
	onSwitch func(from, to string)
	log      zerolog.Logger

	LastLap      *LastLapPeriod
	FirstLap     *FirstLapPeriod
	PaceLaps     *PaceLaps
	Battle       *BattleRule
	Incidents    *IncidentRule
	TopIncidents *IncidentRule
	Random       *RandomDriver
}

// New builds the director for one replay. It fails when the operator has no
// usable camera configuration for the track.
func New(settings Settings, track Track, incidents IncidentSource, tracker *edits.Tracker, sink CommandSink, opts ...Option) (*Director, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		now := uint64(time.Now().UnixNano())
		o.src = rand.NewPCG(now, now>>1)
	}

	cameras, err := NewCameraControl(track, sink, o.src, o.log.With().Str("component", "camera_control").Logger())
	if err != nil {
		return nil, fmt.Errorf("director setup: %w", err)
	}

	log := o.log.With().Str("component", "director").Logger()
	incidentMarker := NewIncidentMarker(tracker)

	d := &Director{
		cameras:      cameras,
		onSwitch:     o.onSwitch,
		log:          log,
		LastLap:      NewLastLapPeriod(cameras, tracker, settings.FollowLeaderBeforeRaceEndPeriod, log),
		FirstLap:     NewFirstLapPeriod(cameras, tracker, settings.FollowLeaderAtRaceStartPeriod, log),
		PaceLaps:     NewPaceLaps(cameras, tracker, settings.RestartPeriod, log),
		Battle:       NewBattleRule(cameras, tracker, settings, o.src, log),
		Incidents:    NewIncidentRule(cameras, incidents, incidentMarker, UnlimitedPosition, log),
		TopIncidents: NewIncidentRule(cameras, incidents, incidentMarker, settings.IgnoreIncidentsBelowPosition, log),
		Random:       NewRandomDriver(cameras, settings, o.src, log),
	}

	var firstLap Rule = WithVeto(d.FirstLap, d.Incidents)
	if settings.IgnoreIncidentsDuringRaceStart {
		firstLap = d.FirstLap
	}

	d.fallback = WithVeto(d.Random, d.LastLap)
	d.rules = []Rule{
		d.LastLap,
		firstLap,
		WithVeto(d.PaceLaps, WithVeto(d.Incidents, d.LastLap)),
		WithVeto(d.Battle, WithVeto(d.TopIncidents, d.LastLap)),
		WithVeto(d.Incidents, d.LastLap),
		d.fallback,
	}
	return d, nil
}

// Rules returns the priority list, highest first.
func (d *Director) Rules() []Rule {
	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

func (d *Director) Cameras() *CameraControl {
	return d.cameras
}

// Current returns the rule holding control, nil when the fallback is showing.
func (d *Director) Current() Rule {
	return d.current
}

// Directing returns the leaf rule that directed the last sample.
func (d *Director) Directing() Rule {
	if v, ok := d.last.(*Veto); ok {
		return v.Directing()
	}
	return d.last
}

func (d *Director) Process(sample race.TelemetrySample) {
	if d.current != nil && d.current.IsActive(sample) {
		d.current.Direct(sample)
		return
	}

	for _, rule := range d.rules {
		if rule.IsActive(sample) {
			d.take(rule, sample)
			return
		}
	}

	d.take(d.fallback, sample)
}

func (d *Director) take(rule Rule, sample race.TelemetrySample) {
	if rule == d.fallback {
		d.current = nil
	} else {
		d.current = rule
	}

	if rule == d.last {
		rule.Direct(sample)
		return
	}

	from := "none"
	if d.last != nil {
		from = Describe(d.last)
	}
	to := Describe(rule)
	d.log.Info().
		Dur("session_time", sample.Time()).
		Str("from", from).
		Str("to", to).
		Msg("direction rule changed")
	if d.onSwitch != nil {
		d.onSwitch(from, to)
	}

	d.last = rule
	redirect(rule, sample)
}
