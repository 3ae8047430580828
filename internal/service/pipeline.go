package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"replay-director/internal/analysis"
	"replay-director/internal/capture"
	"replay-director/internal/direction"
	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
	"replay-director/internal/metrics"
	"replay-director/internal/telemetry"
)

const (
	sampleBuffer   = 64
	persistTimeout = 30 * time.Second
)

// pipeline owns the per-run state. Nothing in it is shared between runs.
type pipeline struct {
	id        uuid.UUID
	log       zerolog.Logger
	incidents *analysis.Incidents
	tracker   *edits.Tracker
	director  *direction.Director
	commands  *commandFeed
	boards    *capture.LeaderBoards
	fastest   *capture.FastestLaps

	samples int
	last    time.Duration
}

func (s *DirectorService) newPipeline(id uuid.UUID, req RunRequest, feed *commandFeed) (*pipeline, error) {
	log := s.log.With().Str("run_id", id.String()).Logger()
	settings := s.opts.Settings

	tracker := edits.NewTracker(log.With().Str("component", "edits").Logger())
	incidents := analysis.NewIncidents(
		analysis.NewPreferred(settings.FocusOnPreferredDriver, settings.PreferredDrivers),
		log.With().Str("component", "incidents").Logger(),
	)

	track := direction.Track{Name: req.TrackName, Cameras: s.opts.Cameras, Groups: req.CameraGroups}
	director, err := direction.New(settings, track, incidents, tracker, feed,
		direction.WithLogger(log),
		direction.WithSwitchObserver(func(_, to string) { metrics.RecordRuleSwitch(to) }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return &pipeline{
		id:        id,
		log:       log,
		incidents: incidents,
		tracker:   tracker,
		director:  director,
		commands:  feed,
		boards:    capture.NewLeaderBoards(s.opts.RemoveNumbersFromNames),
		fastest:   capture.NewFastestLaps(log.With().Str("component", "fastest_laps").Logger()),
	}, nil
}

func (s *DirectorService) execute(ctx context.Context, p *pipeline, req RunRequest, result race.RunResult) (res race.RunResult) {
	metrics.RunStarted()
	defer metrics.RunFinished()

	res = result
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("analysis run panicked")
			res = s.fail(res, fmt.Errorf("panic: %v", r))
		}
	}()

	err := s.scanIncidents(ctx, p, req.IncidentSamples)
	if err == nil {
		err = stream(ctx, req.RaceSamples, p.process)
	}

	if p.samples > 0 {
		p.tracker.Finish(p.last)
	}
	res.Samples = p.samples
	res.Overlay = p.overlay(s.opts.Version)

	switch {
	case aborted(ctx, err):
		res.Status = race.RunAborted
		res.FinishedAt = time.Now()
		metrics.RecordRunOutcome(string(res.Status))
		p.log.Info().Int("samples", p.samples).Msg("analysis run aborted")
	case err != nil:
		res = s.fail(res, err)
	default:
		res.Status = race.RunCompleted
		res.FinishedAt = time.Now()
		metrics.RecordRunOutcome(string(res.Status))
		p.log.Info().
			Int("samples", p.samples).
			Int("incidents", len(res.Overlay.Incidents)).
			Int("markers", len(res.Overlay.Markers)).
			Int("camera_commands", len(res.Overlay.CameraCommands)).
			Msg("analysis run completed")
		s.persist(ctx, res)
	}
	return res
}

// aborted reports whether the run stopped because ctx was cancelled, as
// opposed to finishing its input or failing on its own.
func aborted(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *DirectorService) fail(result race.RunResult, err error) race.RunResult {
	result.Status = race.RunFailed
	result.Error = err.Error()
	result.FinishedAt = time.Now()
	metrics.RecordRunOutcome(string(result.Status))
	s.log.Error().
		Err(err).
		Str("run_id", result.ID.String()).
		Msg("analysis run failed")
	return result
}

// scanIncidents is the first pass: the whole race is scanned for incidents
// before any camera decision is made.
func (s *DirectorService) scanIncidents(ctx context.Context, p *pipeline, src telemetry.SampleSource) error {
	if s.opts.DisableIncidentsSearch || src == nil {
		p.log.Info().Msg("incident scan skipped")
		return nil
	}
	for {
		sample, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("incident scan: %w", err)
		}
		p.incidents.Process(sample)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	metrics.AddIncidents(p.incidents.Len())
	p.log.Info().Int("incidents", p.incidents.Len()).Msg("incident scan finished")
	return nil
}

// process runs one sample through every stage before the next is read.
func (p *pipeline) process(sample race.TelemetrySample) {
	p.director.Process(sample)
	p.boards.Process(sample)
	p.fastest.Process(sample)
	p.samples++
	p.last = sample.Time()
	metrics.IncSamplesProcessed()
}

func (p *pipeline) overlay(version string) race.OverlayData {
	return race.OverlayData{
		CapturedVersion: version,
		Incidents:       p.incidents.All(),
		Markers:         p.tracker.Markers(),
		CameraCommands:  p.commands.Commands(),
		LeaderBoards:    p.boards.Boards(),
		FastestLaps:     p.fastest.Notices(),
	}
}

// stream decodes samples on one goroutine and processes them in order on
// another. Once ctx is done no further sample is processed; a stream whose
// source already reached its end still completes.
func stream(ctx context.Context, src telemetry.SampleSource, process func(race.TelemetrySample)) error {
	g, gctx := errgroup.WithContext(ctx)
	samples := make(chan race.TelemetrySample, sampleBuffer)

	g.Go(guard(func() error {
		defer close(samples)
		for {
			sample, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read race samples: %w", err)
			}
			select {
			case samples <- sample:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	}))

	g.Go(guard(func() error {
		for {
			select {
			case sample, ok := <-samples:
				if !ok {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				process(sample)
			case <-gctx.Done():
				// the source may have been drained before the cancel
				if _, more := <-samples; !more {
					return nil
				}
				return gctx.Err()
			}
		}
	}))

	return g.Wait()
}

// guard turns a panic on a pipeline goroutine into an error for the run.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}
