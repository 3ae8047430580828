package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"replay-director/internal/direction"
	"replay-director/internal/domain/race"
	"replay-director/internal/telemetry"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// OverlayStore receives finished runs for the downstream editing stage.
type OverlayStore interface {
	SaveRun(ctx context.Context, run race.RunResult) error
	FindRun(ctx context.Context, id uuid.UUID) (*race.RunResult, error)
}

// DefaultRetainedRuns is how many finished runs stay reachable through Get.
const DefaultRetainedRuns = 32

// Options are the operator settings every run is built with. RetainedRuns
// caps the finished runs kept in memory; older ones are only available
// from the overlay store.
type Options struct {
	Settings               direction.Settings
	Cameras                []race.TrackCamera
	DisableIncidentsSearch bool
	RemoveNumbersFromNames bool
	RetainedRuns           int
	Version                string
}

// RunRequest describes one recorded race to analyse. CameraGroups maps the
// simulator's camera group names to their numbers.
type RunRequest struct {
	TrackName       string
	CameraGroups    map[string]int
	IncidentSamples telemetry.SampleSource
	RaceSamples     telemetry.SampleSource
}

type DirectorService struct {
	opts  Options
	store OverlayStore
	log   zerolog.Logger

	mu       sync.Mutex
	runs     map[uuid.UUID]*Run
	finished []uuid.UUID
	wg       sync.WaitGroup
}

func NewDirectorService(opts Options, store OverlayStore, log zerolog.Logger) *DirectorService {
	if opts.RetainedRuns <= 0 {
		opts.RetainedRuns = DefaultRetainedRuns
	}
	return &DirectorService{
		opts:  opts,
		store: store,
		log:   log,
		runs:  make(map[uuid.UUID]*Run),
	}
}

func (s *DirectorService) validate(req RunRequest) error {
	if req.TrackName == "" {
		return fmt.Errorf("%w: track_name is required", ErrInvalidInput)
	}
	if req.RaceSamples == nil {
		return fmt.Errorf("%w: race samples are required", ErrInvalidInput)
	}
	return nil
}

// Analyse runs one analysis to completion on the calling goroutine. Setup
// problems, source errors and panics all end as a failed result; a
// cancelled context ends as an aborted one.
func (s *DirectorService) Analyse(ctx context.Context, req RunRequest) race.RunResult {
	id := uuid.New()
	result := race.RunResult{ID: id, TrackName: req.TrackName, StartedAt: time.Now()}

	if err := s.validate(req); err != nil {
		return s.fail(result, err)
	}
	p, err := s.newPipeline(id, req, newCommandFeed())
	if err != nil {
		return s.fail(result, err)
	}
	return s.execute(ctx, p, req, result)
}

// Start validates the request and runs the analysis in the background. The
// run is detached from ctx's cancellation; use Run.Abort to stop it.
func (s *DirectorService) Start(ctx context.Context, req RunRequest) (*Run, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	id := uuid.New()
	feed := newCommandFeed()
	p, err := s.newPipeline(id, req, feed)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := newRun(id, req.TrackName, feed, cancel)

	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()

	s.log.Info().
		Str("run_id", id.String()).
		Str("track", req.TrackName).
		Msg("analysis run started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		result := race.RunResult{ID: id, TrackName: req.TrackName, StartedAt: run.startedAt}
		res := s.execute(runCtx, p, req, result)
		s.retire(id)
		run.finish(res)
	}()
	return run, nil
}

func (s *DirectorService) Get(id uuid.UUID) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return run, nil
}

func (s *DirectorService) Abort(id uuid.UUID) error {
	run, err := s.Get(id)
	if err != nil {
		return err
	}
	run.Abort()
	s.log.Info().Str("run_id", id.String()).Msg("analysis run abort requested")
	return nil
}

// StoredRun returns a finished run from the overlay store.
func (s *DirectorService) StoredRun(ctx context.Context, id uuid.UUID) (*race.RunResult, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: overlay store is not configured", ErrNotFound)
	}
	run, err := s.store.FindRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return run, nil
}

// Close aborts every run still in progress and waits for them to finish.
func (s *DirectorService) Close() {
	s.mu.Lock()
	for _, run := range s.runs {
		run.Abort()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// retire marks a run finished and forgets the oldest finished runs past
// the retention cap. The run being retired is never the one evicted.
func (s *DirectorService) retire(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, id)
	for len(s.finished) > s.opts.RetainedRuns {
		evicted := s.finished[0]
		s.finished = s.finished[1:]
		delete(s.runs, evicted)
		s.log.Debug().Str("run_id", evicted.String()).Msg("finished run evicted from memory")
	}
}

func (s *DirectorService) persist(ctx context.Context, result race.RunResult) {
	if s.store == nil || result.Status != race.RunCompleted {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.SaveRun(ctx, result); err != nil {
		s.log.Error().
			Err(err).
			Str("run_id", result.ID.String()).
			Msg("failed to save overlay data")
		return
	}
	s.log.Info().
		Str("run_id", result.ID.String()).
		Int("incidents", len(result.Overlay.Incidents)).
		Int("markers", len(result.Overlay.Markers)).
		Msg("saved overlay data")
}
