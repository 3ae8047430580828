package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"replay-director/internal/direction"
	"replay-director/internal/domain/race"
	"replay-director/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const track = "Spa-Francorchamps"

var groups = map[string]int{"TV1": 11, "Chase": 4, "Cockpit": 2}

func testOptions() Options {
	return Options{
		Settings: direction.DefaultSettings(),
		Cameras: []race.TrackCamera{
			{TrackName: track, CameraName: "TV1", Ratio: 30, IsRaceStart: true},
			{TrackName: track, CameraName: "Chase", Ratio: 20, IsIncident: true},
			{TrackName: track, CameraName: "Cockpit", Ratio: 50},
		},
		Version: "test",
	}
}

func field() []race.Car {
	cars := make([]race.Car, 0, 4)
	for i := 1; i <= 4; i++ {
		cars = append(cars, race.Car{
			CarIdx:       i,
			CarNumber:    string(rune('0' + i)),
			DriverName:   "driver " + string(rune('0'+i)),
			Position:     i,
			Lap:          5,
			LapDistance:  1 - 0.2*float64(i),
			TrackSurface: race.SurfaceOnTrack,
		})
	}
	return cars
}

func raceSamples(n int) []race.TelemetrySample {
	samples := make([]race.TelemetrySample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, race.TelemetrySample{
			SessionTime:    float64(i),
			SessionState:   race.SessionRacing,
			RaceLaps:       5,
			SessionLaps:    20,
			CamCarIdx:      1,
			AverageLapTime: 100,
			Cars:           field(),
		})
	}
	return samples
}

func incidentSamples() []race.TelemetrySample {
	return []race.TelemetrySample{{
		SessionTime:  100,
		SessionState: race.SessionRacing,
		RaceLaps:     5,
		CamCarIdx:    3,
		Cars:         field(),
	}}
}

func request(n int) RunRequest {
	return RunRequest{
		TrackName:       track,
		CameraGroups:    groups,
		IncidentSamples: telemetry.NewSliceSource(incidentSamples()),
		RaceSamples:     telemetry.NewSliceSource(raceSamples(n)),
	}
}

type fakeStore struct {
	mu    sync.Mutex
	saved []race.RunResult
}

func (f *fakeStore) SaveRun(_ context.Context, run race.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, run)
	return nil
}

func (f *fakeStore) FindRun(_ context.Context, id uuid.UUID) (*race.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.saved {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// failingSource yields samples until it reaches failAt, then errors or panics.
type failingSource struct {
	samples []race.TelemetrySample
	failAt  int
	panics  bool
	pos     int
}

func (f *failingSource) Next(ctx context.Context) (race.TelemetrySample, error) {
	if f.pos == f.failAt {
		if f.panics {
			panic("corrupt sample")
		}
		return race.TelemetrySample{}, errors.New("truncated replay")
	}
	s := f.samples[f.pos]
	f.pos++
	return s, nil
}

// endlessSource yields one racing sample per second until ctx is done.
type endlessSource struct {
	t float64
}

func (e *endlessSource) Next(ctx context.Context) (race.TelemetrySample, error) {
	if err := ctx.Err(); err != nil {
		return race.TelemetrySample{}, err
	}
	s := raceSamples(1)[0]
	s.SessionTime = e.t
	e.t++
	return s, nil
}

func markersFor(markers []race.Marker, state race.InterestState) []race.Marker {
	var out []race.Marker
	for _, m := range markers {
		if m.State == state {
			out = append(out, m)
		}
	}
	return out
}

func TestAnalyse_Completed(t *testing.T) {
	store := &fakeStore{}
	svc := NewDirectorService(testOptions(), store, zerolog.Nop())

	res := svc.Analyse(context.Background(), request(200))
	require.Equal(t, race.RunCompleted, res.Status, res.Error)
	assert.Equal(t, 200, res.Samples)
	assert.Equal(t, "test", res.Overlay.CapturedVersion)

	require.Len(t, res.Overlay.Incidents, 1)
	assert.Equal(t, 3, res.Overlay.Incidents[0].CarIdx)
	assert.Equal(t, 99*time.Second, res.Overlay.Incidents[0].Start)

	firstLap := markersFor(res.Overlay.Markers, race.InterestFirstLap)
	require.Len(t, firstLap, 1)
	assert.Equal(t, time.Duration(0), firstLap[0].Start)
	assert.Equal(t, 20*time.Second, firstLap[0].Stop)

	incident := markersFor(res.Overlay.Markers, race.InterestIncident)
	require.Len(t, incident, 1)
	assert.Equal(t, 3, incident[0].Subject)
	assert.Equal(t, 99*time.Second, incident[0].Start)
	assert.Equal(t, 109*time.Second, incident[0].Stop)

	var shown bool
	for _, cmd := range res.Overlay.CameraCommands {
		if cmd.At == 99*time.Second {
			shown = true
			assert.Equal(t, 3, cmd.CarIdx)
			assert.Equal(t, "Chase", cmd.CameraName)
			assert.Equal(t, 4, cmd.CameraGroup)
		}
	}
	assert.True(t, shown, "incident car is shown when the incident starts")

	assert.Len(t, res.Overlay.LeaderBoards, 200)
	assert.Equal(t, 1, store.count())
}

func TestAnalyse_IncidentSearchDisabled(t *testing.T) {
	opts := testOptions()
	opts.DisableIncidentsSearch = true
	svc := NewDirectorService(opts, nil, zerolog.Nop())

	res := svc.Analyse(context.Background(), request(120))
	require.Equal(t, race.RunCompleted, res.Status)
	assert.Empty(t, res.Overlay.Incidents)
	assert.Empty(t, markersFor(res.Overlay.Markers, race.InterestIncident))
}

func TestAnalyse_Failures(t *testing.T) {
	tests := []struct {
		name string
		req  RunRequest
		want string
	}{
		{
			name: "missing race samples",
			req:  RunRequest{TrackName: track},
			want: "race samples are required",
		},
		{
			name: "no cameras for the track",
			req:  RunRequest{TrackName: "Monza", RaceSamples: telemetry.NewSliceSource(nil)},
			want: "track cameras not defined",
		},
		{
			name: "source error",
			req: RunRequest{
				TrackName:    track,
				CameraGroups: groups,
				RaceSamples:  &failingSource{samples: raceSamples(10), failAt: 5},
			},
			want: "truncated replay",
		},
		{
			name: "panic while decoding",
			req: RunRequest{
				TrackName:    track,
				CameraGroups: groups,
				RaceSamples:  &failingSource{samples: raceSamples(10), failAt: 5, panics: true},
			},
			want: "panic: corrupt sample",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewDirectorService(testOptions(), store, zerolog.Nop())

			res := svc.Analyse(context.Background(), tt.req)
			assert.Equal(t, race.RunFailed, res.Status)
			assert.Contains(t, res.Error, tt.want)
			assert.Zero(t, store.count(), "failed runs are not stored")
		})
	}
}

func TestAnalyse_FreshStatePerRun(t *testing.T) {
	svc := NewDirectorService(testOptions(), nil, zerolog.Nop())

	failed := svc.Analyse(context.Background(), RunRequest{
		TrackName:    track,
		CameraGroups: groups,
		RaceSamples:  &failingSource{samples: raceSamples(10), failAt: 5, panics: true},
	})
	require.Equal(t, race.RunFailed, failed.Status)

	res := svc.Analyse(context.Background(), request(50))
	assert.Equal(t, race.RunCompleted, res.Status)
	assert.Equal(t, 50, res.Samples)
	assert.NotEqual(t, failed.ID, res.ID)
}

type cancelAt struct {
	telemetry.SampleSource
	at     int
	n      int
	cancel context.CancelFunc
}

func (c *cancelAt) Next(ctx context.Context) (race.TelemetrySample, error) {
	c.n++
	if c.n == c.at {
		c.cancel()
	}
	return c.SampleSource.Next(ctx)
}

func TestAnalyse_Aborted(t *testing.T) {
	svc := NewDirectorService(testOptions(), &fakeStore{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := request(500)
	req.RaceSamples = &cancelAt{SampleSource: req.RaceSamples, at: 50, cancel: cancel}

	res := svc.Analyse(ctx, req)
	assert.Equal(t, race.RunAborted, res.Status)
	assert.Empty(t, res.Error)
	assert.Less(t, res.Samples, 500)
	for _, m := range res.Overlay.Markers {
		assert.False(t, m.Open, "markers are closed at the last processed sample")
	}
}

// cancelAfter cancels once it has read its at-th sample, then still hands
// that sample over.
type cancelAfter struct {
	telemetry.SampleSource
	at     int
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Next(ctx context.Context) (race.TelemetrySample, error) {
	s, err := c.SampleSource.Next(ctx)
	c.n++
	if c.n == c.at {
		c.cancel()
	}
	return s, err
}

func TestAnalyse_NothingProcessedAfterCancel(t *testing.T) {
	svc := NewDirectorService(testOptions(), &fakeStore{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := request(500)
	req.RaceSamples = &cancelAfter{SampleSource: req.RaceSamples, at: 50, cancel: cancel}

	res := svc.Analyse(ctx, req)
	assert.Equal(t, race.RunAborted, res.Status)
	assert.LessOrEqual(t, res.Samples, 49, "the sample read after the cancel is dropped")
}

// abortAtEnd reaches the end of its samples, waits for the run to have
// issued a camera command for the last one and only then aborts it.
type abortAtEnd struct {
	telemetry.SampleSource
	run chan *Run
}

func (a *abortAtEnd) Next(ctx context.Context) (race.TelemetrySample, error) {
	s, err := a.SampleSource.Next(ctx)
	if !errors.Is(err, io.EOF) {
		return s, err
	}
	run := <-a.run
	deadline := time.Now().Add(5 * time.Second)
	for len(run.Commands()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	run.Abort()
	return s, err
}

func TestStart_AbortAfterLastSampleStillCompletes(t *testing.T) {
	store := &fakeStore{}
	svc := NewDirectorService(testOptions(), store, zerolog.Nop())
	defer svc.Close()

	src := &abortAtEnd{SampleSource: telemetry.NewSliceSource(raceSamples(1)), run: make(chan *Run, 1)}
	run, err := svc.Start(context.Background(), RunRequest{
		TrackName:    track,
		CameraGroups: groups,
		RaceSamples:  src,
	})
	require.NoError(t, err)
	src.run <- run
	waitDone(t, run)

	res := run.Result()
	assert.Equal(t, race.RunCompleted, res.Status)
	assert.Equal(t, 1, res.Samples)
	assert.Equal(t, 1, store.count(), "completed runs are stored")
}

func TestStart_EvictsOldestFinishedRuns(t *testing.T) {
	store := &fakeStore{}
	opts := testOptions()
	opts.RetainedRuns = 2
	svc := NewDirectorService(opts, store, zerolog.Nop())
	defer svc.Close()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run, err := svc.Start(context.Background(), request(10))
		require.NoError(t, err)
		waitDone(t, run)
		ids = append(ids, run.ID)
	}

	_, err := svc.Get(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	for _, id := range ids[1:] {
		_, err := svc.Get(id)
		assert.NoError(t, err)
	}

	stored, err := svc.StoredRun(context.Background(), ids[0])
	require.NoError(t, err, "evicted runs stay in the overlay store")
	assert.Equal(t, race.RunCompleted, stored.Status)
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestStart_RunsInBackground(t *testing.T) {
	store := &fakeStore{}
	svc := NewDirectorService(testOptions(), store, zerolog.Nop())
	defer svc.Close()

	run, err := svc.Start(context.Background(), request(100))
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	res := run.Result()
	assert.Equal(t, race.RunCompleted, res.Status)
	assert.Equal(t, run.ID, res.ID)
	assert.NotEmpty(t, run.Commands())
	assert.Equal(t, res.Overlay.CameraCommands, run.Commands())

	got, err := svc.Get(run.ID)
	require.NoError(t, err)
	assert.Same(t, run, got)

	stored, err := svc.StoredRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)
}

func TestStart_Abort(t *testing.T) {
	svc := NewDirectorService(testOptions(), nil, zerolog.Nop())
	defer svc.Close()

	run, err := svc.Start(context.Background(), RunRequest{
		TrackName:    track,
		CameraGroups: groups,
		RaceSamples:  &endlessSource{},
	})
	require.NoError(t, err)
	assert.Equal(t, race.RunRunning, run.Result().Status)

	require.NoError(t, svc.Abort(run.ID))
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, race.RunAborted, run.Result().Status)
}

func TestStart_InvalidRequests(t *testing.T) {
	svc := NewDirectorService(testOptions(), nil, zerolog.Nop())
	defer svc.Close()

	_, err := svc.Start(context.Background(), RunRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Start(context.Background(), RunRequest{TrackName: "Monza", RaceSamples: telemetry.NewSliceSource(nil)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, direction.ErrNoTrackCameras)
}

func TestLookups_NotFound(t *testing.T) {
	svc := NewDirectorService(testOptions(), nil, zerolog.Nop())

	_, err := svc.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Abort(uuid.New()), ErrNotFound)

	_, err = svc.StoredRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	svc = NewDirectorService(testOptions(), &fakeStore{}, zerolog.Nop())
	_, err = svc.StoredRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
